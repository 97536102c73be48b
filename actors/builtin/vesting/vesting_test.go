package vesting_test

import (
	"context"
	"strings"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmont/Advanced-liquid-staking-sub001/actors/builtin"
	"github.com/redmont/Advanced-liquid-staking-sub001/actors/builtin/vesting"
	"github.com/redmont/Advanced-liquid-staking-sub001/support/mock"
	tutil "github.com/redmont/Advanced-liquid-staking-sub001/support/testing"
)

func TestExports(t *testing.T) {
	mock.CheckActorExports(t, vesting.Actor{})
}

func TestConstruction(t *testing.T) {
	actor := vesting.Actor{}
	builder := mock.NewBuilder(context.Background(), builtin.VestingActorAddr).
		WithCaller(builtin.SystemActorAddr, builtin.SystemActorCodeID)

	t.Run("simple construction", func(t *testing.T) {
		issuer := tutil.NewIDAddr(t, 50)

		rt := builder.Build(t)
		rt.ExpectValidateCallerAddr(builtin.SystemActorAddr)
		ret := rt.Call(actor.Constructor, &vesting.ConstructorParams{Issuer: issuer})
		assert.Nil(t, ret)
		rt.Verify()

		var st vesting.State
		rt.GetState(&st)
		assert.Equal(t, issuer, st.Issuer)
		assert.True(t, st.TotalVesting.IsZero())
	})

	t.Run("fail with unresolvable issuer", func(t *testing.T) {
		issuer := tutil.NewSECP256K1Addr(t, "issuer")

		rt := builder.Build(t)
		rt.ExpectValidateCallerAddr(builtin.SystemActorAddr)
		rt.ExpectAbortContainsMessage(exitcode.ErrIllegalArgument, "unable to resolve issuer address", func() {
			rt.Call(actor.Constructor, &vesting.ConstructorParams{Issuer: issuer})
		})
	})
}

func TestCreateVestingSchedule(t *testing.T) {
	issuer := tutil.NewIDAddr(t, 50)
	alice := tutil.NewIDAddr(t, 100)

	t.Run("fail when caller is non-signable", func(t *testing.T) {
		rt, actor := setupFunc(t, issuer)
		rt.SetCaller(builtin.GovernActorAddr, builtin.GovernActorCodeID)

		rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
		rt.ExpectAbort(exitcode.SysErrForbidden, func() {
			rt.Call(actor.CreateVestingSchedule, &vesting.CreateVestingScheduleParams{
				Beneficiary: alice, Duration: 300, SliceDuration: 1,
			})
		})
	})

	t.Run("fail with zero value", func(t *testing.T) {
		rt, actor := setupFunc(t, issuer)
		rt.SetCaller(issuer, builtin.AccountActorCodeID)
		rt.SetReceived(big.Zero())

		rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
		rt.ExpectAbortContainsMessage(exitcode.ErrIllegalArgument, "invalid amount", func() {
			rt.Call(actor.CreateVestingSchedule, &vesting.CreateVestingScheduleParams{
				Beneficiary: alice, Duration: 300, SliceDuration: 1,
			})
		})
	})

	t.Run("fail with invalid durations", func(t *testing.T) {
		rt, actor := setupFunc(t, issuer)

		for _, params := range []*vesting.CreateVestingScheduleParams{
			{Beneficiary: alice, Duration: 0, SliceDuration: 1},
			{Beneficiary: alice, Duration: 300, SliceDuration: 0},
			{Beneficiary: alice, Duration: 300, SliceDuration: 301},
		} {
			rt.SetCaller(issuer, builtin.AccountActorCodeID)
			rt.SetReceived(big.NewInt(100))
			rt.SetBalance(big.NewInt(100))
			rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
			rt.ExpectAbortContainsMessage(exitcode.ErrIllegalArgument, "invalid duration", func() {
				rt.Call(actor.CreateVestingSchedule, params)
			})
		}
	})

	t.Run("fail when caller is not the issuer", func(t *testing.T) {
		rt, actor := setupFunc(t, issuer)
		rt.SetCaller(alice, builtin.AccountActorCodeID)
		rt.SetReceived(big.NewInt(100))
		rt.SetBalance(big.NewInt(100))

		rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
		rt.ExpectAbortContainsMessage(exitcode.SysErrForbidden, "not the issuer", func() {
			rt.Call(actor.CreateVestingSchedule, &vesting.CreateVestingScheduleParams{
				Beneficiary: alice, Duration: 300, SliceDuration: 1,
			})
		})
	})

	t.Run("create a schedule", func(t *testing.T) {
		rt, actor := setupFunc(t, issuer)

		id := actor.create(rt, alice, big.NewInt(300), 1000, 0, 300, 1, true)
		assert.Equal(t, vesting.ScheduleID(alice, 0), id)

		sum := actor.checkState(rt)
		assert.Equal(t, 1, sum.SchedulesCount)
		assert.True(t, sum.TotalVesting.Equals(big.NewInt(300)))

		var st vesting.State
		rt.GetState(&st)
		events, err := st.ListEvents(rt.AdtStore())
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, builtin.EventScheduleCreated, events[0].Type)
		assert.Equal(t, alice, events[0].Account)
	})
}

func TestReleaseMethod(t *testing.T) {
	issuer := tutil.NewIDAddr(t, 50)
	alice := tutil.NewIDAddr(t, 100)
	bob := tutil.NewIDAddr(t, 101)

	t.Run("fail with zero amount", func(t *testing.T) {
		rt, actor := setupFunc(t, issuer)
		id := actor.create(rt, alice, big.NewInt(300), 1000, 0, 300, 1, false)

		rt.SetEpoch(1150)
		rt.SetCaller(alice, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
		rt.ExpectAbortContainsMessage(exitcode.ErrIllegalArgument, "invalid amount", func() {
			rt.Call(actor.Release, &vesting.ReleaseParams{ID: id, Amount: big.Zero()})
		})
	})

	t.Run("fail with unknown schedule", func(t *testing.T) {
		rt, actor := setupFunc(t, issuer)
		rt.SetCaller(alice, builtin.AccountActorCodeID)

		rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
		rt.ExpectAbortContainsMessage(exitcode.ErrNotFound, "not found", func() {
			rt.Call(actor.Release, &vesting.ReleaseParams{ID: vesting.ScheduleID(alice, 0), Amount: big.NewInt(1)})
		})
	})

	t.Run("fail when caller is not the beneficiary", func(t *testing.T) {
		rt, actor := setupFunc(t, issuer)
		id := actor.create(rt, alice, big.NewInt(300), 1000, 0, 300, 1, false)

		rt.SetEpoch(1150)
		rt.SetCaller(bob, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
		rt.ExpectAbortContainsMessage(exitcode.SysErrForbidden, "not the beneficiary", func() {
			rt.Call(actor.Release, &vesting.ReleaseParams{ID: id, Amount: big.NewInt(1)})
		})
	})

	t.Run("fail before the cliff", func(t *testing.T) {
		rt, actor := setupFunc(t, issuer)
		id := actor.create(rt, alice, big.NewInt(300), 1000, 100, 300, 1, false)

		rt.SetEpoch(1099)
		rt.SetCaller(alice, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
		rt.ExpectAbortContainsMessage(exitcode.ErrInsufficientFunds, "exceeds releasable", func() {
			rt.Call(actor.Release, &vesting.ReleaseParams{ID: id, Amount: big.NewInt(1)})
		})
	})

	t.Run("release half way and then the remainder", func(t *testing.T) {
		rt, actor := setupFunc(t, issuer)
		total := big.Mul(big.NewInt(100), big.NewInt(builtin.TokenPrecision))
		half := big.Mul(big.NewInt(50), big.NewInt(builtin.TokenPrecision))
		id := actor.create(rt, alice, total, 1000, 0, 300, 1, false)

		rt.SetEpoch(1150)
		actor.release(rt, alice, id, half)

		rt.SetEpoch(1400)
		actor.release(rt, alice, id, half)

		sum := actor.checkState(rt)
		assert.True(t, sum.TotalVesting.IsZero())

		// fully released
		rt.SetCaller(alice, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
		rt.ExpectAbortContainsMessage(exitcode.ErrInsufficientFunds, "exceeds releasable", func() {
			rt.Call(actor.Release, &vesting.ReleaseParams{ID: id, Amount: big.NewInt(1)})
		})
	})

	t.Run("partial release leaves the rest claimable", func(t *testing.T) {
		rt, actor := setupFunc(t, issuer)
		id := actor.create(rt, alice, big.NewInt(300), 1000, 0, 300, 1, false)

		rt.SetEpoch(1150)
		actor.release(rt, alice, id, big.NewInt(40))
		actor.release(rt, alice, id, big.NewInt(110))

		sum := actor.checkState(rt)
		assert.True(t, sum.TotalVesting.Equals(big.NewInt(150)))
	})
}

func TestRevokeMethod(t *testing.T) {
	issuer := tutil.NewIDAddr(t, 50)
	alice := tutil.NewIDAddr(t, 100)

	t.Run("fail when caller is not the issuer", func(t *testing.T) {
		rt, actor := setupFunc(t, issuer)
		id := actor.create(rt, alice, big.NewInt(300), 1000, 0, 300, 1, true)

		rt.SetCaller(alice, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
		rt.ExpectAbortContainsMessage(exitcode.SysErrForbidden, "not the issuer", func() {
			rt.Call(actor.Revoke, &vesting.ScheduleParams{ID: id})
		})
	})

	t.Run("fail when schedule not revocable", func(t *testing.T) {
		rt, actor := setupFunc(t, issuer)
		id := actor.create(rt, alice, big.NewInt(300), 1000, 0, 300, 1, false)

		rt.SetCaller(issuer, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
		rt.ExpectAbortContainsMessage(exitcode.ErrForbidden, "not revocable", func() {
			rt.Call(actor.Revoke, &vesting.ScheduleParams{ID: id})
		})
	})

	t.Run("revoke refunds the unvested remainder", func(t *testing.T) {
		rt, actor := setupFunc(t, issuer)
		id := actor.create(rt, alice, big.NewInt(300), 1000, 0, 300, 1, true)

		rt.SetEpoch(1150)
		actor.revoke(rt, id, big.NewInt(150))

		sum := actor.checkState(rt)
		assert.True(t, sum.TotalVesting.Equals(big.NewInt(150)))

		// vested portion stays claimable long after revocation
		rt.SetEpoch(2000)
		actor.release(rt, alice, id, big.NewInt(150))

		sum = actor.checkState(rt)
		assert.True(t, sum.TotalVesting.IsZero())
	})

	t.Run("fail when already revoked", func(t *testing.T) {
		rt, actor := setupFunc(t, issuer)
		id := actor.create(rt, alice, big.NewInt(300), 1000, 0, 300, 1, true)

		rt.SetEpoch(1150)
		actor.revoke(rt, id, big.NewInt(150))

		rt.SetEpoch(1200)
		rt.SetCaller(issuer, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
		rt.ExpectAbortContainsMessage(exitcode.ErrForbidden, "already revoked", func() {
			rt.Call(actor.Revoke, &vesting.ScheduleParams{ID: id})
		})
	})

	t.Run("revoking a fully vested schedule refunds nothing", func(t *testing.T) {
		rt, actor := setupFunc(t, issuer)
		id := actor.create(rt, alice, big.NewInt(300), 1000, 0, 300, 1, true)

		rt.SetEpoch(1300)
		rt.SetCaller(issuer, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
		rt.Call(actor.Revoke, &vesting.ScheduleParams{ID: id})
		rt.Verify()

		sum := actor.checkState(rt)
		assert.True(t, sum.TotalVesting.Equals(big.NewInt(300)))
	})
}

func TestVestedAmountMethod(t *testing.T) {
	issuer := tutil.NewIDAddr(t, 50)
	alice := tutil.NewIDAddr(t, 100)

	t.Run("fail with unknown schedule", func(t *testing.T) {
		rt, actor := setupFunc(t, issuer)
		rt.SetCaller(alice, builtin.AccountActorCodeID)

		rt.ExpectValidateCallerAny()
		rt.ExpectAbortContainsMessage(exitcode.ErrNotFound, "not found", func() {
			rt.Call(actor.VestedAmount, &vesting.ScheduleParams{ID: vesting.ScheduleID(alice, 0)})
		})
	})

	t.Run("report midway through vesting", func(t *testing.T) {
		rt, actor := setupFunc(t, issuer)
		id := actor.create(rt, alice, big.NewInt(300), 1000, 0, 300, 1, false)

		rt.SetEpoch(1150)
		actor.release(rt, alice, id, big.NewInt(150))

		rt.SetEpoch(1200)
		rt.SetCaller(alice, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAny()
		ret := rt.Call(actor.VestedAmount, &vesting.ScheduleParams{ID: id}).(*vesting.VestedAmountReturn)
		rt.Verify()

		assert.True(t, ret.Vested.Equals(big.NewInt(200)))
		assert.True(t, ret.Releasable.Equals(big.NewInt(50)))
		assert.True(t, ret.Released.Equals(big.NewInt(150)))
		assert.True(t, ret.Total.Equals(big.NewInt(300)))
	})
}

func setupFunc(t *testing.T, issuer address.Address) (*mock.Runtime, *actorHarness) {
	builder := mock.NewBuilder(context.Background(), builtin.VestingActorAddr)
	rt := builder.Build(t)

	actor := newHarness(t, issuer)
	actor.constructAndVerify(rt)

	return rt, actor
}

type actorHarness struct {
	vesting.Actor
	t *testing.T

	issuer address.Address
}

func newHarness(t *testing.T, issuer address.Address) *actorHarness {
	return &actorHarness{
		Actor:  vesting.Actor{},
		t:      t,
		issuer: issuer,
	}
}

func (h *actorHarness) constructAndVerify(rt *mock.Runtime) {
	rt.SetCaller(builtin.SystemActorAddr, builtin.SystemActorCodeID)
	rt.ExpectValidateCallerAddr(builtin.SystemActorAddr)
	ret := rt.Call(h.Constructor, &vesting.ConstructorParams{Issuer: h.issuer})
	assert.Nil(h.t, ret)
	rt.Verify()
}

func (h *actorHarness) create(rt *mock.Runtime, beneficiary address.Address, amount abi.TokenAmount, start, cliff, duration, slice abi.ChainEpoch, revocable bool) []byte {
	rt.SetCaller(h.issuer, builtin.AccountActorCodeID)
	rt.SetReceived(amount)
	rt.SetBalance(big.Add(rt.Balance(), amount))
	rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
	ret := rt.Call(h.CreateVestingSchedule, &vesting.CreateVestingScheduleParams{
		Beneficiary:   beneficiary,
		Start:         start,
		CliffDuration: cliff,
		Duration:      duration,
		SliceDuration: slice,
		Revocable:     revocable,
	}).(*vesting.CreateVestingScheduleReturn)
	rt.Verify()
	rt.SetReceived(big.Zero())
	return ret.ID
}

func (h *actorHarness) release(rt *mock.Runtime, beneficiary address.Address, id []byte, amount abi.TokenAmount) {
	rt.SetCaller(beneficiary, builtin.AccountActorCodeID)
	rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
	rt.ExpectSend(beneficiary, builtin.MethodSend, nil, amount, nil, exitcode.Ok)
	rt.Call(h.Release, &vesting.ReleaseParams{ID: id, Amount: amount})
	rt.Verify()
}

func (h *actorHarness) revoke(rt *mock.Runtime, id []byte, expectedRefund abi.TokenAmount) {
	rt.SetCaller(h.issuer, builtin.AccountActorCodeID)
	rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
	if !expectedRefund.IsZero() {
		rt.ExpectSend(h.issuer, builtin.MethodSend, nil, expectedRefund, nil, exitcode.Ok)
	}
	rt.Call(h.Revoke, &vesting.ScheduleParams{ID: id})
	rt.Verify()
}

func (h *actorHarness) checkState(rt *mock.Runtime) *vesting.StateSummary {
	var st vesting.State
	rt.GetState(&st)
	sum, msgs := vesting.CheckStateInvariants(&st, rt.AdtStore())
	require.True(h.t, msgs.IsEmpty(), strings.Join(msgs.Messages(), "\n"))
	return sum
}
