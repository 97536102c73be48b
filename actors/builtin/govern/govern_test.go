package govern_test

import (
	"context"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmont/Advanced-liquid-staking-sub001/actors/builtin"
	"github.com/redmont/Advanced-liquid-staking-sub001/actors/builtin/govern"
	"github.com/redmont/Advanced-liquid-staking-sub001/actors/util/adt"
	"github.com/redmont/Advanced-liquid-staking-sub001/support/mock"
	tutil "github.com/redmont/Advanced-liquid-staking-sub001/support/testing"
)

func TestExports(t *testing.T) {
	mock.CheckActorExports(t, govern.Actor{})
}

func TestConstruction(t *testing.T) {
	actor := govern.Actor{}
	builder := mock.NewBuilder(context.Background(), builtin.GovernActorAddr).
		WithCaller(builtin.SystemActorAddr, builtin.SystemActorCodeID)

	t.Run("simple construction", func(t *testing.T) {
		rt := builder.Build(t)
		supervisor := tutil.NewIDAddr(t, 50)

		rt.ExpectValidateCallerAddr(builtin.SystemActorAddr)
		ret := rt.Call(actor.Constructor, &supervisor)
		assert.Nil(t, ret)
		rt.Verify()

		var st govern.State
		rt.GetState(&st)
		assert.Equal(t, supervisor, st.Supervisor)
	})

	t.Run("fail with non-ID supervisor", func(t *testing.T) {
		rt := builder.Build(t)
		supervisor := tutil.NewSECP256K1Addr(t, "supervisor")

		rt.ExpectValidateCallerAddr(builtin.SystemActorAddr)
		rt.ExpectAbortContainsMessage(exitcode.ErrIllegalState, "failed to construct state", func() {
			rt.Call(actor.Constructor, &supervisor)
		})
	})
}

func TestGrant(t *testing.T) {
	governor := tutil.NewIDAddr(t, 100)

	t.Run("fail when caller is not supervisor", func(t *testing.T) {
		rt, actor := setupFunc(t)
		rt.SetAddressActorType(governor, builtin.AccountActorCodeID)
		stranger := tutil.NewIDAddr(t, 60)
		rt.SetCaller(stranger, builtin.AccountActorCodeID)

		rt.ExpectValidateCallerAddr(actor.supervisor)
		rt.ExpectAbort(exitcode.SysErrForbidden, func() {
			rt.Call(actor.Grant, &govern.GrantOrRevokeParams{Governor: governor, All: true})
		})
	})

	t.Run("fail with ungoverned actor code", func(t *testing.T) {
		rt, actor := setupFunc(t)
		rt.SetAddressActorType(governor, builtin.AccountActorCodeID)
		rt.SetCaller(actor.supervisor, builtin.AccountActorCodeID)

		rt.ExpectAbortContainsMessage(exitcode.ErrIllegalArgument, "not found", func() {
			rt.Call(actor.Grant, &govern.GrantOrRevokeParams{
				Governor: governor,
				Authorities: []govern.Authority{
					{ActorCodeID: builtin.GovernActorCodeID, All: true},
				},
			})
		})
	})

	t.Run("fail with ungoverned method", func(t *testing.T) {
		rt, actor := setupFunc(t)
		rt.SetAddressActorType(governor, builtin.AccountActorCodeID)
		rt.SetCaller(actor.supervisor, builtin.AccountActorCodeID)

		rt.ExpectAbortContainsMessage(exitcode.ErrIllegalArgument, "not found", func() {
			rt.Call(actor.Grant, &govern.GrantOrRevokeParams{
				Governor: governor,
				Authorities: []govern.Authority{
					{ActorCodeID: builtin.StakingActorCodeID, Methods: []abi.MethodNum{builtin.MethodsStaking.Deposit}},
				},
			})
		})
	})

	t.Run("fail with duplicated actor code", func(t *testing.T) {
		rt, actor := setupFunc(t)
		rt.SetAddressActorType(governor, builtin.AccountActorCodeID)
		rt.SetCaller(actor.supervisor, builtin.AccountActorCodeID)

		rt.ExpectAbortContainsMessage(exitcode.ErrIllegalArgument, "duplicated actor code", func() {
			rt.Call(actor.Grant, &govern.GrantOrRevokeParams{
				Governor: governor,
				Authorities: []govern.Authority{
					{ActorCodeID: builtin.StakingActorCodeID, All: true},
					{ActorCodeID: builtin.StakingActorCodeID, All: true},
				},
			})
		})
	})

	t.Run("fail when governor is not signable", func(t *testing.T) {
		rt, actor := setupFunc(t)
		rt.SetAddressActorType(governor, builtin.StakingActorCodeID)
		rt.SetCaller(actor.supervisor, builtin.AccountActorCodeID)

		rt.ExpectAbortContainsMessage(exitcode.ErrIllegalArgument, "failed to check actor code", func() {
			rt.Call(actor.Grant, &govern.GrantOrRevokeParams{Governor: governor, All: true})
		})
	})

	t.Run("grant single method", func(t *testing.T) {
		rt, actor := setupFunc(t)
		rt.SetAddressActorType(governor, builtin.AccountActorCodeID)

		actor.grantOrRevoke(rt, actor.Grant, &govern.GrantOrRevokeParams{
			Governor: governor,
			Authorities: []govern.Authority{
				{ActorCodeID: builtin.StakingActorCodeID, Methods: []abi.MethodNum{builtin.MethodsStaking.SetTier}},
			},
		})

		assert.True(t, actor.granted(rt, governor, builtin.StakingActorCodeID, builtin.MethodsStaking.SetTier))
		assert.False(t, actor.granted(rt, governor, builtin.StakingActorCodeID, builtin.MethodsStaking.SetRewardForPeriod))
	})

	t.Run("grant all methods of all actors", func(t *testing.T) {
		rt, actor := setupFunc(t)
		rt.SetAddressActorType(governor, builtin.AccountActorCodeID)

		actor.grantOrRevoke(rt, actor.Grant, &govern.GrantOrRevokeParams{Governor: governor, All: true})

		for code, methods := range govern.GovernedActors {
			for method := range methods {
				assert.True(t, actor.granted(rt, governor, code, method))
			}
		}
	})

	t.Run("grants accumulate", func(t *testing.T) {
		rt, actor := setupFunc(t)
		rt.SetAddressActorType(governor, builtin.AccountActorCodeID)

		actor.grantOrRevoke(rt, actor.Grant, &govern.GrantOrRevokeParams{
			Governor: governor,
			Authorities: []govern.Authority{
				{ActorCodeID: builtin.StakingActorCodeID, Methods: []abi.MethodNum{builtin.MethodsStaking.SetTier}},
			},
		})
		actor.grantOrRevoke(rt, actor.Grant, &govern.GrantOrRevokeParams{
			Governor: governor,
			Authorities: []govern.Authority{
				{ActorCodeID: builtin.StakingActorCodeID, Methods: []abi.MethodNum{builtin.MethodsStaking.SetVotingDelay}},
			},
		})

		assert.True(t, actor.granted(rt, governor, builtin.StakingActorCodeID, builtin.MethodsStaking.SetTier))
		assert.True(t, actor.granted(rt, governor, builtin.StakingActorCodeID, builtin.MethodsStaking.SetVotingDelay))
		assert.False(t, actor.granted(rt, governor, builtin.StakingActorCodeID, builtin.MethodsStaking.SetRewardForPeriod))
	})
}

func TestRevoke(t *testing.T) {
	governor := tutil.NewIDAddr(t, 100)

	t.Run("revoke single method", func(t *testing.T) {
		rt, actor := setupFunc(t)
		rt.SetAddressActorType(governor, builtin.AccountActorCodeID)

		actor.grantOrRevoke(rt, actor.Grant, &govern.GrantOrRevokeParams{Governor: governor, All: true})
		actor.grantOrRevoke(rt, actor.Revoke, &govern.GrantOrRevokeParams{
			Governor: governor,
			Authorities: []govern.Authority{
				{ActorCodeID: builtin.StakingActorCodeID, Methods: []abi.MethodNum{builtin.MethodsStaking.SetTier}},
			},
		})

		assert.False(t, actor.granted(rt, governor, builtin.StakingActorCodeID, builtin.MethodsStaking.SetTier))
		assert.True(t, actor.granted(rt, governor, builtin.StakingActorCodeID, builtin.MethodsStaking.SetRewardForPeriod))
	})

	t.Run("revoke all deletes governor", func(t *testing.T) {
		rt, actor := setupFunc(t)
		rt.SetAddressActorType(governor, builtin.AccountActorCodeID)

		actor.grantOrRevoke(rt, actor.Grant, &govern.GrantOrRevokeParams{Governor: governor, All: true})
		actor.grantOrRevoke(rt, actor.Revoke, &govern.GrantOrRevokeParams{Governor: governor, All: true})

		var st govern.State
		rt.GetState(&st)
		governors, err := adt.AsMap(rt.AdtStore(), st.Governors, builtin.DefaultHamtBitwidth)
		require.NoError(t, err)
		keys, err := governors.CollectKeys()
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("revoke for unknown governor is a no-op", func(t *testing.T) {
		rt, actor := setupFunc(t)
		rt.SetAddressActorType(governor, builtin.AccountActorCodeID)

		actor.grantOrRevoke(rt, actor.Revoke, &govern.GrantOrRevokeParams{Governor: governor, All: true})
		assert.False(t, actor.granted(rt, governor, builtin.StakingActorCodeID, builtin.MethodsStaking.SetTier))
	})
}

func TestValidateGranted(t *testing.T) {
	governor := tutil.NewIDAddr(t, 100)

	t.Run("fail when caller is not a governed actor", func(t *testing.T) {
		rt, actor := setupFunc(t)
		rt.SetCaller(tutil.NewIDAddr(t, 60), builtin.AccountActorCodeID)

		rt.ExpectValidateCallerType(govern.GovernedCallerTypes...)
		rt.ExpectAbort(exitcode.SysErrForbidden, func() {
			rt.Call(actor.ValidateGranted, &builtin.ValidateGrantedParams{
				Caller: governor,
				Method: builtin.MethodsStaking.SetTier,
			})
		})
	})

	t.Run("fail when method not granted", func(t *testing.T) {
		rt, actor := setupFunc(t)
		rt.SetCaller(builtin.StakingActorAddr, builtin.StakingActorCodeID)

		rt.ExpectValidateCallerType(govern.GovernedCallerTypes...)
		rt.ExpectAbortContainsMessage(exitcode.ErrForbidden, "method not granted", func() {
			rt.Call(actor.ValidateGranted, &builtin.ValidateGrantedParams{
				Caller: governor,
				Method: builtin.MethodsStaking.SetTier,
			})
		})
	})

	t.Run("pass when method granted", func(t *testing.T) {
		rt, actor := setupFunc(t)
		rt.SetAddressActorType(governor, builtin.AccountActorCodeID)

		actor.grantOrRevoke(rt, actor.Grant, &govern.GrantOrRevokeParams{
			Governor: governor,
			Authorities: []govern.Authority{
				{ActorCodeID: builtin.StakingActorCodeID, Methods: []abi.MethodNum{builtin.MethodsStaking.SetTier}},
			},
		})

		rt.SetCaller(builtin.StakingActorAddr, builtin.StakingActorCodeID)
		rt.ExpectValidateCallerType(govern.GovernedCallerTypes...)
		ret := rt.Call(actor.ValidateGranted, &builtin.ValidateGrantedParams{
			Caller: governor,
			Method: builtin.MethodsStaking.SetTier,
		})
		assert.Nil(t, ret)
		rt.Verify()
	})

	t.Run("revoked method no longer passes", func(t *testing.T) {
		rt, actor := setupFunc(t)
		rt.SetAddressActorType(governor, builtin.AccountActorCodeID)

		actor.grantOrRevoke(rt, actor.Grant, &govern.GrantOrRevokeParams{Governor: governor, All: true})
		actor.grantOrRevoke(rt, actor.Revoke, &govern.GrantOrRevokeParams{
			Governor: governor,
			Authorities: []govern.Authority{
				{ActorCodeID: builtin.StakingActorCodeID, Methods: []abi.MethodNum{builtin.MethodsStaking.SetRewardForPeriod}},
			},
		})

		rt.SetCaller(builtin.StakingActorAddr, builtin.StakingActorCodeID)
		rt.ExpectValidateCallerType(govern.GovernedCallerTypes...)
		rt.ExpectAbortContainsMessage(exitcode.ErrForbidden, "method not granted", func() {
			rt.Call(actor.ValidateGranted, &builtin.ValidateGrantedParams{
				Caller: governor,
				Method: builtin.MethodsStaking.SetRewardForPeriod,
			})
		})
	})
}

type actorHarness struct {
	govern.Actor
	t          *testing.T
	supervisor address.Address
}

func setupFunc(t *testing.T) (*mock.Runtime, *actorHarness) {
	supervisor := tutil.NewIDAddr(t, 50)
	builder := mock.NewBuilder(context.Background(), builtin.GovernActorAddr).
		WithCaller(builtin.SystemActorAddr, builtin.SystemActorCodeID)
	rt := builder.Build(t)

	h := &actorHarness{t: t, supervisor: supervisor}
	h.constructAndVerify(rt)
	return rt, h
}

func (h *actorHarness) constructAndVerify(rt *mock.Runtime) {
	rt.ExpectValidateCallerAddr(builtin.SystemActorAddr)
	ret := rt.Call(h.Constructor, &h.supervisor)
	assert.Nil(h.t, ret)
	rt.Verify()
}

func (h *actorHarness) grantOrRevoke(rt *mock.Runtime, method interface{}, params *govern.GrantOrRevokeParams) {
	rt.SetCaller(h.supervisor, builtin.AccountActorCodeID)
	rt.ExpectValidateCallerAddr(h.supervisor)
	ret := rt.Call(method, params)
	assert.Nil(h.t, ret)
	rt.Verify()
}

func (h *actorHarness) granted(rt *mock.Runtime, governor address.Address, code cid.Cid, method abi.MethodNum) bool {
	var st govern.State
	rt.GetState(&st)
	store := rt.AdtStore()
	governors, err := adt.AsMap(store, st.Governors, builtin.DefaultHamtBitwidth)
	require.NoError(h.t, err)
	granted, err := st.IsGranted(store, governors, governor, code, method)
	require.NoError(h.t, err)
	return granted
}
