package vesting_test

import (
	"context"
	"strings"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmont/Advanced-liquid-staking-sub001/actors/builtin"
	"github.com/redmont/Advanced-liquid-staking-sub001/actors/builtin/vesting"
	"github.com/redmont/Advanced-liquid-staking-sub001/actors/util/adt"
	"github.com/redmont/Advanced-liquid-staking-sub001/support/ipld"
	tutil "github.com/redmont/Advanced-liquid-staking-sub001/support/testing"
)

func TestScheduleID(t *testing.T) {
	alice := tutil.NewIDAddr(t, 100)
	bob := tutil.NewIDAddr(t, 101)

	id := vesting.ScheduleID(alice, 0)
	assert.Len(t, id, 32)

	// deterministic
	assert.Equal(t, id, vesting.ScheduleID(alice, 0))

	// distinct per sequence and per beneficiary
	assert.NotEqual(t, id, vesting.ScheduleID(alice, 1))
	assert.NotEqual(t, id, vesting.ScheduleID(bob, 0))
}

func TestCreateSchedule(t *testing.T) {
	alice := tutil.NewIDAddr(t, 100)

	t.Run("fail with invalid durations", func(t *testing.T) {
		h := constructStateHarness(t)

		_, err := h.s.CreateSchedule(h.store, alice, big.NewInt(100), 0, 0, 0, 1, false)
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid duration")

		_, err = h.s.CreateSchedule(h.store, alice, big.NewInt(100), 0, 0, 300, 0, false)
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid duration")

		_, err = h.s.CreateSchedule(h.store, alice, big.NewInt(100), 0, 0, 300, 301, false)
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid duration")
	})

	t.Run("fail with non-positive amount", func(t *testing.T) {
		h := constructStateHarness(t)

		_, err := h.s.CreateSchedule(h.store, alice, big.Zero(), 0, 0, 300, 1, false)
		require.Error(t, err)
		require.Contains(t, err.Error(), "non-positive amount")
	})

	t.Run("sequential ids per beneficiary", func(t *testing.T) {
		h := constructStateHarness(t)

		id0 := h.create(alice, big.NewInt(100), 0, 0, 300, 1, false)
		id1 := h.create(alice, big.NewInt(200), 0, 0, 300, 1, true)

		assert.Equal(t, vesting.ScheduleID(alice, 0), id0)
		assert.Equal(t, vesting.ScheduleID(alice, 1), id1)

		s0, found, err := h.s.GetSchedule(h.store, id0)
		require.NoError(t, err)
		require.True(t, found)
		assert.True(t, s0.Total.Equals(big.NewInt(100)))
		assert.False(t, s0.Revocable)

		assert.True(t, h.s.TotalVesting.Equals(big.NewInt(300)))

		sum := h.checkState()
		assert.Equal(t, 2, sum.SchedulesCount)
		assert.Equal(t, 1, sum.BeneficiariesCount)
	})
}

func TestVestedAt(t *testing.T) {
	t.Run("linear vesting with floor division", func(t *testing.T) {
		total := big.Mul(big.NewInt(100), big.NewInt(builtin.TokenPrecision))
		s := vesting.VestingSchedule{
			Start:         1000,
			CliffDuration: 0,
			Duration:      300,
			SliceDuration: 1,
			Total:         total,
			Released:      big.Zero(),
		}

		at999 := s.VestedAt(999)
		assert.True(t, at999.IsZero())
		at1000 := s.VestedAt(1000)
		assert.True(t, at1000.IsZero())

		half := big.Mul(big.NewInt(50), big.NewInt(builtin.TokenPrecision))
		assert.True(t, s.VestedAt(1150).Equals(half))

		assert.True(t, s.VestedAt(1300).Equals(total))
		assert.True(t, s.VestedAt(2000).Equals(total))
	})

	t.Run("nothing vests before the cliff", func(t *testing.T) {
		s := vesting.VestingSchedule{
			Start:         1000,
			CliffDuration: 100,
			Duration:      300,
			SliceDuration: 1,
			Total:         big.NewInt(300),
			Released:      big.Zero(),
		}

		at1099 := s.VestedAt(1099)
		assert.True(t, at1099.IsZero())
		assert.True(t, s.VestedAt(1100).Equals(big.NewInt(100)))
	})

	t.Run("vesting advances in whole slices", func(t *testing.T) {
		s := vesting.VestingSchedule{
			Start:         1000,
			CliffDuration: 0,
			Duration:      300,
			SliceDuration: 30,
			Total:         big.NewInt(300),
			Released:      big.Zero(),
		}

		at1029 := s.VestedAt(1029)
		assert.True(t, at1029.IsZero())
		assert.True(t, s.VestedAt(1030).Equals(big.NewInt(30)))
		assert.True(t, s.VestedAt(1059).Equals(big.NewInt(30)))
		assert.True(t, s.VestedAt(1060).Equals(big.NewInt(60)))
	})

	t.Run("revocation freezes vesting", func(t *testing.T) {
		s := vesting.VestingSchedule{
			Start:         1000,
			CliffDuration: 0,
			Duration:      300,
			SliceDuration: 1,
			Total:         big.NewInt(300),
			Released:      big.Zero(),
			Revocable:     true,
			Revoked:       true,
			RevokedAt:     1150,
		}

		assert.True(t, s.VestedAt(1150).Equals(big.NewInt(150)))
		assert.True(t, s.VestedAt(2000).Equals(big.NewInt(150)))
	})
}

func TestRelease(t *testing.T) {
	alice := tutil.NewIDAddr(t, 100)

	t.Run("release vested portion", func(t *testing.T) {
		h := constructStateHarness(t)
		id := h.create(alice, big.NewInt(300), 1000, 0, 300, 1, false)

		s, err := h.s.Release(h.store, id, big.NewInt(150), 1150)
		require.NoError(t, err)
		assert.True(t, s.Released.Equals(big.NewInt(150)))
		assert.True(t, h.s.TotalVesting.Equals(big.NewInt(150)))

		// nothing more at the same epoch
		_, err = h.s.Release(h.store, id, big.NewInt(1), 1150)
		require.Error(t, err)
		require.Contains(t, err.Error(), "exceeds releasable")

		// remainder after full vesting
		s, err = h.s.Release(h.store, id, big.NewInt(150), 1300)
		require.NoError(t, err)
		assert.True(t, s.Released.Equals(big.NewInt(300)))
		assert.True(t, h.s.TotalVesting.IsZero())

		h.checkState()
	})

	t.Run("partial release leaves the rest claimable", func(t *testing.T) {
		h := constructStateHarness(t)
		id := h.create(alice, big.NewInt(300), 1000, 0, 300, 1, false)

		s, err := h.s.Release(h.store, id, big.NewInt(40), 1150)
		require.NoError(t, err)
		assert.True(t, s.Released.Equals(big.NewInt(40)))
		assert.True(t, s.Releasable(1150).Equals(big.NewInt(110)))
		assert.True(t, h.s.TotalVesting.Equals(big.NewInt(260)))

		h.checkState()
	})

	t.Run("fail with non-positive amount", func(t *testing.T) {
		h := constructStateHarness(t)
		id := h.create(alice, big.NewInt(300), 1000, 0, 300, 1, false)

		_, err := h.s.Release(h.store, id, big.Zero(), 1150)
		require.Error(t, err)
		require.Contains(t, err.Error(), "non-positive amount")
	})

	t.Run("fail with unknown schedule", func(t *testing.T) {
		h := constructStateHarness(t)

		_, err := h.s.Release(h.store, vesting.ScheduleID(alice, 0), big.NewInt(1), 1150)
		require.Error(t, err)
		require.Contains(t, err.Error(), "not found")
	})
}

func TestRevoke(t *testing.T) {
	alice := tutil.NewIDAddr(t, 100)

	t.Run("revoke returns the unvested remainder", func(t *testing.T) {
		h := constructStateHarness(t)
		id := h.create(alice, big.NewInt(300), 1000, 0, 300, 1, true)

		s, unvested, err := h.s.Revoke(h.store, id, 1150)
		require.NoError(t, err)
		assert.True(t, unvested.Equals(big.NewInt(150)))
		assert.True(t, s.Revoked)
		assert.Equal(t, abi.ChainEpoch(1150), s.RevokedAt)
		assert.True(t, h.s.TotalVesting.Equals(big.NewInt(150)))

		// the vested portion stays releasable
		s, err = h.s.Release(h.store, id, big.NewInt(150), 2000)
		require.NoError(t, err)
		assert.True(t, s.Released.Equals(big.NewInt(150)))
		assert.True(t, h.s.TotalVesting.IsZero())

		h.checkState()
	})

	t.Run("fail when already revoked", func(t *testing.T) {
		h := constructStateHarness(t)
		id := h.create(alice, big.NewInt(300), 1000, 0, 300, 1, true)

		_, _, err := h.s.Revoke(h.store, id, 1150)
		require.NoError(t, err)

		_, _, err = h.s.Revoke(h.store, id, 1200)
		require.Error(t, err)
		require.Contains(t, err.Error(), "already revoked")
	})
}

type stateHarness struct {
	t testing.TB

	s     *vesting.State
	store adt.Store
}

func constructStateHarness(t *testing.T) *stateHarness {
	store := ipld.NewADTStore(context.Background())
	state, err := vesting.ConstructState(store, tutil.NewIDAddr(t, 50))
	require.NoError(t, err)

	return &stateHarness{
		t:     t,
		s:     state,
		store: store,
	}
}

func (h *stateHarness) create(beneficiary address.Address, amount abi.TokenAmount, start, cliff, duration, slice abi.ChainEpoch, revocable bool) []byte {
	id, err := h.s.CreateSchedule(h.store, beneficiary, amount, start, cliff, duration, slice, revocable)
	require.NoError(h.t, err)
	return id
}

func (h *stateHarness) checkState() *vesting.StateSummary {
	sum, msgs := vesting.CheckStateInvariants(h.s, h.store)
	require.True(h.t, msgs.IsEmpty(), strings.Join(msgs.Messages(), "\n"))
	return sum
}
