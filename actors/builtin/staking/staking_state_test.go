package staking_test

import (
	"context"
	"strings"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmont/Advanced-liquid-staking-sub001/actors/builtin/staking"
	"github.com/redmont/Advanced-liquid-staking-sub001/actors/util/adt"
	"github.com/redmont/Advanced-liquid-staking-sub001/support/ipld"
	tutil "github.com/redmont/Advanced-liquid-staking-sub001/support/testing"
)

func TestConstructState(t *testing.T) {
	t.Run("fail with non-positive period duration", func(t *testing.T) {
		store := ipld.NewADTStore(context.Background())

		_, err := staking.ConstructState(store, 0, 0)
		require.Error(t, err)
		require.Contains(t, err.Error(), "non-positive period duration")

		_, err = staking.ConstructState(store, 0, -10)
		require.Error(t, err)
	})

	t.Run("empty state", func(t *testing.T) {
		h := constructStateHarness(t, 0, 100)

		sum := h.checkState()
		assert.Zero(t, sum.TiersCount)
		assert.Zero(t, sum.DepositsCount)
		assert.Zero(t, sum.AccountsCount)
		assert.True(t, sum.TotalShares.IsZero())
		assert.True(t, sum.TotalStaked.IsZero())
	})
}

func TestCurrentPeriod(t *testing.T) {
	h := constructStateHarness(t, 100, 30)

	assert.Equal(t, int64(0), h.s.CurrentPeriod(0))
	assert.Equal(t, int64(0), h.s.CurrentPeriod(99))
	assert.Equal(t, int64(0), h.s.CurrentPeriod(100))
	assert.Equal(t, int64(0), h.s.CurrentPeriod(129))
	assert.Equal(t, int64(1), h.s.CurrentPeriod(130))
	assert.Equal(t, int64(3), h.s.CurrentPeriod(190))
}

func TestTiers(t *testing.T) {
	t.Run("dense indices", func(t *testing.T) {
		h := constructStateHarness(t, 0, 100)

		added, err := h.s.PutTier(h.store, 0, &staking.Tier{LockupPeriod: 10, Multiplier: 10, MultiplierDecimals: 0})
		require.NoError(t, err)
		require.True(t, added)

		// sparse index rejected
		_, err = h.s.PutTier(h.store, 2, &staking.Tier{LockupPeriod: 20, Multiplier: 20, MultiplierDecimals: 0})
		require.Error(t, err)
		require.Contains(t, err.Error(), "not dense")

		added, err = h.s.PutTier(h.store, 1, &staking.Tier{LockupPeriod: 20, Multiplier: 20, MultiplierDecimals: 0})
		require.NoError(t, err)
		require.True(t, added)

		// overwrite existing
		added, err = h.s.PutTier(h.store, 0, &staking.Tier{LockupPeriod: 15, Multiplier: 12, MultiplierDecimals: 0})
		require.NoError(t, err)
		require.False(t, added)

		tiers, err := h.s.ListTiers(h.store)
		require.NoError(t, err)
		require.Len(t, tiers, 2)
		assert.Equal(t, abi.ChainEpoch(15), tiers[0].LockupPeriod)
		assert.Equal(t, uint64(12), tiers[0].Multiplier)
		assert.Equal(t, abi.ChainEpoch(20), tiers[1].LockupPeriod)

		sum := h.checkState()
		assert.Equal(t, 2, sum.TiersCount)
	})

	t.Run("get missing tier", func(t *testing.T) {
		h := constructStateHarness(t, 0, 100)

		_, found, err := h.s.GetTier(h.store, 0)
		require.NoError(t, err)
		require.False(t, found)
	})
}

func TestAddDeposit(t *testing.T) {
	account := tutil.NewIDAddr(t, 100)

	t.Run("shares derived from tier multiplier", func(t *testing.T) {
		h := constructStateHarness(t, 0, 100)
		h.putTier(0, staking.Tier{LockupPeriod: 90, Multiplier: 10, MultiplierDecimals: 0})
		h.putTier(1, staking.Tier{LockupPeriod: 180, Multiplier: 15, MultiplierDecimals: 1})

		dep := h.addDeposit(account, big.NewInt(100), 0, 1)
		assert.True(t, dep.Shares.Equals(big.NewInt(1000)))
		assert.Equal(t, abi.ChainEpoch(91), dep.UnlockEpoch)
		assert.Equal(t, uint64(0), dep.ID)

		// 1.5x with fractional multiplier, floored
		dep = h.addDeposit(account, big.NewInt(101), 1, 1)
		assert.True(t, dep.Shares.Equals(big.NewInt(151))) // floor(101*15/10)
		assert.Equal(t, uint64(1), dep.ID)

		shares, err := h.s.SharesOf(h.store, account)
		require.NoError(t, err)
		assert.True(t, shares.Equals(big.NewInt(1151)))
		assert.True(t, h.s.TotalShares.Equals(big.NewInt(1151)))
		assert.True(t, h.s.TotalStaked.Equals(big.NewInt(201)))

		sum := h.checkState()
		assert.Equal(t, 2, sum.DepositsCount)
		assert.Equal(t, 1, sum.AccountsCount)
	})

	t.Run("fail with missing tier", func(t *testing.T) {
		h := constructStateHarness(t, 0, 100)

		_, err := h.s.AddDeposit(h.store, account, big.NewInt(100), 0, 1)
		require.Error(t, err)
		require.Contains(t, err.Error(), "tier 0 not found")
	})

	t.Run("tier snapshot survives tier update", func(t *testing.T) {
		h := constructStateHarness(t, 0, 100)
		h.putTier(0, staking.Tier{LockupPeriod: 90, Multiplier: 10, MultiplierDecimals: 0})

		old := h.addDeposit(account, big.NewInt(100), 0, 1)
		assert.True(t, old.Shares.Equals(big.NewInt(1000)))

		h.putTier(0, staking.Tier{LockupPeriod: 90, Multiplier: 20, MultiplierDecimals: 0})

		// new deposits use the new multiplier
		dep := h.addDeposit(account, big.NewInt(100), 0, 2)
		assert.True(t, dep.Shares.Equals(big.NewInt(2000)))

		// the earlier deposit keeps its snapshot
		deps, err := h.s.GetDeposits(h.store, account)
		require.NoError(t, err)
		require.Len(t, deps, 2)
		assert.Equal(t, uint64(10), deps[0].Tier.Multiplier)
		assert.True(t, deps[0].Shares.Equals(big.NewInt(1000)))
		assert.Equal(t, uint64(20), deps[1].Tier.Multiplier)

		h.checkState()
	})
}

func TestStateWithdraw(t *testing.T) {
	account := tutil.NewIDAddr(t, 100)

	setup := func(t *testing.T) *stateHarness {
		h := constructStateHarness(t, 0, 100)
		h.putTier(0, staking.Tier{LockupPeriod: 90, Multiplier: 10, MultiplierDecimals: 0})
		h.putTier(1, staking.Tier{LockupPeriod: 180, Multiplier: 20, MultiplierDecimals: 0})
		return h
	}

	t.Run("locked deposits are never touched", func(t *testing.T) {
		h := setup(t)
		h.addDeposit(account, big.NewInt(100), 0, 1) // unlocks at 91

		err := h.s.Withdraw(h.store, account, big.NewInt(50), 50)
		require.Error(t, err)
		require.Contains(t, err.Error(), "insufficient unlockable balance")

		// untouched
		deps, err := h.s.GetDeposits(h.store, account)
		require.NoError(t, err)
		require.Len(t, deps, 1)
		assert.True(t, deps[0].Amount.Equals(big.NewInt(100)))
	})

	t.Run("full drain removes the queue", func(t *testing.T) {
		h := setup(t)
		h.addDeposit(account, big.NewInt(100), 0, 1)

		err := h.s.Withdraw(h.store, account, big.NewInt(100), 91)
		require.NoError(t, err)

		deps, err := h.s.GetDeposits(h.store, account)
		require.NoError(t, err)
		require.Empty(t, deps)

		shares, err := h.s.SharesOf(h.store, account)
		require.NoError(t, err)
		assert.True(t, shares.IsZero())
		assert.True(t, h.s.TotalShares.IsZero())
		assert.True(t, h.s.TotalStaked.IsZero())

		sum := h.checkState()
		assert.Zero(t, sum.AccountsCount)
	})

	t.Run("partial drain recomputes shares under the snapshot", func(t *testing.T) {
		h := setup(t)
		h.addDeposit(account, big.NewInt(100), 0, 1)

		err := h.s.Withdraw(h.store, account, big.NewInt(30), 91)
		require.NoError(t, err)

		deps, err := h.s.GetDeposits(h.store, account)
		require.NoError(t, err)
		require.Len(t, deps, 1)
		assert.True(t, deps[0].Amount.Equals(big.NewInt(70)))
		assert.True(t, deps[0].Shares.Equals(big.NewInt(700)))
		assert.True(t, h.s.TotalShares.Equals(big.NewInt(700)))
		assert.True(t, h.s.TotalStaked.Equals(big.NewInt(70)))

		h.checkState()
	})

	t.Run("drains unlockable deposits in insertion order", func(t *testing.T) {
		h := setup(t)
		h.addDeposit(account, big.NewInt(100), 0, 1)  // unlocks at 91
		h.addDeposit(account, big.NewInt(200), 1, 1)  // unlocks at 181
		h.addDeposit(account, big.NewInt(300), 0, 10) // unlocks at 100

		// at epoch 150 deposits 1 and 3 are unlockable, 2 is skipped
		err := h.s.Withdraw(h.store, account, big.NewInt(250), 150)
		require.NoError(t, err)

		deps, err := h.s.GetDeposits(h.store, account)
		require.NoError(t, err)
		require.Len(t, deps, 2)
		assert.Equal(t, uint64(1), deps[0].ID)
		assert.True(t, deps[0].Amount.Equals(big.NewInt(200)))
		assert.Equal(t, uint64(2), deps[1].ID)
		assert.True(t, deps[1].Amount.Equals(big.NewInt(150)))

		assert.True(t, h.s.TotalStaked.Equals(big.NewInt(350)))
		h.checkState()
	})

	t.Run("fail when unlockable total is short", func(t *testing.T) {
		h := setup(t)
		h.addDeposit(account, big.NewInt(100), 0, 1)

		err := h.s.Withdraw(h.store, account, big.NewInt(101), 91)
		require.Error(t, err)
		require.Contains(t, err.Error(), "insufficient unlockable balance")
	})

	t.Run("fail with no deposits", func(t *testing.T) {
		h := setup(t)

		err := h.s.Withdraw(h.store, account, big.NewInt(1), 91)
		require.Error(t, err)
		require.Contains(t, err.Error(), "insufficient unlockable balance")
	})
}

func TestUnlockableBalance(t *testing.T) {
	account := tutil.NewIDAddr(t, 100)

	h := constructStateHarness(t, 0, 100)
	h.putTier(0, staking.Tier{LockupPeriod: 90, Multiplier: 10, MultiplierDecimals: 0})
	h.putTier(1, staking.Tier{LockupPeriod: 180, Multiplier: 20, MultiplierDecimals: 0})
	h.addDeposit(account, big.NewInt(100), 0, 1)
	h.addDeposit(account, big.NewInt(200), 1, 1)

	unlockable, err := h.s.GetUnlockableBalance(h.store, account, 50)
	require.NoError(t, err)
	assert.True(t, unlockable.IsZero())

	unlockable, err = h.s.GetUnlockableBalance(h.store, account, 91)
	require.NoError(t, err)
	assert.True(t, unlockable.Equals(big.NewInt(100)))

	unlockable, err = h.s.GetUnlockableBalance(h.store, account, 181)
	require.NoError(t, err)
	assert.True(t, unlockable.Equals(big.NewInt(300)))
}

func TestSharesPerUser(t *testing.T) {
	alice := tutil.NewIDAddr(t, 100)
	bob := tutil.NewIDAddr(t, 101)

	h := constructStateHarness(t, 0, 100)
	h.putTier(0, staking.Tier{LockupPeriod: 90, Multiplier: 10, MultiplierDecimals: 0})
	h.addDeposit(bob, big.NewInt(50), 0, 1)
	h.addDeposit(alice, big.NewInt(100), 0, 1)
	h.addDeposit(bob, big.NewInt(25), 0, 2)

	accounts, shares, err := h.s.SharesPerUser(h.store)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	// ordered by first deposit
	assert.Equal(t, bob, accounts[0])
	assert.True(t, shares[0].Equals(big.NewInt(750)))
	assert.Equal(t, alice, accounts[1])
	assert.True(t, shares[1].Equals(big.NewInt(1000)))
}

func TestRewards(t *testing.T) {
	alice := tutil.NewIDAddr(t, 100)
	bob := tutil.NewIDAddr(t, 101)

	setup := func(t *testing.T) *stateHarness {
		h := constructStateHarness(t, 0, 100)
		h.putTier(0, staking.Tier{LockupPeriod: 90, Multiplier: 10, MultiplierDecimals: 0})
		return h
	}

	t.Run("set and get", func(t *testing.T) {
		h := setup(t)

		_, found, err := h.s.GetReward(h.store, 1)
		require.NoError(t, err)
		require.False(t, found)

		require.NoError(t, h.s.SetReward(h.store, 1, big.NewInt(900)))

		amount, found, err := h.s.GetReward(h.store, 1)
		require.NoError(t, err)
		require.True(t, found)
		assert.True(t, amount.Equals(big.NewInt(900)))
	})

	t.Run("no accrual before the period elapses", func(t *testing.T) {
		h := setup(t)
		dep := h.addDeposit(alice, big.NewInt(100), 0, 10) // period 0
		require.NoError(t, h.s.SetReward(h.store, 1, big.NewInt(900)))

		// still inside period 1
		accrued, err := h.s.CalculateRewards(h.store, dep, 150)
		require.NoError(t, err)
		assert.True(t, accrued.IsZero())

		// period 1 has elapsed
		accrued, err = h.s.CalculateRewards(h.store, dep, 200)
		require.NoError(t, err)
		assert.True(t, accrued.Equals(big.NewInt(900)))
	})

	t.Run("pro rata by current shares with floor division", func(t *testing.T) {
		h := setup(t)
		depA := h.addDeposit(alice, big.NewInt(100), 0, 10) // 1000 shares
		depB := h.addDeposit(bob, big.NewInt(200), 0, 10)   // 2000 shares
		require.NoError(t, h.s.SetReward(h.store, 1, big.NewInt(1000)))

		accrued, err := h.s.CalculateRewards(h.store, depA, 200)
		require.NoError(t, err)
		assert.True(t, accrued.Equals(big.NewInt(333))) // floor(1000*1000/3000)

		accrued, err = h.s.CalculateRewards(h.store, depB, 200)
		require.NoError(t, err)
		assert.True(t, accrued.Equals(big.NewInt(666))) // floor(1000*2000/3000)
	})

	t.Run("accrues over multiple periods", func(t *testing.T) {
		h := setup(t)
		dep := h.addDeposit(alice, big.NewInt(100), 0, 10)
		require.NoError(t, h.s.SetReward(h.store, 1, big.NewInt(900)))
		require.NoError(t, h.s.SetReward(h.store, 2, big.NewInt(600)))

		accrued, err := h.s.CalculateRewards(h.store, dep, 350)
		require.NoError(t, err)
		assert.True(t, accrued.Equals(big.NewInt(1500)))
	})

	t.Run("claim advances marks, second claim pays nothing", func(t *testing.T) {
		h := setup(t)
		h.addDeposit(alice, big.NewInt(100), 0, 10)
		require.NoError(t, h.s.SetReward(h.store, 1, big.NewInt(900)))

		total, found, err := h.s.ClaimRewards(h.store, alice, 250)
		require.NoError(t, err)
		require.True(t, found)
		assert.True(t, total.Equals(big.NewInt(900)))

		total, found, err = h.s.ClaimRewards(h.store, alice, 260)
		require.NoError(t, err)
		require.True(t, found)
		assert.True(t, total.IsZero())
	})

	t.Run("claim with no deposits reports not found", func(t *testing.T) {
		h := setup(t)

		_, found, err := h.s.ClaimRewards(h.store, alice, 250)
		require.NoError(t, err)
		require.False(t, found)
	})
}

type stateHarness struct {
	t testing.TB

	s     *staking.State
	store adt.Store
}

func constructStateHarness(t *testing.T, periodStart, periodDuration abi.ChainEpoch) *stateHarness {
	store := ipld.NewADTStore(context.Background())
	state, err := staking.ConstructState(store, periodStart, periodDuration)
	require.NoError(t, err)

	return &stateHarness{
		t:     t,
		s:     state,
		store: store,
	}
}

func (h *stateHarness) putTier(index uint64, tier staking.Tier) {
	_, err := h.s.PutTier(h.store, index, &tier)
	require.NoError(h.t, err)
}

func (h *stateHarness) addDeposit(account address.Address, amount abi.TokenAmount, tierIndex uint64, now abi.ChainEpoch) *staking.Deposit {
	dep, err := h.s.AddDeposit(h.store, account, amount, tierIndex, now)
	require.NoError(h.t, err)
	return dep
}

func (h *stateHarness) checkState() *staking.StateSummary {
	sum, msgs := staking.CheckStateInvariants(h.s, h.store)
	require.True(h.t, msgs.IsEmpty(), strings.Join(msgs.Messages(), "\n"))
	return sum
}
