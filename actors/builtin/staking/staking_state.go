package staking

import (
	"sort"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/ipfs/go-cid"
	"github.com/pkg/errors"
	"golang.org/x/xerrors"

	"github.com/redmont/Advanced-liquid-staking-sub001/actors/builtin"
	. "github.com/redmont/Advanced-liquid-staking-sub001/actors/util"
	"github.com/redmont/Advanced-liquid-staking-sub001/actors/util/adt"
	"github.com/redmont/Advanced-liquid-staking-sub001/actors/util/math"
)

type State struct {

	// Lockup tiers selectable at deposit time.
	Tiers cid.Cid // Array, AMT[index]Tier, dense indices

	// Deposits of each account, in insertion order.
	Deposits cid.Cid // Map, HAMT[ID-Address]DepositQueue

	// Share balance of each account with at least one live deposit.
	Shares cid.Cid // Map, HAMT[ID-Address]TokenAmount

	// Sum of all share balances, and of all live deposit amounts.
	TotalShares abi.TokenAmount
	TotalStaked abi.TokenAmount

	// Reward pool of each period. Absent periods pay zero.
	Rewards cid.Cid // Map, HAMT[period]TokenAmount

	// Reward period clock, immutable after construction.
	PeriodStart    abi.ChainEpoch
	PeriodDuration abi.ChainEpoch

	// Stored for an external governance collaborator, not interpreted here.
	VotingDelay uint64

	// Counters backing stable deposit ids and stable account enumeration.
	NextDepositID  uint64
	NextAccountSeq uint64

	// Append-only log of successful mutations.
	Events cid.Cid // Array, AMT[]Event
}

type Tier struct {
	// Epochs a deposit in this tier stays locked.
	LockupPeriod abi.ChainEpoch

	// Shares per deposited unit, scaled by 10^MultiplierDecimals.
	Multiplier         uint64
	MultiplierDecimals uint64
}

type Deposit struct {
	// Stable id, unique across all accounts.
	ID uint64

	Amount    abi.TokenAmount
	TierIndex uint64

	// Tier parameters frozen at deposit time. Later tier edits do not
	// retroactively change this deposit.
	Tier Tier

	StartEpoch  abi.ChainEpoch
	UnlockEpoch abi.ChainEpoch

	// floor(Amount * Tier.Multiplier / 10^Tier.MultiplierDecimals), cached.
	Shares abi.TokenAmount

	// First period not yet paid out for this deposit.
	LastClaimPeriod int64
}

func (d *Deposit) Unlockable(now abi.ChainEpoch) bool {
	return d.UnlockEpoch <= now
}

type DepositQueue struct {
	// Enumeration sequence assigned when the account's first deposit was made.
	Seq uint64

	// Live deposits in insertion order. Never empty once stored.
	Deposits []Deposit
}

func ConstructState(store adt.Store, periodStart abi.ChainEpoch, periodDuration abi.ChainEpoch) (*State, error) {
	if periodDuration <= 0 {
		return nil, xerrors.Errorf("non-positive period duration %d", periodDuration)
	}

	emptyTiers, err := adt.StoreEmptyArray(store)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty tiers: %w", err)
	}
	emptyMap, err := adt.StoreEmptyMap(store, builtin.DefaultHamtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty map: %w", err)
	}
	emptyEvents, err := adt.StoreEmptyArray(store)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty events: %w", err)
	}

	return &State{
		Tiers:          emptyTiers,
		Deposits:       emptyMap,
		Shares:         emptyMap,
		TotalShares:    abi.NewTokenAmount(0),
		TotalStaked:    abi.NewTokenAmount(0),
		Rewards:        emptyMap,
		PeriodStart:    periodStart,
		PeriodDuration: periodDuration,
		Events:         emptyEvents,
	}, nil
}

// The reward period containing epoch `now`. Periods are 0-indexed from
// PeriodStart; epochs before the start fall in period 0.
func (st *State) CurrentPeriod(now abi.ChainEpoch) int64 {
	if now < st.PeriodStart {
		return 0
	}
	return int64((now - st.PeriodStart) / st.PeriodDuration)
}

//
// Tiers
//

// Upserts the tier at index. An existing index is overwritten, index == count
// appends, anything beyond that is rejected to keep indices dense.
// Existing deposits keep their snapshots.
func (st *State) PutTier(store adt.Store, index uint64, tier *Tier) (added bool, err error) {
	tiers, err := adt.AsArray(store, st.Tiers)
	if err != nil {
		return false, errors.Wrapf(err, "failed to load tiers")
	}

	count := tiers.Length()
	if index > count {
		return false, xerrors.Errorf("tier index %d not dense, next index %d", index, count)
	}

	if err := tiers.Set(index, tier); err != nil {
		return false, errors.Wrapf(err, "failed to put tier %d", index)
	}
	st.Tiers, err = tiers.Root()
	if err != nil {
		return false, errors.Wrapf(err, "failed to flush tiers")
	}
	return index == count, nil
}

func (st *State) GetTier(store adt.Store, index uint64) (*Tier, bool, error) {
	tiers, err := adt.AsArray(store, st.Tiers)
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to load tiers")
	}

	var tier Tier
	found, err := tiers.Get(index, &tier)
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to get tier %d", index)
	}
	return &tier, found, nil
}

func (st *State) ListTiers(store adt.Store) ([]Tier, error) {
	tiers, err := adt.AsArray(store, st.Tiers)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load tiers")
	}

	out := make([]Tier, 0, tiers.Length())
	var tier Tier
	err = tiers.ForEach(&tier, func(i int64) error {
		out = append(out, tier)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

//
// Deposits
//

// Appends a new deposit for account, snapshotting the tier and crediting the
// derived shares to both the account and the global total.
func (st *State) AddDeposit(store adt.Store, account addr.Address, amount abi.TokenAmount, tierIndex uint64, now abi.ChainEpoch) (*Deposit, error) {
	tier, found, err := st.GetTier(store, tierIndex)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, xerrors.Errorf("tier %d not found", tierIndex)
	}

	shares, err := math.SharesForAmount(amount, tier.Multiplier, tier.MultiplierDecimals)
	if err != nil {
		return nil, err
	}

	deposits, err := adt.AsMap(store, st.Deposits, builtin.DefaultHamtBitwidth)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load deposits")
	}

	var queue DepositQueue
	found, err = deposits.Get(abi.AddrKey(account), &queue)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get deposits of %s", account)
	}
	if !found {
		queue = DepositQueue{Seq: st.NextAccountSeq}
		st.NextAccountSeq++
	}

	deposit := Deposit{
		ID:              st.NextDepositID,
		Amount:          amount,
		TierIndex:       tierIndex,
		Tier:            *tier,
		StartEpoch:      now,
		UnlockEpoch:     now + tier.LockupPeriod,
		Shares:          shares,
		LastClaimPeriod: st.CurrentPeriod(now),
	}
	st.NextDepositID++

	queue.Deposits = append(queue.Deposits, deposit)
	if err := deposits.Put(abi.AddrKey(account), &queue); err != nil {
		return nil, errors.Wrapf(err, "failed to put deposits of %s", account)
	}
	st.Deposits, err = deposits.Root()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to flush deposits")
	}

	if err := st.addShares(store, account, shares); err != nil {
		return nil, err
	}
	st.TotalStaked = big.Add(st.TotalStaked, amount)

	return &deposit, nil
}

// Withdraws `requested` from account's unlockable deposits, walking them in
// insertion order. Locked deposits are never touched. A partially drained
// deposit keeps its tier snapshot and has its shares recomputed from the
// remaining amount; fully drained deposits are removed.
func (st *State) Withdraw(store adt.Store, account addr.Address, requested abi.TokenAmount, now abi.ChainEpoch) error {
	deposits, err := adt.AsMap(store, st.Deposits, builtin.DefaultHamtBitwidth)
	if err != nil {
		return errors.Wrapf(err, "failed to load deposits")
	}

	var queue DepositQueue
	found, err := deposits.Get(abi.AddrKey(account), &queue)
	if err != nil {
		return errors.Wrapf(err, "failed to get deposits of %s", account)
	}
	if !found {
		return xerrors.Errorf("insufficient unlockable balance of %s", account)
	}

	remaining := requested
	sharesDelta := big.Zero()
	kept := make([]Deposit, 0, len(queue.Deposits))
	for _, deposit := range queue.Deposits {
		if remaining.IsZero() || !deposit.Unlockable(now) {
			kept = append(kept, deposit)
			continue
		}

		drained := big.Min(deposit.Amount, remaining)
		newAmount := big.Sub(deposit.Amount, drained)
		newShares := big.Zero()
		if newAmount.GreaterThan(big.Zero()) {
			newShares, err = math.SharesForAmount(newAmount, deposit.Tier.Multiplier, deposit.Tier.MultiplierDecimals)
			if err != nil {
				return err
			}
		}
		sharesDelta = big.Add(sharesDelta, big.Sub(deposit.Shares, newShares))
		remaining = big.Sub(remaining, drained)

		if newAmount.GreaterThan(big.Zero()) {
			deposit.Amount = newAmount
			deposit.Shares = newShares
			kept = append(kept, deposit)
		}
	}
	if !remaining.IsZero() {
		return xerrors.Errorf("insufficient unlockable balance of %s, short %v", account, remaining)
	}

	if len(kept) == 0 {
		if err := deposits.Delete(abi.AddrKey(account)); err != nil {
			return errors.Wrapf(err, "failed to delete deposits of %s", account)
		}
	} else {
		queue.Deposits = kept
		if err := deposits.Put(abi.AddrKey(account), &queue); err != nil {
			return errors.Wrapf(err, "failed to put deposits of %s", account)
		}
	}
	st.Deposits, err = deposits.Root()
	if err != nil {
		return errors.Wrapf(err, "failed to flush deposits")
	}

	if err := st.addShares(store, account, sharesDelta.Neg()); err != nil {
		return err
	}
	st.TotalStaked = big.Sub(st.TotalStaked, requested)
	Assert(st.TotalStaked.GreaterThanEqual(big.Zero()))

	return nil
}

// Live deposits of account in insertion order, empty if none.
func (st *State) GetDeposits(store adt.Store, account addr.Address) ([]Deposit, error) {
	deposits, err := adt.AsMap(store, st.Deposits, builtin.DefaultHamtBitwidth)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load deposits")
	}

	var queue DepositQueue
	found, err := deposits.Get(abi.AddrKey(account), &queue)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get deposits of %s", account)
	}
	if !found {
		return nil, nil
	}
	return queue.Deposits, nil
}

// Sum of account's deposit amounts whose lockup has elapsed at `now`.
func (st *State) GetUnlockableBalance(store adt.Store, account addr.Address, now abi.ChainEpoch) (abi.TokenAmount, error) {
	deps, err := st.GetDeposits(store, account)
	if err != nil {
		return big.Zero(), err
	}

	unlockable := big.Zero()
	for i := range deps {
		if deps[i].Unlockable(now) {
			unlockable = big.Add(unlockable, deps[i].Amount)
		}
	}
	return unlockable, nil
}

func (st *State) SharesOf(store adt.Store, account addr.Address) (abi.TokenAmount, error) {
	shares, err := adt.AsMap(store, st.Shares, builtin.DefaultHamtBitwidth)
	if err != nil {
		return big.Zero(), errors.Wrapf(err, "failed to load shares")
	}

	var balance abi.TokenAmount
	found, err := shares.Get(abi.AddrKey(account), &balance)
	if err != nil {
		return big.Zero(), errors.Wrapf(err, "failed to get shares of %s", account)
	}
	if !found {
		return big.Zero(), nil
	}
	return balance, nil
}

// Enumerates all accounts with live deposits and their share balances, ordered
// by each account's first deposit.
func (st *State) SharesPerUser(store adt.Store) ([]addr.Address, []abi.TokenAmount, error) {
	deposits, err := adt.AsMap(store, st.Deposits, builtin.DefaultHamtBitwidth)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to load deposits")
	}

	type entry struct {
		seq     uint64
		account addr.Address
		shares  abi.TokenAmount
	}
	var entries []entry

	var queue DepositQueue
	err = deposits.ForEach(&queue, func(key string) error {
		account, err := addr.NewFromBytes([]byte(key))
		if err != nil {
			return err
		}
		shares := big.Zero()
		for i := range queue.Deposits {
			shares = big.Add(shares, queue.Deposits[i].Shares)
		}
		entries = append(entries, entry{seq: queue.Seq, account: account, shares: shares})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	accounts := make([]addr.Address, 0, len(entries))
	shares := make([]abi.TokenAmount, 0, len(entries))
	for _, e := range entries {
		accounts = append(accounts, e.account)
		shares = append(shares, e.shares)
	}
	return accounts, shares, nil
}

func (st *State) addShares(store adt.Store, account addr.Address, delta abi.TokenAmount) error {
	if delta.IsZero() {
		return nil
	}

	shares, err := adt.AsMap(store, st.Shares, builtin.DefaultHamtBitwidth)
	if err != nil {
		return errors.Wrapf(err, "failed to load shares")
	}

	var balance abi.TokenAmount
	found, err := shares.Get(abi.AddrKey(account), &balance)
	if err != nil {
		return errors.Wrapf(err, "failed to get shares of %s", account)
	}
	if !found {
		balance = big.Zero()
	}

	balance = big.Add(balance, delta)
	if balance.LessThan(big.Zero()) {
		return xerrors.Errorf("negative shares %v of %s", balance, account)
	}
	if balance.IsZero() {
		if _, err := shares.TryDelete(abi.AddrKey(account)); err != nil {
			return errors.Wrapf(err, "failed to delete shares of %s", account)
		}
	} else {
		if err := shares.Put(abi.AddrKey(account), &balance); err != nil {
			return errors.Wrapf(err, "failed to put shares of %s", account)
		}
	}
	st.Shares, err = shares.Root()
	if err != nil {
		return errors.Wrapf(err, "failed to flush shares")
	}

	st.TotalShares = big.Add(st.TotalShares, delta)
	Assert(st.TotalShares.GreaterThanEqual(big.Zero()))
	return nil
}

//
// Rewards
//

func (st *State) SetReward(store adt.Store, period int64, amount abi.TokenAmount) error {
	rewards, err := adt.AsMap(store, st.Rewards, builtin.DefaultHamtBitwidth)
	if err != nil {
		return errors.Wrapf(err, "failed to load rewards")
	}

	if err := rewards.Put(abi.IntKey(period), &amount); err != nil {
		return errors.Wrapf(err, "failed to put reward for period %d", period)
	}
	st.Rewards, err = rewards.Root()
	if err != nil {
		return errors.Wrapf(err, "failed to flush rewards")
	}
	return nil
}

func (st *State) GetReward(store adt.Store, period int64) (abi.TokenAmount, bool, error) {
	rewards, err := adt.AsMap(store, st.Rewards, builtin.DefaultHamtBitwidth)
	if err != nil {
		return big.Zero(), false, errors.Wrapf(err, "failed to load rewards")
	}

	var amount abi.TokenAmount
	found, err := rewards.Get(abi.IntKey(period), &amount)
	if err != nil {
		return big.Zero(), false, errors.Wrapf(err, "failed to get reward for period %d", period)
	}
	if !found {
		return big.Zero(), false, nil
	}
	return amount, true, nil
}

func (st *State) loadRewards(store adt.Store) (map[int64]abi.TokenAmount, error) {
	rewards, err := adt.AsMap(store, st.Rewards, builtin.DefaultHamtBitwidth)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load rewards")
	}

	out := make(map[int64]abi.TokenAmount)
	var amount abi.TokenAmount
	err = rewards.ForEach(&amount, func(key string) error {
		period, err := abi.ParseIntKey(key)
		if err != nil {
			return err
		}
		out[period] = amount
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Reward accrued by a single deposit for the whole periods in
// [LastClaimPeriod, CurrentPeriod(now)), pro rata by current share balances.
func (st *State) CalculateRewards(store adt.Store, deposit *Deposit, now abi.ChainEpoch) (abi.TokenAmount, error) {
	rewards, err := st.loadRewards(store)
	if err != nil {
		return big.Zero(), err
	}
	return st.accrue(rewards, deposit, st.CurrentPeriod(now)), nil
}

func (st *State) accrue(rewards map[int64]abi.TokenAmount, deposit *Deposit, current int64) abi.TokenAmount {
	accrued := big.Zero()
	if st.TotalShares.IsZero() {
		return accrued
	}
	for period, amount := range rewards {
		if period >= deposit.LastClaimPeriod && period < current {
			accrued = big.Add(accrued, big.Div(big.Mul(amount, deposit.Shares), st.TotalShares))
		}
	}
	return accrued
}

// Pays out all pending rewards of account's deposits and advances their claim
// marks to the current period. Returns the total owed.
func (st *State) ClaimRewards(store adt.Store, account addr.Address, now abi.ChainEpoch) (abi.TokenAmount, bool, error) {
	deposits, err := adt.AsMap(store, st.Deposits, builtin.DefaultHamtBitwidth)
	if err != nil {
		return big.Zero(), false, errors.Wrapf(err, "failed to load deposits")
	}

	var queue DepositQueue
	found, err := deposits.Get(abi.AddrKey(account), &queue)
	if err != nil {
		return big.Zero(), false, errors.Wrapf(err, "failed to get deposits of %s", account)
	}
	if !found {
		return big.Zero(), false, nil
	}

	rewards, err := st.loadRewards(store)
	if err != nil {
		return big.Zero(), false, err
	}

	current := st.CurrentPeriod(now)
	total := big.Zero()
	for i := range queue.Deposits {
		deposit := &queue.Deposits[i]
		total = big.Add(total, st.accrue(rewards, deposit, current))
		if current > deposit.LastClaimPeriod {
			deposit.LastClaimPeriod = current
		}
	}

	if err := deposits.Put(abi.AddrKey(account), &queue); err != nil {
		return big.Zero(), false, errors.Wrapf(err, "failed to put deposits of %s", account)
	}
	st.Deposits, err = deposits.Root()
	if err != nil {
		return big.Zero(), false, errors.Wrapf(err, "failed to flush deposits")
	}

	return total, true, nil
}

//
// Events
//

func (st *State) AppendEvent(store adt.Store, event *builtin.Event) error {
	root, err := builtin.AppendEvent(store, st.Events, event)
	if err != nil {
		return errors.Wrapf(err, "failed to append event")
	}
	st.Events = root
	return nil
}

func (st *State) ListEvents(store adt.Store) ([]*builtin.Event, error) {
	return builtin.ListEvents(store, st.Events)
}
