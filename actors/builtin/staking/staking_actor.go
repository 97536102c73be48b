package staking

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/ipfs/go-cid"

	"github.com/redmont/Advanced-liquid-staking-sub001/actors/builtin"
	"github.com/redmont/Advanced-liquid-staking-sub001/actors/runtime"
	. "github.com/redmont/Advanced-liquid-staking-sub001/actors/util"
	"github.com/redmont/Advanced-liquid-staking-sub001/actors/util/adt"
)

type Runtime = runtime.Runtime

type Actor struct{}

func (a Actor) Exports() []interface{} {
	return []interface{}{
		builtin.MethodConstructor: a.Constructor,
		2:                         a.Deposit,
		3:                         a.Withdraw,
		4:                         a.SetTier,
		5:                         a.SetRewardForPeriod,
		6:                         a.ClaimRewards,
		7:                         a.SetVotingDelay,
		8:                         a.StakeInfo,
	}
}

func (a Actor) Code() cid.Cid {
	return builtin.StakingActorCodeID
}

func (a Actor) IsSingleton() bool {
	return true
}

func (a Actor) State() cbor.Er {
	return new(State)
}

var _ runtime.VMActor = Actor{}

////////////////////////////////////////////////////////////////////////////////
// Actor methods
////////////////////////////////////////////////////////////////////////////////

type ConstructorParams struct {
	PeriodStart    abi.ChainEpoch
	PeriodDuration abi.ChainEpoch
	Tiers          []Tier
}

func (a Actor) Constructor(rt Runtime, params *ConstructorParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerIs(builtin.SystemActorAddr)

	store := adt.AsStore(rt)
	st, err := ConstructState(store, params.PeriodStart, params.PeriodDuration)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalArgument, "failed to construct state")

	for i, tier := range params.Tiers {
		tier := tier
		_, err := st.PutTier(store, uint64(i), &tier)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalArgument, "failed to put initial tier %d", i)
	}

	rt.StateCreate(st)
	return nil
}

type DepositParams struct {
	TierIndex uint64
}

// Locks the received value under the given tier. Shares are derived from the
// tier's multiplier frozen at this moment.
func (a Actor) Deposit(rt Runtime, params *DepositParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerType(builtin.CallerTypesSignable...)

	amount := rt.ValueReceived()
	builtin.RequireParam(rt, amount.GreaterThan(big.Zero()), "invalid amount %v to deposit", amount)

	store := adt.AsStore(rt)
	var st State
	rt.StateTransaction(&st, func() {
		_, found, err := st.GetTier(store, params.TierIndex)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to get tier %d", params.TierIndex)
		if !found {
			rt.Abortf(exitcode.ErrNotFound, "tier %d not found", params.TierIndex)
		}

		_, err = st.AddDeposit(store, rt.Caller(), amount, params.TierIndex, rt.CurrEpoch())
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalArgument, "failed to add deposit")

		err = st.AppendEvent(store, &builtin.Event{
			Type:    builtin.EventStaked,
			Account: rt.Caller(),
			Amount:  amount,
			Epoch:   rt.CurrEpoch(),
		})
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to append event")
	})
	return nil
}

type WithdrawParams struct {
	AmountRequested abi.TokenAmount
}

// Withdraws from the caller's unlockable deposits, in insertion order. Fails
// without touching any deposit if the unlockable total is short.
func (a Actor) Withdraw(rt Runtime, params *WithdrawParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerType(builtin.CallerTypesSignable...)

	requested := params.AmountRequested
	builtin.RequireParam(rt, requested.GreaterThan(big.Zero()), "invalid amount %v to withdraw", requested)

	store := adt.AsStore(rt)
	var st State
	rt.StateTransaction(&st, func() {
		unlockable, err := st.GetUnlockableBalance(store, rt.Caller(), rt.CurrEpoch())
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to get unlockable balance")
		if unlockable.LessThan(requested) {
			rt.Abortf(exitcode.ErrInsufficientFunds, "insufficient unlockable balance %v, requested %v", unlockable, requested)
		}

		err = st.Withdraw(store, rt.Caller(), requested, rt.CurrEpoch())
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to withdraw")

		err = st.AppendEvent(store, &builtin.Event{
			Type:    builtin.EventUnstaked,
			Account: rt.Caller(),
			Amount:  requested,
			Epoch:   rt.CurrEpoch(),
		})
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to append event")
	})

	Assert(requested.LessThanEqual(rt.CurrentBalance()))
	code := rt.Send(rt.Caller(), builtin.MethodSend, nil, requested, &builtin.Discard{})
	builtin.RequireSuccess(rt, code, "failed to send withdrawn funds")

	return nil
}

type SetTierParams struct {
	Index              uint64
	LockupPeriod       abi.ChainEpoch
	Multiplier         uint64
	MultiplierDecimals uint64
}

// Upserts a lockup tier. Indices stay dense: an existing index is overwritten,
// the next free index appends. Existing deposits keep their snapshots.
func (a Actor) SetTier(rt Runtime, params *SetTierParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerType(builtin.CallerTypesSignable...)
	builtin.ValidateCallerGranted(rt, rt.Caller(), builtin.MethodsStaking.SetTier)

	builtin.RequireParam(rt, params.LockupPeriod >= 0, "negative lockup period %d", params.LockupPeriod)

	store := adt.AsStore(rt)
	var st State
	rt.StateTransaction(&st, func() {
		added, err := st.PutTier(store, params.Index, &Tier{
			LockupPeriod:       params.LockupPeriod,
			Multiplier:         params.Multiplier,
			MultiplierDecimals: params.MultiplierDecimals,
		})
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalArgument, "failed to set tier %d", params.Index)

		eventType := builtin.EventTierUpdated
		if added {
			eventType = builtin.EventTierAdded
		}
		err = st.AppendEvent(store, &builtin.Event{
			Type:    eventType,
			Account: rt.Caller(),
			Amount:  big.Zero(),
			Epoch:   rt.CurrEpoch(),
		})
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to append event")
	})
	return nil
}

type SetRewardParams struct {
	Period int64
	Amount abi.TokenAmount
}

// Funds the reward pool of a future period. The received value must equal the
// declared amount; past and current periods cannot be rewritten.
func (a Actor) SetRewardForPeriod(rt Runtime, params *SetRewardParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerType(builtin.CallerTypesSignable...)
	builtin.ValidateCallerGranted(rt, rt.Caller(), builtin.MethodsStaking.SetRewardForPeriod)

	builtin.RequireParam(rt, params.Amount.GreaterThan(big.Zero()), "invalid reward amount %v", params.Amount)
	builtin.RequireParam(rt, rt.ValueReceived().Equals(params.Amount), "received value %v does not match reward amount %v", rt.ValueReceived(), params.Amount)

	store := adt.AsStore(rt)
	var st State
	rt.StateTransaction(&st, func() {
		if params.Period <= st.CurrentPeriod(rt.CurrEpoch()) {
			rt.Abortf(exitcode.ErrIllegalArgument, "cannot set reward for past period %d, current %d", params.Period, st.CurrentPeriod(rt.CurrEpoch()))
		}

		err := st.SetReward(store, params.Period, params.Amount)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to set reward for period %d", params.Period)

		err = st.AppendEvent(store, &builtin.Event{
			Type:    builtin.EventRewardSet,
			Account: rt.Caller(),
			Amount:  params.Amount,
			Epoch:   rt.CurrEpoch(),
		})
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to append event")
	})
	return nil
}

// Pays out all pending rewards of the caller's deposits, pro rata by shares,
// for every whole period elapsed since each deposit's last claim.
func (a Actor) ClaimRewards(rt Runtime, _ *abi.EmptyValue) *abi.EmptyValue {
	rt.ValidateImmediateCallerType(builtin.CallerTypesSignable...)

	store := adt.AsStore(rt)
	total := big.Zero()
	var st State
	rt.StateTransaction(&st, func() {
		claimed, found, err := st.ClaimRewards(store, rt.Caller(), rt.CurrEpoch())
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to claim rewards")
		builtin.RequireParam(rt, found, "no deposits of %s", rt.Caller())
		total = claimed

		err = st.AppendEvent(store, &builtin.Event{
			Type:    builtin.EventRewardsClaimed,
			Account: rt.Caller(),
			Amount:  total,
			Epoch:   rt.CurrEpoch(),
		})
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to append event")
	})
	builtin.RequireParam(rt, !total.IsZero(), "no rewards to claim")

	Assert(total.LessThanEqual(rt.CurrentBalance()))
	code := rt.Send(rt.Caller(), builtin.MethodSend, nil, total, &builtin.Discard{})
	builtin.RequireSuccess(rt, code, "failed to send claimed rewards")

	return nil
}

type SetVotingDelayParams struct {
	Delay uint64
}

// Stores a delay parameter for an external governance collaborator.
func (a Actor) SetVotingDelay(rt Runtime, params *SetVotingDelayParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerType(builtin.CallerTypesSignable...)
	builtin.ValidateCallerGranted(rt, rt.Caller(), builtin.MethodsStaking.SetVotingDelay)

	store := adt.AsStore(rt)
	var st State
	rt.StateTransaction(&st, func() {
		st.VotingDelay = params.Delay

		err := st.AppendEvent(store, &builtin.Event{
			Type:    builtin.EventVotingDelayUpdated,
			Account: rt.Caller(),
			Amount:  big.Zero(),
			Epoch:   rt.CurrEpoch(),
		})
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to append event")
	})
	return nil
}

type StakeInfoParams struct {
	Account addr.Address
}

type StakeInfoReturn struct {
	Shares      abi.TokenAmount
	TotalShares abi.TokenAmount
	Staked      abi.TokenAmount
	Unlockable  abi.TokenAmount
}

// Read export for the settlement layer.
func (a Actor) StakeInfo(rt Runtime, params *StakeInfoParams) *StakeInfoReturn {
	rt.ValidateImmediateCallerAcceptAny()

	account, found := rt.ResolveAddress(params.Account)
	builtin.RequireParam(rt, found, "unable to resolve address %v", params.Account)

	store := adt.AsStore(rt)
	var st State
	rt.StateReadonly(&st)

	shares, err := st.SharesOf(store, account)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to get shares of %s", account)

	deps, err := st.GetDeposits(store, account)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to get deposits of %s", account)
	staked := big.Zero()
	unlockable := big.Zero()
	for i := range deps {
		staked = big.Add(staked, deps[i].Amount)
		if deps[i].Unlockable(rt.CurrEpoch()) {
			unlockable = big.Add(unlockable, deps[i].Amount)
		}
	}

	return &StakeInfoReturn{
		Shares:      shares,
		TotalShares: st.TotalShares,
		Staked:      staked,
		Unlockable:  unlockable,
	}
}
