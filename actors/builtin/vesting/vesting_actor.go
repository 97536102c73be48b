package vesting

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
		2:                         a.CreateVestingSchedule,
		3:                         a.Release,
		4:                         a.Revoke,
		5:                         a.VestedAmount,
	}
}

func (a Actor) Code() cid.Cid {
	return builtin.VestingActorCodeID
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
	Issuer addr.Address
}

func (a Actor) Constructor(rt Runtime, params *ConstructorParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerIs(builtin.SystemActorAddr)

	issuer, ok := rt.ResolveAddress(params.Issuer)
	builtin.RequireParam(rt, ok, "unable to resolve issuer address %v", params.Issuer)

	st, err := ConstructState(adt.AsStore(rt), issuer)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalArgument, "failed to construct state")

	rt.StateCreate(st)
	return nil
}

type CreateVestingScheduleParams struct {
	Beneficiary   addr.Address
	Start         abi.ChainEpoch
	CliffDuration abi.ChainEpoch
	Duration      abi.ChainEpoch
	SliceDuration abi.ChainEpoch
	Revocable     bool
}

type CreateVestingScheduleReturn struct {
	ID []byte
}

// Locks the received value into a new schedule for the beneficiary. Only the
// issuer may create schedules. The id is derived from the beneficiary and a
// per-beneficiary sequence, so it is stable across replays.
func (a Actor) CreateVestingSchedule(rt Runtime, params *CreateVestingScheduleParams) *CreateVestingScheduleReturn {
	rt.ValidateImmediateCallerType(builtin.CallerTypesSignable...)

	amount := rt.ValueReceived()
	builtin.RequireParam(rt, amount.GreaterThan(big.Zero()), "invalid amount %v to vest", amount)

	beneficiary, ok := rt.ResolveAddress(params.Beneficiary)
	builtin.RequireParam(rt, ok, "unable to resolve beneficiary address %v", params.Beneficiary)

	if params.Duration <= 0 || params.SliceDuration <= 0 || params.SliceDuration > params.Duration {
		rt.Abortf(exitcode.ErrIllegalArgument, "invalid duration %d with slice %d", params.Duration, params.SliceDuration)
	}

	store := adt.AsStore(rt)
	var id []byte
	var st State
	rt.StateTransaction(&st, func() {
		if rt.Caller() != st.Issuer {
			rt.Abortf(exitcode.SysErrForbidden, "caller %s is not the issuer %s", rt.Caller(), st.Issuer)
		}

		var err error
		id, err = st.CreateSchedule(store, beneficiary, amount, params.Start, params.CliffDuration, params.Duration, params.SliceDuration, params.Revocable)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalArgument, "failed to create schedule")

		err = st.AppendEvent(store, &builtin.Event{
			Type:    builtin.EventScheduleCreated,
			Account: beneficiary,
			Amount:  amount,
			Epoch:   rt.CurrEpoch(),
		})
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to append event")
	})
	return &CreateVestingScheduleReturn{ID: id}
}

type ScheduleParams struct {
	ID []byte
}

type ReleaseParams struct {
	ID     []byte
	Amount abi.TokenAmount
}

// Pays out part of the vested but unreleased portion of the schedule to its
// beneficiary.
func (a Actor) Release(rt Runtime, params *ReleaseParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerType(builtin.CallerTypesSignable...)

	builtin.RequireParam(rt, params.Amount.GreaterThan(big.Zero()), "invalid amount %v to release", params.Amount)

	store := adt.AsStore(rt)
	var st State
	rt.StateTransaction(&st, func() {
		schedule, found, err := st.GetSchedule(store, params.ID)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to get schedule %x", params.ID)
		if !found {
			rt.Abortf(exitcode.ErrNotFound, "schedule %x not found", params.ID)
		}
		if schedule.Beneficiary != rt.Caller() {
			rt.Abortf(exitcode.SysErrForbidden, "caller %s is not the beneficiary %s", rt.Caller(), schedule.Beneficiary)
		}

		releasable := schedule.Releasable(rt.CurrEpoch())
		if params.Amount.GreaterThan(releasable) {
			rt.Abortf(exitcode.ErrInsufficientFunds, "amount %v exceeds releasable %v of schedule %x", params.Amount, releasable, params.ID)
		}

		_, err = st.Release(store, params.ID, params.Amount, rt.CurrEpoch())
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to release schedule %x", params.ID)

		err = st.AppendEvent(store, &builtin.Event{
			Type:    builtin.EventReleased,
			Account: rt.Caller(),
			Amount:  params.Amount,
			Epoch:   rt.CurrEpoch(),
		})
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to append event")
	})

	Assert(params.Amount.LessThanEqual(rt.CurrentBalance()))
	code := rt.Send(rt.Caller(), builtin.MethodSend, nil, params.Amount, &builtin.Discard{})
	builtin.RequireSuccess(rt, code, "failed to send released funds")

	return nil
}

// Freezes a revocable schedule at the current epoch. The vested portion stays
// claimable by the beneficiary; the unvested remainder returns to the issuer.
func (a Actor) Revoke(rt Runtime, params *ScheduleParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerType(builtin.CallerTypesSignable...)

	store := adt.AsStore(rt)
	refund := big.Zero()
	var st State
	rt.StateTransaction(&st, func() {
		if rt.Caller() != st.Issuer {
			rt.Abortf(exitcode.SysErrForbidden, "caller %s is not the issuer %s", rt.Caller(), st.Issuer)
		}

		schedule, found, err := st.GetSchedule(store, params.ID)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to get schedule %x", params.ID)
		if !found {
			rt.Abortf(exitcode.ErrNotFound, "schedule %x not found", params.ID)
		}
		if !schedule.Revocable {
			rt.Abortf(exitcode.ErrForbidden, "schedule %x not revocable", params.ID)
		}
		if schedule.Revoked {
			rt.Abortf(exitcode.ErrForbidden, "schedule %x already revoked", params.ID)
		}

		_, unvested, err := st.Revoke(store, params.ID, rt.CurrEpoch())
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to revoke schedule %x", params.ID)
		refund = unvested

		err = st.AppendEvent(store, &builtin.Event{
			Type:    builtin.EventRevoked,
			Account: schedule.Beneficiary,
			Amount:  refund,
			Epoch:   rt.CurrEpoch(),
		})
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to append event")
	})

	if !refund.IsZero() {
		Assert(refund.LessThanEqual(rt.CurrentBalance()))
		code := rt.Send(rt.Caller(), builtin.MethodSend, nil, refund, &builtin.Discard{})
		builtin.RequireSuccess(rt, code, "failed to send unvested funds")
	}

	return nil
}

type VestedAmountReturn struct {
	Vested     abi.TokenAmount
	Releasable abi.TokenAmount
	Released   abi.TokenAmount
	Total      abi.TokenAmount
}

// Read export for the settlement layer.
func (a Actor) VestedAmount(rt Runtime, params *ScheduleParams) *VestedAmountReturn {
	rt.ValidateImmediateCallerAcceptAny()

	store := adt.AsStore(rt)
	var st State
	rt.StateReadonly(&st)

	schedule, found, err := st.GetSchedule(store, params.ID)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to get schedule %x", params.ID)
	if !found {
		rt.Abortf(exitcode.ErrNotFound, "schedule %x not found", params.ID)
	}

	return &VestedAmountReturn{
		Vested:     schedule.VestedAt(rt.CurrEpoch()),
		Releasable: schedule.Releasable(rt.CurrEpoch()),
		Released:   schedule.Released,
		Total:      schedule.Total,
	}
}
