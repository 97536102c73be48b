package vesting

import (
	"encoding/binary"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/ipfs/go-cid"
	"github.com/minio/blake2b-simd"
	"github.com/pkg/errors"
	"golang.org/x/xerrors"

	"github.com/redmont/Advanced-liquid-staking-sub001/actors/builtin"
	. "github.com/redmont/Advanced-liquid-staking-sub001/actors/util"
	"github.com/redmont/Advanced-liquid-staking-sub001/actors/util/adt"
)

type State struct {
	// Account allowed to create and revoke schedules, set at construction.
	Issuer addr.Address

	Schedules cid.Cid // Map, HAMT[ScheduleID]VestingSchedule

	// Sequence counters backing schedule id derivation.
	Beneficiaries cid.Cid // Map, HAMT[ID-Address]BeneficiaryInfo

	// Sum of unreleased obligations across all schedules.
	TotalVesting abi.TokenAmount

	// Append-only log of successful mutations.
	Events cid.Cid // Array, AMT[]Event
}

type VestingSchedule struct {
	Beneficiary addr.Address

	// Per-beneficiary sequence the schedule id was derived from.
	Seq uint64

	Start         abi.ChainEpoch
	CliffDuration abi.ChainEpoch
	Duration      abi.ChainEpoch
	SliceDuration abi.ChainEpoch

	Total    abi.TokenAmount
	Released abi.TokenAmount

	Revocable bool
	Revoked   bool
	RevokedAt abi.ChainEpoch
}

type BeneficiaryInfo struct {
	NextSeq uint64
}

// ScheduleID derives the stable id of a beneficiary's seq-th schedule.
func ScheduleID(beneficiary addr.Address, seq uint64) []byte {
	preimage := make([]byte, 0, len(beneficiary.Bytes())+8)
	preimage = append(preimage, beneficiary.Bytes()...)
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], seq)
	preimage = append(preimage, seqBytes[:]...)

	sum := blake2b.Sum256(preimage)
	return sum[:]
}

func ConstructState(store adt.Store, issuer addr.Address) (*State, error) {
	if issuer.Protocol() != addr.ID {
		return nil, xerrors.Errorf("issuer %s not a ID-Address", issuer)
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
		Issuer:        issuer,
		Schedules:     emptyMap,
		Beneficiaries: emptyMap,
		TotalVesting:  abi.NewTokenAmount(0),
		Events:        emptyEvents,
	}, nil
}

// Vested portion of the schedule at `now`. Vesting advances in whole slices
// after the cliff, with floor division; a revoked schedule is frozen at its
// revocation epoch.
func (s *VestingSchedule) VestedAt(now abi.ChainEpoch) abi.TokenAmount {
	if s.Revoked && now > s.RevokedAt {
		now = s.RevokedAt
	}
	if now < s.Start+s.CliffDuration {
		return big.Zero()
	}
	if now >= s.Start+s.Duration {
		return s.Total
	}

	vestedEpochs := ((now - s.Start) / s.SliceDuration) * s.SliceDuration
	vested := big.Div(big.Mul(s.Total, big.NewInt(int64(vestedEpochs))), big.NewInt(int64(s.Duration)))
	return big.Min(s.Total, vested)
}

func (s *VestingSchedule) Releasable(now abi.ChainEpoch) abi.TokenAmount {
	return big.Sub(s.VestedAt(now), s.Released)
}

// Remaining obligation of the schedule, ignoring time: what could still be
// released if vesting ran to completion (or to the revocation point).
func (s *VestingSchedule) Remaining() abi.TokenAmount {
	if s.Revoked {
		return big.Sub(s.VestedAt(s.RevokedAt), s.Released)
	}
	return big.Sub(s.Total, s.Released)
}

// Creates a new schedule for beneficiary funded with amount and returns its id.
func (st *State) CreateSchedule(
	store adt.Store,
	beneficiary addr.Address,
	amount abi.TokenAmount,
	start, cliffDuration, duration, sliceDuration abi.ChainEpoch,
	revocable bool,
) ([]byte, error) {
	if amount.LessThanEqual(big.Zero()) {
		return nil, xerrors.Errorf("non-positive amount %v to vest", amount)
	}
	if duration <= 0 || sliceDuration <= 0 || sliceDuration > duration {
		return nil, xerrors.Errorf("invalid duration %d with slice %d", duration, sliceDuration)
	}
	if cliffDuration < 0 {
		return nil, xerrors.Errorf("negative cliff duration %d", cliffDuration)
	}

	beneficiaries, err := adt.AsMap(store, st.Beneficiaries, builtin.DefaultHamtBitwidth)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load beneficiaries")
	}

	var info BeneficiaryInfo
	if _, err := beneficiaries.Get(abi.AddrKey(beneficiary), &info); err != nil {
		return nil, errors.Wrapf(err, "failed to get info of %s", beneficiary)
	}

	id := ScheduleID(beneficiary, info.NextSeq)
	schedule := VestingSchedule{
		Beneficiary:   beneficiary,
		Seq:           info.NextSeq,
		Start:         start,
		CliffDuration: cliffDuration,
		Duration:      duration,
		SliceDuration: sliceDuration,
		Total:         amount,
		Released:      abi.NewTokenAmount(0),
		Revocable:     revocable,
	}
	if err := st.PutSchedule(store, id, &schedule); err != nil {
		return nil, err
	}

	info.NextSeq++
	if err := beneficiaries.Put(abi.AddrKey(beneficiary), &info); err != nil {
		return nil, errors.Wrapf(err, "failed to put info of %s", beneficiary)
	}
	st.Beneficiaries, err = beneficiaries.Root()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to flush beneficiaries")
	}

	st.TotalVesting = big.Add(st.TotalVesting, amount)
	return id, nil
}

func (st *State) PutSchedule(store adt.Store, id []byte, schedule *VestingSchedule) error {
	schedules, err := adt.AsMap(store, st.Schedules, builtin.DefaultHamtBitwidth)
	if err != nil {
		return errors.Wrapf(err, "failed to load schedules")
	}

	if err := schedules.Put(adt.StringKey(id), schedule); err != nil {
		return errors.Wrapf(err, "failed to put schedule %x", id)
	}
	st.Schedules, err = schedules.Root()
	if err != nil {
		return errors.Wrapf(err, "failed to flush schedules")
	}
	return nil
}

func (st *State) GetSchedule(store adt.Store, id []byte) (*VestingSchedule, bool, error) {
	schedules, err := adt.AsMap(store, st.Schedules, builtin.DefaultHamtBitwidth)
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to load schedules")
	}

	var schedule VestingSchedule
	found, err := schedules.Get(adt.StringKey(id), &schedule)
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to get schedule %x", id)
	}
	return &schedule, found, nil
}

// Releases `amount` of the vested but unreleased portion of the schedule at
// `now`, returning the updated schedule.
func (st *State) Release(store adt.Store, id []byte, amount abi.TokenAmount, now abi.ChainEpoch) (*VestingSchedule, error) {
	if amount.LessThanEqual(big.Zero()) {
		return nil, xerrors.Errorf("non-positive amount %v to release", amount)
	}

	schedule, found, err := st.GetSchedule(store, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, xerrors.Errorf("schedule %x not found", id)
	}

	releasable := schedule.Releasable(now)
	Assert(releasable.GreaterThanEqual(big.Zero()))
	if amount.GreaterThan(releasable) {
		return nil, xerrors.Errorf("amount %v exceeds releasable %v of schedule %x", amount, releasable, id)
	}

	schedule.Released = big.Add(schedule.Released, amount)
	if err := st.PutSchedule(store, id, schedule); err != nil {
		return nil, err
	}

	st.TotalVesting = big.Sub(st.TotalVesting, amount)
	Assert(st.TotalVesting.GreaterThanEqual(big.Zero()))
	return schedule, nil
}

// Freezes the schedule at `now` and returns the updated schedule and the
// unvested remainder owed back to the issuer.
func (st *State) Revoke(store adt.Store, id []byte, now abi.ChainEpoch) (*VestingSchedule, abi.TokenAmount, error) {
	schedule, found, err := st.GetSchedule(store, id)
	if err != nil {
		return nil, big.Zero(), err
	}
	if !found {
		return nil, big.Zero(), xerrors.Errorf("schedule %x not found", id)
	}
	if schedule.Revoked {
		return nil, big.Zero(), xerrors.Errorf("schedule %x already revoked", id)
	}

	unvested := big.Sub(schedule.Total, schedule.VestedAt(now))
	Assert(unvested.GreaterThanEqual(big.Zero()))

	schedule.Revoked = true
	schedule.RevokedAt = now
	if err := st.PutSchedule(store, id, schedule); err != nil {
		return nil, big.Zero(), err
	}

	st.TotalVesting = big.Sub(st.TotalVesting, unvested)
	Assert(st.TotalVesting.GreaterThanEqual(big.Zero()))
	return schedule, unvested, nil
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
