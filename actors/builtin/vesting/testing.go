package vesting

import (
	"bytes"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"

	"github.com/redmont/Advanced-liquid-staking-sub001/actors/builtin"
	"github.com/redmont/Advanced-liquid-staking-sub001/actors/util/adt"
)

type StateSummary struct {
	SchedulesCount     int
	BeneficiariesCount int

	TotalVesting abi.TokenAmount
}

func CheckStateInvariants(st *State, store adt.Store) (*StateSummary, *builtin.MessageAccumulator) {
	acc := &builtin.MessageAccumulator{}
	sum := &StateSummary{
		TotalVesting: big.Zero(),
	}

	acc.Require(st.Issuer.Protocol() == address.ID, "issuer %s not an ID address", st.Issuer)

	// Beneficiaries
	nextSeqs := make(map[address.Address]uint64)
	beneficiaries, err := adt.AsMap(store, st.Beneficiaries, builtin.DefaultHamtBitwidth)
	if err != nil {
		acc.Addf("error loading beneficiaries: %v", err)
	} else {
		var info BeneficiaryInfo
		err = beneficiaries.ForEach(&info, func(k string) error {
			sum.BeneficiariesCount++

			ida, err := address.NewFromBytes([]byte(k))
			acc.RequireNoError(err, "error deserializing beneficiary address: %s", k)
			acc.Require(ida.Protocol() == address.ID, "beneficiary address not an ID address: %s", k)
			acc.Require(info.NextSeq > 0, "beneficiary %s has zero next seq", ida)

			nextSeqs[ida] = info.NextSeq
			return nil
		})
		acc.RequireNoError(err, "error iterating beneficiaries")
	}

	// Schedules
	schedules, err := adt.AsMap(store, st.Schedules, builtin.DefaultHamtBitwidth)
	if err != nil {
		acc.Addf("error loading schedules: %v", err)
	} else {
		var schedule VestingSchedule
		err = schedules.ForEach(&schedule, func(k string) error {
			sum.SchedulesCount++

			expectedID := ScheduleID(schedule.Beneficiary, schedule.Seq)
			acc.Require(bytes.Equal([]byte(k), expectedID), "schedule id %x does not match beneficiary %s seq %d", k, schedule.Beneficiary, schedule.Seq)

			nextSeq, ok := nextSeqs[schedule.Beneficiary]
			acc.Require(ok, "schedule %x beneficiary %s has no seq counter", k, schedule.Beneficiary)
			acc.Require(schedule.Seq < nextSeq, "schedule seq %d of %s not below next seq %d", schedule.Seq, schedule.Beneficiary, nextSeq)

			acc.Require(schedule.Total.GreaterThan(big.Zero()), "non-positive total %v of schedule %x", schedule.Total, k)
			acc.Require(schedule.Duration > 0, "non-positive duration %d of schedule %x", schedule.Duration, k)
			acc.Require(schedule.SliceDuration > 0 && schedule.SliceDuration <= schedule.Duration,
				"slice duration %d of schedule %x out of range (0, %d]", schedule.SliceDuration, k, schedule.Duration)
			acc.Require(schedule.CliffDuration >= 0, "negative cliff duration %d of schedule %x", schedule.CliffDuration, k)

			acc.Require(schedule.Released.GreaterThanEqual(big.Zero()), "negative released %v of schedule %x", schedule.Released, k)
			acc.Require(schedule.Released.LessThanEqual(schedule.Total), "released %v of schedule %x exceeds total %v", schedule.Released, k, schedule.Total)
			if schedule.Revoked {
				acc.Require(schedule.Revocable, "schedule %x revoked but not revocable", k)
				acc.Require(schedule.Released.LessThanEqual(schedule.VestedAt(schedule.RevokedAt)),
					"released %v of revoked schedule %x exceeds vested at revocation", schedule.Released, k)
			}

			remaining := schedule.Remaining()
			acc.Require(remaining.GreaterThanEqual(big.Zero()), "negative remaining obligation %v of schedule %x", remaining, k)
			sum.TotalVesting = big.Add(sum.TotalVesting, remaining)
			return nil
		})
		acc.RequireNoError(err, "error iterating schedules")
	}

	acc.Require(sum.TotalVesting.Equals(st.TotalVesting), "st.TotalVesting %v != sum of remaining obligations %v", st.TotalVesting, sum.TotalVesting)

	return sum, acc
}
