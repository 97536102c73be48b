package main

import (
	gen "github.com/whyrusleeping/cbor-gen"

	"github.com/redmont/Advanced-liquid-staking-sub001/actors/builtin"
	"github.com/redmont/Advanced-liquid-staking-sub001/actors/builtin/govern"
	"github.com/redmont/Advanced-liquid-staking-sub001/actors/builtin/staking"
	"github.com/redmont/Advanced-liquid-staking-sub001/actors/builtin/system"
	"github.com/redmont/Advanced-liquid-staking-sub001/actors/builtin/vesting"
)

func main() {
	// Common types
	if err := gen.WriteTupleEncodersToFile("./actors/builtin/cbor_gen.go", "builtin",
		builtin.ValidateGrantedParams{},
		builtin.Event{},
	); err != nil {
		panic(err)
	}

	// Actors
	if err := gen.WriteTupleEncodersToFile("./actors/builtin/system/cbor_gen.go", "system",
		// actor state
		system.State{},
	); err != nil {
		panic(err)
	}

	if err := gen.WriteTupleEncodersToFile("./actors/builtin/staking/cbor_gen.go", "staking",
		// actor state
		staking.State{},
		staking.Tier{},
		staking.Deposit{},
		staking.DepositQueue{},
		// method params and returns
		staking.ConstructorParams{},
		staking.DepositParams{},
		staking.WithdrawParams{},
		staking.SetTierParams{},
		staking.SetRewardParams{},
		staking.SetVotingDelayParams{},
		staking.StakeInfoParams{},
		staking.StakeInfoReturn{},
	); err != nil {
		panic(err)
	}

	if err := gen.WriteTupleEncodersToFile("./actors/builtin/vesting/cbor_gen.go", "vesting",
		// actor state
		vesting.State{},
		vesting.VestingSchedule{},
		vesting.BeneficiaryInfo{},
		// method params and returns
		vesting.ConstructorParams{},
		vesting.CreateVestingScheduleParams{},
		vesting.CreateVestingScheduleReturn{},
		vesting.ScheduleParams{},
		vesting.ReleaseParams{},
		vesting.VestedAmountReturn{},
	); err != nil {
		panic(err)
	}

	if err := gen.WriteTupleEncodersToFile("./actors/builtin/govern/cbor_gen.go", "govern",
		// actor state
		govern.State{},
		govern.GrantedAuthorities{},
		// method params and returns
		govern.GrantOrRevokeParams{},
		govern.Authority{},
	); err != nil {
		panic(err)
	}
}
