package builtin

import (
	"github.com/filecoin-project/go-state-types/abi"
)

const (
	MethodSend        = abi.MethodNum(0)
	MethodConstructor = abi.MethodNum(1)
)

var MethodsAccount = struct {
	Constructor   abi.MethodNum
	PubkeyAddress abi.MethodNum
}{MethodConstructor, 2}

var MethodsStaking = struct {
	Constructor        abi.MethodNum
	Deposit            abi.MethodNum
	Withdraw           abi.MethodNum
	SetTier            abi.MethodNum
	SetRewardForPeriod abi.MethodNum
	ClaimRewards       abi.MethodNum
	SetVotingDelay     abi.MethodNum
	StakeInfo          abi.MethodNum
}{MethodConstructor, 2, 3, 4, 5, 6, 7, 8}

var MethodsVesting = struct {
	Constructor           abi.MethodNum
	CreateVestingSchedule abi.MethodNum
	Release               abi.MethodNum
	Revoke                abi.MethodNum
	VestedAmount          abi.MethodNum
}{MethodConstructor, 2, 3, 4, 5}

var MethodsGovern = struct {
	Constructor     abi.MethodNum
	Grant           abi.MethodNum
	Revoke          abi.MethodNum
	ValidateGranted abi.MethodNum
}{MethodConstructor, 2, 3, 4}
