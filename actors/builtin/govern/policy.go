package govern

import (
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/ipfs/go-cid"

	"github.com/redmont/Advanced-liquid-staking-sub001/actors/builtin"
)

// Governed methods of each actor code
var GovernedActors = map[cid.Cid]map[abi.MethodNum]struct{}{
	builtin.StakingActorCodeID: {
		builtin.MethodsStaking.SetTier:            struct{}{},
		builtin.MethodsStaking.SetRewardForPeriod: struct{}{},
		builtin.MethodsStaking.SetVotingDelay:     struct{}{},
	},
}

var GovernedCallerTypes = func() []cid.Cid {
	ret := make([]cid.Cid, 0, len(GovernedActors))
	for code := range GovernedActors {
		ret = append(ret, code)
	}
	return ret
}()
