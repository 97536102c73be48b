package builtin

import (
	addr "github.com/filecoin-project/go-address"
	cid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"

	"github.com/redmont/Advanced-liquid-staking-sub001/actors/util"
)

// The built-in actor code IDs
var (
	SystemActorCodeID   cid.Cid
	AccountActorCodeID  cid.Cid
	MultisigActorCodeID cid.Cid
	GovernActorCodeID   cid.Cid
	StakingActorCodeID  cid.Cid
	VestingActorCodeID  cid.Cid
	CallerTypesSignable []cid.Cid
)

func init() {
	builder := cid.V1Builder{Codec: cid.Raw, MhType: mh.IDENTITY}
	makeBuiltin := func(s string) cid.Cid {
		c, err := builder.Sum([]byte(s))
		util.AssertNoError(err)
		return c
	}

	SystemActorCodeID = makeBuiltin("vault/1/system")
	AccountActorCodeID = makeBuiltin("vault/1/account")
	MultisigActorCodeID = makeBuiltin("vault/1/multisig")
	GovernActorCodeID = makeBuiltin("vault/1/govern")
	StakingActorCodeID = makeBuiltin("vault/1/staking")
	VestingActorCodeID = makeBuiltin("vault/1/vesting")

	// Set of actor code types that can represent external signing parties.
	CallerTypesSignable = []cid.Cid{AccountActorCodeID, MultisigActorCodeID}
}

// IsBuiltinActor returns true if the code belongs to an actor defined in this repo.
func IsBuiltinActor(code cid.Cid) bool {
	return code.Equals(SystemActorCodeID) ||
		code.Equals(AccountActorCodeID) ||
		code.Equals(MultisigActorCodeID) ||
		code.Equals(GovernActorCodeID) ||
		code.Equals(StakingActorCodeID) ||
		code.Equals(VestingActorCodeID)
}

// ActorNameByCode returns the unique name for the actor interface indicated by code.
func ActorNameByCode(code cid.Cid) string {
	switch {
	case code.Equals(SystemActorCodeID):
		return "vault/1/system"
	case code.Equals(AccountActorCodeID):
		return "vault/1/account"
	case code.Equals(MultisigActorCodeID):
		return "vault/1/multisig"
	case code.Equals(GovernActorCodeID):
		return "vault/1/govern"
	case code.Equals(StakingActorCodeID):
		return "vault/1/staking"
	case code.Equals(VestingActorCodeID):
		return "vault/1/vesting"
	default:
		return "<unknown>"
	}
}

// IsPrincipal returns true if the code belongs to an actor that can represent
// an external signing party.
func IsPrincipal(code cid.Cid) bool {
	for _, c := range CallerTypesSignable {
		if c.Equals(code) {
			return true
		}
	}
	return false
}

// IsSingletonActor returns true if the code belongs to a singleton actor.
func IsSingletonActor(code cid.Cid) bool {
	return code.Equals(SystemActorCodeID) ||
		code.Equals(GovernActorCodeID) ||
		code.Equals(StakingActorCodeID) ||
		code.Equals(VestingActorCodeID)
}

// Addresses of singleton actors.
var (
	SystemActorAddr  = mustMakeAddress(0)
	GovernActorAddr  = mustMakeAddress(2)
	StakingActorAddr = mustMakeAddress(3)
	VestingActorAddr = mustMakeAddress(4)
)

func mustMakeAddress(id uint64) addr.Address {
	address, err := addr.NewIDAddress(id)
	util.AssertNoError(err)
	return address
}
