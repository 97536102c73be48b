package runtime

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/filecoin-project/go-state-types/rt"
	cid "github.com/ipfs/go-cid"
)

// Runtime is the interface to the execution environment presented to
// actor methods. Every mutating method runs inside a state transaction
// that commits atomically; time and caller identity are supplied by the
// environment, never read from a wall clock.
type Runtime interface {
	// The epoch of the message currently being executed.
	CurrEpoch() abi.ChainEpoch

	// Validates that the immediate caller matches exactly one of the
	// addresses/types given, or aborts. Every method must validate its
	// caller exactly once.
	ValidateImmediateCallerAcceptAny()
	ValidateImmediateCallerIs(addrs ...addr.Address)
	ValidateImmediateCallerType(types ...cid.Cid)

	// The address of the immediate calling actor, and of this actor.
	Caller() addr.Address
	Receiver() addr.Address

	// The value attached to the message being executed.
	ValueReceived() abi.TokenAmount

	// The balance of the receiver, including the value received.
	CurrentBalance() abi.TokenAmount

	// Resolves an address of any protocol to an ID address, if known.
	ResolveAddress(address addr.Address) (addr.Address, bool)

	// The code CID of the actor at the given address, if it exists.
	GetActorCodeCID(addr addr.Address) (cid.Cid, bool)

	// Abandons execution with a failure exit code. No state changes in
	// the current transaction survive an abort.
	Abortf(errExitCode exitcode.ExitCode, msg string, args ...interface{})

	// State access. StateTransaction loads the receiver's state into
	// obj, runs f, and commits the (possibly mutated) obj as the new
	// state root in one atomic step.
	StateCreate(obj cbor.Marshaler)
	StateReadonly(obj cbor.Unmarshaler)
	StateTransaction(obj cbor.Er, f func())

	// Sends a message to another actor, carrying value.
	Send(toAddr addr.Address, methodNum abi.MethodNum, params cbor.Marshaler, value abi.TokenAmount, out cbor.Er) exitcode.ExitCode

	Log(level rt.LogLevel, msg string, args ...interface{})

	Store
}

// Store provides access to the receiver's IPLD store. Failures are
// fatal to the calling message, hence no error returns.
type Store interface {
	StorePut(x cbor.Marshaler) cid.Cid
	StoreGet(c cid.Cid, out cbor.Unmarshaler) bool
}

type VMActor = rt.VMActor
