package mock

import (
	"context"
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	cid "github.com/ipfs/go-cid"
)

// Build for fluent initialization of a mock runtime.
type RuntimeBuilder struct {
	ctx           context.Context
	epoch         abi.ChainEpoch
	receiver      addr.Address
	caller        addr.Address
	callerType    cid.Cid
	balance       abi.TokenAmount
	received      abi.TokenAmount
	idAddresses   map[addr.Address]addr.Address
	actorCodeCIDs map[addr.Address]cid.Cid
}

// Initializes a new builder with a receiving actor address.
func NewBuilder(ctx context.Context, receiver addr.Address) RuntimeBuilder {
	return RuntimeBuilder{
		ctx:           ctx,
		epoch:         0,
		receiver:      receiver,
		caller:        addr.Undef,
		callerType:    cid.Undef,
		balance:       big.Zero(),
		received:      big.Zero(),
		idAddresses:   make(map[addr.Address]addr.Address),
		actorCodeCIDs: make(map[addr.Address]cid.Cid),
	}
}

// Builds a new runtime object with the configured values.
func (b RuntimeBuilder) Build(t testing.TB) *Runtime {
	m := &Runtime{
		ctx:           b.ctx,
		epoch:         b.epoch,
		receiver:      b.receiver,
		caller:        b.caller,
		callerType:    b.callerType,
		valueReceived: b.received,
		idAddresses:   make(map[addr.Address]addr.Address),
		actorCodeCIDs: make(map[addr.Address]cid.Cid),

		state:   cid.Undef,
		store:   make(map[cid.Cid][]byte),
		balance: b.balance,

		t: t,
	}
	for a, i := range b.idAddresses {
		m.idAddresses[a] = i
	}
	for a, c := range b.actorCodeCIDs {
		m.actorCodeCIDs[a] = c
	}
	return m
}

func (b RuntimeBuilder) WithEpoch(epoch abi.ChainEpoch) RuntimeBuilder {
	b.epoch = epoch
	return b
}

func (b RuntimeBuilder) WithCaller(address addr.Address, code cid.Cid) RuntimeBuilder {
	b.caller = address
	b.callerType = code
	b.actorCodeCIDs[address] = code
	return b
}

func (b RuntimeBuilder) WithActorType(address addr.Address, code cid.Cid) RuntimeBuilder {
	b.actorCodeCIDs[address] = code
	return b
}

func (b RuntimeBuilder) WithBalance(balance, received abi.TokenAmount) RuntimeBuilder {
	b.balance = balance
	b.received = received
	return b
}
