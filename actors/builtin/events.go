package builtin

import (
	address "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	cid "github.com/ipfs/go-cid"

	"github.com/redmont/Advanced-liquid-staking-sub001/actors/util/adt"
)

// Event types recorded by the built-in actors. One shared numbering so that
// external indexers can decode logs of any actor uniformly.
const (
	EventStaked = uint64(iota + 1)
	EventUnstaked
	EventTierAdded
	EventTierUpdated
	EventRewardSet
	EventRewardsClaimed
	EventVotingDelayUpdated
	EventScheduleCreated
	EventReleased
	EventRevoked
)

// An entry in an actor's append-only event log. Exactly one is appended per
// successful mutation, never on failure.
type Event struct {
	Type    uint64
	Account address.Address
	Amount  abi.TokenAmount
	Epoch   abi.ChainEpoch
}

// Appends an event to the log at root, returning the new root.
func AppendEvent(store adt.Store, root cid.Cid, event *Event) (cid.Cid, error) {
	events, err := adt.AsArray(store, root)
	if err != nil {
		return cid.Undef, err
	}
	if err := events.AppendContinuous(event); err != nil {
		return cid.Undef, err
	}
	return events.Root()
}

// Loads the full event log at root, in append order.
func ListEvents(store adt.Store, root cid.Cid) ([]*Event, error) {
	events, err := adt.AsArray(store, root)
	if err != nil {
		return nil, err
	}
	var out []*Event
	var event Event
	err = events.ForEach(&event, func(i int64) error {
		cpy := event
		out = append(out, &cpy)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
