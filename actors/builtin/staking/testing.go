package staking

import (
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"

	"github.com/redmont/Advanced-liquid-staking-sub001/actors/builtin"
	"github.com/redmont/Advanced-liquid-staking-sub001/actors/util/adt"
	"github.com/redmont/Advanced-liquid-staking-sub001/actors/util/math"
)

type StateSummary struct {
	SharesByAccount map[address.Address]abi.TokenAmount
	DepositsCount   int
	AccountsCount   int
	TiersCount      int

	TotalShares abi.TokenAmount
	TotalStaked abi.TokenAmount
}

func CheckStateInvariants(st *State, store adt.Store) (*StateSummary, *builtin.MessageAccumulator) {
	acc := &builtin.MessageAccumulator{}
	sum := &StateSummary{
		SharesByAccount: make(map[address.Address]abi.TokenAmount),

		TotalShares: big.Zero(),
		TotalStaked: big.Zero(),
	}

	// Tiers
	tiers, err := adt.AsArray(store, st.Tiers)
	if err != nil {
		acc.Addf("error loading tiers: %v", err)
	} else {
		next := int64(0)
		var tier Tier
		err = tiers.ForEach(&tier, func(i int64) error {
			acc.Require(i == next, "tier indices not dense: %d after %d", i, next)
			next = i + 1
			sum.TiersCount++
			return nil
		})
		acc.RequireNoError(err, "error iterating tiers")
	}

	// Deposits
	sharesByDeposits := make(map[address.Address]abi.TokenAmount)
	deposits, err := adt.AsMap(store, st.Deposits, builtin.DefaultHamtBitwidth)
	if err != nil {
		acc.Addf("error loading deposits: %v", err)
	} else {
		var queue DepositQueue
		err = deposits.ForEach(&queue, func(k string) error {
			sum.AccountsCount++

			ida, err := address.NewFromBytes([]byte(k))
			acc.RequireNoError(err, "error deserializing account address: %s", k)
			acc.Require(ida.Protocol() == address.ID, "account address not an ID address: %s", k)

			acc.Require(len(queue.Deposits) > 0, "empty deposit queue of %s", ida)
			acc.Require(queue.Seq < st.NextAccountSeq, "queue seq %d of %s not below next seq %d", queue.Seq, ida, st.NextAccountSeq)

			accountShares := big.Zero()
			lastID := int64(-1)
			for _, dep := range queue.Deposits {
				sum.DepositsCount++

				acc.Require(int64(dep.ID) > lastID, "deposit ids of %s not increasing: %d after %d", ida, dep.ID, lastID)
				lastID = int64(dep.ID)
				acc.Require(dep.ID < st.NextDepositID, "deposit id %d not below next id %d", dep.ID, st.NextDepositID)

				acc.Require(dep.Amount.GreaterThan(big.Zero()), "non-positive deposit amount %v of %s", dep.Amount, ida)
				acc.Require(dep.UnlockEpoch >= dep.StartEpoch, "deposit %d unlocks at %d before start %d", dep.ID, dep.UnlockEpoch, dep.StartEpoch)

				expected, err := math.SharesForAmount(dep.Amount, dep.Tier.Multiplier, dep.Tier.MultiplierDecimals)
				acc.RequireNoError(err, "error recomputing shares of deposit %d", dep.ID)
				acc.Require(dep.Shares.Equals(expected), "deposit %d shares %v, recomputed %v", dep.ID, dep.Shares, expected)

				accountShares = big.Add(accountShares, dep.Shares)
				sum.TotalStaked = big.Add(sum.TotalStaked, dep.Amount)
			}
			sharesByDeposits[ida] = accountShares
			return nil
		})
		acc.RequireNoError(err, "error iterating deposits")
	}

	// Shares
	shares, err := adt.AsMap(store, st.Shares, builtin.DefaultHamtBitwidth)
	if err != nil {
		acc.Addf("error loading shares: %v", err)
	} else {
		var balance abi.TokenAmount
		err = shares.ForEach(&balance, func(k string) error {
			ida, err := address.NewFromBytes([]byte(k))
			acc.RequireNoError(err, "error deserializing account address: %s", k)

			acc.Require(balance.GreaterThan(big.Zero()), "non-positive share balance %v of %s", balance, ida)
			sum.SharesByAccount[ida] = balance
			sum.TotalShares = big.Add(sum.TotalShares, balance)
			return nil
		})
		acc.RequireNoError(err, "error iterating shares")
	}

	for ida, byDeposits := range sharesByDeposits {
		if byDeposits.IsZero() {
			// all of this account's deposit shares floored to zero
			_, ok := sum.SharesByAccount[ida]
			acc.Require(!ok, "zero deposit shares of %s but share balance present", ida)
			continue
		}
		balance, ok := sum.SharesByAccount[ida]
		acc.Require(ok, "account %s has deposits but no share balance", ida)
		acc.Require(balance.Equals(byDeposits), "share balance of %s is %v, sum of deposit shares %v", ida, balance, byDeposits)
	}
	for ida := range sum.SharesByAccount {
		_, ok := sharesByDeposits[ida]
		acc.Require(ok, "account %s has share balance but no deposits", ida)
	}

	acc.Require(sum.TotalShares.Equals(st.TotalShares), "st.TotalShares %v != sum of share balances %v", st.TotalShares, sum.TotalShares)
	acc.Require(sum.TotalStaked.Equals(st.TotalStaked), "st.TotalStaked %v != sum of deposit amounts %v", st.TotalStaked, sum.TotalStaked)

	return sum, acc
}
