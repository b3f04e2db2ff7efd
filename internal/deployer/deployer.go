// Package deployer implements the ecosystem registry and settlement core:
// global config with an approver set and freeze flags, per-ecosystem custodial
// mints backed 1:1 by collateral minus a basis-point fee, fee proceeds swapped
// through an opaque aggregator and converted into a points token, per-merchant
// settlement balances and a two-phase withdrawal request/approval protocol.
//
// Every instruction executes as one atomic ledger update: any validation or
// arithmetic failure aborts the whole instruction with no partial state.
package deployer

import (
	"github.com/gagliardetto/solana-go"
)

// ProgramID owns every record the engine writes.
var ProgramID = solana.MustPublicKeyFromBase58("CEzsTf7eM9ac1kGx7DuZHdXv8b4mLPQBbRzrQcMJmJBh")

// SettlementMint is the fixed settlement currency (USDC): swap proceeds land
// in it and withdrawals pay out in it.
var SettlementMint = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

const (
	// PointsPerSettlementUnit converts settlement-currency fees into the
	// points token: 1 unit of settlement currency mints 100 points.
	PointsPerSettlementUnit uint64 = 100

	// bpsDenom is the basis-point denominator for fee math.
	bpsDenom uint64 = 10_000

	// maxPurchaseReferenceLen bounds the purchase reference carried by a
	// settlement swap.
	maxPurchaseReferenceLen = 64
)
