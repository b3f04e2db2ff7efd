// Package aggregator defines the opaque swap capability the settlement core
// invokes: a program id, an ordered account list and an uninterpreted byte
// payload. The core never decodes the payload; swap proceeds are discovered
// only by diffing vault balances around the invocation.
package aggregator

import (
	"github.com/gagliardetto/solana-go"

	"github.com/AymanF10/ecosystem/backend/internal/ledger"
)

// ProgramID is the production aggregator (Jupiter v6) program.
var ProgramID = solana.MustPublicKeyFromBase58("JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4")

// AccountMeta is one entry of the forwarded account list. The settlement
// core sets IsSigner only on its own vault authority.
type AccountMeta struct {
	PublicKey  solana.PublicKey
	IsWritable bool
	IsSigner   bool
}

// Instruction is the opaque swap invocation assembled by the core from the
// caller-forwarded remaining accounts and payload.
type Instruction struct {
	ProgramID solana.PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

// Invoker executes a swap instruction against the ledger view. The signer is
// the vault authority the invoking program derives and signs for; it must
// match the single account flagged as signer in the instruction.
type Invoker interface {
	Invoke(v ledger.View, ix Instruction, signer solana.PublicKey) error
}
