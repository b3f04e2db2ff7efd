package aggregator

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/AymanF10/ecosystem/backend/internal/ledger"
	"github.com/AymanF10/ecosystem/backend/internal/token"
)

var (
	ErrEmptyRoute     = errors.New("aggregator: empty route")
	ErrWrongProgram   = errors.New("aggregator: instruction targets a different program")
	ErrBadAccountList = errors.New("aggregator: malformed account list")
	ErrSignerMismatch = errors.New("aggregator: transfer authority is not the flagged signer")
)

const mintAuthoritySeed = "jupiter-mint-auth"

// Account positions the mock router expects, mirroring its route accounts:
// token program, transfer authority (signer), source token account,
// destination token account, destination mint, source mint, mint authority.
const (
	mockIdxTokenProgram = iota
	mockIdxAuthority
	mockIdxSource
	mockIdxDestination
	mockIdxDestinationMint
	mockIdxSourceMint
	mockIdxMintAuthority
	mockAccountCount
)

// MockRouter is a stand-in aggregator for tests and local runs. It burns the
// route's input amount from the source account and mints the output amount
// to the destination account under its own mint authority. OutOverride lets
// tests make the credited amount diverge from the quote, which is how the
// core's balance-diff accounting is proven.
type MockRouter struct {
	Tokens      *token.Runtime
	ProgramID   solana.PublicKey
	OutOverride *uint64
}

func NewMockRouter(tokens *token.Runtime, programID solana.PublicKey) *MockRouter {
	return &MockRouter{Tokens: tokens, ProgramID: programID}
}

// MintAuthority is the router-owned signer for output mints.
func (m *MockRouter) MintAuthority() solana.PublicKey {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(mintAuthoritySeed)}, m.ProgramID)
	if err != nil {
		panic(fmt.Errorf("derive mock router mint authority: %w", err))
	}
	return addr
}

// Invoke implements Invoker.
func (m *MockRouter) Invoke(v ledger.View, ix Instruction, signer solana.PublicKey) error {
	if !ix.ProgramID.Equals(m.ProgramID) {
		return ErrWrongProgram
	}
	if len(ix.Accounts) < mockAccountCount {
		return ErrBadAccountList
	}

	args, err := DecodeRoute(ix.Data)
	if err != nil {
		return err
	}
	if len(args.RoutePlan) == 0 {
		return ErrEmptyRoute
	}

	authority := ix.Accounts[mockIdxAuthority]
	if !authority.IsSigner || !authority.PublicKey.Equals(signer) {
		return ErrSignerMismatch
	}

	tokenProgram := ix.Accounts[mockIdxTokenProgram].PublicKey
	sourceMint := ix.Accounts[mockIdxSourceMint].PublicKey
	destinationMint := ix.Accounts[mockIdxDestinationMint].PublicKey

	if err := m.Tokens.Burn(v, tokenProgram, sourceMint, ix.Accounts[mockIdxSource].PublicKey, authority.PublicKey, args.InAmount); err != nil {
		return fmt.Errorf("burn route input: %w", err)
	}

	out := args.QuotedOutAmount
	if m.OutOverride != nil {
		out = *m.OutOverride
	}

	if err := m.Tokens.MintTo(v, tokenProgram, destinationMint, ix.Accounts[mockIdxDestination].PublicKey, m.MintAuthority(), out); err != nil {
		return fmt.Errorf("mint route output: %w", err)
	}
	return nil
}
