// Package token implements the fungible-token primitive the settlement
// engine runs against: mints and token accounts stored as ledger records,
// with mint/burn/transfer-checked/set-authority operations and two
// interchangeable program variants (legacy and Token-2022).
package token

import (
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/AymanF10/ecosystem/backend/internal/ledger"
)

// The two accepted program variants.
var (
	TokenProgramID     = solana.TokenProgramID
	Token2022ProgramID = solana.Token2022ProgramID
)

var (
	ErrInvalidProgram    = errors.New("token: invalid token program")
	ErrMintNotFound      = errors.New("token: mint not found")
	ErrAccountNotFound   = errors.New("token: account not found")
	ErrAccountExists     = errors.New("token: account already exists with different mint or owner")
	ErrInvalidMint       = errors.New("token: account mint mismatch")
	ErrInvalidAuthority  = errors.New("token: authority mismatch")
	ErrDecimalsMismatch  = errors.New("token: decimals mismatch")
	ErrInsufficientFunds = errors.New("token: insufficient funds")
	ErrAmountOverflow    = errors.New("token: amount overflow")
	ErrHookUnavailable   = errors.New("token: transfer hook program not registered")
)

// Mint is the on-ledger state of one token mint.
type Mint struct {
	Program       solana.PublicKey
	Decimals      uint8
	Supply        uint64
	MintAuthority *solana.PublicKey `bin:"optional"`
	TransferHook  *solana.PublicKey `bin:"optional"`
}

// Account is the on-ledger state of one token account.
type Account struct {
	Program solana.PublicKey
	Mint    solana.PublicKey
	Owner   solana.PublicKey
	Amount  uint64
}

// Transfer describes one movement submitted to a transfer gate.
type Transfer struct {
	Mint        solana.PublicKey
	Source      solana.PublicKey
	Destination solana.PublicKey
	Authority   solana.PublicKey
	Amount      uint64
}

// Gate is the veto hook consulted for transfers of mints that carry a
// transfer-hook extension. A non-nil error aborts the transfer.
type Gate interface {
	Approve(v ledger.View, t Transfer) error
}

// Runtime executes token operations against a ledger view. Operations
// receive the caller's token program id and reject records created under the
// other variant.
type Runtime struct {
	gates map[solana.PublicKey]Gate
}

func NewRuntime() *Runtime {
	return &Runtime{gates: make(map[solana.PublicKey]Gate)}
}

// RegisterGate binds a transfer-hook program id to its gate implementation.
func (r *Runtime) RegisterGate(program solana.PublicKey, gate Gate) {
	r.gates[program] = gate
}

// ValidProgram reports whether program is one of the two token variants.
func ValidProgram(program solana.PublicKey) bool {
	return program.Equals(TokenProgramID) || program.Equals(Token2022ProgramID)
}

func (r *Runtime) CreateMint(v ledger.View, program, addr solana.PublicKey, decimals uint8, authority solana.PublicKey, hook *solana.PublicKey) error {
	if !ValidProgram(program) {
		return ErrInvalidProgram
	}
	if _, ok := v.Get(addr); ok {
		return fmt.Errorf("token: mint %s already exists", addr)
	}
	auth := authority
	return putMint(v, addr, Mint{
		Program:       program,
		Decimals:      decimals,
		MintAuthority: &auth,
		TransferHook:  hook,
	})
}

// CreateAccount initializes a token account. Re-creating an account that
// already exists with the same mint and owner is a no-op, so setup steps can
// be retried safely.
func (r *Runtime) CreateAccount(v ledger.View, program, addr, mint, owner solana.PublicKey) error {
	if !ValidProgram(program) {
		return ErrInvalidProgram
	}
	m, err := getMint(v, mint)
	if err != nil {
		return err
	}
	if !m.Program.Equals(program) {
		return ErrInvalidProgram
	}
	if existing, err := getAccount(v, addr); err == nil {
		if existing.Mint.Equals(mint) && existing.Owner.Equals(owner) {
			return nil
		}
		return ErrAccountExists
	}
	return putAccount(v, addr, Account{Program: program, Mint: mint, Owner: owner})
}

func (r *Runtime) MintTo(v ledger.View, program, mint, dest, authority solana.PublicKey, amount uint64) error {
	m, err := r.mintForProgram(v, program, mint)
	if err != nil {
		return err
	}
	if m.MintAuthority == nil || !m.MintAuthority.Equals(authority) {
		return ErrInvalidAuthority
	}
	acc, err := getAccount(v, dest)
	if err != nil {
		return err
	}
	if !acc.Mint.Equals(mint) {
		return ErrInvalidMint
	}
	newSupply, ok := checkedAdd(m.Supply, amount)
	if !ok {
		return ErrAmountOverflow
	}
	newAmount, ok := checkedAdd(acc.Amount, amount)
	if !ok {
		return ErrAmountOverflow
	}
	m.Supply = newSupply
	acc.Amount = newAmount
	if err := putMint(v, mint, m); err != nil {
		return err
	}
	return putAccount(v, dest, acc)
}

func (r *Runtime) Burn(v ledger.View, program, mint, from, authority solana.PublicKey, amount uint64) error {
	m, err := r.mintForProgram(v, program, mint)
	if err != nil {
		return err
	}
	acc, err := getAccount(v, from)
	if err != nil {
		return err
	}
	if !acc.Mint.Equals(mint) {
		return ErrInvalidMint
	}
	if !acc.Owner.Equals(authority) {
		return ErrInvalidAuthority
	}
	if acc.Amount < amount {
		return ErrInsufficientFunds
	}
	if m.Supply < amount {
		return ErrInsufficientFunds
	}
	acc.Amount -= amount
	m.Supply -= amount
	if err := putMint(v, mint, m); err != nil {
		return err
	}
	return putAccount(v, from, acc)
}

func (r *Runtime) TransferChecked(v ledger.View, program, mint, from, to, authority solana.PublicKey, amount uint64, decimals uint8) error {
	m, err := r.mintForProgram(v, program, mint)
	if err != nil {
		return err
	}
	if m.Decimals != decimals {
		return ErrDecimalsMismatch
	}
	src, err := getAccount(v, from)
	if err != nil {
		return err
	}
	dst, err := getAccount(v, to)
	if err != nil {
		return err
	}
	if !src.Mint.Equals(mint) || !dst.Mint.Equals(mint) {
		return ErrInvalidMint
	}
	if !src.Owner.Equals(authority) {
		return ErrInvalidAuthority
	}
	if src.Amount < amount {
		return ErrInsufficientFunds
	}
	if m.TransferHook != nil {
		gate, ok := r.gates[*m.TransferHook]
		if !ok {
			return ErrHookUnavailable
		}
		if err := gate.Approve(v, Transfer{
			Mint:        mint,
			Source:      from,
			Destination: to,
			Authority:   authority,
			Amount:      amount,
		}); err != nil {
			return err
		}
	}
	newDst, ok := checkedAdd(dst.Amount, amount)
	if !ok {
		return ErrAmountOverflow
	}
	src.Amount -= amount
	dst.Amount = newDst
	if err := putAccount(v, from, src); err != nil {
		return err
	}
	return putAccount(v, to, dst)
}

// SetAuthority replaces the mint authority. A nil next authority makes the
// supply immutable.
func (r *Runtime) SetAuthority(v ledger.View, program, mint, current solana.PublicKey, next *solana.PublicKey) error {
	m, err := r.mintForProgram(v, program, mint)
	if err != nil {
		return err
	}
	if m.MintAuthority == nil || !m.MintAuthority.Equals(current) {
		return ErrInvalidAuthority
	}
	if next != nil {
		nextCopy := *next
		m.MintAuthority = &nextCopy
	} else {
		m.MintAuthority = nil
	}
	return putMint(v, mint, m)
}

func (r *Runtime) GetMint(v ledger.View, addr solana.PublicKey) (Mint, error) {
	return getMint(v, addr)
}

func (r *Runtime) GetAccount(v ledger.View, addr solana.PublicKey) (Account, error) {
	return getAccount(v, addr)
}

// Balance returns the amount held by a token account, or zero when the
// account does not exist yet.
func (r *Runtime) Balance(v ledger.View, addr solana.PublicKey) uint64 {
	acc, err := getAccount(v, addr)
	if err != nil {
		return 0
	}
	return acc.Amount
}

func (r *Runtime) mintForProgram(v ledger.View, program, mint solana.PublicKey) (Mint, error) {
	if !ValidProgram(program) {
		return Mint{}, ErrInvalidProgram
	}
	m, err := getMint(v, mint)
	if err != nil {
		return Mint{}, err
	}
	if !m.Program.Equals(program) {
		return Mint{}, ErrInvalidProgram
	}
	return m, nil
}

func getMint(v ledger.View, addr solana.PublicKey) (Mint, error) {
	rec, ok := v.Get(addr)
	if !ok {
		return Mint{}, ErrMintNotFound
	}
	var m Mint
	if err := bin.UnmarshalBorsh(&m, rec.Data); err != nil {
		return Mint{}, fmt.Errorf("decode mint %s: %w", addr, err)
	}
	return m, nil
}

func putMint(v ledger.View, addr solana.PublicKey, m Mint) error {
	data, err := bin.MarshalBorsh(&m)
	if err != nil {
		return fmt.Errorf("encode mint %s: %w", addr, err)
	}
	v.Put(addr, ledger.Record{Owner: m.Program, Data: data})
	return nil
}

func getAccount(v ledger.View, addr solana.PublicKey) (Account, error) {
	rec, ok := v.Get(addr)
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	var acc Account
	if err := bin.UnmarshalBorsh(&acc, rec.Data); err != nil {
		return Account{}, fmt.Errorf("decode token account %s: %w", addr, err)
	}
	return acc, nil
}

func putAccount(v ledger.View, addr solana.PublicKey, acc Account) error {
	data, err := bin.MarshalBorsh(&acc)
	if err != nil {
		return fmt.Errorf("encode token account %s: %w", addr, err)
	}
	v.Put(addr, ledger.Record{Owner: acc.Program, Data: data})
	return nil
}

func checkedAdd(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}
