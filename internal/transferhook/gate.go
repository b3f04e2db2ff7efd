// Package transferhook implements the whitelist/freeze transfer gate that
// can veto transfers of hooked mints: a transfer is allowed only while
// transfers are not frozen and the destination owner is whitelisted.
package transferhook

import (
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/AymanF10/ecosystem/backend/internal/ledger"
	"github.com/AymanF10/ecosystem/backend/internal/token"
)

var ProgramID = solana.MustPublicKeyFromBase58("9YGF4qqsGHg7h7FbxuPq8odvicBcAEJumSxFsCbXyAmt")

var (
	ErrUnauthorized            = errors.New("transferhook: unauthorized")
	ErrNotInitialized          = errors.New("transferhook: gate not initialized")
	ErrTransferFrozen          = errors.New("transferhook: transfers are frozen")
	ErrRecipientNotWhitelisted = errors.New("transferhook: recipient not whitelisted")
)

const (
	configSeed    = "config"
	whitelistSeed = "whitelist"
)

// Config is the gate's global state.
type Config struct {
	WhitelistAuthority solana.PublicKey
	FreezeAuthority    solana.PublicKey
	FreezeTransfer     bool
}

// WhitelistStatus is the per-wallet whitelist record.
type WhitelistStatus struct {
	Wallet   solana.PublicKey
	IsActive bool
}

// Gate enforces the whitelist/freeze policy. It resolves the destination
// owner through the token runtime before consulting the whitelist.
type Gate struct {
	tokens *token.Runtime
}

func NewGate(tokens *token.Runtime) *Gate {
	return &Gate{tokens: tokens}
}

func ConfigAddress() solana.PublicKey {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(configSeed)}, ProgramID)
	if err != nil {
		panic(fmt.Errorf("derive transfer hook config address: %w", err))
	}
	return addr
}

func WhitelistAddress(wallet solana.PublicKey) solana.PublicKey {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(whitelistSeed), wallet.Bytes()}, ProgramID)
	if err != nil {
		panic(fmt.Errorf("derive whitelist address for %s: %w", wallet, err))
	}
	return addr
}

// Initialize creates the gate config with the signer as both authorities.
func (g *Gate) Initialize(v ledger.View, signer solana.PublicKey) error {
	return putConfig(v, Config{
		WhitelistAuthority: signer,
		FreezeAuthority:    signer,
	})
}

func (g *Gate) AddToWhitelist(v ledger.View, signer, wallet solana.PublicKey) error {
	cfg, err := getConfig(v)
	if err != nil {
		return err
	}
	if !cfg.WhitelistAuthority.Equals(signer) {
		return ErrUnauthorized
	}
	return putWhitelist(v, WhitelistStatus{Wallet: wallet, IsActive: true})
}

func (g *Gate) RemoveFromWhitelist(v ledger.View, signer, wallet solana.PublicKey) error {
	cfg, err := getConfig(v)
	if err != nil {
		return err
	}
	if !cfg.WhitelistAuthority.Equals(signer) {
		return ErrUnauthorized
	}
	return putWhitelist(v, WhitelistStatus{Wallet: wallet, IsActive: false})
}

// ToggleFreeze flips the freeze flag and returns the new state.
func (g *Gate) ToggleFreeze(v ledger.View, signer solana.PublicKey) (bool, error) {
	cfg, err := getConfig(v)
	if err != nil {
		return false, err
	}
	if !cfg.FreezeAuthority.Equals(signer) {
		return false, ErrUnauthorized
	}
	cfg.FreezeTransfer = !cfg.FreezeTransfer
	if err := putConfig(v, cfg); err != nil {
		return false, err
	}
	return cfg.FreezeTransfer, nil
}

// Approve implements token.Gate.
func (g *Gate) Approve(v ledger.View, t token.Transfer) error {
	cfg, err := getConfig(v)
	if err != nil {
		return err
	}
	if cfg.FreezeTransfer {
		return ErrTransferFrozen
	}
	dest, err := g.tokens.GetAccount(v, t.Destination)
	if err != nil {
		return err
	}
	rec, ok := v.Get(WhitelistAddress(dest.Owner))
	if !ok {
		return ErrRecipientNotWhitelisted
	}
	var status WhitelistStatus
	if err := bin.UnmarshalBorsh(&status, rec.Data); err != nil {
		return fmt.Errorf("decode whitelist status: %w", err)
	}
	if !status.IsActive {
		return ErrRecipientNotWhitelisted
	}
	return nil
}

func getConfig(v ledger.View) (Config, error) {
	rec, ok := v.Get(ConfigAddress())
	if !ok {
		return Config{}, ErrNotInitialized
	}
	var cfg Config
	if err := bin.UnmarshalBorsh(&cfg, rec.Data); err != nil {
		return Config{}, fmt.Errorf("decode transfer hook config: %w", err)
	}
	return cfg, nil
}

func putConfig(v ledger.View, cfg Config) error {
	data, err := bin.MarshalBorsh(&cfg)
	if err != nil {
		return fmt.Errorf("encode transfer hook config: %w", err)
	}
	v.Put(ConfigAddress(), ledger.Record{Owner: ProgramID, Data: data})
	return nil
}

func putWhitelist(v ledger.View, status WhitelistStatus) error {
	data, err := bin.MarshalBorsh(&status)
	if err != nil {
		return fmt.Errorf("encode whitelist status: %w", err)
	}
	v.Put(WhitelistAddress(status.Wallet), ledger.Record{Owner: ProgramID, Data: data})
	return nil
}
