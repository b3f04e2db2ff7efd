package deployer

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/AymanF10/ecosystem/backend/internal/ledger"
)

// Config is the singleton registry record: owner, global freeze flag and the
// ordered approver set.
type Config struct {
	Owner        solana.PublicKey
	GlobalFreeze bool
	Approvers    []solana.PublicKey
}

// EcosystemConfig is the per-mint registry record.
type EcosystemConfig struct {
	EcosystemPartnerWallet solana.PublicKey
	MaxMintingCap          uint64
	WithdrawalFeeBps       uint16
	DepositFeeBps          uint16
	CollateralTokenMint    solana.PublicKey
	EcosystemFreeze        bool
	CollectedFees          uint64
	CollateralTokenProgram solana.PublicKey
	CollectedFeesSP        uint64
}

// MerchantBalance accumulates settlement-currency credit owed to a merchant.
type MerchantBalance struct {
	Merchant      solana.PublicKey
	Balance       uint64
	EcosystemMint solana.PublicKey
}

// WithdrawalRequest snapshots a merchant balance pending approval. The record
// is deleted on approval, so a stored request is always the single
// outstanding one.
type WithdrawalRequest struct {
	Merchant      solana.PublicKey
	EcosystemMint solana.PublicKey
	Amount        uint64
	Timestamp     int64
	IsApproved    bool
	ApprovedBy    *solana.PublicKey `bin:"optional"`
}

var (
	configDiscriminator            = accountDiscriminator("Config")
	ecosystemConfigDiscriminator   = accountDiscriminator("EcosystemConfig")
	merchantBalanceDiscriminator   = accountDiscriminator("MerchantBalance")
	withdrawalRequestDiscriminator = accountDiscriminator("WithdrawalRequest")
)

func accountDiscriminator(name string) [8]byte {
	hash := sha256.Sum256([]byte("account:" + name))
	var out [8]byte
	copy(out[:], hash[:8])
	return out
}

func encodeRecord(disc [8]byte, state interface{}) ([]byte, error) {
	body, err := bin.MarshalBorsh(state)
	if err != nil {
		return nil, err
	}
	return append(disc[:], body...), nil
}

func decodeRecord(disc [8]byte, data []byte, state interface{}) error {
	if len(data) < len(disc) || !bytes.Equal(data[:8], disc[:]) {
		return fmt.Errorf("account discriminator mismatch")
	}
	return bin.UnmarshalBorsh(state, data[8:])
}

func loadConfig(v ledger.View) (Config, error) {
	rec, ok := v.Get(mustPDA(DeriveConfigPDA()))
	if !ok {
		return Config{}, ErrNotInitialized
	}
	var cfg Config
	if err := decodeRecord(configDiscriminator, rec.Data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func storeConfig(v ledger.View, cfg Config) error {
	data, err := encodeRecord(configDiscriminator, &cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	v.Put(mustPDA(DeriveConfigPDA()), ledger.Record{Owner: ProgramID, Data: data})
	return nil
}

func loadEcosystem(v ledger.View, mint solana.PublicKey) (EcosystemConfig, error) {
	rec, ok := v.Get(mustPDA(DeriveEcosystemConfigPDA(mint)))
	if !ok {
		return EcosystemConfig{}, ErrEcosystemNotFound
	}
	var eco EcosystemConfig
	if err := decodeRecord(ecosystemConfigDiscriminator, rec.Data, &eco); err != nil {
		return EcosystemConfig{}, fmt.Errorf("decode ecosystem config: %w", err)
	}
	return eco, nil
}

func storeEcosystem(v ledger.View, mint solana.PublicKey, eco EcosystemConfig) error {
	data, err := encodeRecord(ecosystemConfigDiscriminator, &eco)
	if err != nil {
		return fmt.Errorf("encode ecosystem config: %w", err)
	}
	v.Put(mustPDA(DeriveEcosystemConfigPDA(mint)), ledger.Record{Owner: ProgramID, Data: data})
	return nil
}

func loadMerchantBalance(v ledger.View, merchant, mint solana.PublicKey) (MerchantBalance, bool, error) {
	rec, ok := v.Get(mustPDA(DeriveMerchantBalancePDA(merchant, mint)))
	if !ok {
		return MerchantBalance{}, false, nil
	}
	var mb MerchantBalance
	if err := decodeRecord(merchantBalanceDiscriminator, rec.Data, &mb); err != nil {
		return MerchantBalance{}, false, fmt.Errorf("decode merchant balance: %w", err)
	}
	return mb, true, nil
}

func storeMerchantBalance(v ledger.View, mb MerchantBalance) error {
	data, err := encodeRecord(merchantBalanceDiscriminator, &mb)
	if err != nil {
		return fmt.Errorf("encode merchant balance: %w", err)
	}
	v.Put(mustPDA(DeriveMerchantBalancePDA(mb.Merchant, mb.EcosystemMint)), ledger.Record{Owner: ProgramID, Data: data})
	return nil
}

func withdrawalRequestKey(merchant, mint solana.PublicKey) solana.PublicKey {
	ecoConfig := mustPDA(DeriveEcosystemConfigPDA(mint))
	return mustPDA(DeriveWithdrawalRequestPDA(merchant, ecoConfig))
}

func loadWithdrawalRequest(v ledger.View, merchant, mint solana.PublicKey) (WithdrawalRequest, bool, error) {
	rec, ok := v.Get(withdrawalRequestKey(merchant, mint))
	if !ok {
		return WithdrawalRequest{}, false, nil
	}
	var wr WithdrawalRequest
	if err := decodeRecord(withdrawalRequestDiscriminator, rec.Data, &wr); err != nil {
		return WithdrawalRequest{}, false, fmt.Errorf("decode withdrawal request: %w", err)
	}
	return wr, true, nil
}

func storeWithdrawalRequest(v ledger.View, wr WithdrawalRequest) error {
	data, err := encodeRecord(withdrawalRequestDiscriminator, &wr)
	if err != nil {
		return fmt.Errorf("encode withdrawal request: %w", err)
	}
	v.Put(withdrawalRequestKey(wr.Merchant, wr.EcosystemMint), ledger.Record{Owner: ProgramID, Data: data})
	return nil
}
