package deployer

import (
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/AymanF10/ecosystem/backend/internal/aggregator"
	"github.com/AymanF10/ecosystem/backend/internal/ledger"
	"github.com/AymanF10/ecosystem/backend/internal/token"
)

// EngineConfig wires the engine to its substrate and capability providers.
type EngineConfig struct {
	Store  ledger.Store
	Tokens *token.Runtime

	// Aggregator executes the opaque swap payload; AggregatorProgram is
	// the only program id accepted on swap-carrying instructions.
	Aggregator        aggregator.Invoker
	AggregatorProgram solana.PublicKey

	// SettlementMint is the fixed settlement currency; defaults to USDC.
	// SettlementProgram is its token program; defaults to the legacy
	// variant.
	SettlementMint    solana.PublicKey
	SettlementProgram solana.PublicKey

	// PointsMint is the points token minted from fee proceeds; its mint
	// authority must be the engine's points mint authority PDA.
	PointsMint    solana.PublicKey
	PointsProgram solana.PublicKey

	Events Sink
	Now    func() time.Time
	Logger *slog.Logger
}

// Engine executes registry and settlement instructions atomically against
// the ledger. One exported method == one instruction == one Update.
type Engine struct {
	store  ledger.Store
	tokens *token.Runtime

	router   aggregator.Invoker
	routerID solana.PublicKey

	settlementMint    solana.PublicKey
	settlementProgram solana.PublicKey
	pointsMint        solana.PublicKey
	pointsProgram     solana.PublicKey

	sink Sink
	now  func() time.Time
	log  *slog.Logger
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("deployer: nil store")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("deployer: nil token runtime")
	}
	if cfg.Aggregator == nil {
		return nil, fmt.Errorf("deployer: nil aggregator")
	}
	if cfg.PointsMint.IsZero() {
		return nil, fmt.Errorf("deployer: points mint not configured")
	}

	e := &Engine{
		store:             cfg.Store,
		tokens:            cfg.Tokens,
		router:            cfg.Aggregator,
		routerID:          cfg.AggregatorProgram,
		settlementMint:    cfg.SettlementMint,
		settlementProgram: cfg.SettlementProgram,
		pointsMint:        cfg.PointsMint,
		pointsProgram:     cfg.PointsProgram,
		sink:              cfg.Events,
		now:               cfg.Now,
		log:               cfg.Logger,
	}
	if e.routerID.IsZero() {
		e.routerID = aggregator.ProgramID
	}
	if e.settlementMint.IsZero() {
		e.settlementMint = SettlementMint
	}
	if e.settlementProgram.IsZero() {
		e.settlementProgram = solana.TokenProgramID
	}
	if e.pointsProgram.IsZero() {
		e.pointsProgram = solana.Token2022ProgramID
	}
	if e.sink == nil {
		e.sink = SinkFunc(func(Event) {})
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	return e, nil
}

// instruction runs fn as one atomic ledger update and publishes the events
// it emitted only after the update commits.
func (e *Engine) instruction(name string, fn func(v ledger.View, emit func(Event)) error) error {
	var emitted []Event
	err := e.store.Update(func(v ledger.View) error {
		emitted = emitted[:0]
		return fn(v, func(ev Event) { emitted = append(emitted, ev) })
	})
	if err != nil {
		e.log.Debug("instruction rejected", slog.String("instruction", name), slog.Any("error", err))
		return err
	}
	for _, ev := range emitted {
		e.sink.Publish(ev)
	}
	e.log.Info("instruction committed", slog.String("instruction", name))
	return nil
}

func (e *Engine) unixNow() int64 {
	return e.now().Unix()
}

// feeFloor computes floor(amount*bps/10000).
func feeFloor(amount uint64, bps uint16) (uint64, error) {
	return mulDivFloor(amount, uint64(bps), bpsDenom)
}

func mulDivFloor(a, b, denominator uint64) (uint64, error) {
	if denominator == 0 {
		return 0, fmt.Errorf("division by zero")
	}
	left := new(big.Int).SetUint64(a)
	left.Mul(left, new(big.Int).SetUint64(b))
	left.Div(left, new(big.Int).SetUint64(denominator))
	if !left.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return left.Uint64(), nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrArithmeticOverflow
	}
	return sum, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrArithmeticOverflow
	}
	return a - b, nil
}

func checkedMul(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	prod := a * b
	if prod/a != b {
		return 0, ErrArithmeticOverflow
	}
	return prod, nil
}

// pointsFromSettlement converts a settlement-currency fee into points.
func pointsFromSettlement(amount uint64) (uint64, error) {
	return checkedMul(amount, PointsPerSettlementUnit)
}

// mintPoints mints fee-derived points into the ecosystem's points vault and
// accumulates the running total on the config.
func (e *Engine) mintPoints(v ledger.View, mint solana.PublicKey, eco *EcosystemConfig, settlementFee uint64) error {
	points, err := pointsFromSettlement(settlementFee)
	if err != nil {
		return err
	}
	pointsVault := mustPDA(DerivePointsVaultPDA(mint))
	pointsAuthority := mustPDA(DerivePointsMintAuthorityPDA())
	if err := e.tokens.MintTo(v, e.pointsProgram, e.pointsMint, pointsVault, pointsAuthority, points); err != nil {
		return fmt.Errorf("mint points: %w", err)
	}
	eco.CollectedFeesSP, err = checkedAdd(eco.CollectedFeesSP, points)
	return err
}

// invokeAggregator forwards the opaque payload to the aggregator with the
// caller-supplied account list, marking only the engine's vault PDA as
// signer, and returns the observed settlement proceeds: the output vault's
// balance diff around the invocation. The payload's claimed amounts are
// never trusted.
func (e *Engine) invokeAggregator(v ledger.View, program solana.PublicKey, payload []byte, remaining []aggregator.AccountMeta) (uint64, error) {
	if !program.Equals(e.routerID) {
		return 0, ErrInvalidProgramID
	}
	vault := mustPDA(DeriveVaultPDA())
	outputVault, _, err := DeriveVaultTokenAccount(e.settlementProgram, e.settlementMint)
	if err != nil {
		return 0, err
	}

	accounts := make([]aggregator.AccountMeta, len(remaining))
	for i, acc := range remaining {
		accounts[i] = aggregator.AccountMeta{
			PublicKey:  acc.PublicKey,
			IsWritable: acc.IsWritable,
			IsSigner:   acc.PublicKey.Equals(vault),
		}
	}

	before := e.tokens.Balance(v, outputVault)
	ix := aggregator.Instruction{ProgramID: program, Accounts: accounts, Data: payload}
	if err := e.router.Invoke(v, ix, vault); err != nil {
		return 0, fmt.Errorf("aggregator invocation: %w", err)
	}
	after := e.tokens.Balance(v, outputVault)
	return checkedSub(after, before)
}

// Reads used by the API surface. They never mutate state.

func (e *Engine) Config() (Config, error) {
	var cfg Config
	err := e.store.View(func(v ledger.View) error {
		var err error
		cfg, err = loadConfig(v)
		return err
	})
	return cfg, err
}

func (e *Engine) Ecosystem(mint solana.PublicKey) (EcosystemConfig, error) {
	var eco EcosystemConfig
	err := e.store.View(func(v ledger.View) error {
		var err error
		eco, err = loadEcosystem(v, mint)
		return err
	})
	return eco, err
}

func (e *Engine) MerchantBalanceOf(merchant, mint solana.PublicKey) (MerchantBalance, error) {
	var mb MerchantBalance
	err := e.store.View(func(v ledger.View) error {
		loaded, ok, err := loadMerchantBalance(v, merchant, mint)
		if err != nil {
			return err
		}
		if !ok {
			loaded = MerchantBalance{Merchant: merchant, EcosystemMint: mint}
		}
		mb = loaded
		return nil
	})
	return mb, err
}

func (e *Engine) WithdrawalRequestOf(merchant, mint solana.PublicKey) (WithdrawalRequest, bool, error) {
	var (
		wr    WithdrawalRequest
		found bool
	)
	err := e.store.View(func(v ledger.View) error {
		loaded, ok, err := loadWithdrawalRequest(v, merchant, mint)
		if err != nil {
			return err
		}
		wr, found = loaded, ok
		return nil
	})
	return wr, found, err
}

// EcosystemSupply reports the custodial mint's current supply.
func (e *Engine) EcosystemSupply(mint solana.PublicKey) (uint64, error) {
	var supply uint64
	err := e.store.View(func(v ledger.View) error {
		m, err := e.tokens.GetMint(v, mint)
		if err != nil {
			return err
		}
		supply = m.Supply
		return nil
	})
	return supply, err
}
