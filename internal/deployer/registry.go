package deployer

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/AymanF10/ecosystem/backend/internal/ledger"
	"github.com/AymanF10/ecosystem/backend/internal/token"
)

// Initialize creates the registry config once, with the payer as owner.
func (e *Engine) Initialize(payer solana.PublicKey) error {
	return e.instruction("initialize", func(v ledger.View, emit func(Event)) error {
		if _, ok := v.Get(mustPDA(DeriveConfigPDA())); ok {
			return ErrAlreadyInitialized
		}
		if err := storeConfig(v, Config{Owner: payer}); err != nil {
			return err
		}
		emit(ProgramInitialized{Owner: payer, Timestamp: e.unixNow()})
		return nil
	})
}

func (e *Engine) AddApprover(payer, approver solana.PublicKey) error {
	return e.instruction("add_approver", func(v ledger.View, emit func(Event)) error {
		cfg, err := loadConfig(v)
		if err != nil {
			return err
		}
		if !cfg.Owner.Equals(payer) {
			return ErrUnauthorized
		}
		if containsKey(cfg.Approvers, approver) {
			return ErrApproverAlreadyExists
		}
		cfg.Approvers = append(cfg.Approvers, approver)
		if err := storeConfig(v, cfg); err != nil {
			return err
		}
		emit(ApproverAdded{Approver: approver, AddedBy: payer, Timestamp: e.unixNow()})
		return nil
	})
}

func (e *Engine) RemoveApprover(payer, approver solana.PublicKey) error {
	return e.instruction("remove_approver", func(v ledger.View, emit func(Event)) error {
		cfg, err := loadConfig(v)
		if err != nil {
			return err
		}
		if !cfg.Owner.Equals(payer) {
			return ErrUnauthorized
		}
		idx := -1
		for i, a := range cfg.Approvers {
			if a.Equals(approver) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrApproverNotFound
		}
		cfg.Approvers = append(cfg.Approvers[:idx], cfg.Approvers[idx+1:]...)
		if err := storeConfig(v, cfg); err != nil {
			return err
		}
		emit(ApproverRemoved{Approver: approver, RemovedBy: payer, Timestamp: e.unixNow()})
		return nil
	})
}

// Approvers returns the current approver set.
func (e *Engine) Approvers() ([]solana.PublicKey, error) {
	cfg, err := e.Config()
	if err != nil {
		return nil, err
	}
	return cfg.Approvers, nil
}

// CreateEcosystemArgs carries the ecosystem creation parameters. Name,
// Symbol and URI describe the custodial mint's metadata and are not
// persisted by the registry.
type CreateEcosystemArgs struct {
	Mint                   solana.PublicKey
	Decimals               uint8
	Name                   string
	Symbol                 string
	URI                    string
	TransferHookProgramID  solana.PublicKey
	EcosystemPartnerWallet solana.PublicKey
	MaxMintingCap          uint64
	WithdrawalFeeBps       uint16
	DepositFeeBps          uint16
	CollateralTokenMint    solana.PublicKey
	CollateralTokenProgram solana.PublicKey
}

// CreateEcosystem registers a new custodial mint: creates the mint with its
// transfer hook, hands mint authority to the program's derived authority and
// initializes the collateral, fee and points vaults.
func (e *Engine) CreateEcosystem(payer solana.PublicKey, args CreateEcosystemArgs) error {
	return e.instruction("create_ecosystem", func(v ledger.View, emit func(Event)) error {
		cfg, err := loadConfig(v)
		if err != nil {
			return err
		}
		if !cfg.Owner.Equals(payer) {
			return ErrUnauthorized
		}
		if args.DepositFeeBps > uint16(bpsDenom) || args.WithdrawalFeeBps > uint16(bpsDenom) {
			return ErrInvalidFeePercentage
		}
		if !token.ValidProgram(args.CollateralTokenProgram) {
			return ErrInvalidProgramID
		}
		if _, ok := v.Get(mustPDA(DeriveEcosystemConfigPDA(args.Mint))); ok {
			return ErrEcosystemExists
		}
		if _, err := e.tokens.GetMint(v, args.CollateralTokenMint); err != nil {
			return fmt.Errorf("collateral mint: %w", err)
		}

		var hook *solana.PublicKey
		if !args.TransferHookProgramID.IsZero() {
			hookID := args.TransferHookProgramID
			hook = &hookID
		}
		if err := e.tokens.CreateMint(v, solana.Token2022ProgramID, args.Mint, args.Decimals, payer, hook); err != nil {
			return fmt.Errorf("create ecosystem mint: %w", err)
		}
		mintAuthority := mustPDA(DeriveMintAuthorityPDA(args.Mint))
		if err := e.tokens.SetAuthority(v, solana.Token2022ProgramID, args.Mint, payer, &mintAuthority); err != nil {
			return fmt.Errorf("hand off mint authority: %w", err)
		}

		feeAuthority := mustPDA(DeriveFeeVaultAuthorityPDA(args.Mint))
		vaults := []struct {
			addr    solana.PublicKey
			program solana.PublicKey
			mint    solana.PublicKey
		}{
			{mustPDA(DeriveFeeVaultPDA(args.Mint)), args.CollateralTokenProgram, args.CollateralTokenMint},
			{mustPDA(DeriveCollateralVaultPDA(args.Mint)), args.CollateralTokenProgram, args.CollateralTokenMint},
			{mustPDA(DerivePointsVaultPDA(args.Mint)), e.pointsProgram, e.pointsMint},
		}
		for _, vault := range vaults {
			if err := e.tokens.CreateAccount(v, vault.program, vault.addr, vault.mint, feeAuthority); err != nil {
				return fmt.Errorf("create vault %s: %w", vault.addr, err)
			}
		}

		// Transient swap custody accounts, created idempotently so an
		// off-chain retry of setup is benign.
		vaultPDA := mustPDA(DeriveVaultPDA())
		inputVault, _, err := DeriveVaultTokenAccount(args.CollateralTokenProgram, args.CollateralTokenMint)
		if err != nil {
			return err
		}
		if err := e.tokens.CreateAccount(v, args.CollateralTokenProgram, inputVault, args.CollateralTokenMint, vaultPDA); err != nil {
			return fmt.Errorf("create swap input vault: %w", err)
		}
		outputVault, _, err := DeriveVaultTokenAccount(e.settlementProgram, e.settlementMint)
		if err != nil {
			return err
		}
		if err := e.tokens.CreateAccount(v, e.settlementProgram, outputVault, e.settlementMint, vaultPDA); err != nil {
			return fmt.Errorf("create swap output vault: %w", err)
		}

		eco := EcosystemConfig{
			EcosystemPartnerWallet: args.EcosystemPartnerWallet,
			MaxMintingCap:          args.MaxMintingCap,
			WithdrawalFeeBps:       args.WithdrawalFeeBps,
			DepositFeeBps:          args.DepositFeeBps,
			CollateralTokenMint:    args.CollateralTokenMint,
			CollateralTokenProgram: args.CollateralTokenProgram,
		}
		if err := storeEcosystem(v, args.Mint, eco); err != nil {
			return err
		}

		emit(EcosystemCreated{
			Mint:             args.Mint,
			EcosystemPartner: args.EcosystemPartnerWallet,
			CollateralMint:   args.CollateralTokenMint,
			MaxMintingCap:    args.MaxMintingCap,
			DepositFeeBps:    args.DepositFeeBps,
			WithdrawalFeeBps: args.WithdrawalFeeBps,
			Timestamp:        e.unixNow(),
		})
		return nil
	})
}

// CollectFees pays the accumulated points-token fees out of the points vault
// to an owner-held account and resets the running total.
func (e *Engine) CollectFees(payer, mint, destination solana.PublicKey) error {
	return e.instruction("collect_fees", func(v ledger.View, emit func(Event)) error {
		cfg, err := loadConfig(v)
		if err != nil {
			return err
		}
		if !cfg.Owner.Equals(payer) {
			return ErrUnauthorized
		}
		eco, err := loadEcosystem(v, mint)
		if err != nil {
			return err
		}
		if eco.CollectedFeesSP == 0 {
			return ErrNoFeesToCollect
		}

		dest, err := e.tokens.GetAccount(v, destination)
		if err != nil {
			return err
		}
		if !dest.Mint.Equals(e.pointsMint) {
			return ErrInvalidToken
		}
		if !dest.Owner.Equals(payer) {
			return ErrUnauthorized
		}

		pointsMint, err := e.tokens.GetMint(v, e.pointsMint)
		if err != nil {
			return err
		}
		pointsVault := mustPDA(DerivePointsVaultPDA(mint))
		feeAuthority := mustPDA(DeriveFeeVaultAuthorityPDA(mint))
		amount := eco.CollectedFeesSP
		if err := e.tokens.TransferChecked(v, e.pointsProgram, e.pointsMint, pointsVault, destination, feeAuthority, amount, pointsMint.Decimals); err != nil {
			return fmt.Errorf("pay out points fees: %w", err)
		}

		eco.CollectedFeesSP = 0
		if err := storeEcosystem(v, mint, eco); err != nil {
			return err
		}
		emit(FeesCollected{EcosystemMint: mint, Collector: payer, AmountSP: amount, Timestamp: e.unixNow()})
		return nil
	})
}

// ToggleGlobalFreeze flips the registry-wide freeze flag and returns the new
// state.
func (e *Engine) ToggleGlobalFreeze(payer solana.PublicKey) (bool, error) {
	var state bool
	err := e.instruction("toggle_global_freeze", func(v ledger.View, emit func(Event)) error {
		cfg, err := loadConfig(v)
		if err != nil {
			return err
		}
		if !cfg.Owner.Equals(payer) {
			return ErrUnauthorized
		}
		cfg.GlobalFreeze = !cfg.GlobalFreeze
		if err := storeConfig(v, cfg); err != nil {
			return err
		}
		state = cfg.GlobalFreeze
		emit(GlobalFreezeToggled{NewState: cfg.GlobalFreeze, ToggledBy: payer, Timestamp: e.unixNow()})
		return nil
	})
	return state, err
}

// ToggleEcosystemFreeze flips one ecosystem's freeze flag and returns the
// new state.
func (e *Engine) ToggleEcosystemFreeze(payer, mint solana.PublicKey) (bool, error) {
	var state bool
	err := e.instruction("toggle_ecosystem_freeze", func(v ledger.View, emit func(Event)) error {
		cfg, err := loadConfig(v)
		if err != nil {
			return err
		}
		if !cfg.Owner.Equals(payer) {
			return ErrUnauthorized
		}
		eco, err := loadEcosystem(v, mint)
		if err != nil {
			return err
		}
		eco.EcosystemFreeze = !eco.EcosystemFreeze
		if err := storeEcosystem(v, mint, eco); err != nil {
			return err
		}
		state = eco.EcosystemFreeze
		emit(EcosystemFreezeToggled{EcosystemMint: mint, NewState: eco.EcosystemFreeze, ToggledBy: payer, Timestamp: e.unixNow()})
		return nil
	})
	return state, err
}

// UpdateMaxCap raises or lowers an ecosystem's minting cap; the new cap may
// never undercut the custodial supply already in circulation.
func (e *Engine) UpdateMaxCap(payer, mint solana.PublicKey, newCap uint64) error {
	return e.instruction("update_max_cap", func(v ledger.View, emit func(Event)) error {
		cfg, err := loadConfig(v)
		if err != nil {
			return err
		}
		if !cfg.Owner.Equals(payer) {
			return ErrUnauthorized
		}
		eco, err := loadEcosystem(v, mint)
		if err != nil {
			return err
		}
		m, err := e.tokens.GetMint(v, mint)
		if err != nil {
			return err
		}
		if newCap < m.Supply {
			return ErrInvalidMaxCap
		}
		oldCap := eco.MaxMintingCap
		eco.MaxMintingCap = newCap
		if err := storeEcosystem(v, mint, eco); err != nil {
			return err
		}
		emit(MaxCapUpdated{EcosystemMint: mint, OldCap: oldCap, NewCap: newCap, UpdatedBy: payer, Timestamp: e.unixNow()})
		return nil
	})
}

func containsKey(keys []solana.PublicKey, key solana.PublicKey) bool {
	for _, k := range keys {
		if k.Equals(key) {
			return true
		}
	}
	return false
}
