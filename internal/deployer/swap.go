package deployer

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/AymanF10/ecosystem/backend/internal/aggregator"
	"github.com/AymanF10/ecosystem/backend/internal/ledger"
)

// SwapParams is the account set and arguments of a settlement swap
// (purchase) instruction.
type SwapParams struct {
	// Payer is the purchasing user; UserTokenAccount is their custodial
	// token account the purchase amount is burned from.
	Payer            solana.PublicKey
	Mint             solana.PublicKey
	UserTokenAccount solana.PublicKey
	// Merchant is credited with the observed swap proceeds.
	Merchant solana.PublicKey

	Amount            uint64
	PurchaseReference string

	// InputMint must be the ecosystem's collateral mint; OutputMint must
	// be the settlement currency.
	InputMint  solana.PublicKey
	OutputMint solana.PublicKey

	AggregatorProgram solana.PublicKey
	SwapPayload       []byte
	RemainingAccounts []aggregator.AccountMeta
}

// Swap settles a purchase: collateral moves from the ecosystem vault into
// the swap input vault, the user's custodial tokens burn, the aggregator
// converts the collateral to settlement currency, and the merchant's balance
// is credited with the observed proceeds. The credited amount comes from the
// output vault's balance diff alone, never from the opaque payload.
func (e *Engine) Swap(p SwapParams) error {
	return e.instruction("swap", func(v ledger.View, emit func(Event)) error {
		if p.Amount == 0 {
			return ErrInvalidAmount
		}
		cfg, err := loadConfig(v)
		if err != nil {
			return err
		}
		eco, err := loadEcosystem(v, p.Mint)
		if err != nil {
			return err
		}
		if cfg.GlobalFreeze || eco.EcosystemFreeze {
			return ErrFreezeStateActive
		}

		userAccount, err := e.tokens.GetAccount(v, p.UserTokenAccount)
		if err != nil {
			return err
		}
		if !userAccount.Owner.Equals(p.Payer) {
			return ErrUnauthorized
		}
		if !userAccount.Mint.Equals(p.Mint) {
			return ErrInvalidToken
		}

		if len(p.PurchaseReference) > maxPurchaseReferenceLen {
			return ErrInvalidPurchaseReference
		}
		if !p.AggregatorProgram.Equals(e.routerID) {
			return ErrInvalidProgramID
		}
		if !p.InputMint.Equals(eco.CollateralTokenMint) {
			return ErrInvalidCollateralToken
		}
		if !p.OutputMint.Equals(e.settlementMint) {
			return ErrInvalidOutputMint
		}

		collateralMint, err := e.tokens.GetMint(v, eco.CollateralTokenMint)
		if err != nil {
			return err
		}
		collateralVault := mustPDA(DeriveCollateralVaultPDA(p.Mint))
		feeAuthority := mustPDA(DeriveFeeVaultAuthorityPDA(p.Mint))
		inputVault, _, err := DeriveVaultTokenAccount(eco.CollateralTokenProgram, eco.CollateralTokenMint)
		if err != nil {
			return err
		}
		if err := e.tokens.TransferChecked(v, eco.CollateralTokenProgram, eco.CollateralTokenMint, collateralVault, inputVault, feeAuthority, p.Amount, collateralMint.Decimals); err != nil {
			return fmt.Errorf("stage collateral for swap: %w", err)
		}

		if err := e.tokens.Burn(v, solana.Token2022ProgramID, p.Mint, p.UserTokenAccount, p.Payer, p.Amount); err != nil {
			return fmt.Errorf("burn custodial tokens: %w", err)
		}

		received, err := e.invokeAggregator(v, p.AggregatorProgram, p.SwapPayload, p.RemainingAccounts)
		if err != nil {
			return err
		}

		mb, ok, err := loadMerchantBalance(v, p.Merchant, p.Mint)
		if err != nil {
			return err
		}
		if !ok {
			mb = MerchantBalance{Merchant: p.Merchant, EcosystemMint: p.Mint}
		}
		mb.Balance, err = checkedAdd(mb.Balance, received)
		if err != nil {
			return err
		}
		if err := storeMerchantBalance(v, mb); err != nil {
			return err
		}

		emit(PurchaseProcessed{
			EcosystemMint:     p.Mint,
			User:              p.Payer,
			Merchant:          p.Merchant,
			Amount:            p.Amount,
			Credited:          received,
			PurchaseReference: p.PurchaseReference,
			Timestamp:         e.unixNow(),
		})
		return nil
	})
}
