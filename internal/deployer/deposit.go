package deployer

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/AymanF10/ecosystem/backend/internal/aggregator"
	"github.com/AymanF10/ecosystem/backend/internal/ledger"
)

// DepositParams is the account set and arguments of a deposit instruction.
type DepositParams struct {
	// Payer is the depositing partner wallet; it must match the
	// ecosystem's partner of record.
	Payer solana.PublicKey
	// Mint is the ecosystem's custodial mint.
	Mint solana.PublicKey
	// DestinationTokenAccount receives the minted custodial tokens; it
	// must be a payer-owned account of Mint.
	DestinationTokenAccount solana.PublicKey
	// CollateralAccount is the payer-owned account the collateral is
	// drawn from.
	CollateralAccount solana.PublicKey

	Amount uint64

	// AggregatorProgram, SwapPayload and RemainingAccounts carry the
	// opaque fee-swap instruction. They are only consulted when the
	// deposit fee is non-zero.
	AggregatorProgram solana.PublicKey
	SwapPayload       []byte
	RemainingAccounts []aggregator.AccountMeta
}

// DepositEcosystem takes collateral from the partner wallet, swaps the
// deposit fee into the settlement currency through the aggregator (crediting
// the proceeds as points), banks the remainder in the collateral vault and
// mints the same amount of custodial tokens to the depositor.
func (e *Engine) DepositEcosystem(p DepositParams) error {
	return e.instruction("deposit_ecosystem", func(v ledger.View, emit func(Event)) error {
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
		if !eco.EcosystemPartnerWallet.Equals(p.Payer) {
			return ErrUnauthorized
		}

		dest, err := e.tokens.GetAccount(v, p.DestinationTokenAccount)
		if err != nil {
			return err
		}
		if !dest.Owner.Equals(p.Payer) {
			return ErrUnauthorized
		}
		if !dest.Mint.Equals(p.Mint) {
			return ErrInvalidToken
		}

		source, err := e.tokens.GetAccount(v, p.CollateralAccount)
		if err != nil {
			return err
		}
		if !source.Mint.Equals(eco.CollateralTokenMint) {
			return ErrInvalidCollateralToken
		}
		if !source.Owner.Equals(p.Payer) {
			return ErrUnauthorized
		}

		mint, err := e.tokens.GetMint(v, p.Mint)
		if err != nil {
			return err
		}
		postSupply, err := checkedAdd(mint.Supply, p.Amount)
		if err != nil {
			return err
		}
		if postSupply > eco.MaxMintingCap {
			return ErrExceedsMaximumCap
		}

		fee, err := feeFloor(p.Amount, eco.DepositFeeBps)
		if err != nil {
			return err
		}

		collateralMint, err := e.tokens.GetMint(v, eco.CollateralTokenMint)
		if err != nil {
			return err
		}

		if fee > 0 {
			inputVault, _, err := DeriveVaultTokenAccount(eco.CollateralTokenProgram, eco.CollateralTokenMint)
			if err != nil {
				return err
			}
			if err := e.tokens.TransferChecked(v, eco.CollateralTokenProgram, eco.CollateralTokenMint, p.CollateralAccount, inputVault, p.Payer, fee, collateralMint.Decimals); err != nil {
				return fmt.Errorf("move fee to swap input vault: %w", err)
			}

			received, err := e.invokeAggregator(v, p.AggregatorProgram, p.SwapPayload, p.RemainingAccounts)
			if err != nil {
				return err
			}
			if err := e.mintPoints(v, p.Mint, &eco, received); err != nil {
				return err
			}
		}

		remaining, err := checkedSub(p.Amount, fee)
		if err != nil {
			return err
		}
		collateralVault := mustPDA(DeriveCollateralVaultPDA(p.Mint))
		if err := e.tokens.TransferChecked(v, eco.CollateralTokenProgram, eco.CollateralTokenMint, p.CollateralAccount, collateralVault, p.Payer, remaining, collateralMint.Decimals); err != nil {
			return fmt.Errorf("bank collateral: %w", err)
		}

		mintAuthority := mustPDA(DeriveMintAuthorityPDA(p.Mint))
		if err := e.tokens.MintTo(v, solana.Token2022ProgramID, p.Mint, p.DestinationTokenAccount, mintAuthority, remaining); err != nil {
			return fmt.Errorf("mint custodial tokens: %w", err)
		}

		if err := storeEcosystem(v, p.Mint, eco); err != nil {
			return err
		}
		emit(EcosystemDeposited{
			EcosystemMint: p.Mint,
			Depositor:     p.Payer,
			Amount:        p.Amount,
			Fee:           fee,
			Timestamp:     e.unixNow(),
		})
		return nil
	})
}
