package deployer

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Record and authority addresses are program-derived from fixed seed labels,
// exactly as the runtime's address scheme would derive them.

// Addresses derives the program's address scheme for one deployment id.
// Off-chain callers that target a non-default deployment construct their own
// Addresses instead of touching ProgramID.
type Addresses struct {
	Program solana.PublicKey
}

func (a Addresses) Config() (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("config")}, a.Program)
}

func (a Addresses) EcosystemConfig(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("ecosystem_config"), mint.Bytes()}, a.Program)
}

func (a Addresses) MintAuthority(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("mint_authority"), mint.Bytes()}, a.Program)
}

func (a Addresses) FeeVaultAuthority(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("fee_vault_authority"), mint.Bytes()}, a.Program)
}

func (a Addresses) FeeVault(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("fee_vault"), mint.Bytes()}, a.Program)
}

func (a Addresses) CollateralVault(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("collateral_vault"), mint.Bytes()}, a.Program)
}

func (a Addresses) PointsVault(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("sp_vault"), mint.Bytes()}, a.Program)
}

func (a Addresses) PointsMintAuthority() (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("sp_mint_authority")}, a.Program)
}

// PointsMint is the program's own points-mint address, the default when no
// external points mint is configured.
func (a Addresses) PointsMint() (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("sp_mint")}, a.Program)
}

func (a Addresses) Vault() (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("vault")}, a.Program)
}

func (a Addresses) MerchantBalance(merchant, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("merchant_balance"), merchant.Bytes(), mint.Bytes()}, a.Program)
}

// WithdrawalRequest keys the request on the ecosystem config address, not
// the mint.
func (a Addresses) WithdrawalRequest(merchant, ecosystemConfig solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("withdrawal_request"), merchant.Bytes(), ecosystemConfig.Bytes()}, a.Program)
}

// VaultTokenAccount is the vault PDA's associated token account for a mint,
// the transient swap input/output custody account.
func (a Addresses) VaultTokenAccount(tokenProgram, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	vault, _, err := a.Vault()
	if err != nil {
		return solana.PublicKey{}, 0, err
	}
	return solana.FindProgramAddress(
		[][]byte{vault.Bytes(), tokenProgram.Bytes(), mint.Bytes()},
		solana.SPLAssociatedTokenAccountProgramID,
	)
}

func defaultAddresses() Addresses { return Addresses{Program: ProgramID} }

func DeriveConfigPDA() (solana.PublicKey, uint8, error) {
	return defaultAddresses().Config()
}

func DeriveEcosystemConfigPDA(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return defaultAddresses().EcosystemConfig(mint)
}

func DeriveMintAuthorityPDA(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return defaultAddresses().MintAuthority(mint)
}

func DeriveFeeVaultAuthorityPDA(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return defaultAddresses().FeeVaultAuthority(mint)
}

func DeriveFeeVaultPDA(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return defaultAddresses().FeeVault(mint)
}

func DeriveCollateralVaultPDA(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return defaultAddresses().CollateralVault(mint)
}

func DerivePointsVaultPDA(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return defaultAddresses().PointsVault(mint)
}

func DerivePointsMintAuthorityPDA() (solana.PublicKey, uint8, error) {
	return defaultAddresses().PointsMintAuthority()
}

func DeriveVaultPDA() (solana.PublicKey, uint8, error) {
	return defaultAddresses().Vault()
}

func DeriveMerchantBalancePDA(merchant, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return defaultAddresses().MerchantBalance(merchant, mint)
}

func DeriveWithdrawalRequestPDA(merchant, ecosystemConfig solana.PublicKey) (solana.PublicKey, uint8, error) {
	return defaultAddresses().WithdrawalRequest(merchant, ecosystemConfig)
}

func DeriveVaultTokenAccount(tokenProgram, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return defaultAddresses().VaultTokenAccount(tokenProgram, mint)
}

func mustPDA(pk solana.PublicKey, _ uint8, err error) solana.PublicKey {
	if err != nil {
		panic(fmt.Errorf("derive program address: %w", err))
	}
	return pk
}
