// Package driver is the off-chain swap driver: it quotes a route through the
// aggregator, wraps the returned route instruction into the settlement
// program's swap instruction with the vault authority as the CPI signer, and
// submits the transaction with bounded retries.
package driver

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/AymanF10/ecosystem/backend/internal/config"
	"github.com/AymanF10/ecosystem/backend/internal/deployer"
	"github.com/AymanF10/ecosystem/backend/internal/jupiter"
)

var swapDiscriminator = anchorInstructionDiscriminator("swap")

type Service struct {
	cfg    config.DriverConfig
	addrs  deployer.Addresses
	rpc    *rpc.Client
	jup    *jupiter.Client
	signer solana.PrivateKey
	logger *slog.Logger
}

func New(cfg config.DriverConfig, logger *slog.Logger) (*Service, error) {
	signer, err := LoadKeypair(cfg.KeypairValue, cfg.KeypairPath)
	if err != nil {
		return nil, err
	}

	program := cfg.ProgramID
	if program.IsZero() {
		program = deployer.ProgramID
	}

	return &Service{
		cfg:    cfg,
		addrs:  deployer.Addresses{Program: program},
		rpc:    rpc.New(cfg.RPCURL),
		jup:    jupiter.NewClient(cfg.JupiterBaseURL, 15*time.Second),
		signer: signer,
		logger: logger,
	}, nil
}

// LoadKeypair accepts the wallet secret in either of two encodings: a base58
// blob or a JSON byte array (the solana-keygen file format), with a keygen
// file path as fallback when no inline value is set.
func LoadKeypair(value, path string) (solana.PrivateKey, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		signer, err := solana.PrivateKeyFromSolanaKeygenFile(path)
		if err != nil {
			return nil, fmt.Errorf("load keypair %q: %w", path, err)
		}
		return signer, nil
	}

	if strings.HasPrefix(value, "[") {
		var raw []byte
		if err := json.Unmarshal([]byte(value), &raw); err != nil {
			return nil, fmt.Errorf("parse keypair JSON array: %w", err)
		}
		signer := solana.PrivateKey(raw)
		if len(signer) != 64 {
			return nil, fmt.Errorf("keypair JSON array has %d bytes, want 64", len(signer))
		}
		return signer, nil
	}

	signer, err := solana.PrivateKeyFromBase58(value)
	if err != nil {
		return nil, fmt.Errorf("parse base58 keypair: %w", err)
	}
	if len(signer) != 64 {
		return nil, fmt.Errorf("base58 keypair has %d bytes, want 64", len(signer))
	}
	return signer, nil
}

func (s *Service) Run(ctx context.Context) error {
	merchant := s.cfg.Merchant
	if merchant.IsZero() {
		merchant = s.signer.PublicKey()
	}

	s.logger.Info("swap-driver started",
		"rpc", s.cfg.RPCURL,
		"commitment", s.cfg.Commitment,
		"wallet", s.signer.PublicKey(),
		"program", s.addrs.Program,
		"ecosystem_mint", s.cfg.EcosystemMint,
		"merchant", merchant,
	)

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.RetryDelay):
			}
		}

		sig, err := s.executeSwap(ctx, merchant)
		if err == nil {
			s.logger.Info("swap confirmed", "signature", sig, "attempt", attempt)
			return nil
		}
		lastErr = err
		s.logger.Error("swap attempt failed", "attempt", attempt, "max_attempts", s.cfg.MaxAttempts, "err", err)
	}
	return fmt.Errorf("swap failed after %d attempts: %w", s.cfg.MaxAttempts, lastErr)
}

func (s *Service) executeSwap(ctx context.Context, merchant solana.PublicKey) (solana.Signature, error) {
	vault, _, err := s.addrs.Vault()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("derive vault: %w", err)
	}

	inputProgram, err := s.ProgramForMint(ctx, s.cfg.InputMint)
	if err != nil {
		return solana.Signature{}, err
	}
	outputProgram, err := s.ProgramForMint(ctx, s.cfg.OutputMint)
	if err != nil {
		return solana.Signature{}, err
	}

	if err := s.ensureVaultTokenAccounts(ctx, vault, inputProgram, outputProgram); err != nil {
		return solana.Signature{}, err
	}

	quote, err := s.jup.Quote(ctx, jupiter.QuoteParams{
		InputMint:        s.cfg.InputMint,
		OutputMint:       s.cfg.OutputMint,
		Amount:           s.cfg.SwapAmount,
		SlippageBps:      s.cfg.SlippageBps,
		OnlyDirectRoutes: s.cfg.OnlyDirectRoutes,
		ExcludeDexes:     s.cfg.ExcludedVenues,
	})
	if err != nil {
		return solana.Signature{}, err
	}
	quotedOut, err := quote.OutAmountValue()
	if err != nil {
		return solana.Signature{}, err
	}
	s.logger.Info("route quoted",
		"in_amount", s.cfg.SwapAmount,
		"out_amount", quotedOut,
		"input_mint", s.cfg.InputMint,
		"output_mint", s.cfg.OutputMint,
	)

	routeIx, err := s.jup.SwapInstructions(ctx, vault, quote)
	if err != nil {
		return solana.Signature{}, err
	}

	swapIx, err := s.buildProgramSwapInstruction(merchant, vault, inputProgram, outputProgram, routeIx)
	if err != nil {
		return solana.Signature{}, err
	}

	instructions := make([]solana.Instruction, 0, 3)
	if s.cfg.ComputeUnitLimit > 0 {
		cuLimitIx, buildErr := computebudget.NewSetComputeUnitLimitInstruction(s.cfg.ComputeUnitLimit).ValidateAndBuild()
		if buildErr != nil {
			return solana.Signature{}, fmt.Errorf("build compute unit limit instruction: %w", buildErr)
		}
		instructions = append(instructions, cuLimitIx)
	}
	if s.cfg.ComputeUnitPriceMicroLamports > 0 {
		cuPriceIx, buildErr := computebudget.NewSetComputeUnitPriceInstruction(s.cfg.ComputeUnitPriceMicroLamports).ValidateAndBuild()
		if buildErr != nil {
			return solana.Signature{}, fmt.Errorf("build compute unit price instruction: %w", buildErr)
		}
		instructions = append(instructions, cuPriceIx)
	}
	instructions = append(instructions, swapIx)

	txCtx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	sig, err := s.sendTransaction(txCtx, instructions)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	if err := s.waitForConfirmation(txCtx, sig); err != nil {
		return solana.Signature{}, err
	}
	return sig, nil
}

func (s *Service) ProgramForMint(ctx context.Context, mint solana.PublicKey) (solana.PublicKey, error) {
	info, err := s.rpc.GetAccountInfoWithOpts(ctx, mint, &rpc.GetAccountInfoOpts{Commitment: s.cfg.Commitment})
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("fetch mint %s: %w", mint, err)
	}
	if info == nil || info.Value == nil {
		return solana.PublicKey{}, fmt.Errorf("mint %s does not exist", mint)
	}
	return info.Value.Owner, nil
}

// ensureVaultTokenAccounts creates the vault authority's associated token
// accounts for both legs of the swap. The create is idempotent; an account
// that already exists is success.
func (s *Service) ensureVaultTokenAccounts(ctx context.Context, vault, inputProgram, outputProgram solana.PublicKey) error {
	instructions := make([]solana.Instruction, 0, 2)
	for _, leg := range []struct {
		mint    solana.PublicKey
		program solana.PublicKey
	}{
		{s.cfg.InputMint, inputProgram},
		{s.cfg.OutputMint, outputProgram},
	} {
		instructions = append(instructions, newCreateIdempotentATAInstruction(s.signer.PublicKey(), vault, leg.mint, leg.program))
	}

	txCtx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	sig, err := s.sendTransaction(txCtx, instructions)
	if err != nil {
		return fmt.Errorf("create vault token accounts: %w", err)
	}
	if err := s.waitForConfirmation(txCtx, sig); err != nil {
		return fmt.Errorf("confirm vault token accounts: %w", err)
	}
	s.logger.Debug("vault token accounts ready", "signature", sig)
	return nil
}

// newCreateIdempotentATAInstruction builds the associated-token-program
// CreateIdempotent instruction (data = [1]).
func newCreateIdempotentATAInstruction(payer, owner, mint, tokenProgram solana.PublicKey) solana.Instruction {
	ata, _, err := solana.FindProgramAddress(
		[][]byte{owner.Bytes(), tokenProgram.Bytes(), mint.Bytes()},
		solana.SPLAssociatedTokenAccountProgramID,
	)
	if err != nil {
		panic(fmt.Errorf("derive associated token account: %w", err))
	}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(ata, true, false),
		solana.NewAccountMeta(owner, false, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(tokenProgram, false, false),
	}
	return solana.NewInstruction(solana.SPLAssociatedTokenAccountProgramID, accounts, []byte{1})
}

// buildProgramSwapInstruction assembles the settlement program's swap
// instruction: fixed account context, then the aggregator's accounts as
// remaining accounts with their signer flags cleared (the vault authority
// signs inside the CPI, not at the transaction level).
func (s *Service) buildProgramSwapInstruction(
	merchant solana.PublicKey,
	vault solana.PublicKey,
	inputProgram solana.PublicKey,
	outputProgram solana.PublicKey,
	routeIx jupiter.SwapInstruction,
) (solana.Instruction, error) {
	data, err := encodeSwapArgs(s.cfg.SwapAmount, s.cfg.PurchaseReference, routeIx.Data)
	if err != nil {
		return nil, err
	}

	configPDA, _, err := s.addrs.Config()
	if err != nil {
		return nil, err
	}
	ecosystemConfig, _, err := s.addrs.EcosystemConfig(s.cfg.EcosystemMint)
	if err != nil {
		return nil, err
	}
	vaultInput, _, err := s.addrs.VaultTokenAccount(inputProgram, s.cfg.InputMint)
	if err != nil {
		return nil, err
	}
	vaultOutput, _, err := s.addrs.VaultTokenAccount(outputProgram, s.cfg.OutputMint)
	if err != nil {
		return nil, err
	}
	userTokenAccount, _, err := solana.FindAssociatedTokenAddress(s.signer.PublicKey(), s.cfg.EcosystemMint)
	if err != nil {
		return nil, err
	}
	feeVaultAuthority, _, err := s.addrs.FeeVaultAuthority(s.cfg.EcosystemMint)
	if err != nil {
		return nil, err
	}
	collateralVault, _, err := s.addrs.CollateralVault(s.cfg.EcosystemMint)
	if err != nil {
		return nil, err
	}
	merchantBalance, _, err := s.addrs.MerchantBalance(merchant, s.cfg.EcosystemMint)
	if err != nil {
		return nil, err
	}
	pointsMintAuthority, _, err := s.addrs.PointsMintAuthority()
	if err != nil {
		return nil, err
	}
	pointsVault, _, err := s.addrs.PointsVault(s.cfg.EcosystemMint)
	if err != nil {
		return nil, err
	}

	pointsMint, _, err := s.addrs.PointsMint()
	if err != nil {
		return nil, err
	}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(configPDA, false, false),
		solana.NewAccountMeta(s.signer.PublicKey(), true, true),
		solana.NewAccountMeta(s.cfg.InputMint, false, false),
		solana.NewAccountMeta(inputProgram, false, false),
		solana.NewAccountMeta(s.cfg.OutputMint, false, false),
		solana.NewAccountMeta(outputProgram, false, false),
		solana.NewAccountMeta(vault, true, false),
		solana.NewAccountMeta(vaultInput, true, false),
		solana.NewAccountMeta(vaultOutput, true, false),
		solana.NewAccountMeta(s.cfg.AggregatorProgramID, false, false),
		solana.NewAccountMeta(s.cfg.EcosystemMint, true, false),
		solana.NewAccountMeta(ecosystemConfig, false, false),
		solana.NewAccountMeta(userTokenAccount, true, false),
		solana.NewAccountMeta(solana.Token2022ProgramID, false, false),
		solana.NewAccountMeta(feeVaultAuthority, false, false),
		solana.NewAccountMeta(collateralVault, true, false),
		solana.NewAccountMeta(inputProgram, false, false),
		solana.NewAccountMeta(merchantBalance, true, false),
		solana.NewAccountMeta(merchant, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(pointsMint, false, false),
		solana.NewAccountMeta(solana.Token2022ProgramID, false, false),
		solana.NewAccountMeta(pointsMintAuthority, false, false),
		solana.NewAccountMeta(pointsVault, true, false),
	}

	for _, meta := range routeIx.Accounts {
		accounts = append(accounts, solana.NewAccountMeta(meta.PublicKey, meta.IsWritable, false))
	}

	return solana.NewInstruction(s.addrs.Program, accounts, data), nil
}

// encodeSwapArgs serializes the instruction data: discriminator, amount,
// length-prefixed purchase reference, length-prefixed opaque route payload.
func encodeSwapArgs(amount uint64, purchaseReference string, routeData []byte) ([]byte, error) {
	if len(purchaseReference) > 64 {
		return nil, fmt.Errorf("purchase reference is %d bytes, max 64", len(purchaseReference))
	}

	data := make([]byte, 0, 8+8+4+len(purchaseReference)+4+len(routeData))
	data = append(data, swapDiscriminator[:]...)
	data = binary.LittleEndian.AppendUint64(data, amount)
	data = binary.LittleEndian.AppendUint32(data, uint32(len(purchaseReference)))
	data = append(data, purchaseReference...)
	data = binary.LittleEndian.AppendUint32(data, uint32(len(routeData)))
	data = append(data, routeData...)
	return data, nil
}

func anchorInstructionDiscriminator(ixName string) [8]byte {
	hash := sha256.Sum256([]byte("global:" + ixName))
	var out [8]byte
	copy(out[:], hash[:8])
	return out
}

func (s *Service) sendTransaction(ctx context.Context, instructions []solana.Instruction) (solana.Signature, error) {
	recent, err := s.rpc.GetLatestBlockhash(ctx, s.cfg.Commitment)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		instructions,
		recent.Value.Blockhash,
		solana.TransactionPayer(s.signer.PublicKey()),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if s.signer.PublicKey().Equals(key) {
			return &s.signer
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	opts := rpc.TransactionOpts{
		SkipPreflight:       s.cfg.SkipPreflight,
		PreflightCommitment: s.cfg.Commitment,
	}

	sig, err := s.rpc.SendTransactionWithOpts(ctx, tx, opts)
	if err != nil {
		return solana.Signature{}, err
	}
	return sig, nil
}

func (s *Service) waitForConfirmation(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(s.cfg.StatusPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			result, err := s.rpc.GetSignatureStatuses(ctx, true, sig)
			if err != nil {
				continue
			}
			if len(result.Value) == 0 || result.Value[0] == nil {
				continue
			}
			status := result.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction failed: %v", status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
	}
}
