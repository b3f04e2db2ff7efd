package driver

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AymanF10/ecosystem/backend/internal/config"
	"github.com/AymanF10/ecosystem/backend/internal/deployer"
	"github.com/AymanF10/ecosystem/backend/internal/jupiter"
)

func TestLoadKeypairBase58(t *testing.T) {
	wallet := solana.NewWallet()

	signer, err := LoadKeypair(wallet.PrivateKey.String(), "")
	require.NoError(t, err)
	assert.Equal(t, wallet.PublicKey(), signer.PublicKey())
}

func TestLoadKeypairJSONArray(t *testing.T) {
	wallet := solana.NewWallet()

	// The solana-keygen file format: a JSON array of byte values, not a
	// base64 string.
	keyBytes := make([]int, len(wallet.PrivateKey))
	for i, b := range wallet.PrivateKey {
		keyBytes[i] = int(b)
	}
	raw, err := json.Marshal(keyBytes)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(raw), "["))

	signer, err := LoadKeypair(string(raw), "")
	require.NoError(t, err)
	assert.Equal(t, wallet.PublicKey(), signer.PublicKey())
}

func TestLoadKeypairRejectsGarbage(t *testing.T) {
	_, err := LoadKeypair("not-a-key", "")
	assert.Error(t, err)

	_, err = LoadKeypair("[1,2,3]", "")
	assert.ErrorContains(t, err, "want 64")

	_, err = LoadKeypair("", "/nonexistent/wallet.json")
	assert.Error(t, err)
}

func TestEncodeSwapArgs(t *testing.T) {
	route := []byte{0xde, 0xad, 0xbe, 0xef}
	data, err := encodeSwapArgs(1_000, "order-42", route)
	require.NoError(t, err)

	expectedDisc := sha256.Sum256([]byte("global:swap"))
	assert.Equal(t, expectedDisc[:8], data[:8])

	assert.Equal(t, uint64(1_000), binary.LittleEndian.Uint64(data[8:16]))

	refLen := binary.LittleEndian.Uint32(data[16:20])
	assert.Equal(t, uint32(len("order-42")), refLen)
	assert.Equal(t, "order-42", string(data[20:20+refLen]))

	routeStart := 20 + int(refLen)
	routeLen := binary.LittleEndian.Uint32(data[routeStart : routeStart+4])
	assert.Equal(t, uint32(len(route)), routeLen)
	assert.Equal(t, route, data[routeStart+4:])
}

func TestEncodeSwapArgsRejectsLongReference(t *testing.T) {
	long := make([]byte, 65)
	for i := range long {
		long[i] = 'x'
	}
	_, err := encodeSwapArgs(1, string(long), nil)
	assert.ErrorContains(t, err, "max 64")
}

func TestBuildProgramSwapInstructionClearsRouteSigners(t *testing.T) {
	wallet := solana.NewWallet()
	svc := &Service{
		cfg: config.DriverConfig{
			AggregatorProgramID: solana.NewWallet().PublicKey(),
			EcosystemMint:       solana.NewWallet().PublicKey(),
			InputMint:           solana.NewWallet().PublicKey(),
			OutputMint:          solana.NewWallet().PublicKey(),
			SwapAmount:          5_000,
			PurchaseReference:   "driver-swap",
		},
		addrs:  deployer.Addresses{Program: deployer.ProgramID},
		signer: wallet.PrivateKey,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	vault, _, err := deployer.DeriveVaultPDA()
	require.NoError(t, err)

	routeIx := jupiter.SwapInstruction{
		ProgramID: svc.cfg.AggregatorProgramID,
		Accounts: []*solana.AccountMeta{
			solana.NewAccountMeta(vault, false, true),
			solana.NewAccountMeta(solana.NewWallet().PublicKey(), true, false),
		},
		Data: []byte{1, 2, 3},
	}

	ix, err := svc.buildProgramSwapInstruction(
		wallet.PublicKey(),
		vault,
		solana.TokenProgramID,
		solana.TokenProgramID,
		routeIx,
	)
	require.NoError(t, err)

	accounts := ix.Accounts()
	require.Len(t, accounts, 24+len(routeIx.Accounts))

	// Payer is the only transaction-level signer; the vault authority signs
	// inside the CPI.
	assert.Equal(t, wallet.PublicKey(), accounts[1].PublicKey)
	assert.True(t, accounts[1].IsSigner)
	for i, meta := range accounts {
		if i == 1 {
			continue
		}
		assert.False(t, meta.IsSigner, "account %d (%s) must not sign", i, meta.PublicKey)
	}

	// Appended route accounts keep their writable flags.
	tail := accounts[24:]
	assert.Equal(t, vault, tail[0].PublicKey)
	assert.False(t, tail[0].IsWritable)
	assert.True(t, tail[1].IsWritable)

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, swapDiscriminator[:], data[:8])
	assert.Equal(t, uint64(5_000), binary.LittleEndian.Uint64(data[8:16]))
}

func TestNewThreadsProgramIDWithoutGlobalMutation(t *testing.T) {
	wallet := solana.NewWallet()
	defaultProgram := deployer.ProgramID
	customProgram := solana.NewWallet().PublicKey()

	svc, err := New(config.DriverConfig{
		KeypairValue: wallet.PrivateKey.String(),
		ProgramID:    customProgram,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	assert.Equal(t, customProgram, svc.addrs.Program)
	assert.Equal(t, defaultProgram, deployer.ProgramID)

	customConfig, _, err := svc.addrs.Config()
	require.NoError(t, err)
	defaultConfig, _, err := deployer.DeriveConfigPDA()
	require.NoError(t, err)
	assert.NotEqual(t, defaultConfig, customConfig)

	// Without a configured id the default deployment applies.
	svc, err = New(config.DriverConfig{KeypairValue: wallet.PrivateKey.String()},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Equal(t, defaultProgram, svc.addrs.Program)
}

func TestCreateIdempotentATAInstruction(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	ix := newCreateIdempotentATAInstruction(payer, owner, mint, solana.TokenProgramID)
	assert.Equal(t, solana.SPLAssociatedTokenAccountProgramID, ix.ProgramID())

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, data)

	expectedATA, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	require.NoError(t, err)

	accounts := ix.Accounts()
	require.Len(t, accounts, 6)
	assert.Equal(t, payer, accounts[0].PublicKey)
	assert.True(t, accounts[0].IsSigner)
	assert.Equal(t, expectedATA, accounts[1].PublicKey)
	assert.Equal(t, owner, accounts[2].PublicKey)
	assert.Equal(t, mint, accounts[3].PublicKey)
}
