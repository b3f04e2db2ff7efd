package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AymanF10/ecosystem/backend/internal/deployer"
	"github.com/gagliardetto/solana-go"
)

func TestRebindPostgresPlaceholders(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "no placeholders",
			in:   `SELECT 1`,
			want: `SELECT 1`,
		},
		{
			name: "sequential numbering",
			in:   `INSERT INTO events (name, payload) VALUES (?, ?)`,
			want: `INSERT INTO events (name, payload) VALUES ($1, $2)`,
		},
		{
			name: "question mark inside single quotes",
			in:   `SELECT * FROM events WHERE name = '?' AND id = ?`,
			want: `SELECT * FROM events WHERE name = '?' AND id = $1`,
		},
		{
			name: "escaped quote inside string literal",
			in:   `SELECT * FROM t WHERE name = 'it''s ?' AND id = ?`,
			want: `SELECT * FROM t WHERE name = 'it''s ?' AND id = $1`,
		},
		{
			name: "many placeholders",
			in:   `VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			want: `VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, rebindPostgresPlaceholders(tc.in))
		})
	}
}

func TestEventMintExtraction(t *testing.T) {
	mint := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	require.Equal(t, mint.String(), eventMint(deployer.EcosystemCreated{Mint: mint}))
	require.Equal(t, mint.String(), eventMint(deployer.EcosystemDeposited{EcosystemMint: mint}))
	require.Equal(t, mint.String(), eventMint(deployer.PurchaseProcessed{EcosystemMint: mint}))
	require.Equal(t, mint.String(), eventMint(deployer.WithdrawalRequestCreated{EcosystemMint: mint}))
	require.Equal(t, mint.String(), eventMint(deployer.WithdrawalRequestApproved{EcosystemMint: mint}))

	// registry-level events carry no ecosystem
	require.Empty(t, eventMint(deployer.ProgramInitialized{}))
	require.Empty(t, eventMint(deployer.GlobalFreezeToggled{}))
	require.Empty(t, eventMint(deployer.ApproverAdded{}))
}

func TestNumericRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 100, 18_446_744_073_709_551_615} {
		got, err := parseUint(formatUint(v))
		require.NoError(t, err)
		require.Equal(t, v, got)
	}

	_, err := parseUint("not a number")
	require.Error(t, err)

	_, err = parseUint("-5")
	require.Error(t, err)
}
