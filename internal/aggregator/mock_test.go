package aggregator

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/AymanF10/ecosystem/backend/internal/ledger"
	"github.com/AymanF10/ecosystem/backend/internal/token"
)

type mockFixture struct {
	l           *ledger.Ledger
	tokens      *token.Runtime
	router      *MockRouter
	authority   solana.PublicKey
	sourceMint  solana.PublicKey
	outputMint  solana.PublicKey
	source      solana.PublicKey
	destination solana.PublicKey
}

func newMockFixture(t *testing.T) *mockFixture {
	t.Helper()

	f := &mockFixture{
		l:           ledger.New(),
		tokens:      token.NewRuntime(),
		authority:   solana.NewWallet().PublicKey(),
		sourceMint:  solana.NewWallet().PublicKey(),
		outputMint:  solana.NewWallet().PublicKey(),
		source:      solana.NewWallet().PublicKey(),
		destination: solana.NewWallet().PublicKey(),
	}
	f.router = NewMockRouter(f.tokens, solana.NewWallet().PublicKey())

	err := f.l.Update(func(v ledger.View) error {
		if err := f.tokens.CreateMint(v, solana.TokenProgramID, f.sourceMint, 6, f.authority, nil); err != nil {
			return err
		}
		if err := f.tokens.CreateMint(v, solana.TokenProgramID, f.outputMint, 6, f.router.MintAuthority(), nil); err != nil {
			return err
		}
		if err := f.tokens.CreateAccount(v, solana.TokenProgramID, f.source, f.sourceMint, f.authority); err != nil {
			return err
		}
		if err := f.tokens.CreateAccount(v, solana.TokenProgramID, f.destination, f.outputMint, f.authority); err != nil {
			return err
		}
		return f.tokens.MintTo(v, solana.TokenProgramID, f.sourceMint, f.source, f.authority, 5_000_000)
	})
	require.NoError(t, err)
	return f
}

func (f *mockFixture) instruction(t *testing.T, args RouteArgs) Instruction {
	t.Helper()
	data, err := EncodeRoute(args)
	require.NoError(t, err)
	return Instruction{
		ProgramID: f.router.ProgramID,
		Accounts: []AccountMeta{
			{PublicKey: solana.TokenProgramID},
			{PublicKey: f.authority, IsSigner: true},
			{PublicKey: f.source, IsWritable: true},
			{PublicKey: f.destination, IsWritable: true},
			{PublicKey: f.outputMint, IsWritable: true},
			{PublicKey: f.sourceMint, IsWritable: true},
			{PublicKey: f.router.MintAuthority()},
		},
		Data: data,
	}
}

func routeArgs(in, out uint64) RouteArgs {
	return RouteArgs{
		RoutePlan:       []RoutePlanStep{{Swap: SwapRaydium, Percent: 100, InputIndex: 0, OutputIndex: 1}},
		InAmount:        in,
		QuotedOutAmount: out,
		SlippageBps:     50,
	}
}

func TestMockRouterSwapsAtQuote(t *testing.T) {
	f := newMockFixture(t)
	ix := f.instruction(t, routeArgs(1_000_000, 950_000))

	err := f.l.Update(func(v ledger.View) error {
		return f.router.Invoke(v, ix, f.authority)
	})
	require.NoError(t, err)

	f.l.Read(func(v ledger.View) {
		require.Equal(t, uint64(4_000_000), f.tokens.Balance(v, f.source))
		require.Equal(t, uint64(950_000), f.tokens.Balance(v, f.destination))
	})
}

func TestMockRouterOutOverride(t *testing.T) {
	f := newMockFixture(t)
	override := uint64(123_456)
	f.router.OutOverride = &override
	ix := f.instruction(t, routeArgs(1_000_000, 950_000))

	err := f.l.Update(func(v ledger.View) error {
		return f.router.Invoke(v, ix, f.authority)
	})
	require.NoError(t, err)

	f.l.Read(func(v ledger.View) {
		require.Equal(t, override, f.tokens.Balance(v, f.destination))
	})
}

func TestMockRouterRejectsEmptyRoute(t *testing.T) {
	f := newMockFixture(t)
	ix := f.instruction(t, RouteArgs{InAmount: 1, QuotedOutAmount: 1})

	err := f.l.Update(func(v ledger.View) error {
		return f.router.Invoke(v, ix, f.authority)
	})
	require.ErrorIs(t, err, ErrEmptyRoute)
}

func TestMockRouterRejectsUnsignedAuthority(t *testing.T) {
	f := newMockFixture(t)
	ix := f.instruction(t, routeArgs(1, 1))
	ix.Accounts[mockIdxAuthority].IsSigner = false

	err := f.l.Update(func(v ledger.View) error {
		return f.router.Invoke(v, ix, f.authority)
	})
	require.ErrorIs(t, err, ErrSignerMismatch)
}

func TestMockRouterRejectsForeignSigner(t *testing.T) {
	f := newMockFixture(t)
	ix := f.instruction(t, routeArgs(1, 1))

	err := f.l.Update(func(v ledger.View) error {
		return f.router.Invoke(v, ix, solana.NewWallet().PublicKey())
	})
	require.ErrorIs(t, err, ErrSignerMismatch)

	f.l.Read(func(v ledger.View) {
		require.Equal(t, uint64(5_000_000), f.tokens.Balance(v, f.source))
	})
}
