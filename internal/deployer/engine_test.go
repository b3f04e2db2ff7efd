package deployer

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/AymanF10/ecosystem/backend/internal/aggregator"
	"github.com/AymanF10/ecosystem/backend/internal/ledger"
	"github.com/AymanF10/ecosystem/backend/internal/token"
)

type engineFixture struct {
	t      *testing.T
	ledger *ledger.Ledger
	tokens *token.Runtime
	router *aggregator.MockRouter
	engine *Engine
	events []Event

	owner    solana.PublicKey
	partner  solana.PublicKey
	merchant solana.PublicKey

	ecoMint        solana.PublicKey
	collateralMint solana.PublicKey
	usdcMint       solana.PublicKey
	pointsMint     solana.PublicKey

	partnerCollateral solana.PublicKey
	partnerCustodial  solana.PublicKey
	merchantUSDC      solana.PublicKey
}

const fixtureClock = int64(1_700_000_000)

func newEngineFixture(t *testing.T, depositBps, withdrawalBps uint16, cap uint64) *engineFixture {
	t.Helper()

	f := &engineFixture{
		t:              t,
		ledger:         ledger.New(),
		tokens:         token.NewRuntime(),
		owner:          solana.NewWallet().PublicKey(),
		partner:        solana.NewWallet().PublicKey(),
		merchant:       solana.NewWallet().PublicKey(),
		ecoMint:        solana.NewWallet().PublicKey(),
		collateralMint: solana.NewWallet().PublicKey(),
		usdcMint:       solana.NewWallet().PublicKey(),
		pointsMint:     solana.NewWallet().PublicKey(),

		partnerCollateral: solana.NewWallet().PublicKey(),
		partnerCustodial:  solana.NewWallet().PublicKey(),
		merchantUSDC:      solana.NewWallet().PublicKey(),
	}
	f.router = aggregator.NewMockRouter(f.tokens, aggregator.ProgramID)

	eng, err := NewEngine(EngineConfig{
		Store:             f.ledger,
		Tokens:            f.tokens,
		Aggregator:        f.router,
		AggregatorProgram: aggregator.ProgramID,
		SettlementMint:    f.usdcMint,
		SettlementProgram: solana.TokenProgramID,
		PointsMint:        f.pointsMint,
		PointsProgram:     solana.Token2022ProgramID,
		Events:            SinkFunc(func(ev Event) { f.events = append(f.events, ev) }),
		Now:               func() time.Time { return time.Unix(fixtureClock, 0) },
	})
	require.NoError(t, err)
	f.engine = eng

	pointsAuthority := mustPDA(DerivePointsMintAuthorityPDA())
	err = f.ledger.Update(func(v ledger.View) error {
		if err := f.tokens.CreateMint(v, solana.TokenProgramID, f.collateralMint, 6, f.owner, nil); err != nil {
			return err
		}
		if err := f.tokens.CreateMint(v, solana.TokenProgramID, f.usdcMint, 6, f.router.MintAuthority(), nil); err != nil {
			return err
		}
		if err := f.tokens.CreateMint(v, solana.Token2022ProgramID, f.pointsMint, 6, pointsAuthority, nil); err != nil {
			return err
		}
		if err := f.tokens.CreateAccount(v, solana.TokenProgramID, f.partnerCollateral, f.collateralMint, f.partner); err != nil {
			return err
		}
		if err := f.tokens.CreateAccount(v, solana.TokenProgramID, f.merchantUSDC, f.usdcMint, f.merchant); err != nil {
			return err
		}
		return f.tokens.MintTo(v, solana.TokenProgramID, f.collateralMint, f.partnerCollateral, f.owner, 10_000_000)
	})
	require.NoError(t, err)

	require.NoError(t, f.engine.Initialize(f.owner))
	require.NoError(t, f.engine.CreateEcosystem(f.owner, CreateEcosystemArgs{
		Mint:                   f.ecoMint,
		Decimals:               6,
		Name:                   "Partner Credits",
		Symbol:                 "PCR",
		EcosystemPartnerWallet: f.partner,
		MaxMintingCap:          cap,
		DepositFeeBps:          depositBps,
		WithdrawalFeeBps:       withdrawalBps,
		CollateralTokenMint:    f.collateralMint,
		CollateralTokenProgram: solana.TokenProgramID,
	}))

	err = f.ledger.Update(func(v ledger.View) error {
		return f.tokens.CreateAccount(v, solana.Token2022ProgramID, f.partnerCustodial, f.ecoMint, f.partner)
	})
	require.NoError(t, err)

	return f
}

func (f *engineFixture) routePayload(in, out uint64) []byte {
	f.t.Helper()
	data, err := aggregator.EncodeRoute(aggregator.RouteArgs{
		RoutePlan:       []aggregator.RoutePlanStep{{Swap: aggregator.SwapRaydium, Percent: 100, OutputIndex: 1}},
		InAmount:        in,
		QuotedOutAmount: out,
		SlippageBps:     50,
	})
	require.NoError(f.t, err)
	return data
}

// emptyRoutePayload encodes a route with no plan steps, which the aggregator
// rejects at invoke time.
func (f *engineFixture) emptyRoutePayload() []byte {
	f.t.Helper()
	data, err := aggregator.EncodeRoute(aggregator.RouteArgs{SlippageBps: 50})
	require.NoError(f.t, err)
	return data
}

func (f *engineFixture) remainingAccounts() []aggregator.AccountMeta {
	f.t.Helper()
	vault := mustPDA(DeriveVaultPDA())
	inputVault, _, err := DeriveVaultTokenAccount(solana.TokenProgramID, f.collateralMint)
	require.NoError(f.t, err)
	outputVault, _, err := DeriveVaultTokenAccount(solana.TokenProgramID, f.usdcMint)
	require.NoError(f.t, err)
	return []aggregator.AccountMeta{
		{PublicKey: solana.TokenProgramID},
		{PublicKey: vault},
		{PublicKey: inputVault, IsWritable: true},
		{PublicKey: outputVault, IsWritable: true},
		{PublicKey: f.usdcMint, IsWritable: true},
		{PublicKey: f.collateralMint, IsWritable: true},
		{PublicKey: f.router.MintAuthority()},
	}
}

func (f *engineFixture) deposit(amount, swapIn, swapOut uint64) error {
	return f.engine.DepositEcosystem(DepositParams{
		Payer:                   f.partner,
		Mint:                    f.ecoMint,
		DestinationTokenAccount: f.partnerCustodial,
		CollateralAccount:       f.partnerCollateral,
		Amount:                  amount,
		AggregatorProgram:       aggregator.ProgramID,
		SwapPayload:             f.routePayload(swapIn, swapOut),
		RemainingAccounts:       f.remainingAccounts(),
	})
}

func (f *engineFixture) purchase(amount, swapOut uint64, reference string) error {
	return f.engine.Swap(SwapParams{
		Payer:             f.partner,
		Mint:              f.ecoMint,
		UserTokenAccount:  f.partnerCustodial,
		Merchant:          f.merchant,
		Amount:            amount,
		PurchaseReference: reference,
		InputMint:         f.collateralMint,
		OutputMint:        f.usdcMint,
		AggregatorProgram: aggregator.ProgramID,
		SwapPayload:       f.routePayload(amount, swapOut),
		RemainingAccounts: f.remainingAccounts(),
	})
}

func (f *engineFixture) balance(account solana.PublicKey) uint64 {
	var out uint64
	f.ledger.Read(func(v ledger.View) {
		out = f.tokens.Balance(v, account)
	})
	return out
}

func (f *engineFixture) lastEvent() Event {
	require.NotEmpty(f.t, f.events)
	return f.events[len(f.events)-1]
}

func TestDepositFeeSplit(t *testing.T) {
	f := newEngineFixture(t, 100, 0, 1_000_000) // 1% deposit fee

	require.NoError(t, f.deposit(100_000, 1_000, 950))

	require.Equal(t, uint64(99_000), f.balance(f.partnerCustodial))
	supply, err := f.engine.EcosystemSupply(f.ecoMint)
	require.NoError(t, err)
	require.Equal(t, uint64(99_000), supply)

	collateralVault := mustPDA(DeriveCollateralVaultPDA(f.ecoMint))
	require.Equal(t, uint64(99_000), f.balance(collateralVault))

	// Fee swap proceeds convert to points at the fixed rate.
	eco, err := f.engine.Ecosystem(f.ecoMint)
	require.NoError(t, err)
	require.Equal(t, 950*PointsPerSettlementUnit, eco.CollectedFeesSP)

	ev, ok := f.lastEvent().(EcosystemDeposited)
	require.True(t, ok)
	require.Equal(t, uint64(100_000), ev.Amount)
	require.Equal(t, uint64(1_000), ev.Fee)
	require.Equal(t, fixtureClock, ev.Timestamp)
}

func TestDepositZeroFeeSkipsSwap(t *testing.T) {
	f := newEngineFixture(t, 0, 0, 1_000_000)

	require.NoError(t, f.deposit(50_000, 0, 0))
	require.Equal(t, uint64(50_000), f.balance(f.partnerCustodial))

	eco, err := f.engine.Ecosystem(f.ecoMint)
	require.NoError(t, err)
	require.Zero(t, eco.CollectedFeesSP)
}

func TestDepositCapBoundary(t *testing.T) {
	f := newEngineFixture(t, 0, 0, 100_000)

	require.NoError(t, f.deposit(100_000, 0, 0))

	err := f.deposit(1, 0, 0)
	require.ErrorIs(t, err, ErrExceedsMaximumCap)
}

func TestDepositRejectsZeroAmount(t *testing.T) {
	f := newEngineFixture(t, 0, 0, 1_000_000)
	require.ErrorIs(t, f.deposit(0, 0, 0), ErrInvalidAmount)
}

func TestDepositRejectsNonPartner(t *testing.T) {
	f := newEngineFixture(t, 0, 0, 1_000_000)

	err := f.engine.DepositEcosystem(DepositParams{
		Payer:                   solana.NewWallet().PublicKey(),
		Mint:                    f.ecoMint,
		DestinationTokenAccount: f.partnerCustodial,
		CollateralAccount:       f.partnerCollateral,
		Amount:                  1_000,
		AggregatorProgram:       aggregator.ProgramID,
	})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestFreezeBlocksSettlement(t *testing.T) {
	f := newEngineFixture(t, 0, 0, 1_000_000)

	frozen, err := f.engine.ToggleGlobalFreeze(f.owner)
	require.NoError(t, err)
	require.True(t, frozen)
	require.ErrorIs(t, f.deposit(1_000, 0, 0), ErrFreezeStateActive)

	frozen, err = f.engine.ToggleGlobalFreeze(f.owner)
	require.NoError(t, err)
	require.False(t, frozen)
	require.NoError(t, f.deposit(1_000, 0, 0))

	frozen, err = f.engine.ToggleEcosystemFreeze(f.owner, f.ecoMint)
	require.NoError(t, err)
	require.True(t, frozen)
	require.ErrorIs(t, f.purchase(100, 95, "ref"), ErrFreezeStateActive)

	_, err = f.engine.ToggleEcosystemFreeze(f.owner, f.ecoMint)
	require.NoError(t, err)
	require.NoError(t, f.purchase(100, 95, "ref"))
}

func TestPurchaseCreditsObservedProceeds(t *testing.T) {
	f := newEngineFixture(t, 0, 0, 1_000_000)
	require.NoError(t, f.deposit(500_000, 0, 0))

	require.NoError(t, f.purchase(50_000, 49_000, "order-1"))

	mb, err := f.engine.MerchantBalanceOf(f.merchant, f.ecoMint)
	require.NoError(t, err)
	require.Equal(t, uint64(49_000), mb.Balance)

	// Custodial tokens burned, collateral staged out of the vault.
	require.Equal(t, uint64(450_000), f.balance(f.partnerCustodial))
	collateralVault := mustPDA(DeriveCollateralVaultPDA(f.ecoMint))
	require.Equal(t, uint64(450_000), f.balance(collateralVault))

	ev, ok := f.lastEvent().(PurchaseProcessed)
	require.True(t, ok)
	require.Equal(t, uint64(50_000), ev.Amount)
	require.Equal(t, uint64(49_000), ev.Credited)
	require.Equal(t, "order-1", ev.PurchaseReference)
}

func TestPurchaseTrustsBalanceDiffOverQuote(t *testing.T) {
	f := newEngineFixture(t, 0, 0, 1_000_000)
	require.NoError(t, f.deposit(500_000, 0, 0))

	// The router credits a different amount than the payload quotes; the
	// merchant must be credited with what actually landed.
	override := uint64(31_337)
	f.router.OutOverride = &override

	require.NoError(t, f.purchase(50_000, 49_000, "order-2"))

	mb, err := f.engine.MerchantBalanceOf(f.merchant, f.ecoMint)
	require.NoError(t, err)
	require.Equal(t, override, mb.Balance)
}

func TestPurchaseAccumulatesAcrossOrders(t *testing.T) {
	f := newEngineFixture(t, 0, 0, 1_000_000)
	require.NoError(t, f.deposit(500_000, 0, 0))

	require.NoError(t, f.purchase(10_000, 9_900, "a"))
	require.NoError(t, f.purchase(20_000, 19_700, "b"))

	mb, err := f.engine.MerchantBalanceOf(f.merchant, f.ecoMint)
	require.NoError(t, err)
	require.Equal(t, uint64(29_600), mb.Balance)
}

func TestPurchaseValidation(t *testing.T) {
	f := newEngineFixture(t, 0, 0, 1_000_000)
	require.NoError(t, f.deposit(500_000, 0, 0))

	require.ErrorIs(t, f.purchase(0, 0, "ref"), ErrInvalidAmount)

	long := make([]byte, maxPurchaseReferenceLen+1)
	for i := range long {
		long[i] = 'x'
	}
	require.ErrorIs(t, f.purchase(1_000, 900, string(long)), ErrInvalidPurchaseReference)

	err := f.engine.Swap(SwapParams{
		Payer:             f.partner,
		Mint:              f.ecoMint,
		UserTokenAccount:  f.partnerCustodial,
		Merchant:          f.merchant,
		Amount:            1_000,
		InputMint:         f.usdcMint, // not the collateral mint
		OutputMint:        f.usdcMint,
		AggregatorProgram: aggregator.ProgramID,
	})
	require.ErrorIs(t, err, ErrInvalidCollateralToken)

	err = f.engine.Swap(SwapParams{
		Payer:             f.partner,
		Mint:              f.ecoMint,
		UserTokenAccount:  f.partnerCustodial,
		Merchant:          f.merchant,
		Amount:            1_000,
		InputMint:         f.collateralMint,
		OutputMint:        f.collateralMint, // not the settlement currency
		AggregatorProgram: aggregator.ProgramID,
	})
	require.ErrorIs(t, err, ErrInvalidOutputMint)

	err = f.engine.Swap(SwapParams{
		Payer:             f.partner,
		Mint:              f.ecoMint,
		UserTokenAccount:  f.partnerCustodial,
		Merchant:          f.merchant,
		Amount:            1_000,
		InputMint:         f.collateralMint,
		OutputMint:        f.usdcMint,
		AggregatorProgram: solana.NewWallet().PublicKey(),
	})
	require.ErrorIs(t, err, ErrInvalidProgramID)
}

func TestFailedSwapRollsBackEverything(t *testing.T) {
	f := newEngineFixture(t, 0, 0, 1_000_000)
	require.NoError(t, f.deposit(500_000, 0, 0))

	custodialBefore := f.balance(f.partnerCustodial)
	collateralVault := mustPDA(DeriveCollateralVaultPDA(f.ecoMint))
	vaultBefore := f.balance(collateralVault)

	// An empty route makes the aggregator fail after the collateral
	// staging and burn already ran inside the same update.
	err := f.engine.Swap(SwapParams{
		Payer:             f.partner,
		Mint:              f.ecoMint,
		UserTokenAccount:  f.partnerCustodial,
		Merchant:          f.merchant,
		Amount:            10_000,
		InputMint:         f.collateralMint,
		OutputMint:        f.usdcMint,
		AggregatorProgram: aggregator.ProgramID,
		SwapPayload:       f.emptyRoutePayload(),
		RemainingAccounts: f.remainingAccounts(),
	})
	require.ErrorIs(t, err, aggregator.ErrEmptyRoute)

	require.Equal(t, custodialBefore, f.balance(f.partnerCustodial))
	require.Equal(t, vaultBefore, f.balance(collateralVault))
	mb, err := f.engine.MerchantBalanceOf(f.merchant, f.ecoMint)
	require.NoError(t, err)
	require.Zero(t, mb.Balance)
}

func TestWithdrawalLifecycle(t *testing.T) {
	f := newEngineFixture(t, 0, 200, 1_000_000) // 2% withdrawal fee
	require.NoError(t, f.deposit(500_000, 0, 0))
	require.NoError(t, f.purchase(50_000, 50_000, "order"))

	require.NoError(t, f.engine.CreateWithdrawalRequest(f.merchant, f.ecoMint))
	require.ErrorIs(t, f.engine.CreateWithdrawalRequest(f.merchant, f.ecoMint), ErrPendingWithdrawalExists)

	wr, found, err := f.engine.WithdrawalRequestOf(f.merchant, f.ecoMint)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(50_000), wr.Amount)
	require.False(t, wr.IsApproved)

	approver := solana.NewWallet().PublicKey()
	err = f.engine.ApproveWithdrawalRequest(approver, f.merchant, f.ecoMint, f.usdcMint, f.merchantUSDC)
	require.ErrorIs(t, err, ErrNotAnApprover)

	require.NoError(t, f.engine.AddApprover(f.owner, approver))
	require.NoError(t, f.engine.ApproveWithdrawalRequest(approver, f.merchant, f.ecoMint, f.usdcMint, f.merchantUSDC))

	// 2% of 50000 = 1000 fee; payout 49000; full snapshot leaves the balance.
	require.Equal(t, uint64(49_000), f.balance(f.merchantUSDC))
	mb, err := f.engine.MerchantBalanceOf(f.merchant, f.ecoMint)
	require.NoError(t, err)
	require.Zero(t, mb.Balance)

	eco, err := f.engine.Ecosystem(f.ecoMint)
	require.NoError(t, err)
	require.Equal(t, 1_000*PointsPerSettlementUnit, eco.CollectedFeesSP)

	// Approval closes the request; a later purchase opens the way for a
	// fresh request.
	_, found, err = f.engine.WithdrawalRequestOf(f.merchant, f.ecoMint)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, f.purchase(10_000, 10_000, "order-2"))
	require.NoError(t, f.engine.CreateWithdrawalRequest(f.merchant, f.ecoMint))
}

func TestWithdrawalFeeBumpsToOne(t *testing.T) {
	f := newEngineFixture(t, 0, 1, 1_000_000) // 0.01% rounds to zero on small amounts
	require.NoError(t, f.deposit(500_000, 0, 0))
	require.NoError(t, f.purchase(5_000, 5, "tiny"))

	approver := solana.NewWallet().PublicKey()
	require.NoError(t, f.engine.AddApprover(f.owner, approver))
	require.NoError(t, f.engine.CreateWithdrawalRequest(f.merchant, f.ecoMint))
	require.NoError(t, f.engine.ApproveWithdrawalRequest(approver, f.merchant, f.ecoMint, f.usdcMint, f.merchantUSDC))

	ev, ok := f.lastEvent().(WithdrawalRequestApproved)
	require.True(t, ok)
	require.Equal(t, uint64(5), ev.Amount)
	require.Equal(t, uint64(1), ev.Fee)
	require.Equal(t, uint64(4), f.balance(f.merchantUSDC))
}

func TestApproveRevalidatesBalance(t *testing.T) {
	f := newEngineFixture(t, 0, 0, 1_000_000)
	require.NoError(t, f.deposit(500_000, 0, 0))
	require.NoError(t, f.purchase(10_000, 10_000, "order"))

	// A request whose snapshot exceeds the live balance must be refused.
	err := f.ledger.Update(func(v ledger.View) error {
		return storeWithdrawalRequest(v, WithdrawalRequest{
			Merchant:      f.merchant,
			EcosystemMint: f.ecoMint,
			Amount:        10_001,
			Timestamp:     fixtureClock,
		})
	})
	require.NoError(t, err)

	approver := solana.NewWallet().PublicKey()
	require.NoError(t, f.engine.AddApprover(f.owner, approver))
	err = f.engine.ApproveWithdrawalRequest(approver, f.merchant, f.ecoMint, f.usdcMint, f.merchantUSDC)
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestCreateRequestRequiresBalance(t *testing.T) {
	f := newEngineFixture(t, 0, 0, 1_000_000)
	require.ErrorIs(t, f.engine.CreateWithdrawalRequest(f.merchant, f.ecoMint), ErrNoBalanceToWithdraw)
}

func TestApproverSet(t *testing.T) {
	f := newEngineFixture(t, 0, 0, 1_000_000)
	x := solana.NewWallet().PublicKey()
	y := solana.NewWallet().PublicKey()

	require.NoError(t, f.engine.AddApprover(f.owner, x))
	require.ErrorIs(t, f.engine.AddApprover(f.owner, x), ErrApproverAlreadyExists)
	require.ErrorIs(t, f.engine.RemoveApprover(f.owner, y), ErrApproverNotFound)

	approvers, err := f.engine.Approvers()
	require.NoError(t, err)
	require.Equal(t, []solana.PublicKey{x}, approvers)

	require.NoError(t, f.engine.RemoveApprover(f.owner, x))
	approvers, err = f.engine.Approvers()
	require.NoError(t, err)
	require.Empty(t, approvers)

	require.ErrorIs(t, f.engine.AddApprover(x, y), ErrUnauthorized)
}

func TestCollectFees(t *testing.T) {
	f := newEngineFixture(t, 100, 0, 1_000_000)
	require.NoError(t, f.deposit(100_000, 1_000, 950))

	ownerPoints := solana.NewWallet().PublicKey()
	err := f.ledger.Update(func(v ledger.View) error {
		return f.tokens.CreateAccount(v, solana.Token2022ProgramID, ownerPoints, f.pointsMint, f.owner)
	})
	require.NoError(t, err)

	require.ErrorIs(t, f.engine.CollectFees(f.partner, f.ecoMint, ownerPoints), ErrUnauthorized)

	require.NoError(t, f.engine.CollectFees(f.owner, f.ecoMint, ownerPoints))
	require.Equal(t, 950*PointsPerSettlementUnit, f.balance(ownerPoints))

	eco, err := f.engine.Ecosystem(f.ecoMint)
	require.NoError(t, err)
	require.Zero(t, eco.CollectedFeesSP)

	require.ErrorIs(t, f.engine.CollectFees(f.owner, f.ecoMint, ownerPoints), ErrNoFeesToCollect)
}

func TestUpdateMaxCap(t *testing.T) {
	f := newEngineFixture(t, 0, 0, 1_000_000)
	require.NoError(t, f.deposit(100_000, 0, 0))

	require.ErrorIs(t, f.engine.UpdateMaxCap(f.owner, f.ecoMint, 99_999), ErrInvalidMaxCap)
	require.NoError(t, f.engine.UpdateMaxCap(f.owner, f.ecoMint, 2_000_000))

	eco, err := f.engine.Ecosystem(f.ecoMint)
	require.NoError(t, err)
	require.Equal(t, uint64(2_000_000), eco.MaxMintingCap)
}

func TestInitializeOnce(t *testing.T) {
	f := newEngineFixture(t, 0, 0, 1_000_000)
	require.ErrorIs(t, f.engine.Initialize(f.owner), ErrAlreadyInitialized)
}

func TestCreateEcosystemValidation(t *testing.T) {
	f := newEngineFixture(t, 0, 0, 1_000_000)

	args := CreateEcosystemArgs{
		Mint:                   solana.NewWallet().PublicKey(),
		Decimals:               6,
		EcosystemPartnerWallet: f.partner,
		MaxMintingCap:          1_000,
		DepositFeeBps:          10_001,
		CollateralTokenMint:    f.collateralMint,
		CollateralTokenProgram: solana.TokenProgramID,
	}
	require.ErrorIs(t, f.engine.CreateEcosystem(f.owner, args), ErrInvalidFeePercentage)

	args.DepositFeeBps = 100
	args.CollateralTokenProgram = solana.NewWallet().PublicKey()
	require.ErrorIs(t, f.engine.CreateEcosystem(f.owner, args), ErrInvalidProgramID)

	args.CollateralTokenProgram = solana.TokenProgramID
	args.Mint = f.ecoMint
	require.ErrorIs(t, f.engine.CreateEcosystem(f.owner, args), ErrEcosystemExists)

	args.Mint = solana.NewWallet().PublicKey()
	require.ErrorIs(t, f.engine.CreateEcosystem(f.partner, args), ErrUnauthorized)
}

func TestFeeFloorProperties(t *testing.T) {
	cases := []struct {
		amount uint64
		bps    uint16
		fee    uint64
	}{
		{100_000, 100, 1_000},
		{100_000, 0, 0},
		{1, 10_000, 1},
		{9_999, 1, 0},
		{10_000, 1, 1},
	}
	for _, tc := range cases {
		fee, err := feeFloor(tc.amount, tc.bps)
		require.NoError(t, err)
		require.Equal(t, tc.fee, fee, "amount=%d bps=%d", tc.amount, tc.bps)
		require.LessOrEqual(t, fee, tc.amount)
	}
}
