package apiserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/AymanF10/ecosystem/backend/internal/aggregator"
	"github.com/AymanF10/ecosystem/backend/internal/deployer"
	"github.com/AymanF10/ecosystem/backend/internal/ledger"
	"github.com/AymanF10/ecosystem/backend/internal/store"
	"github.com/AymanF10/ecosystem/backend/internal/token"
	"github.com/AymanF10/ecosystem/backend/internal/transferhook"
)

type configResponse struct {
	Owner        string   `json:"owner"`
	GlobalFreeze bool     `json:"globalFreeze"`
	Approvers    []string `json:"approvers"`
}

type ecosystemResponse struct {
	Mint                   string `json:"mint"`
	EcosystemPartnerWallet string `json:"ecosystemPartnerWallet"`
	MaxMintingCap          uint64 `json:"maxMintingCap"`
	WithdrawalFeeBps       uint16 `json:"withdrawalFeeBps"`
	DepositFeeBps          uint16 `json:"depositFeeBps"`
	CollateralTokenMint    string `json:"collateralTokenMint"`
	CollateralTokenProgram string `json:"collateralTokenProgram"`
	EcosystemFreeze        bool   `json:"ecosystemFreeze"`
	CollectedFeesSP        uint64 `json:"collectedFeesSp"`
	CurrentSupply          uint64 `json:"currentSupply"`
}

func (s *Service) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	cfg, err := s.engine.Config()
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	approvers := make([]string, 0, len(cfg.Approvers))
	for _, a := range cfg.Approvers {
		approvers = append(approvers, a.String())
	}
	s.respondJSON(w, http.StatusOK, configResponse{
		Owner:        cfg.Owner.String(),
		GlobalFreeze: cfg.GlobalFreeze,
		Approvers:    approvers,
	})
}

func (s *Service) handleApprovers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	list, err := s.engine.Approvers()
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	approvers := make([]string, 0, len(list))
	for _, a := range list {
		approvers = append(approvers, a.String())
	}
	s.respondJSON(w, http.StatusOK, map[string][]string{"approvers": approvers})
}

func (s *Service) handleEcosystems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	rows, err := s.events.Ecosystems(r.Context())
	if err != nil {
		s.logger.Error("list ecosystems failed", "err", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list ecosystems")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"items": rows})
}

func (s *Service) handleEcosystem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	raw := strings.TrimPrefix(r.URL.Path, "/v1/ecosystems/")
	mint, err := solana.PublicKeyFromBase58(strings.TrimSpace(raw))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid mint: %v", err))
		return
	}

	eco, err := s.engine.Ecosystem(mint)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	supply, err := s.engine.EcosystemSupply(mint)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, ecosystemResponse{
		Mint:                   mint.String(),
		EcosystemPartnerWallet: eco.EcosystemPartnerWallet.String(),
		MaxMintingCap:          eco.MaxMintingCap,
		WithdrawalFeeBps:       eco.WithdrawalFeeBps,
		DepositFeeBps:          eco.DepositFeeBps,
		CollateralTokenMint:    eco.CollateralTokenMint.String(),
		CollateralTokenProgram: eco.CollateralTokenProgram.String(),
		EcosystemFreeze:        eco.EcosystemFreeze,
		CollectedFeesSP:        eco.CollectedFeesSP,
		CurrentSupply:          supply,
	})
}

func (s *Service) handleMerchantBalances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	rows, err := s.events.MerchantBalances(r.Context(), strings.TrimSpace(r.URL.Query().Get("mint")))
	if err != nil {
		s.logger.Error("list merchant balances failed", "err", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list merchant balances")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"items": rows})
}

func (s *Service) handleWithdrawalRequests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	rows, err := s.events.WithdrawalRequests(r.Context(),
		strings.TrimSpace(r.URL.Query().Get("mint")),
		strings.TrimSpace(r.URL.Query().Get("status")),
	)
	if err != nil {
		s.logger.Error("list withdrawal requests failed", "err", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list withdrawal requests")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"items": rows})
}

func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	limit, err := parseOptionalInt(r, "limit", 0)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := parseOptionalInt(r, "offset", 0)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.events.Events(r.Context(), store.EventFilter{
		Name:          strings.TrimSpace(r.URL.Query().Get("name")),
		EcosystemMint: strings.TrimSpace(r.URL.Query().Get("mint")),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		s.logger.Error("list events failed", "err", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"items": rows})
}

// Instruction endpoints. The request body carries the actor key and the
// instruction arguments; transport signature verification belongs to the
// underlying substrate and is not re-modeled here.

type initializeRequest struct {
	Payer string `json:"payer"`
}

type approverRequest struct {
	Payer    string `json:"payer"`
	Approver string `json:"approver"`
}

type createEcosystemRequest struct {
	Payer                  string `json:"payer"`
	Mint                   string `json:"mint"`
	Decimals               uint8  `json:"decimals"`
	Name                   string `json:"name"`
	Symbol                 string `json:"symbol"`
	URI                    string `json:"uri"`
	TransferHookProgramID  string `json:"transferHookProgramId,omitempty"`
	EcosystemPartnerWallet string `json:"ecosystemPartnerWallet"`
	MaxMintingCap          uint64 `json:"maxMintingCap"`
	WithdrawalFeeBps       uint16 `json:"withdrawalFeeBps"`
	DepositFeeBps          uint16 `json:"depositFeeBps"`
	CollateralTokenMint    string `json:"collateralTokenMint"`
	CollateralTokenProgram string `json:"collateralTokenProgram"`
}

type depositRequest struct {
	Payer                   string `json:"payer"`
	Mint                    string `json:"mint"`
	DestinationTokenAccount string `json:"destinationTokenAccount"`
	CollateralAccount       string `json:"collateralAccount"`
	Amount                  uint64 `json:"amount"`
	QuotedOutAmount         uint64 `json:"quotedOutAmount,omitempty"`
}

type collectFeesRequest struct {
	Payer       string `json:"payer"`
	Mint        string `json:"mint"`
	Destination string `json:"destination"`
}

type toggleFreezeRequest struct {
	Payer string `json:"payer"`
	Mint  string `json:"mint,omitempty"`
}

type updateMaxCapRequest struct {
	Payer  string `json:"payer"`
	Mint   string `json:"mint"`
	NewCap uint64 `json:"newCap"`
}

type swapRequest struct {
	Payer             string `json:"payer"`
	Mint              string `json:"mint"`
	UserTokenAccount  string `json:"userTokenAccount"`
	Merchant          string `json:"merchant"`
	Amount            uint64 `json:"amount"`
	PurchaseReference string `json:"purchaseReference"`
	QuotedOutAmount   uint64 `json:"quotedOutAmount,omitempty"`
}

type withdrawalRequestRequest struct {
	Payer string `json:"payer"`
	Mint  string `json:"mint"`
}

type approveWithdrawalRequest struct {
	Approver             string `json:"approver"`
	Merchant             string `json:"merchant"`
	Mint                 string `json:"mint"`
	MerchantTokenAccount string `json:"merchantTokenAccount"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type freezeResponse struct {
	Frozen bool `json:"frozen"`
}

func (s *Service) handleInstruction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondMethodNotAllowed(w)
		return
	}
	op := strings.TrimPrefix(r.URL.Path, "/v1/instructions/")

	switch op {
	case "initialize":
		s.handleInitialize(w, r)
	case "add-approver":
		s.handleAddApprover(w, r)
	case "remove-approver":
		s.handleRemoveApprover(w, r)
	case "create-ecosystem":
		s.handleCreateEcosystem(w, r)
	case "deposit-ecosystem":
		s.handleDeposit(w, r)
	case "collect-fees":
		s.handleCollectFees(w, r)
	case "toggle-global-freeze":
		s.handleToggleGlobalFreeze(w, r)
	case "toggle-ecosystem-freeze":
		s.handleToggleEcosystemFreeze(w, r)
	case "update-max-cap":
		s.handleUpdateMaxCap(w, r)
	case "swap":
		s.handleSwap(w, r)
	case "create-withdrawal-request":
		s.handleCreateWithdrawalRequest(w, r)
	case "approve-withdrawal-request":
		s.handleApproveWithdrawalRequest(w, r)
	case "gate-initialize":
		s.handleGateInitialize(w, r)
	case "gate-add-to-whitelist":
		s.handleGateWhitelist(w, r, true)
	case "gate-remove-from-whitelist":
		s.handleGateWhitelist(w, r, false)
	case "gate-toggle-freeze":
		s.handleGateToggleFreeze(w, r)
	default:
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("unknown instruction %q", op))
	}
}

func (s *Service) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	payer, err := parseKey("payer", req.Payer)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.Initialize(payer); err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Service) handleAddApprover(w http.ResponseWriter, r *http.Request) {
	var req approverRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	payer, err := parseKey("payer", req.Payer)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	approver, err := parseKey("approver", req.Approver)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.AddApprover(payer, approver); err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Service) handleRemoveApprover(w http.ResponseWriter, r *http.Request) {
	var req approverRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	payer, err := parseKey("payer", req.Payer)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	approver, err := parseKey("approver", req.Approver)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.RemoveApprover(payer, approver); err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Service) handleCreateEcosystem(w http.ResponseWriter, r *http.Request) {
	var req createEcosystemRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	payer, err := parseKey("payer", req.Payer)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	args := deployer.CreateEcosystemArgs{
		Decimals:         req.Decimals,
		Name:             req.Name,
		Symbol:           req.Symbol,
		URI:              req.URI,
		MaxMintingCap:    req.MaxMintingCap,
		WithdrawalFeeBps: req.WithdrawalFeeBps,
		DepositFeeBps:    req.DepositFeeBps,
	}
	fields := []struct {
		name string
		raw  string
		dst  *solana.PublicKey
	}{
		{"mint", req.Mint, &args.Mint},
		{"ecosystemPartnerWallet", req.EcosystemPartnerWallet, &args.EcosystemPartnerWallet},
		{"collateralTokenMint", req.CollateralTokenMint, &args.CollateralTokenMint},
		{"collateralTokenProgram", req.CollateralTokenProgram, &args.CollateralTokenProgram},
	}
	for _, f := range fields {
		pk, err := parseKey(f.name, f.raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		*f.dst = pk
	}
	if strings.TrimSpace(req.TransferHookProgramID) != "" {
		hook, err := parseKey("transferHookProgramId", req.TransferHookProgramID)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		args.TransferHookProgramID = hook
	}
	if err := s.engine.CreateEcosystem(payer, args); err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Service) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	payer, err := parseKey("payer", req.Payer)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	mint, err := parseKey("mint", req.Mint)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	dest, err := parseKey("destinationTokenAccount", req.DestinationTokenAccount)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	collateral, err := parseKey("collateralAccount", req.CollateralAccount)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	eco, err := s.engine.Ecosystem(mint)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	// floor(amount * bps / 10000) without intermediate overflow
	bps := uint64(eco.DepositFeeBps)
	fee := req.Amount/10_000*bps + req.Amount%10_000*bps/10_000
	quoted := req.QuotedOutAmount
	if quoted == 0 {
		quoted = fee
	}
	payload, remaining, err := s.buildMockSwapLeg(eco, fee, quoted)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.engine.DepositEcosystem(deployer.DepositParams{
		Payer:                   payer,
		Mint:                    mint,
		DestinationTokenAccount: dest,
		CollateralAccount:       collateral,
		Amount:                  req.Amount,
		AggregatorProgram:       s.cfg.Engine.AggregatorProgramID,
		SwapPayload:             payload,
		RemainingAccounts:       remaining,
	}); err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Service) handleCollectFees(w http.ResponseWriter, r *http.Request) {
	var req collectFeesRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	payer, err := parseKey("payer", req.Payer)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	mint, err := parseKey("mint", req.Mint)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	destination, err := parseKey("destination", req.Destination)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.CollectFees(payer, mint, destination); err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Service) handleToggleGlobalFreeze(w http.ResponseWriter, r *http.Request) {
	var req toggleFreezeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	payer, err := parseKey("payer", req.Payer)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	frozen, err := s.engine.ToggleGlobalFreeze(payer)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, freezeResponse{Frozen: frozen})
}

func (s *Service) handleToggleEcosystemFreeze(w http.ResponseWriter, r *http.Request) {
	var req toggleFreezeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	payer, err := parseKey("payer", req.Payer)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	mint, err := parseKey("mint", req.Mint)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	frozen, err := s.engine.ToggleEcosystemFreeze(payer, mint)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, freezeResponse{Frozen: frozen})
}

func (s *Service) handleUpdateMaxCap(w http.ResponseWriter, r *http.Request) {
	var req updateMaxCapRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	payer, err := parseKey("payer", req.Payer)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	mint, err := parseKey("mint", req.Mint)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.UpdateMaxCap(payer, mint, req.NewCap); err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Service) handleSwap(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	payer, err := parseKey("payer", req.Payer)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	mint, err := parseKey("mint", req.Mint)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	userAccount, err := parseKey("userTokenAccount", req.UserTokenAccount)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	merchant, err := parseKey("merchant", req.Merchant)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	eco, err := s.engine.Ecosystem(mint)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	quoted := req.QuotedOutAmount
	if quoted == 0 {
		quoted = req.Amount
	}
	payload, remaining, err := s.buildMockSwapLeg(eco, req.Amount, quoted)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.engine.Swap(deployer.SwapParams{
		Payer:             payer,
		Mint:              mint,
		UserTokenAccount:  userAccount,
		Merchant:          merchant,
		Amount:            req.Amount,
		PurchaseReference: req.PurchaseReference,
		InputMint:         eco.CollateralTokenMint,
		OutputMint:        s.cfg.Engine.SettlementMint,
		AggregatorProgram: s.cfg.Engine.AggregatorProgramID,
		SwapPayload:       payload,
		RemainingAccounts: remaining,
	}); err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Service) handleCreateWithdrawalRequest(w http.ResponseWriter, r *http.Request) {
	var req withdrawalRequestRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	payer, err := parseKey("payer", req.Payer)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	mint, err := parseKey("mint", req.Mint)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.CreateWithdrawalRequest(payer, mint); err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Service) handleApproveWithdrawalRequest(w http.ResponseWriter, r *http.Request) {
	var req approveWithdrawalRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	approver, err := parseKey("approver", req.Approver)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	merchant, err := parseKey("merchant", req.Merchant)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	mint, err := parseKey("mint", req.Mint)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	merchantAccount, err := parseKey("merchantTokenAccount", req.MerchantTokenAccount)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.ApproveWithdrawalRequest(approver, merchant, mint, s.cfg.Engine.SettlementMint, merchantAccount); err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, okResponse{OK: true})
}

// buildMockSwapLeg assembles the opaque route payload plus the account list
// the hosted mock aggregator expects: it burns the input amount from the
// vault's input account and mints the quoted amount of settlement currency
// into the vault's output account.
func (s *Service) buildMockSwapLeg(eco deployer.EcosystemConfig, inAmount, quotedOut uint64) ([]byte, []aggregator.AccountMeta, error) {
	payload, err := aggregator.EncodeRoute(aggregator.RouteArgs{
		RoutePlan: []aggregator.RoutePlanStep{
			{Swap: aggregator.SwapRaydium, Percent: 100, InputIndex: 0, OutputIndex: 1},
		},
		InAmount:        inAmount,
		QuotedOutAmount: quotedOut,
		SlippageBps:     50,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("encode route: %w", err)
	}

	vault, _, err := deployer.DeriveVaultPDA()
	if err != nil {
		return nil, nil, err
	}
	inputVault, _, err := deployer.DeriveVaultTokenAccount(eco.CollateralTokenProgram, eco.CollateralTokenMint)
	if err != nil {
		return nil, nil, err
	}
	outputVault, _, err := deployer.DeriveVaultTokenAccount(token.TokenProgramID, s.cfg.Engine.SettlementMint)
	if err != nil {
		return nil, nil, err
	}

	remaining := []aggregator.AccountMeta{
		{PublicKey: eco.CollateralTokenProgram},
		{PublicKey: vault, IsSigner: true},
		{PublicKey: inputVault, IsWritable: true},
		{PublicKey: outputVault, IsWritable: true},
		{PublicKey: s.cfg.Engine.SettlementMint, IsWritable: true},
		{PublicKey: eco.CollateralTokenMint, IsWritable: true},
		{PublicKey: s.router.MintAuthority()},
	}
	return payload, remaining, nil
}

// Admin endpoints for driving the hosted token substrate: create collateral
// mints and token accounts and fund them. The production program has no
// counterpart; on a real cluster these are plain SPL token instructions.

type adminMintRequest struct {
	Mint      string `json:"mint"`
	Decimals  uint8  `json:"decimals"`
	Authority string `json:"authority"`
}

type adminTokenAccountRequest struct {
	Mint  string `json:"mint"`
	Owner string `json:"owner"`
}

type adminMintToRequest struct {
	Mint        string `json:"mint"`
	Destination string `json:"destination"`
	Authority   string `json:"authority"`
	Amount      uint64 `json:"amount"`
}

func (s *Service) handleAdminMints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondMethodNotAllowed(w)
		return
	}
	var req adminMintRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	mint, err := parseKey("mint", req.Mint)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	authority, err := parseKey("authority", req.Authority)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	err = s.led.Update(func(v ledger.View) error {
		return s.tokens.CreateMint(v, token.TokenProgramID, mint, req.Decimals, authority, nil)
	})
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Service) handleAdminTokenAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondMethodNotAllowed(w)
		return
	}
	var req adminTokenAccountRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	mint, err := parseKey("mint", req.Mint)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	owner, err := parseKey("owner", req.Owner)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	address, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	err = s.led.Update(func(v ledger.View) error {
		m, err := s.tokens.GetMint(v, mint)
		if err != nil {
			return err
		}
		return s.tokens.CreateAccount(v, m.Program, address, mint, owner)
	})
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"address": address.String()})
}

func (s *Service) handleAdminMintTo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondMethodNotAllowed(w)
		return
	}
	var req adminMintToRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	mint, err := parseKey("mint", req.Mint)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	destination, err := parseKey("destination", req.Destination)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	authority, err := parseKey("authority", req.Authority)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	err = s.led.Update(func(v ledger.View) error {
		m, err := s.tokens.GetMint(v, mint)
		if err != nil {
			return err
		}
		return s.tokens.MintTo(v, m.Program, mint, destination, authority, req.Amount)
	})
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Service) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func parseKey(field, raw string) (solana.PublicKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return solana.PublicKey{}, fmt.Errorf("%s is required", field)
	}
	pk, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid %s: %v", field, err)
	}
	return pk, nil
}

func parseOptionalInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

var engineErrorStatuses = []struct {
	target error
	status int
}{
	{deployer.ErrUnauthorized, http.StatusForbidden},
	{deployer.ErrNotAnApprover, http.StatusForbidden},
	{deployer.ErrNotInitialized, http.StatusNotFound},
	{transferhook.ErrUnauthorized, http.StatusForbidden},
	{transferhook.ErrNotInitialized, http.StatusNotFound},
	{deployer.ErrEcosystemNotFound, http.StatusNotFound},
	{deployer.ErrRequestNotFound, http.StatusNotFound},
	{token.ErrMintNotFound, http.StatusNotFound},
	{token.ErrAccountNotFound, http.StatusNotFound},
	{deployer.ErrAlreadyInitialized, http.StatusConflict},
	{deployer.ErrEcosystemExists, http.StatusConflict},
	{deployer.ErrApproverAlreadyExists, http.StatusConflict},
	{deployer.ErrPendingWithdrawalExists, http.StatusConflict},
	{deployer.ErrWithdrawalAlreadyApproved, http.StatusConflict},
	{token.ErrAccountExists, http.StatusConflict},
}

func (s *Service) respondEngineError(w http.ResponseWriter, err error) {
	for _, entry := range engineErrorStatuses {
		if errors.Is(err, entry.target) {
			s.respondError(w, entry.status, err.Error())
			return
		}
	}
	// remaining validation sentinels and token-runtime failures are all
	// caller mistakes
	s.respondError(w, http.StatusBadRequest, err.Error())
}

func (s *Service) respondMethodNotAllowed(w http.ResponseWriter) {
	s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (s *Service) respondError(w http.ResponseWriter, code int, message string) {
	s.respondJSON(w, code, errorResponse{Error: message})
}

func (s *Service) respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to write JSON response", "err", err)
	}
}
