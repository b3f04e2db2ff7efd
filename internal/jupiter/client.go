// Package jupiter is a thin client for the Jupiter v6 quote API: fetch a
// quote for a token pair, then fetch the swap instructions for that quote
// with an arbitrary user (here, the settlement program's vault authority).
package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
)

const maxResponseBytes = 16 << 20

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type QuoteParams struct {
	InputMint        solana.PublicKey
	OutputMint       solana.PublicKey
	Amount           uint64
	SlippageBps      uint64
	OnlyDirectRoutes bool
	ExcludeDexes     []string
}

// Quote keeps the full response body so it can be forwarded verbatim to the
// swap-instructions endpoint; only the fields the driver inspects are parsed.
type Quote struct {
	InputMint  string `json:"inputMint"`
	InAmount   string `json:"inAmount"`
	OutputMint string `json:"outputMint"`
	OutAmount  string `json:"outAmount"`

	Raw json.RawMessage `json:"-"`
}

func (q Quote) OutAmountValue() (uint64, error) {
	v, err := strconv.ParseUint(q.OutAmount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse quote outAmount %q: %w", q.OutAmount, err)
	}
	return v, nil
}

func (c *Client) Quote(ctx context.Context, params QuoteParams) (Quote, error) {
	query := url.Values{}
	query.Set("inputMint", params.InputMint.String())
	query.Set("outputMint", params.OutputMint.String())
	query.Set("amount", strconv.FormatUint(params.Amount, 10))
	query.Set("slippageBps", strconv.FormatUint(params.SlippageBps, 10))
	if params.OnlyDirectRoutes {
		query.Set("onlyDirectRoutes", "true")
	}
	if len(params.ExcludeDexes) > 0 {
		query.Set("excludeDexes", strings.Join(params.ExcludeDexes, ","))
	}

	endpoint := c.baseURL + "/v6/quote?" + query.Encode()
	raw, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("fetch quote: %w", err)
	}

	var quote Quote
	if err := json.Unmarshal(raw, &quote); err != nil {
		return Quote{}, fmt.Errorf("parse quote: %w", err)
	}
	quote.Raw = raw
	return quote, nil
}

type swapInstructionsRequest struct {
	UserPublicKey     string          `json:"userPublicKey"`
	QuoteResponse     json.RawMessage `json:"quoteResponse"`
	WrapAndUnwrapSol  bool            `json:"wrapAndUnwrapSol"`
	UseSharedAccounts bool            `json:"useSharedAccounts"`
}

type apiAccountMeta struct {
	Pubkey     string `json:"pubkey"`
	IsSigner   bool   `json:"isSigner"`
	IsWritable bool   `json:"isWritable"`
}

type apiInstruction struct {
	ProgramID string           `json:"programId"`
	Accounts  []apiAccountMeta `json:"accounts"`
	Data      string           `json:"data"`
}

type swapInstructionsResponse struct {
	SwapInstruction              apiInstruction   `json:"swapInstruction"`
	ComputeBudgetInstructions    []apiInstruction `json:"computeBudgetInstructions"`
	SetupInstructions            []apiInstruction `json:"setupInstructions"`
	AddressLookupTableAddresses  []string         `json:"addressLookupTableAddresses"`
	CleanupInstruction           *apiInstruction  `json:"cleanupInstruction"`
	TokenLedgerInstruction       *apiInstruction  `json:"tokenLedgerInstruction"`
	OtherAmountThresholdOverride string           `json:"otherAmountThreshold,omitempty"`
}

// SwapInstruction is the decoded aggregator instruction for a quoted route.
type SwapInstruction struct {
	ProgramID solana.PublicKey
	Accounts  []*solana.AccountMeta
	Data      []byte

	AddressLookupTables []solana.PublicKey
}

// SwapInstructions asks the API to build the route instruction with the
// given user as the transfer authority.
func (c *Client) SwapInstructions(ctx context.Context, user solana.PublicKey, quote Quote) (SwapInstruction, error) {
	if len(quote.Raw) == 0 {
		return SwapInstruction{}, fmt.Errorf("quote is missing its raw response body")
	}

	body, err := json.Marshal(swapInstructionsRequest{
		UserPublicKey:     user.String(),
		QuoteResponse:     quote.Raw,
		WrapAndUnwrapSol:  false,
		UseSharedAccounts: false,
	})
	if err != nil {
		return SwapInstruction{}, err
	}

	endpoint := c.baseURL + "/v6/swap-instructions"
	raw, err := c.do(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return SwapInstruction{}, fmt.Errorf("fetch swap instructions: %w", err)
	}

	var parsed swapInstructionsResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return SwapInstruction{}, fmt.Errorf("parse swap instructions: %w", err)
	}
	return decodeSwapInstruction(parsed)
}

func decodeSwapInstruction(parsed swapInstructionsResponse) (SwapInstruction, error) {
	programID, err := solana.PublicKeyFromBase58(parsed.SwapInstruction.ProgramID)
	if err != nil {
		return SwapInstruction{}, fmt.Errorf("parse swap program id: %w", err)
	}

	accounts := make([]*solana.AccountMeta, 0, len(parsed.SwapInstruction.Accounts))
	for i, acc := range parsed.SwapInstruction.Accounts {
		pubkey, err := solana.PublicKeyFromBase58(acc.Pubkey)
		if err != nil {
			return SwapInstruction{}, fmt.Errorf("parse swap account %d: %w", i, err)
		}
		accounts = append(accounts, &solana.AccountMeta{
			PublicKey:  pubkey,
			IsSigner:   acc.IsSigner,
			IsWritable: acc.IsWritable,
		})
	}

	data, err := base64.StdEncoding.DecodeString(parsed.SwapInstruction.Data)
	if err != nil {
		return SwapInstruction{}, fmt.Errorf("decode swap instruction data: %w", err)
	}

	tables := make([]solana.PublicKey, 0, len(parsed.AddressLookupTableAddresses))
	for _, addr := range parsed.AddressLookupTableAddresses {
		table, err := solana.PublicKeyFromBase58(addr)
		if err != nil {
			return SwapInstruction{}, fmt.Errorf("parse lookup table address: %w", err)
		}
		tables = append(tables, table)
	}

	return SwapInstruction{
		ProgramID:           programID,
		Accounts:            accounts,
		Data:                data,
		AddressLookupTables: tables,
	}, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "ecosystem-swap-driver/1.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed (%d): %s", resp.StatusCode, string(raw))
	}
	return raw, nil
}
