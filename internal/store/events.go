package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/AymanF10/ecosystem/backend/internal/deployer"
)

// EventRecord is one persisted log entry.
type EventRecord struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	EcosystemMint string          `json:"ecosystemMint,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     int64           `json:"createdAt"`
}

// EventFilter narrows an event log query.
type EventFilter struct {
	Name          string
	EcosystemMint string
	Limit         int
	Offset        int
}

// EcosystemRow is the ecosystems projection row.
type EcosystemRow struct {
	Mint             string `json:"mint"`
	Partner          string `json:"partner"`
	CollateralMint   string `json:"collateralMint"`
	MaxMintingCap    uint64 `json:"maxMintingCap"`
	DepositFeeBps    uint16 `json:"depositFeeBps"`
	WithdrawalFeeBps uint16 `json:"withdrawalFeeBps"`
	Frozen           bool   `json:"frozen"`
	CreatedAt        int64  `json:"createdAt"`
}

// MerchantBalanceRow is the merchant balance projection row.
type MerchantBalanceRow struct {
	Merchant      string `json:"merchant"`
	EcosystemMint string `json:"ecosystemMint"`
	Balance       uint64 `json:"balance"`
	UpdatedAt     int64  `json:"updatedAt"`
}

// WithdrawalRequestRow is the withdrawal request projection row.
type WithdrawalRequestRow struct {
	Merchant      string `json:"merchant"`
	EcosystemMint string `json:"ecosystemMint"`
	Amount        uint64 `json:"amount"`
	Fee           uint64 `json:"fee"`
	Status        string `json:"status"`
	ApprovedBy    string `json:"approvedBy,omitempty"`
	RequestedAt   int64  `json:"requestedAt"`
}

// RecordEvent appends an instruction event to the log and folds it into the
// query projections, in one transaction.
func (s *Store) RecordEvent(ctx context.Context, ev deployer.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.Name(), err)
	}
	return s.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO events (name, ecosystem_mint, payload, created_at)
			VALUES (?, ?, ?, ?)
		`, ev.Name(), eventMint(ev), payload, time.Now().Unix())
		if err != nil {
			return fmt.Errorf("append event %s: %w", ev.Name(), err)
		}
		return s.applyProjection(ctx, tx, ev)
	})
}

func eventMint(ev deployer.Event) string {
	switch e := ev.(type) {
	case deployer.EcosystemCreated:
		return e.Mint.String()
	case deployer.EcosystemDeposited:
		return e.EcosystemMint.String()
	case deployer.FeesCollected:
		return e.EcosystemMint.String()
	case deployer.EcosystemFreezeToggled:
		return e.EcosystemMint.String()
	case deployer.MaxCapUpdated:
		return e.EcosystemMint.String()
	case deployer.WithdrawalRequestCreated:
		return e.EcosystemMint.String()
	case deployer.WithdrawalRequestApproved:
		return e.EcosystemMint.String()
	case deployer.PurchaseProcessed:
		return e.EcosystemMint.String()
	default:
		return ""
	}
}

func (s *Store) applyProjection(ctx context.Context, tx *Tx, ev deployer.Event) error {
	now := time.Now().Unix()
	switch e := ev.(type) {
	case deployer.EcosystemCreated:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ecosystems (mint, partner, collateral_mint, max_minting_cap, deposit_fee_bps, withdrawal_fee_bps, frozen, created_at, updated_at)
			VALUES (?, ?, ?, CAST(? AS NUMERIC), ?, ?, 0, ?, ?)
			ON CONFLICT (mint) DO NOTHING
		`, e.Mint.String(), e.EcosystemPartner.String(), e.CollateralMint.String(),
			formatUint(e.MaxMintingCap), int(e.DepositFeeBps), int(e.WithdrawalFeeBps), e.Timestamp, now)
		return err

	case deployer.EcosystemFreezeToggled:
		_, err := tx.ExecContext(ctx, `
			UPDATE ecosystems SET frozen = ?, updated_at = ? WHERE mint = ?
		`, boolToInt(e.NewState), now, e.EcosystemMint.String())
		return err

	case deployer.MaxCapUpdated:
		_, err := tx.ExecContext(ctx, `
			UPDATE ecosystems SET max_minting_cap = CAST(? AS NUMERIC), updated_at = ? WHERE mint = ?
		`, formatUint(e.NewCap), now, e.EcosystemMint.String())
		return err

	case deployer.PurchaseProcessed:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO merchant_balances (merchant, ecosystem_mint, balance, updated_at)
			VALUES (?, ?, CAST(? AS NUMERIC), ?)
			ON CONFLICT (merchant, ecosystem_mint) DO UPDATE SET
				balance = merchant_balances.balance + CAST(? AS NUMERIC),
				updated_at = EXCLUDED.updated_at
		`, e.Merchant.String(), e.EcosystemMint.String(), formatUint(e.Credited), now, formatUint(e.Credited))
		return err

	case deployer.WithdrawalRequestCreated:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO withdrawal_requests (merchant, ecosystem_mint, amount, status, requested_at, updated_at)
			VALUES (?, ?, CAST(? AS NUMERIC), 'pending', ?, ?)
			ON CONFLICT (merchant, ecosystem_mint) DO UPDATE SET
				amount = EXCLUDED.amount,
				fee = 0,
				status = 'pending',
				approved_by = '',
				requested_at = EXCLUDED.requested_at,
				updated_at = EXCLUDED.updated_at
		`, e.Merchant.String(), e.EcosystemMint.String(), formatUint(e.Amount), e.Timestamp, now)
		return err

	case deployer.WithdrawalRequestApproved:
		if _, err := tx.ExecContext(ctx, `
			UPDATE withdrawal_requests SET
				status = 'approved',
				fee = CAST(? AS NUMERIC),
				approved_by = ?,
				updated_at = ?
			WHERE merchant = ? AND ecosystem_mint = ?
		`, formatUint(e.Fee), e.ApprovedBy.String(), now, e.Merchant.String(), e.EcosystemMint.String()); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE merchant_balances SET
				balance = balance - CAST(? AS NUMERIC),
				updated_at = ?
			WHERE merchant = ? AND ecosystem_mint = ?
		`, formatUint(e.Amount), now, e.Merchant.String(), e.EcosystemMint.String())
		return err
	}
	return nil
}

// Events returns log entries newest-first.
func (s *Store) Events(ctx context.Context, filter EventFilter) ([]EventRecord, error) {
	query := `SELECT id, name, ecosystem_mint, payload, created_at FROM events WHERE 1=1`
	args := []any{}
	if filter.Name != "" {
		query += ` AND name = ?`
		args = append(args, filter.Name)
	}
	if filter.EcosystemMint != "" {
		query += ` AND ecosystem_mint = ?`
		args = append(args, filter.EcosystemMint)
	}
	query += ` ORDER BY id DESC`
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := make([]EventRecord, 0, limit)
	for rows.Next() {
		var rec EventRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.EcosystemMint, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) Ecosystems(ctx context.Context) ([]EcosystemRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT mint, partner, collateral_mint, max_minting_cap::TEXT, deposit_fee_bps, withdrawal_fee_bps, frozen, created_at
		FROM ecosystems ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("query ecosystems: %w", err)
	}
	defer rows.Close()

	var out []EcosystemRow
	for rows.Next() {
		var (
			row    EcosystemRow
			cap    string
			frozen int
		)
		if err := rows.Scan(&row.Mint, &row.Partner, &row.CollateralMint, &cap, &row.DepositFeeBps, &row.WithdrawalFeeBps, &frozen, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ecosystem: %w", err)
		}
		if row.MaxMintingCap, err = parseUint(cap); err != nil {
			return nil, err
		}
		row.Frozen = frozen != 0
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) MerchantBalances(ctx context.Context, ecosystemMint string) ([]MerchantBalanceRow, error) {
	query := `SELECT merchant, ecosystem_mint, balance::TEXT, updated_at FROM merchant_balances`
	args := []any{}
	if ecosystemMint != "" {
		query += ` WHERE ecosystem_mint = ?`
		args = append(args, ecosystemMint)
	}
	query += ` ORDER BY merchant`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query merchant balances: %w", err)
	}
	defer rows.Close()

	var out []MerchantBalanceRow
	for rows.Next() {
		var (
			row     MerchantBalanceRow
			balance string
		)
		if err := rows.Scan(&row.Merchant, &row.EcosystemMint, &balance, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan merchant balance: %w", err)
		}
		if row.Balance, err = parseUint(balance); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) WithdrawalRequests(ctx context.Context, ecosystemMint, status string) ([]WithdrawalRequestRow, error) {
	query := `SELECT merchant, ecosystem_mint, amount::TEXT, fee::TEXT, status, approved_by, requested_at FROM withdrawal_requests WHERE 1=1`
	args := []any{}
	if ecosystemMint != "" {
		query += ` AND ecosystem_mint = ?`
		args = append(args, ecosystemMint)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY requested_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query withdrawal requests: %w", err)
	}
	defer rows.Close()

	var out []WithdrawalRequestRow
	for rows.Next() {
		var (
			row    WithdrawalRequestRow
			amount string
			fee    string
		)
		if err := rows.Scan(&row.Merchant, &row.EcosystemMint, &amount, &fee, &row.Status, &row.ApprovedBy, &row.RequestedAt); err != nil {
			return nil, fmt.Errorf("scan withdrawal request: %w", err)
		}
		if row.Amount, err = parseUint(amount); err != nil {
			return nil, err
		}
		if row.Fee, err = parseUint(fee); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseUint(v string) (uint64, error) {
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse numeric %q: %w", v, err)
	}
	return n, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
