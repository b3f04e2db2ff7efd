package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/AymanF10/ecosystem/backend/internal/ledger"
)

// Ledger is the Postgres-backed account store: one engine instruction maps
// onto one database transaction, with writes staged in memory and flushed
// only when the instruction succeeds.
type Ledger struct {
	store *Store
}

var _ ledger.Store = (*Ledger)(nil)

func (s *Store) Ledger() *Ledger {
	return &Ledger{store: s}
}

func (l *Ledger) Update(fn func(ledger.View) error) error {
	return l.store.WithTx(context.Background(), func(tx *Tx) error {
		view := &txView{ctx: context.Background(), tx: tx}
		if err := fn(view); err != nil {
			return err
		}
		if view.err != nil {
			return view.err
		}
		return view.flush()
	})
}

func (l *Ledger) View(fn func(ledger.View) error) error {
	return l.store.WithTx(context.Background(), func(tx *Tx) error {
		view := &txView{ctx: context.Background(), tx: tx}
		if err := fn(view); err != nil {
			return err
		}
		return view.err
	})
}

// txView implements ledger.View over a database transaction. The View
// interface has no error returns, so query failures are stashed and turned
// into a rollback after fn finishes.
type txView struct {
	ctx     context.Context
	tx      *Tx
	staged  map[solana.PublicKey]ledger.Record
	deleted map[solana.PublicKey]struct{}
	err     error
}

func (v *txView) Get(key solana.PublicKey) (ledger.Record, bool) {
	if v.deleted != nil {
		if _, gone := v.deleted[key]; gone {
			return ledger.Record{}, false
		}
	}
	if rec, ok := v.staged[key]; ok {
		return rec, true
	}

	var (
		owner string
		data  []byte
	)
	row := v.tx.QueryRowContext(v.ctx, `SELECT owner, data FROM accounts WHERE pubkey = ?`, key.String())
	if err := row.Scan(&owner, &data); err != nil {
		if !errors.Is(err, sql.ErrNoRows) && v.err == nil {
			v.err = fmt.Errorf("load account %s: %w", key, err)
		}
		return ledger.Record{}, false
	}
	ownerKey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		if v.err == nil {
			v.err = fmt.Errorf("corrupt account owner %q: %w", owner, err)
		}
		return ledger.Record{}, false
	}
	return ledger.Record{Owner: ownerKey, Data: data}, true
}

func (v *txView) Put(key solana.PublicKey, rec ledger.Record) {
	if v.staged == nil {
		v.staged = make(map[solana.PublicKey]ledger.Record)
	}
	delete(v.deleted, key)
	v.staged[key] = rec
}

func (v *txView) Delete(key solana.PublicKey) {
	if v.deleted == nil {
		v.deleted = make(map[solana.PublicKey]struct{})
	}
	delete(v.staged, key)
	v.deleted[key] = struct{}{}
}

func (v *txView) flush() error {
	now := time.Now().Unix()
	for key := range v.deleted {
		if _, err := v.tx.ExecContext(v.ctx, `DELETE FROM accounts WHERE pubkey = ?`, key.String()); err != nil {
			return fmt.Errorf("delete account %s: %w", key, err)
		}
	}
	for key, rec := range v.staged {
		_, err := v.tx.ExecContext(v.ctx, `
			INSERT INTO accounts (pubkey, owner, data, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (pubkey) DO UPDATE SET
				owner = EXCLUDED.owner,
				data = EXCLUDED.data,
				updated_at = EXCLUDED.updated_at
		`, key.String(), rec.Owner.String(), rec.Data, now)
		if err != nil {
			return fmt.Errorf("store account %s: %w", key, err)
		}
	}
	return nil
}
