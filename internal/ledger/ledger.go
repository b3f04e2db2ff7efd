package ledger

import (
	"sync"

	"github.com/gagliardetto/solana-go"
)

// Record is the payload stored at one ledger address: the program that owns
// the record plus its serialized state.
type Record struct {
	Owner solana.PublicKey
	Data  []byte
}

// View is the account access surface an instruction executes against.
type View interface {
	Get(key solana.PublicKey) (Record, bool)
	Put(key solana.PublicKey, rec Record)
	Delete(key solana.PublicKey)
}

// Store is the account store an instruction engine executes against: the
// in-memory Ledger here or a database-backed implementation.
type Store interface {
	// Update runs fn inside an atomic transaction: a nil return commits
	// every write, any error discards them all.
	Update(fn func(View) error) error
	// View runs fn read-only; writes made through the view are discarded.
	View(fn func(View) error) error
}

// Ledger is an in-memory account store with all-or-nothing updates. Every
// instruction runs inside Update: writes are staged on an overlay and reach
// the base map only when the instruction returns nil.
type Ledger struct {
	mu      sync.Mutex
	records map[solana.PublicKey]Record
}

var _ Store = (*Ledger)(nil)

func New() *Ledger {
	return &Ledger{records: make(map[solana.PublicKey]Record)}
}

// Update executes fn against a staged overlay of the ledger. A nil return
// commits every staged write atomically; any error discards them all.
func (l *Ledger) Update(fn func(View) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	overlay := &overlayView{
		base:    l.records,
		staged:  make(map[solana.PublicKey]Record),
		deleted: make(map[solana.PublicKey]struct{}),
	}
	if err := fn(overlay); err != nil {
		return err
	}

	for key := range overlay.deleted {
		delete(l.records, key)
	}
	for key, rec := range overlay.staged {
		l.records[key] = rec
	}
	return nil
}

// View runs fn against a read-only snapshot of the ledger. Writes made
// through the view are discarded.
func (l *Ledger) View(fn func(View) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return fn(&overlayView{
		base:    l.records,
		staged:  make(map[solana.PublicKey]Record),
		deleted: make(map[solana.PublicKey]struct{}),
	})
}

// Read is View for callers with nothing to fail.
func (l *Ledger) Read(fn func(View)) {
	l.View(func(v View) error {
		fn(v)
		return nil
	})
}

type overlayView struct {
	base    map[solana.PublicKey]Record
	staged  map[solana.PublicKey]Record
	deleted map[solana.PublicKey]struct{}
}

func (v *overlayView) Get(key solana.PublicKey) (Record, bool) {
	if _, gone := v.deleted[key]; gone {
		return Record{}, false
	}
	if rec, ok := v.staged[key]; ok {
		return cloneRecord(rec), true
	}
	rec, ok := v.base[key]
	if !ok {
		return Record{}, false
	}
	return cloneRecord(rec), true
}

func (v *overlayView) Put(key solana.PublicKey, rec Record) {
	delete(v.deleted, key)
	v.staged[key] = cloneRecord(rec)
}

func (v *overlayView) Delete(key solana.PublicKey) {
	delete(v.staged, key)
	v.deleted[key] = struct{}{}
}

func cloneRecord(rec Record) Record {
	out := Record{Owner: rec.Owner}
	if rec.Data != nil {
		out.Data = append([]byte(nil), rec.Data...)
	}
	return out
}
