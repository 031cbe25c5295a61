// Package memory implements the domain ledger in process memory. It backs
// the engine's unit tests and the dev run mode; transactions are serialized
// behind a single mutex and staged so a rollback leaves no trace, mirroring
// the atomicity the postgres ledger gets from the database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cryptarena/arenad/internal/domain"
)

type escrowKey struct {
	arena int64
	slot  int16
}

type state struct {
	cfg       *domain.GlobalConfig
	whitelist map[int16]domain.WhitelistEntry
	arenas    map[int64]domain.Arena
	aggs      map[escrowKey]domain.AssetAggregate
	entries   map[int64]map[domain.Identity]domain.PlayerEntry
	escrow    map[escrowKey]int64
	transfers map[int64][]domain.Transfer
}

func newState() *state {
	return &state{
		whitelist: make(map[int16]domain.WhitelistEntry),
		arenas:    make(map[int64]domain.Arena),
		aggs:      make(map[escrowKey]domain.AssetAggregate),
		entries:   make(map[int64]map[domain.Identity]domain.PlayerEntry),
		escrow:    make(map[escrowKey]int64),
		transfers: make(map[int64][]domain.Transfer),
	}
}

func (s *state) clone() *state {
	c := newState()
	if s.cfg != nil {
		cfg := *s.cfg
		c.cfg = &cfg
	}
	for k, v := range s.whitelist {
		v.AssetID = append([]byte(nil), v.AssetID...)
		c.whitelist[k] = v
	}
	for k, v := range s.arenas {
		c.arenas[k] = v
	}
	for k, v := range s.aggs {
		c.aggs[k] = v
	}
	for id, m := range s.entries {
		cm := make(map[domain.Identity]domain.PlayerEntry, len(m))
		for p, e := range m {
			cm[p] = e
		}
		c.entries[id] = cm
	}
	for k, v := range s.escrow {
		c.escrow[k] = v
	}
	for id, ts := range s.transfers {
		c.transfers[id] = append([]domain.Transfer(nil), ts...)
	}
	return c
}

// Ledger is an in-memory domain.Ledger and domain.LedgerReader.
type Ledger struct {
	mu sync.Mutex
	st *state
}

// New returns an empty in-memory ledger.
func New() *Ledger {
	return &Ledger{st: newState()}
}

// Begin locks the ledger and returns a transaction operating on a staged
// copy. Holding the lock for the transaction's lifetime serializes callers,
// which is exactly the isolation the engine is specified against.
func (l *Ledger) Begin(ctx context.Context) (domain.LedgerTx, error) {
	l.mu.Lock()
	return &memTx{l: l, st: l.st.clone()}, nil
}

type memTx struct {
	l    *Ledger
	st   *state
	done bool
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.l.st = t.st
	t.l.mu.Unlock()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.l.mu.Unlock()
	return nil
}

func (t *memTx) GlobalConfig(ctx context.Context) (domain.GlobalConfig, error) {
	if t.st.cfg == nil {
		return domain.GlobalConfig{}, domain.ErrNotFound
	}
	return *t.st.cfg, nil
}

func (t *memTx) PutGlobalConfig(ctx context.Context, cfg domain.GlobalConfig) error {
	t.st.cfg = &cfg
	return nil
}

func (t *memTx) WhitelistEntry(ctx context.Context, slot int16) (domain.WhitelistEntry, error) {
	e, ok := t.st.whitelist[slot]
	if !ok {
		return domain.WhitelistEntry{}, domain.ErrNotFound
	}
	return e, nil
}

func (t *memTx) PutWhitelistEntry(ctx context.Context, e domain.WhitelistEntry) error {
	t.st.whitelist[e.SlotIndex] = e
	return nil
}

func (t *memTx) Whitelist(ctx context.Context) ([]domain.WhitelistEntry, error) {
	out := make([]domain.WhitelistEntry, 0, len(t.st.whitelist))
	for _, e := range t.st.whitelist {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotIndex < out[j].SlotIndex })
	return out, nil
}

func (t *memTx) Arena(ctx context.Context, id int64) (domain.Arena, error) {
	a, ok := t.st.arenas[id]
	if !ok {
		return domain.Arena{}, domain.ErrNotFound
	}
	return a, nil
}

func (t *memTx) WaitingArena(ctx context.Context) (domain.Arena, error) {
	best := domain.Arena{}
	found := false
	for _, a := range t.st.arenas {
		if a.Status == domain.ArenaWaiting && (!found || a.ID < best.ID) {
			best = a
			found = true
		}
	}
	if !found {
		return domain.Arena{}, domain.ErrNotFound
	}
	return best, nil
}

func (t *memTx) PutArena(ctx context.Context, a domain.Arena) error {
	t.st.arenas[a.ID] = a
	return nil
}

func (t *memTx) AssetAggregate(ctx context.Context, arenaID int64, slot int16) (domain.AssetAggregate, error) {
	agg, ok := t.st.aggs[escrowKey{arenaID, slot}]
	if !ok {
		return domain.AssetAggregate{}, domain.ErrNotFound
	}
	return agg, nil
}

func (t *memTx) AssetAggregates(ctx context.Context, arenaID int64) ([]domain.AssetAggregate, error) {
	var out []domain.AssetAggregate
	for k, agg := range t.st.aggs {
		if k.arena == arenaID {
			out = append(out, agg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotIndex < out[j].SlotIndex })
	return out, nil
}

func (t *memTx) PutAssetAggregate(ctx context.Context, agg domain.AssetAggregate) error {
	t.st.aggs[escrowKey{agg.ArenaID, agg.SlotIndex}] = agg
	return nil
}

func (t *memTx) Entry(ctx context.Context, arenaID int64, player domain.Identity) (domain.PlayerEntry, error) {
	e, ok := t.st.entries[arenaID][player]
	if !ok {
		return domain.PlayerEntry{}, domain.ErrNotFound
	}
	return e, nil
}

func (t *memTx) EntryByOrdinal(ctx context.Context, arenaID int64, ordinal int) (domain.PlayerEntry, error) {
	for _, e := range t.st.entries[arenaID] {
		if e.Ordinal == ordinal {
			return e, nil
		}
	}
	return domain.PlayerEntry{}, domain.ErrNotFound
}

func (t *memTx) Entries(ctx context.Context, arenaID int64) ([]domain.PlayerEntry, error) {
	m := t.st.entries[arenaID]
	out := make([]domain.PlayerEntry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out, nil
}

func (t *memTx) PutEntry(ctx context.Context, e domain.PlayerEntry) error {
	m, ok := t.st.entries[e.ArenaID]
	if !ok {
		m = make(map[domain.Identity]domain.PlayerEntry)
		t.st.entries[e.ArenaID] = m
	}
	m[e.Player] = e
	return nil
}

func (t *memTx) EscrowBalance(ctx context.Context, arenaID int64, slot int16) (int64, error) {
	return t.st.escrow[escrowKey{arenaID, slot}], nil
}

func (t *memTx) CreditEscrow(ctx context.Context, arenaID int64, slot int16, from domain.Identity, amount int64, kind domain.TransferKind) (domain.Transfer, error) {
	tr := domain.Transfer{
		ID:           uuid.NewString(),
		ArenaID:      arenaID,
		SlotIndex:    slot,
		Counterparty: from,
		Amount:       amount,
		Kind:         kind,
		CreatedAt:    time.Now().UTC(),
	}
	t.st.escrow[escrowKey{arenaID, slot}] += amount
	t.st.transfers[arenaID] = append(t.st.transfers[arenaID], tr)
	return tr, nil
}

func (t *memTx) DebitEscrow(ctx context.Context, arenaID int64, slot int16, to domain.Identity, amount int64, kind domain.TransferKind) (domain.Transfer, error) {
	key := escrowKey{arenaID, slot}
	if t.st.escrow[key] < amount {
		return domain.Transfer{}, domain.ErrInsufficientEscrow
	}
	tr := domain.Transfer{
		ID:           uuid.NewString(),
		ArenaID:      arenaID,
		SlotIndex:    slot,
		Counterparty: to,
		Amount:       amount,
		Debit:        true,
		Kind:         kind,
		CreatedAt:    time.Now().UTC(),
	}
	t.st.escrow[key] -= amount
	t.st.transfers[arenaID] = append(t.st.transfers[arenaID], tr)
	return tr, nil
}

func (t *memTx) Transfers(ctx context.Context, arenaID int64) ([]domain.Transfer, error) {
	return append([]domain.Transfer(nil), t.st.transfers[arenaID]...), nil
}

var _ domain.LedgerTx = (*memTx)(nil)
