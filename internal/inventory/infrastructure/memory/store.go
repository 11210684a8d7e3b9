// Package memory holds an in-process Store used by unit tests. Writes
// stage inside the transaction and apply only on commit, mirroring the
// Postgres implementation's rollback behavior.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopflow/inventory-service/internal/inventory/application"
	"github.com/shopflow/inventory-service/internal/inventory/domain"
)

type Event struct {
	Type    string
	Key     string
	Payload []byte
}

type Store struct {
	mu           sync.Mutex
	ledgers      map[string]*domain.StockLedger
	byProduct    map[string]string
	reservations map[string]*domain.Reservation
	transactions []domain.StockTransaction
	events       []Event
	nextTxID     int64
}

func NewStore() *Store {
	return &Store{
		ledgers:      make(map[string]*domain.StockLedger),
		byProduct:    make(map[string]string),
		reservations: make(map[string]*domain.Reservation),
	}
}

func resKey(orderID, ledgerID string) string { return orderID + "/" + ledgerID }

func (s *Store) WithinTx(ctx context.Context, fn func(tx application.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &memTx{
		store:        s,
		ledgers:      make(map[string]*domain.StockLedger),
		reservations: make(map[string]*domain.Reservation),
	}
	if err := fn(t); err != nil {
		return err
	}
	t.commit()
	return nil
}

type memTx struct {
	store        *Store
	ledgers      map[string]*domain.StockLedger
	reservations map[string]*domain.Reservation
	transactions []domain.StockTransaction
	events       []Event
}

func (t *memTx) commit() {
	s := t.store
	for id, l := range t.ledgers {
		s.ledgers[id] = l
		s.byProduct[l.ProductID] = id
	}
	for k, r := range t.reservations {
		s.reservations[k] = r
	}
	for _, tr := range t.transactions {
		s.nextTxID++
		tr.ID = s.nextTxID
		s.transactions = append(s.transactions, tr)
	}
	s.events = append(s.events, t.events...)
}

func (t *memTx) LedgerForUpdate(ctx context.Context, productID string) (*domain.StockLedger, error) {
	for _, l := range t.ledgers {
		if l.ProductID == productID {
			return l, nil
		}
	}
	id, ok := t.store.byProduct[productID]
	if !ok {
		return nil, domain.ErrLedgerNotFound
	}
	return t.checkout(id), nil
}

func (t *memTx) LedgerByIDForUpdate(ctx context.Context, id string) (*domain.StockLedger, error) {
	if l, ok := t.ledgers[id]; ok {
		return l, nil
	}
	if _, ok := t.store.ledgers[id]; !ok {
		return nil, domain.ErrLedgerNotFound
	}
	return t.checkout(id), nil
}

// checkout stages a copy of a committed ledger so failed transactions
// leave the store untouched.
func (t *memTx) checkout(id string) *domain.StockLedger {
	cp := *t.store.ledgers[id]
	t.ledgers[id] = &cp
	return &cp
}

func (t *memTx) CreateLedger(ctx context.Context, ledger *domain.StockLedger) error {
	if _, ok := t.store.byProduct[ledger.ProductID]; ok {
		return domain.ErrDuplicateLedger
	}
	cp := *ledger
	t.ledgers[ledger.ID] = &cp
	return nil
}

func (t *memTx) SaveLedger(ctx context.Context, ledger *domain.StockLedger) error {
	cp := *ledger
	t.ledgers[ledger.ID] = &cp
	return nil
}

func (t *memTx) ReservationsByOrder(ctx context.Context, orderID string) ([]*domain.Reservation, error) {
	var out []*domain.Reservation
	for _, r := range t.store.reservations {
		if r.OrderID == orderID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LedgerID < out[j].LedgerID })
	return out, nil
}

func (t *memTx) ReservationForUpdate(ctx context.Context, orderID, ledgerID string) (*domain.Reservation, error) {
	k := resKey(orderID, ledgerID)
	if r, ok := t.reservations[k]; ok {
		return r, nil
	}
	r, ok := t.store.reservations[k]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	cp := *r
	t.reservations[k] = &cp
	return &cp, nil
}

func (t *memTx) CreateReservation(ctx context.Context, res *domain.Reservation) error {
	cp := *res
	t.reservations[resKey(res.OrderID, res.LedgerID)] = &cp
	return nil
}

func (t *memTx) SaveReservation(ctx context.Context, res *domain.Reservation) error {
	cp := *res
	t.reservations[resKey(res.OrderID, res.LedgerID)] = &cp
	return nil
}

func (t *memTx) AppendTransaction(ctx context.Context, tr *domain.StockTransaction) error {
	t.transactions = append(t.transactions, *tr)
	return nil
}

func (t *memTx) AppendEvent(ctx context.Context, eventType, key string, payload []byte) error {
	t.events = append(t.events, Event{Type: eventType, Key: key, Payload: payload})
	return nil
}

func (s *Store) LedgerByID(ctx context.Context, id string) (*domain.StockLedger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ledgers[id]
	if !ok {
		return nil, domain.ErrLedgerNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *Store) LedgerByProduct(ctx context.Context, productID string) (*domain.StockLedger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byProduct[productID]
	if !ok {
		return nil, domain.ErrLedgerNotFound
	}
	cp := *s.ledgers[id]
	return &cp, nil
}

func (s *Store) ListLedgers(ctx context.Context, filter application.LedgerFilter) ([]domain.StockLedger, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []domain.StockLedger
	for _, l := range s.ledgers {
		if filter.LowStock && !l.LowStock() {
			continue
		}
		all = append(all, *l)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ProductID < all[j].ProductID })

	total := int64(len(all))
	page, limit := normalize(filter.Page, filter.Limit)
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (s *Store) ActiveReservations(ctx context.Context, ledgerID string) ([]domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Reservation
	for _, r := range s.reservations {
		if r.LedgerID == ledgerID && r.Active() {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ExpiredReservations(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Reservation
	for _, r := range s.reservations {
		if r.Expired(now) {
			out = append(out, *r)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Store) Transactions(ctx context.Context, ledgerID string, page application.Page) ([]domain.StockTransaction, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []domain.StockTransaction
	for _, tr := range s.transactions {
		if tr.LedgerID == ledgerID {
			all = append(all, tr)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	total := int64(len(all))
	p, limit := normalize(page.Page, page.Limit)
	start := (p - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (s *Store) AppendEvent(ctx context.Context, eventType, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Event{Type: eventType, Key: key, Payload: payload})
	return nil
}

// Events snapshots everything enqueued so far, oldest first.
func (s *Store) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func normalize(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
