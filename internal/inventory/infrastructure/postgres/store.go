package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopflow/inventory-service/internal/inventory/application"
	"github.com/shopflow/inventory-service/internal/inventory/domain"
	"github.com/shopflow/inventory-service/pkg/outbox"
	"github.com/shopflow/inventory-service/pkg/tracing"
)

const ledgerColumns = `id, product_id, sku, available, reserved, total,
	reorder_level, reorder_qty, version, created_at, updated_at`

const reservationColumns = `id, ledger_id, order_id, user_id, quantity, status,
	expires_at, completed_at, created_at, updated_at`

type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	return &Store{log: log, pool: pool}
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx application.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LedgerForUpdate(ctx context.Context, productID string) (*domain.StockLedger, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+ledgerColumns+` FROM inventory_ledgers WHERE product_id=$1 FOR UPDATE`, productID)
	return scanLedger(row)
}

func (t *pgTx) LedgerByIDForUpdate(ctx context.Context, id string) (*domain.StockLedger, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+ledgerColumns+` FROM inventory_ledgers WHERE id=$1 FOR UPDATE`, id)
	return scanLedger(row)
}

func (t *pgTx) CreateLedger(ctx context.Context, l *domain.StockLedger) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO inventory_ledgers
		(id, product_id, sku, available, reserved, total, reorder_level, reorder_qty, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		l.ID, l.ProductID, l.SKU, l.Available, l.Reserved, l.Total,
		l.ReorderLevel, l.ReorderQty, l.Version, l.CreatedAt, l.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateLedger
	}
	return err
}

// SaveLedger carries the optimistic version guard in addition to the
// row lock already held by the transaction.
func (t *pgTx) SaveLedger(ctx context.Context, l *domain.StockLedger) error {
	ct, err := t.tx.Exec(ctx, `UPDATE inventory_ledgers
		SET available=$2, reserved=$3, total=$4, reorder_level=$5, reorder_qty=$6,
			version=$7, updated_at=$8
		WHERE id=$1 AND version = $7 - 1`,
		l.ID, l.Available, l.Reserved, l.Total, l.ReorderLevel, l.ReorderQty,
		l.Version, l.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

func (t *pgTx) ReservationsByOrder(ctx context.Context, orderID string) ([]*domain.Reservation, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE order_id=$1 ORDER BY ledger_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t *pgTx) ReservationForUpdate(ctx context.Context, orderID, ledgerID string) (*domain.Reservation, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE order_id=$1 AND ledger_id=$2 FOR UPDATE`, orderID, ledgerID)
	r, err := scanReservation(row)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (t *pgTx) CreateReservation(ctx context.Context, r *domain.Reservation) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO reservations
		(id, ledger_id, order_id, user_id, quantity, status, expires_at, completed_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		r.ID, r.LedgerID, r.OrderID, r.UserID, r.Quantity, string(r.Status),
		r.ExpiresAt, r.CompletedAt, r.CreatedAt, r.UpdatedAt)
	return err
}

func (t *pgTx) SaveReservation(ctx context.Context, r *domain.Reservation) error {
	_, err := t.tx.Exec(ctx, `UPDATE reservations
		SET status=$2, completed_at=$3, updated_at=$4 WHERE id=$1`,
		r.ID, string(r.Status), r.CompletedAt, r.UpdatedAt)
	return err
}

func (t *pgTx) AppendTransaction(ctx context.Context, tr *domain.StockTransaction) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO stock_transactions
		(ledger_id, type, quantity, reference, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		tr.LedgerID, string(tr.Type), tr.Quantity, tr.Reference, tr.Notes, tr.CreatedAt)
	return err
}

func (t *pgTx) AppendEvent(ctx context.Context, eventType, key string, payload []byte) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status)
		VALUES ('inventory', $1, $2, $3, $4, $5)`,
		key, eventType, payload, tracing.Traceparent(ctx), string(outbox.StatusPending))
	return err
}

func (s *Store) LedgerByID(ctx context.Context, id string) (*domain.StockLedger, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM inventory_ledgers WHERE id=$1`, id)
	return scanLedger(row)
}

func (s *Store) LedgerByProduct(ctx context.Context, productID string) (*domain.StockLedger, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM inventory_ledgers WHERE product_id=$1`, productID)
	return scanLedger(row)
}

func (s *Store) ListLedgers(ctx context.Context, filter application.LedgerFilter) ([]domain.StockLedger, int64, error) {
	where := ``
	if filter.LowStock {
		where = ` WHERE available <= reorder_level`
	}

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM inventory_ledgers`+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, limit := normalize(filter.Page, filter.Limit)
	rows, err := s.pool.Query(ctx, `SELECT `+ledgerColumns+` FROM inventory_ledgers`+where+
		` ORDER BY product_id LIMIT $1 OFFSET $2`, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.StockLedger
	for rows.Next() {
		l, err := scanLedger(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *l)
	}
	return out, total, rows.Err()
}

func (s *Store) ActiveReservations(ctx context.Context, ledgerID string) ([]domain.Reservation, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+reservationColumns+` FROM reservations
		WHERE ledger_id=$1 AND status='ACTIVE' ORDER BY created_at`, ledgerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) ExpiredReservations(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+reservationColumns+` FROM reservations
		WHERE status='ACTIVE' AND expires_at < $1 ORDER BY expires_at LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) Transactions(ctx context.Context, ledgerID string, page application.Page) ([]domain.StockTransaction, int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM stock_transactions WHERE ledger_id=$1`, ledgerID).Scan(&total); err != nil {
		return nil, 0, err
	}

	p, limit := normalize(page.Page, page.Limit)
	rows, err := s.pool.Query(ctx, `SELECT id, ledger_id, type, quantity, reference, notes, created_at
		FROM stock_transactions WHERE ledger_id=$1 ORDER BY id DESC LIMIT $2 OFFSET $3`,
		ledgerID, limit, (p-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.StockTransaction
	for rows.Next() {
		var tr domain.StockTransaction
		var typ string
		if err := rows.Scan(&tr.ID, &tr.LedgerID, &typ, &tr.Quantity, &tr.Reference, &tr.Notes, &tr.CreatedAt); err != nil {
			return nil, 0, err
		}
		tr.Type = domain.TransactionType(typ)
		out = append(out, tr)
	}
	return out, total, rows.Err()
}

func (s *Store) AppendEvent(ctx context.Context, eventType, key string, payload []byte) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status)
		VALUES ('inventory', $1, $2, $3, $4, $5)`,
		key, eventType, payload, tracing.Traceparent(ctx), string(outbox.StatusPending))
	return err
}

func scanLedger(row pgx.Row) (*domain.StockLedger, error) {
	var l domain.StockLedger
	err := row.Scan(&l.ID, &l.ProductID, &l.SKU, &l.Available, &l.Reserved, &l.Total,
		&l.ReorderLevel, &l.ReorderQty, &l.Version, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrLedgerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var r domain.Reservation
	var status string
	err := row.Scan(&r.ID, &r.LedgerID, &r.OrderID, &r.UserID, &r.Quantity, &status,
		&r.ExpiresAt, &r.CompletedAt, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Status = domain.ReservationStatus(status)
	return &r, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
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
