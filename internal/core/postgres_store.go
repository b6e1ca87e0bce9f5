package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type postgresStore struct {
	pool *pgxpool.Pool
}

// PostgresStore is the PostgreSQL-backed PurchaseOrderStore. It also serves the
// category → allowed makes lookup from procurement request categories.
type PostgresStore interface {
	PurchaseOrderStore
	CategoryMakesLookup
}

var _ CancelWriter = (*postgresStore)(nil)

// NewPostgresStore constructs a PostgresStore. Order lists, payment splits and delivery
// contacts are stored as jsonb documents on the purchase_orders row.
func NewPostgresStore(pool *pgxpool.Pool) PostgresStore {
	return &postgresStore{pool: pool}
}

const poColumns = `
	id, project_id, project_name, vendor_id, vendor_name, procurement_request_id,
	order_list, status, merged_into, merged, payments_total,
	loading, freight, payment_split, delivery_contact, created_at, updated_at`

func scanPO(row pgx.Row) (*PurchaseOrder, error) {
	po := &PurchaseOrder{}
	var status string
	if err := row.Scan(
		&po.ID, &po.ProjectID, &po.ProjectName, &po.VendorID, &po.VendorName, &po.ProcurementRequestID,
		&po.OrderList, &status, &po.MergedInto, &po.Merged, &po.PaymentsTotal,
		&po.Surcharges.Loading, &po.Surcharges.Freight, &po.PaymentSplit, &po.DeliveryContact,
		&po.CreatedAt, &po.UpdatedAt,
	); err != nil {
		return nil, err
	}
	st, err := ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("purchase order %s: %w", po.ID, err)
	}
	po.Status = st
	return po, nil
}

// GetPO returns a purchase order by id.
func (s *postgresStore) GetPO(ctx context.Context, id string) (*PurchaseOrder, error) {
	po, err := scanPO(s.pool.QueryRow(ctx, "SELECT "+poColumns+" FROM purchase_orders WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("purchase order %s: %w", id, ErrPONotFound)
		}
		return nil, fmt.Errorf("get purchase order %s: %w", id, err)
	}
	return po, nil
}

// ListPOs returns purchase orders matching filter, oldest first.
func (s *postgresStore) ListPOs(ctx context.Context, filter POFilter) ([]PurchaseOrder, error) {
	query := "SELECT " + poColumns + " FROM purchase_orders WHERE true"
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND %s = $%d", clause, len(args))
	}
	if filter.ProjectID != "" {
		add("project_id", filter.ProjectID)
	}
	if filter.VendorID != "" {
		add("vendor_id", filter.VendorID)
	}
	if filter.Status != "" {
		add("status", string(filter.Status))
	}
	if filter.MergedInto != "" {
		add("merged_into", filter.MergedInto)
	}
	query += " ORDER BY created_at, id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	defer rows.Close()

	var orders []PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase order: %w", err)
		}
		orders = append(orders, *po)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	return orders, nil
}

// CreatePO inserts po. Re-inserting the same id is a no-op so a retried merge does not
// fail on the consolidated PO it already created.
func (s *postgresStore) CreatePO(ctx context.Context, po PurchaseOrder) error {
	if err := po.Validate(); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO purchase_orders (id, project_id, project_name, vendor_id, vendor_name, procurement_request_id,
		                             order_list, status, merged_into, merged, payments_total,
		                             loading, freight, payment_split, delivery_contact, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO NOTHING`,
		po.ID, po.ProjectID, po.ProjectName, po.VendorID, po.VendorName, po.ProcurementRequestID,
		po.OrderList, string(po.Status), po.MergedInto, po.Merged, po.PaymentsTotal,
		po.Surcharges.Loading, po.Surcharges.Freight, po.PaymentSplit, po.DeliveryContact, po.CreatedAt, po.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert purchase order %s: %w", po.ID, err)
	}
	return nil
}

// SavePO replaces the mutable fields of an existing purchase order.
func (s *postgresStore) SavePO(ctx context.Context, po PurchaseOrder) error {
	return savePO(ctx, s.pool, po)
}

func savePO(ctx context.Context, db execer, po PurchaseOrder) error {
	tag, err := db.Exec(ctx, `
		UPDATE purchase_orders
		SET order_list = $1, status = $2, merged_into = $3, merged = $4, payments_total = $5,
		    loading = $6, freight = $7, payment_split = $8, delivery_contact = $9, updated_at = $10
		WHERE id = $11`,
		po.OrderList, string(po.Status), po.MergedInto, po.Merged, po.PaymentsTotal,
		po.Surcharges.Loading, po.Surcharges.Freight, po.PaymentSplit, po.DeliveryContact, po.UpdatedAt,
		po.ID,
	)
	if err != nil {
		return fmt.Errorf("save purchase order %s: %w", po.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("purchase order %s: %w", po.ID, ErrPONotFound)
	}
	return nil
}

// UpdateStatus sets status and merged_into while the row is still in u.From or
// already carries the update. Applying the same update twice is harmless.
func (s *postgresStore) UpdateStatus(ctx context.Context, u StatusUpdate) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE purchase_orders
		SET status = $1, merged_into = $2, updated_at = NOW()
		WHERE id = $3 AND (status = $4 OR (status = $1 AND merged_into IS NOT DISTINCT FROM $2))`,
		string(u.To), u.MergedInto, u.POID, string(u.From),
	)
	if err != nil {
		return fmt.Errorf("update purchase order %s to %s: %w", u.POID, u.To, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	current, err := s.GetPO(ctx, u.POID)
	if err != nil {
		return err
	}
	return CheckStatusUpdate(*current, u)
}

// DeletePO removes a purchase order. Deleting a missing PO is not an error.
func (s *postgresStore) DeletePO(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM purchase_orders WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete purchase order %s: %w", id, err)
	}
	return nil
}

// CreateSentBack inserts a sent-back record.
func (s *postgresStore) CreateSentBack(ctx context.Context, rec SentBackRecord) error {
	return insertSentBack(ctx, s.pool, rec)
}

// CancelWithSentBack saves the cancelled PO and inserts its sent-back record in one transaction.
func (s *postgresStore) CancelWithSentBack(ctx context.Context, cancelled PurchaseOrder, rec SentBackRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertSentBack(ctx, tx, rec); err != nil {
		return err
	}
	if err := savePO(ctx, tx, cancelled); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit cancellation of %s: %w", cancelled.ID, err)
	}
	return nil
}

func insertSentBack(ctx context.Context, db execer, rec SentBackRecord) error {
	if _, err := db.Exec(ctx, `
		INSERT INTO sent_back_records (id, type, source_po_id, procurement_request_id, project_id, vendor_id,
		                               items, categories, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Type, rec.SourcePOID, rec.ProcurementRequestID, rec.ProjectID, rec.VendorID,
		rec.Items, rec.Categories, rec.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert sent-back record for %s: %w", rec.SourcePOID, err)
	}
	return nil
}

// CategoryMakes returns category → allowed makes for a procurement request.
func (s *postgresStore) CategoryMakes(ctx context.Context, procurementRequestID string) (map[string][]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT category, makes
		FROM procurement_request_categories
		WHERE procurement_request_id = $1`,
		procurementRequestID,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch categories for procurement request %s: %w", procurementRequestID, err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var category string
		var makes []string
		if err := rows.Scan(&category, &makes); err != nil {
			return nil, fmt.Errorf("scan procurement request category: %w", err)
		}
		out[category] = makes
	}
	return out, rows.Err()
}
