package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"rebooked-marketplace/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, buyer_id, seller_id, items, total_amount, delivery_fee, status, payment_reference,
		shipping_address, pickup_address, waybill_number, courier_shipment_id, courier_pickup_date, estimated_delivery,
		decline_reason, delivery_note, refund_status, created_at, paid_at, committed_at, declined_at, collected_at,
		delivered_at, updated_at`

// stampColumn is the timestamp set when an order enters a status.
var stampColumn = map[domain.OrderStatus]string{
	domain.OrderStatusCommitted: "committed_at",
	domain.OrderStatusDeclined:  "declined_at",
	domain.OrderStatusCollected: "collected_at",
	domain.OrderStatusDelivered: "delivered_at",
}

// staleColumn is the timestamp an order's age in a status is measured from.
var staleColumn = map[domain.OrderStatus]string{
	domain.OrderStatusPendingCommit:    "created_at",
	domain.OrderStatusCourierScheduled: "courier_pickup_date",
	domain.OrderStatusCollected:        "collected_at",
}

// OrderRepo implements ports.OrderRepository.
type OrderRepo struct {
	pool Pool
}

func NewOrderRepo(pool Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

// CreateIfAbsent inserts the order; the (payment_reference, seller_id)
// unique key turns a repeat into a no-op.
func (r *OrderRepo) CreateIfAbsent(ctx context.Context, tx pgx.Tx, o *domain.Order) (bool, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return false, fmt.Errorf("marshal order items: %w", err)
	}
	shipping, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return false, fmt.Errorf("marshal shipping address: %w", err)
	}

	query := `INSERT INTO orders (id, buyer_id, seller_id, items, total_amount, delivery_fee, status,
		payment_reference, shipping_address, refund_status, decline_reason, declined_at,
		created_at, paid_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (payment_reference, seller_id) DO NOTHING`

	tag, err := on(r.pool, tx).Exec(ctx, query,
		o.ID, o.BuyerID, o.SellerID, items, o.TotalAmount, o.DeliveryFee, o.Status,
		o.PaymentReference, shipping, o.RefundStatus, o.DeclineReason, o.DeclinedAt,
		o.CreatedAt, o.PaidAt, o.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert order: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrder(r.pool.QueryRow(ctx, query, id))
}

func (r *OrderRepo) ListByPaymentReference(ctx context.Context, reference string) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE payment_reference = $1 ORDER BY created_at, seller_id`
	rows, err := r.pool.Query(ctx, query, reference)
	if err != nil {
		return nil, fmt.Errorf("list orders by reference: %w", err)
	}
	return collectOrders(rows)
}

// List fetches orders with filtering and pagination, newest first.
func (r *OrderRepo) List(ctx context.Context, params domain.OrderListParams) ([]domain.Order, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.BuyerID != nil {
		conditions = append(conditions, fmt.Sprintf("buyer_id = $%d", argIdx))
		args = append(args, *params.BuyerID)
		argIdx++
	}
	if params.SellerID != nil {
		conditions = append(conditions, fmt.Sprintf("seller_id = $%d", argIdx))
		args = append(args, *params.SellerID)
		argIdx++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM orders %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM orders %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	orders, err := collectOrders(rows)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListStale returns orders that entered q.Status before q.Before, oldest first.
func (r *OrderRepo) ListStale(ctx context.Context, q domain.StaleOrderQuery) ([]domain.Order, error) {
	col, ok := staleColumn[q.Status]
	if !ok {
		col = "updated_at"
	}
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE status = $1 AND %s IS NOT NULL AND %s < $2
		ORDER BY %s LIMIT $3`, orderColumns, col, col, col)

	rows, err := r.pool.Query(ctx, query, q.Status, q.Before, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("list stale orders: %w", err)
	}
	return collectOrders(rows)
}

// Transition updates the order only while its status is one of t.From and
// returns the new row, or nil when nothing matched.
func (r *OrderRepo) Transition(ctx context.Context, tx pgx.Tx, t domain.OrderTransition) (*domain.Order, error) {
	sets := []string{"status = $1", "updated_at = $2"}
	args := []any{t.To, t.At}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if col, ok := stampColumn[t.To]; ok {
		add(col, t.At)
	}
	if t.DeclineReason != nil {
		add("decline_reason", *t.DeclineReason)
	}
	if t.DeliveryNote != nil {
		add("delivery_note", *t.DeliveryNote)
	}
	if t.WaybillNumber != nil {
		add("waybill_number", *t.WaybillNumber)
	}
	if t.CourierShipmentID != nil {
		add("courier_shipment_id", *t.CourierShipmentID)
	}
	if t.CourierPickupDate != nil {
		add("courier_pickup_date", *t.CourierPickupDate)
	}
	if t.EstimatedDelivery != nil {
		add("estimated_delivery", *t.EstimatedDelivery)
	}
	if t.PickupAddress != nil {
		raw, err := json.Marshal(t.PickupAddress)
		if err != nil {
			return nil, fmt.Errorf("marshal pickup address: %w", err)
		}
		add("pickup_address", raw)
	}

	from := make([]string, len(t.From))
	for i, s := range t.From {
		from[i] = string(s)
	}
	args = append(args, t.OrderID, from)
	query := fmt.Sprintf(`UPDATE orders SET %s WHERE id = $%d AND status = ANY($%d)
		RETURNING %s`, strings.Join(sets, ", "), len(args)-1, len(args), orderColumns)

	return scanOrder(on(r.pool, tx).QueryRow(ctx, query, args...))
}

func (r *OrderRepo) UpdateRefundStatus(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status domain.OrderRefundStatus) error {
	query := `UPDATE orders SET refund_status = $1, updated_at = NOW() WHERE id = $2`
	tag, err := on(r.pool, tx).Exec(ctx, query, status, orderID)
	if err != nil {
		return fmt.Errorf("update refund status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order not found: %s", orderID)
	}
	return nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	o, err := scanOrderRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return o, nil
}

func collectOrders(rows pgx.Rows) ([]domain.Order, error) {
	defer rows.Close()
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrderRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, nil
}

func scanOrderRow(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var items, shipping, pickup []byte
	err := row.Scan(
		&o.ID, &o.BuyerID, &o.SellerID, &items, &o.TotalAmount, &o.DeliveryFee, &o.Status, &o.PaymentReference,
		&shipping, &pickup, &o.WaybillNumber, &o.CourierShipmentID, &o.CourierPickupDate, &o.EstimatedDelivery,
		&o.DeclineReason, &o.DeliveryNote, &o.RefundStatus, &o.CreatedAt, &o.PaidAt, &o.CommittedAt, &o.DeclinedAt,
		&o.CollectedAt, &o.DeliveredAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	if err := json.Unmarshal(shipping, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("decode shipping address: %w", err)
	}
	if o.PickupAddress, err = decodeAddress(pickup); err != nil {
		return nil, fmt.Errorf("decode pickup address: %w", err)
	}
	return &o, nil
}

func decodeAddress(raw []byte) (*domain.Address, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var a domain.Address
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
