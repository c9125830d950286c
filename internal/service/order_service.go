package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rebooked-marketplace/config"
	"rebooked-marketplace/internal/core/domain"
	"rebooked-marketplace/internal/core/ports"
	"rebooked-marketplace/pkg/apperror"
	"rebooked-marketplace/pkg/metrics"
	"rebooked-marketplace/pkg/money"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const (
	autoDeliveredNote = "auto-marked after timeout"
	deliveryFlagNote  = "delivery timeout flagged for review"
	perBookWeightKg   = 1.0
)

// Actor labels for system-driven transitions.
var (
	actorWebhook = domain.SystemActor("paystack-webhook")
	actorExpire  = domain.SystemActor("auto-expire")
	actorExpiry  = domain.SystemActor("check-expired-orders")
)

// LifecycleConfig holds the order timing rules.
type LifecycleConfig struct {
	CommitWindow          time.Duration
	CollectionTimeout     time.Duration
	DeliveryTimeout       time.Duration
	DeliveryTimeoutPolicy config.DeliveryTimeoutPolicy
}

// OrderServiceImpl implements ports.OrderService.
type OrderServiceImpl struct {
	orders     ports.OrderRepository
	books      ports.BookRepository
	payments   ports.PaymentRepository
	refunds    ports.RefundRepository
	events     ports.OrderEventRepository
	profiles   ports.ProfileRepository
	transactor ports.DBTransactor
	courier    ports.CourierService
	refundSvc  ports.RefundService
	notifier   ports.NotificationService
	cfg        LifecycleConfig
	metrics    *metrics.DomainMetrics
	log        zerolog.Logger
	now        func() time.Time
}

// OrderDeps groups the collaborators of OrderServiceImpl.
type OrderDeps struct {
	Orders     ports.OrderRepository
	Books      ports.BookRepository
	Payments   ports.PaymentRepository
	Refunds    ports.RefundRepository
	Events     ports.OrderEventRepository
	Profiles   ports.ProfileRepository
	Transactor ports.DBTransactor
	Courier    ports.CourierService
	RefundSvc  ports.RefundService
	Notifier   ports.NotificationService
	Metrics    *metrics.DomainMetrics
}

func NewOrderService(deps OrderDeps, cfg LifecycleConfig, log zerolog.Logger) *OrderServiceImpl {
	if cfg.CommitWindow <= 0 {
		cfg.CommitWindow = 48 * time.Hour
	}
	if cfg.CollectionTimeout <= 0 {
		cfg.CollectionTimeout = 7 * 24 * time.Hour
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 14 * 24 * time.Hour
	}
	if cfg.DeliveryTimeoutPolicy == "" {
		cfg.DeliveryTimeoutPolicy = config.DeliveryTimeoutAutoDeliver
	}
	return &OrderServiceImpl{
		orders:     deps.Orders,
		books:      deps.Books,
		payments:   deps.Payments,
		refunds:    deps.Refunds,
		events:     deps.Events,
		profiles:   deps.Profiles,
		transactor: deps.Transactor,
		courier:    deps.Courier,
		refundSvc:  deps.RefundSvc,
		notifier:   deps.Notifier,
		cfg:        cfg,
		metrics:    deps.Metrics,
		log:        log,
		now:        time.Now,
	}
}

// CreateFromPayment turns a successful payment into one pending_commit order
// per seller and marks the books sold. Orders that already exist for the
// payment are left alone, so the call is safe to repeat. A seller whose books
// were sold to someone else in the meantime gets a cancelled order and the
// buyer is refunded that share. Only newly created live orders are returned.
func (s *OrderServiceImpl) CreateFromPayment(ctx context.Context, reference string) ([]domain.Order, error) {
	payment, err := s.payments.GetByReference(ctx, reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load payment: %w", err))
	}
	if payment == nil {
		return nil, apperror.ErrNotFound("Payment")
	}
	if payment.Status != domain.PaymentStatusSuccess {
		return nil, apperror.ErrConflict(fmt.Sprintf("payment %s is %s", reference, payment.Status))
	}
	if len(payment.Metadata.Sellers) == 0 {
		return nil, apperror.InternalError(fmt.Errorf("payment %s has no seller allocations", reference))
	}

	existing, err := s.orders.ListByPaymentReference(ctx, reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list payment orders: %w", err))
	}
	hasOrder := make(map[uuid.UUID]bool, len(existing))
	for _, o := range existing {
		hasOrder[o.SellerID] = true
	}

	log := s.log.With().Str("reference", reference).Logger()
	now := s.now().UTC()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	var created []domain.Order
	var unavailable []unavailableOrder
	for _, alloc := range payment.Metadata.Sellers {
		if hasOrder[alloc.SellerID] {
			log.Info().Str("seller_id", alloc.SellerID.String()).Msg("order already exists for seller")
			continue
		}
		order := domain.Order{
			ID:               uuid.New(),
			BuyerID:          payment.BuyerID,
			SellerID:         alloc.SellerID,
			Items:            alloc.Items,
			TotalAmount:      alloc.Share,
			DeliveryFee:      alloc.DeliveryShare(),
			Status:           domain.OrderStatusPendingCommit,
			PaymentReference: reference,
			ShippingAddress:  payment.Metadata.ShippingAddress,
			RefundStatus:     domain.OrderRefundNone,
			CreatedAt:        now,
			PaidAt:           payment.PaidAt,
			UpdatedAt:        now,
		}

		marked, err := s.books.MarkSold(ctx, dbTx, order.BookIDs())
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("mark books sold: %w", err))
		}
		if missing := missingBooks(&order, marked); len(missing) > 0 {
			u, err := s.cancelUnavailable(ctx, dbTx, &order, marked, missing, now)
			if err != nil {
				return nil, err
			}
			if u != nil {
				log.Warn().
					Str("seller_id", alloc.SellerID.String()).
					Strs("books", missing).
					Msg("books already sold, order cancelled for refund")
				unavailable = append(unavailable, *u)
			}
			continue
		}

		ok, err := s.orders.CreateIfAbsent(ctx, dbTx, &order)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("create order: %w", err))
		}
		if !ok {
			log.Info().Str("seller_id", alloc.SellerID.String()).Msg("order already exists for seller")
			continue
		}
		if err := s.recordEvent(ctx, dbTx, order.ID, "", domain.OrderStatusPendingCommit, actorWebhook, "", now); err != nil {
			return nil, err
		}
		created = append(created, order)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	for i := range created {
		s.metrics.Transition(string(domain.OrderStatusPendingCommit))
		data := orderData(&created[i])
		data["Deadline"] = formatTime(created[i].CreatedAt.Add(s.cfg.CommitWindow))
		s.notify(ctx, created[i].SellerID, TplNewOrderSeller, data)
	}
	if len(created) > 0 {
		s.notify(ctx, payment.BuyerID, TplPaymentConfirmedBuyer, map[string]any{
			"OrderID": reference,
			"Amount":  money.Format(payment.Amount),
			"Books":   cartTitles(payment.Metadata.Items),
		})
	}
	for i := range unavailable {
		s.refundUnavailable(ctx, &unavailable[i])
	}

	if len(created) > 0 || len(unavailable) > 0 {
		log.Info().
			Int("orders", len(created)).
			Int("unavailable", len(unavailable)).
			Msg("orders created from payment")
	}
	if len(created) == 0 {
		return nil, nil
	}
	return created, nil
}

// unavailableOrder is a seller share that could not be fulfilled because a
// book was sold elsewhere first.
type unavailableOrder struct {
	order   domain.Order
	refund  *domain.RefundTransaction
	missing []string
}

// missingBooks lists the titles of order items that MarkSold did not flip.
func missingBooks(order *domain.Order, marked []uuid.UUID) []string {
	got := make(map[uuid.UUID]bool, len(marked))
	for _, id := range marked {
		got[id] = true
	}
	var missing []string
	for _, it := range order.Items {
		if !got[it.BookID] {
			missing = append(missing, it.Title)
		}
	}
	return missing
}

// cancelUnavailable relists the books this payment did manage to mark, stores
// the order as cancelled and opens a refund for the seller's share. It returns
// nil when the order was already stored by a concurrent run.
func (s *OrderServiceImpl) cancelUnavailable(ctx context.Context, dbTx pgx.Tx, order *domain.Order, marked []uuid.UUID, missing []string, now time.Time) (*unavailableOrder, error) {
	if len(marked) > 0 {
		if err := s.books.Restore(ctx, dbTx, order.ID, marked); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("restore books: %w", err))
		}
	}

	reason := "already sold: " + strings.Join(missing, ", ")
	order.Status = domain.OrderStatusCancelled
	order.RefundStatus = domain.OrderRefundPending
	order.DeclineReason = &reason
	order.DeclinedAt = &now

	ok, err := s.orders.CreateIfAbsent(ctx, dbTx, order)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create order: %w", err))
	}
	if !ok {
		return nil, nil
	}
	if err := s.recordEvent(ctx, dbTx, order.ID, "", domain.OrderStatusCancelled, actorWebhook, reason, now); err != nil {
		return nil, err
	}

	refund := &domain.RefundTransaction{
		ID:               uuid.New(),
		OrderID:          order.ID,
		PaymentReference: order.PaymentReference,
		Amount:           order.TotalAmount,
		Status:           domain.RefundStatusPending,
		Reason:           "order cancelled: " + reason,
		CreatedAt:        now,
	}
	if _, err := s.refunds.Create(ctx, dbTx, refund); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create refund: %w", err))
	}
	return &unavailableOrder{order: *order, refund: refund, missing: missing}, nil
}

// refundUnavailable runs the gateway refund for a cancelled share and tells
// the buyer and the admins.
func (s *OrderServiceImpl) refundUnavailable(ctx context.Context, u *unavailableOrder) {
	s.metrics.Transition(string(domain.OrderStatusCancelled))

	result, err := s.refundSvc.Execute(ctx, u.refund)
	if err != nil {
		s.log.Error().Err(err).Str("order_id", u.order.ID.String()).Msg("refund for unavailable books failed")
	}
	if result != nil {
		u.refund = result
	}

	data := orderData(&u.order)
	data["Unavailable"] = u.missing
	data["RefundStatus"] = string(u.refund.OrderRefundStatus())
	s.notify(ctx, u.order.BuyerID, TplOrderUnavailableBuyer, data)

	data["Reference"] = u.order.PaymentReference
	data["SellerID"] = u.order.SellerID.String()
	s.notifyAdmin(ctx, TplAdminBookAlreadySold, data)
}

// Get returns an order with its events and refund to a party or an admin.
func (s *OrderServiceImpl) Get(ctx context.Context, actor ports.Actor, orderID uuid.UUID) (*ports.OrderDetails, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && !order.IsParty(actor.UserID) {
		return nil, apperror.ErrForbidden()
	}

	events, err := s.events.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list order events: %w", err))
	}
	refund, err := s.refunds.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get refund: %w", err))
	}
	return &ports.OrderDetails{Order: *order, Events: events, Refund: refund}, nil
}

// List pages through the caller's orders as buyer or seller.
func (s *OrderServiceImpl) List(ctx context.Context, actor ports.Actor, filter ports.OrderFilter) ([]domain.Order, int64, error) {
	page, size := normalizePage(filter.Page, filter.PageSize)
	params := domain.OrderListParams{Status: filter.Status, Page: page, PageSize: size}
	uid := actor.UserID
	switch filter.Role {
	case "", "buyer":
		params.BuyerID = &uid
	case "seller":
		params.SellerID = &uid
	default:
		return nil, 0, apperror.Validation("role must be buyer or seller")
	}

	orders, total, err := s.orders.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list orders: %w", err))
	}
	return orders, total, nil
}

// Commit accepts the order for the seller and books the courier. A failed
// booking leaves the order committed for a later ScheduleCourier.
func (s *OrderServiceImpl) Commit(ctx context.Context, actor ports.Actor, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != actor.UserID {
		return nil, apperror.ErrForbidden()
	}

	committed, _, err := s.apply(ctx, order, domain.OrderTransition{
		To:    domain.OrderStatusCommitted,
		Actor: domain.SellerActor(actor.UserID),
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, committed.BuyerID, TplOrderCommittedBuyer, orderData(committed))

	scheduled, err := s.scheduleCourier(ctx, committed, domain.SellerActor(actor.UserID))
	if err != nil {
		s.log.Warn().Err(err).Str("order_id", orderID.String()).Msg("courier booking failed after commit")
		s.notify(ctx, committed.SellerID, TplCourierBookingFailed, orderData(committed))
		return committed, nil
	}
	return scheduled, nil
}

// Decline rejects the order for the seller, refunds the buyer and relists
// the books.
func (s *OrderServiceImpl) Decline(ctx context.Context, actor ports.Actor, orderID uuid.UUID, reason string) (*domain.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != actor.UserID {
		return nil, apperror.ErrForbidden()
	}

	reason = strings.TrimSpace(reason)
	t := domain.OrderTransition{
		To:    domain.OrderStatusDeclined,
		Actor: domain.SellerActor(actor.UserID),
		Note:  reason,
	}
	if reason != "" {
		t.DeclineReason = &reason
	}
	declined, _, err := s.apply(ctx, order, t)
	if err != nil {
		return nil, err
	}

	data := orderData(declined)
	data["Reason"] = reason
	s.notify(ctx, declined.BuyerID, TplOrderDeclinedBuyer, data)
	s.notify(ctx, declined.SellerID, TplOrderDeclinedSeller, data)
	return declined, nil
}

// Cancel withdraws the order for the buyer before the courier is booked.
func (s *OrderServiceImpl) Cancel(ctx context.Context, actor ports.Actor, orderID uuid.UUID, reason string) (*domain.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != actor.UserID && !actor.IsAdmin {
		return nil, apperror.ErrForbidden()
	}

	label := domain.BuyerActor(actor.UserID)
	if order.BuyerID != actor.UserID {
		label = domain.AdminActor(actor.UserID)
	}
	reason = strings.TrimSpace(reason)
	cancelled, _, err := s.apply(ctx, order, domain.OrderTransition{
		To:    domain.OrderStatusCancelled,
		Actor: label,
		Note:  reason,
	})
	if err != nil {
		return nil, err
	}

	data := orderData(cancelled)
	data["Reason"] = reason
	s.notify(ctx, cancelled.BuyerID, TplOrderCancelledBuyer, data)
	s.notify(ctx, cancelled.SellerID, TplOrderCancelledSeller, data)
	return cancelled, nil
}

// ScheduleCourier retries the courier booking of a committed order.
func (s *OrderServiceImpl) ScheduleCourier(ctx context.Context, actor ports.Actor, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != actor.UserID && !actor.IsAdmin {
		return nil, apperror.ErrForbidden()
	}
	if order.Status != domain.OrderStatusCommitted {
		return nil, conflictFor(order.Status, domain.OrderStatusCourierScheduled)
	}
	return s.scheduleCourier(ctx, order, actorLabel(actor, order))
}

// MarkCollected records the courier pickup.
func (s *OrderServiceImpl) MarkCollected(ctx context.Context, actor ports.Actor, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != actor.UserID && !actor.IsAdmin {
		return nil, apperror.ErrForbidden()
	}

	collected, _, err := s.apply(ctx, order, domain.OrderTransition{
		To:    domain.OrderStatusCollected,
		Actor: actorLabel(actor, order),
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, collected.BuyerID, TplOrderCollectedBuyer, orderData(collected))
	return collected, nil
}

// ConfirmDelivery closes the order for the buyer.
func (s *OrderServiceImpl) ConfirmDelivery(ctx context.Context, actor ports.Actor, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != actor.UserID && !actor.IsAdmin {
		return nil, apperror.ErrForbidden()
	}

	delivered, _, err := s.apply(ctx, order, domain.OrderTransition{
		To:    domain.OrderStatusDelivered,
		Actor: actorLabel(actor, order),
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, delivered.SellerID, TplOrderDeliveredSeller, orderData(delivered))
	return delivered, nil
}

// Expire closes an order the seller never committed to and refunds it. The
// returned refund carries the gateway outcome.
func (s *OrderServiceImpl) Expire(ctx context.Context, orderID uuid.UUID) (*domain.Order, *domain.RefundTransaction, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if deadline := order.CreatedAt.Add(s.cfg.CommitWindow); !s.now().After(deadline) {
		return nil, nil, apperror.ErrConflict("commit window is still open")
	}

	expired, refund, err := s.apply(ctx, order, domain.OrderTransition{
		To:    domain.OrderStatusExpired,
		Actor: actorExpire,
		Note:  "seller did not commit in time",
	})
	if err != nil {
		return nil, nil, err
	}

	data := orderData(expired)
	s.notify(ctx, expired.BuyerID, TplOrderExpiredBuyer, data)
	s.notify(ctx, expired.SellerID, TplOrderExpiredSeller, data)
	return expired, refund, nil
}

// TimeoutCollection closes a scheduled order the courier never collected
// and hands it to the admin.
func (s *OrderServiceImpl) TimeoutCollection(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CourierPickupDate == nil || !s.now().After(order.CourierPickupDate.Add(s.cfg.CollectionTimeout)) {
		return nil, apperror.ErrConflict("collection window is still open")
	}

	timedOut, _, err := s.apply(ctx, order, domain.OrderTransition{
		To:    domain.OrderStatusCollectionTimeout,
		Actor: actorExpiry,
		Note:  "not collected within the collection window",
	})
	if err != nil {
		return nil, err
	}

	data := orderData(timedOut)
	data["PickupDate"] = formatTime(*order.CourierPickupDate)
	data["Waybill"] = deref(order.WaybillNumber)
	s.notifyAdmin(ctx, TplAdminCollectionTimeout, data)
	return timedOut, nil
}

// ResolveDeliveryTimeout applies the delivery timeout policy to a collected
// order whose delivery was never confirmed.
func (s *OrderServiceImpl) ResolveDeliveryTimeout(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CollectedAt == nil || !s.now().After(order.CollectedAt.Add(s.cfg.DeliveryTimeout)) {
		return nil, apperror.ErrConflict("delivery window is still open")
	}
	days := int(s.cfg.DeliveryTimeout.Hours() / 24)

	if s.cfg.DeliveryTimeoutPolicy == config.DeliveryTimeoutFlag {
		return s.flagDelivery(ctx, order, days)
	}

	note := autoDeliveredNote
	delivered, _, err := s.apply(ctx, order, domain.OrderTransition{
		To:           domain.OrderStatusDelivered,
		Actor:        actorExpiry,
		Note:         note,
		DeliveryNote: &note,
	})
	if err != nil {
		return nil, err
	}

	data := orderData(delivered)
	data["Days"] = days
	s.notify(ctx, delivered.BuyerID, TplDeliveryAutoMarked, data)
	s.notify(ctx, delivered.SellerID, TplDeliveryAutoMarked, data)
	return delivered, nil
}

// flagDelivery records the timeout without changing status. An order is
// flagged once.
func (s *OrderServiceImpl) flagDelivery(ctx context.Context, order *domain.Order, days int) (*domain.Order, error) {
	events, err := s.events.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list order events: %w", err))
	}
	for _, e := range events {
		if e.ToStatus == domain.OrderStatusCollected && e.Note == deliveryFlagNote {
			return order, nil
		}
	}

	if err := s.recordEvent(ctx, nil, order.ID, order.Status, order.Status, actorExpiry, deliveryFlagNote, s.now().UTC()); err != nil {
		return nil, err
	}
	data := orderData(order)
	data["Days"] = days
	data["CollectedAt"] = formatTime(*order.CollectedAt)
	s.notifyAdmin(ctx, TplAdminDeliveryFlagged, data)
	return order, nil
}

// scheduleCourier books the shipment and moves a committed order to
// courier_scheduled.
func (s *OrderServiceImpl) scheduleCourier(ctx context.Context, order *domain.Order, actor string) (*domain.Order, error) {
	seller, err := s.profiles.GetByID(ctx, order.SellerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load seller: %w", err))
	}
	if seller == nil {
		return nil, apperror.ErrNotFound("Seller profile")
	}
	pickup := order.PickupAddress
	if pickup == nil {
		pickup = seller.PickupAddress
	}
	if pickup == nil {
		return nil, apperror.Validation("seller has no pickup address")
	}
	buyer, err := s.profiles.GetByID(ctx, order.BuyerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load buyer: %w", err))
	}
	if buyer == nil {
		buyer = &domain.Profile{ID: order.BuyerID}
	}

	now := s.now().UTC()
	parcel := domain.DefaultParcel()
	parcel.WeightKg = perBookWeightKg * float64(len(order.Items))
	parcel.Value = order.ItemsTotal()

	shipment, err := s.courier.CreateShipment(ctx, domain.ShipmentRequest{
		OrderID:        order.ID.String(),
		Reference:      order.PaymentReference,
		Collection:     *pickup,
		CollectionName: seller.Name,
		CollectionMail: seller.Email,
		Delivery:       order.ShippingAddress,
		DeliveryName:   buyer.Name,
		DeliveryMail:   buyer.Email,
		Parcel:         parcel,
		CollectAfter:   now.Add(24 * time.Hour),
	})
	if err != nil {
		return nil, err
	}

	pickupDate := shipment.PickupDate
	if pickupDate.IsZero() {
		pickupDate = now.Add(24 * time.Hour)
	}
	t := domain.OrderTransition{
		To:                domain.OrderStatusCourierScheduled,
		Actor:             actor,
		Note:              "waybill " + shipment.WaybillNumber,
		WaybillNumber:     &shipment.WaybillNumber,
		CourierShipmentID: &shipment.ShipmentID,
		CourierPickupDate: &pickupDate,
		PickupAddress:     pickup,
	}
	if !shipment.EstimatedDelivery.IsZero() {
		t.EstimatedDelivery = &shipment.EstimatedDelivery
	}
	scheduled, _, err := s.apply(ctx, order, t)
	if err != nil {
		return nil, err
	}

	data := orderData(scheduled)
	data["Waybill"] = shipment.WaybillNumber
	data["PickupDate"] = formatTime(pickupDate)
	data["EstimatedDelivery"] = "to be confirmed"
	if scheduled.EstimatedDelivery != nil {
		data["EstimatedDelivery"] = formatTime(*scheduled.EstimatedDelivery)
	}
	s.notify(ctx, scheduled.BuyerID, TplCourierScheduledBuyer, data)
	s.notify(ctx, scheduled.SellerID, TplCourierScheduledSeller, data)
	return scheduled, nil
}

// apply runs one conditional transition from the order's current status.
// Refunding transitions also create the pending refund and relist the books
// in the same database transaction; the gateway refund runs after commit.
func (s *OrderServiceImpl) apply(ctx context.Context, order *domain.Order, t domain.OrderTransition) (*domain.Order, *domain.RefundTransaction, error) {
	if !order.Status.CanTransitionTo(t.To) {
		return nil, nil, conflictFor(order.Status, t.To)
	}
	now := s.now().UTC()
	t.OrderID = order.ID
	t.From = []domain.OrderStatus{order.Status}
	t.At = now

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	updated, err := s.orders.Transition(ctx, dbTx, t)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("transition order: %w", err))
	}
	if updated == nil {
		return nil, nil, apperror.ErrConflict("order status changed, reload and retry")
	}
	if err := s.recordEvent(ctx, dbTx, order.ID, order.Status, t.To, t.Actor, t.Note, now); err != nil {
		return nil, nil, err
	}

	var refund *domain.RefundTransaction
	if t.To.RequiresRefund() {
		refund = &domain.RefundTransaction{
			ID:               uuid.New(),
			OrderID:          order.ID,
			PaymentReference: order.PaymentReference,
			Amount:           order.TotalAmount,
			Status:           domain.RefundStatusPending,
			Reason:           refundReason(t),
			CreatedAt:        now,
		}
		created, err := s.refunds.Create(ctx, dbTx, refund)
		if err != nil {
			return nil, nil, apperror.InternalError(fmt.Errorf("create refund: %w", err))
		}
		if !created {
			refund = nil
		} else if err := s.orders.UpdateRefundStatus(ctx, dbTx, order.ID, domain.OrderRefundPending); err != nil {
			return nil, nil, apperror.InternalError(fmt.Errorf("mark refund pending: %w", err))
		}
		if err := s.books.Restore(ctx, dbTx, order.ID, order.BookIDs()); err != nil {
			return nil, nil, apperror.InternalError(fmt.Errorf("restore books: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	s.metrics.Transition(string(t.To))
	s.log.Info().
		Str("order_id", order.ID.String()).
		Str("from", string(order.Status)).
		Str("to", string(t.To)).
		Str("actor", t.Actor).
		Msg("order transitioned")

	if refund != nil {
		updated.RefundStatus = domain.OrderRefundPending
		result, err := s.refundSvc.Execute(ctx, refund)
		if err != nil {
			s.log.Error().Err(err).Str("order_id", order.ID.String()).Msg("refund failed after transition")
		}
		if result != nil {
			refund = result
			updated.RefundStatus = result.OrderRefundStatus()
		}
	}
	return updated, refund, nil
}

func (s *OrderServiceImpl) recordEvent(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, from, to domain.OrderStatus, actor, note string, at time.Time) error {
	err := s.events.Create(ctx, tx, &domain.OrderEvent{
		ID:         uuid.New(),
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor,
		Note:       note,
		CreatedAt:  at,
	})
	if err != nil {
		return apperror.InternalError(fmt.Errorf("record order event: %w", err))
	}
	return nil
}

func (s *OrderServiceImpl) load(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("Order")
	}
	return order, nil
}

func (s *OrderServiceImpl) notify(ctx context.Context, userID uuid.UUID, tpl string, data map[string]any) {
	if err := s.notifier.Notify(ctx, ports.Notice{UserID: userID, Template: tpl, Data: data}); err != nil {
		s.log.Warn().Err(err).Str("template", tpl).Str("user_id", userID.String()).Msg("notification failed")
	}
}

func (s *OrderServiceImpl) notifyAdmin(ctx context.Context, tpl string, data map[string]any) {
	if err := s.notifier.NotifyAdmin(ctx, ports.Notice{Template: tpl, Data: data}); err != nil {
		s.log.Warn().Err(err).Str("template", tpl).Msg("admin notification failed")
	}
}

func conflictFor(from, to domain.OrderStatus) *apperror.AppError {
	return apperror.ErrConflict(fmt.Sprintf("order is %s and cannot move to %s", from, to))
}

func actorLabel(actor ports.Actor, order *domain.Order) string {
	switch actor.UserID {
	case order.SellerID:
		return domain.SellerActor(actor.UserID)
	case order.BuyerID:
		return domain.BuyerActor(actor.UserID)
	}
	return domain.AdminActor(actor.UserID)
}

func refundReason(t domain.OrderTransition) string {
	reason := "order " + string(t.To)
	if t.Note != "" {
		reason += ": " + t.Note
	}
	return reason
}

func orderData(o *domain.Order) map[string]any {
	titles := make([]string, len(o.Items))
	for i, it := range o.Items {
		titles[i] = it.Title
	}
	return map[string]any{
		"OrderID": o.ID.String(),
		"Amount":  money.Format(o.TotalAmount),
		"Books":   titles,
	}
}

func cartTitles(items []domain.CartItem) []string {
	titles := make([]string, len(items))
	for i, it := range items {
		titles[i] = it.Title
	}
	return titles
}

func formatTime(t time.Time) string {
	return t.Format("2 Jan 2006 15:04")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
