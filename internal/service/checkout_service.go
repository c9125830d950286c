package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"rebooked-marketplace/internal/core/domain"
	"rebooked-marketplace/internal/core/ports"
	"rebooked-marketplace/pkg/apperror"
	"rebooked-marketplace/pkg/money"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// totalTolerance is how far the declared total may drift from
// items plus delivery, in cents.
const totalTolerance = 1

// CheckoutConfig carries the checkout settings from config.
type CheckoutConfig struct {
	ReservationTTL     time.Duration
	Currency           string
	CallbackURL        string
	PlatformSubaccount string
	IdempotencyTTL     time.Duration
}

// CheckoutServiceImpl implements ports.CheckoutService.
type CheckoutServiceImpl struct {
	books      ports.BookRepository
	profiles   ports.ProfileRepository
	payments   ports.PaymentRepository
	gateway    ports.PaymentGateway
	idempCache ports.IdempotencyCache
	transactor ports.DBTransactor
	cfg        CheckoutConfig
	log        zerolog.Logger
	now        func() time.Time
	newRef     func() string
}

func NewCheckoutService(
	books ports.BookRepository,
	profiles ports.ProfileRepository,
	payments ports.PaymentRepository,
	gateway ports.PaymentGateway,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	cfg CheckoutConfig,
	log zerolog.Logger,
) *CheckoutServiceImpl {
	if cfg.Currency == "" {
		cfg.Currency = "ZAR"
	}
	if cfg.ReservationTTL <= 0 {
		cfg.ReservationTTL = 15 * time.Minute
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	return &CheckoutServiceImpl{
		books:      books,
		profiles:   profiles,
		payments:   payments,
		gateway:    gateway,
		idempCache: idempCache,
		transactor: transactor,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
		newRef:     newPaymentReference,
	}
}

func newPaymentReference() string {
	return "RB-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:20])
}

// Initialize validates the cart, reserves its books, opens a gateway
// session and records a pending payment.
func (s *CheckoutServiceImpl) Initialize(ctx context.Context, req ports.CheckoutRequest) (*ports.CheckoutResult, error) {
	if err := validateCheckout(req); err != nil {
		return nil, err
	}

	var cacheKey, reqHash string
	if req.IdempotencyKey != "" {
		cacheKey = "checkout:" + req.BuyerID.String() + ":" + req.IdempotencyKey
		reqHash = checkoutHash(req)
		res, err := s.replay(ctx, cacheKey, reqHash)
		if err != nil || res != nil {
			return res, err
		}
	}

	itemsTotal := sumItems(req.Items)
	amount := itemsTotal + req.DeliveryFee
	if diff := req.TotalAmount - amount; diff > totalTolerance || diff < -totalTolerance {
		return nil, apperror.Validation(fmt.Sprintf(
			"total_amount %s does not match items %s plus delivery %s",
			money.Format(req.TotalAmount), money.Format(itemsTotal), money.Format(req.DeliveryFee)))
	}

	now := s.now().UTC()
	if err := s.checkBooks(ctx, req, now); err != nil {
		return nil, err
	}

	allocs, err := domain.AllocateBySeller(req.Items, amount)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}
	if err := s.attachSubaccounts(ctx, allocs); err != nil {
		return nil, err
	}

	bookIDs := bookIDsOf(req.Items)
	until := now.Add(s.cfg.ReservationTTL)
	if err := s.reserve(ctx, bookIDs, req.BuyerID, until, now); err != nil {
		return nil, err
	}

	ref := s.newRef()
	log := s.log.With().Str("reference", ref).Str("buyer_id", req.BuyerID.String()).Logger()

	params := ports.InitializeParams{
		Reference:   ref,
		Email:       req.BuyerEmail,
		Amount:      amount,
		Currency:    s.cfg.Currency,
		CallbackURL: s.cfg.CallbackURL,
		Metadata: map[string]string{
			"buyer_id":     req.BuyerID.String(),
			"seller_count": strconv.Itoa(len(allocs)),
		},
	}
	var split *domain.SplitPlan
	if len(allocs) == 1 {
		params.Subaccount = allocs[0].Subaccount
	} else {
		split = s.splitPlan(allocs)
		params.Split = split
	}

	session, err := s.gateway.InitializeTransaction(ctx, params)
	if err != nil {
		s.release(ctx, log, bookIDs, req.BuyerID)
		log.Error().Err(err).Msg("gateway initialize failed")
		if appErr, ok := apperror.As(err); ok && appErr.Code == apperror.CodeGateway {
			return nil, appErr
		}
		return nil, apperror.ErrGateway("Payment initialization failed", err)
	}

	payment := &domain.PaymentTransaction{
		Reference:  ref,
		BuyerID:    req.BuyerID,
		BuyerEmail: req.BuyerEmail,
		Amount:     amount,
		Currency:   s.cfg.Currency,
		Status:     domain.PaymentStatusPending,
		Metadata: domain.PaymentMetadata{
			Items:           req.Items,
			ShippingAddress: req.ShippingAddress.Normalized(),
			DeliveryFee:     req.DeliveryFee,
			Sellers:         allocs,
			Split:           split,
		},
		AuthorizationURL: session.AuthorizationURL,
		AccessCode:       session.AccessCode,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		s.release(ctx, log, bookIDs, req.BuyerID)
		return nil, apperror.InternalError(fmt.Errorf("create payment: %w", err))
	}

	res := &ports.CheckoutResult{
		Reference:        ref,
		AuthorizationURL: session.AuthorizationURL,
		AccessCode:       session.AccessCode,
		Amount:           amount,
		Currency:         s.cfg.Currency,
		Split:            split,
		ReservedUntil:    until,
	}

	if cacheKey != "" {
		if raw, err := json.Marshal(cachedCheckout{RequestHash: reqHash, Result: *res}); err == nil {
			if err := s.idempCache.Set(ctx, cacheKey, raw, s.cfg.IdempotencyTTL); err != nil {
				log.Warn().Err(err).Msg("failed to cache checkout response")
			}
		}
	}

	log.Info().Int64("amount", amount).Int("sellers", len(allocs)).Msg("checkout initialized")
	return res, nil
}

// cachedCheckout is the idempotency record. RequestHash ties the key to the
// cart it was first used with.
type cachedCheckout struct {
	RequestHash string               `json:"request_hash"`
	Result      ports.CheckoutResult `json:"result"`
}

// replay returns the stored result for cacheKey, nil when there is none, or a
// conflict when the key was first used with a different request.
func (s *CheckoutServiceImpl) replay(ctx context.Context, cacheKey, reqHash string) (*ports.CheckoutResult, error) {
	cached, err := s.idempCache.Get(ctx, cacheKey)
	if err != nil {
		s.log.Warn().Err(err).Str("key", cacheKey).Msg("redis idempotency check failed, continuing")
	}
	if cached == nil {
		return nil, nil
	}

	var rec cachedCheckout
	if err := json.Unmarshal(cached, &rec); err != nil || rec.RequestHash == "" {
		s.log.Warn().Str("key", cacheKey).Msg("discarding unreadable cached checkout")
		return nil, nil
	}
	if rec.RequestHash != reqHash {
		s.log.Warn().Str("key", cacheKey).Msg("idempotency key reused with a different cart")
		return nil, apperror.ErrConflict("Idempotency-Key reused with a different request")
	}
	return &rec.Result, nil
}

// checkoutHash fingerprints the parts of a checkout that shape the payment.
// Item order does not matter.
func checkoutHash(req ports.CheckoutRequest) string {
	items := make([]domain.CartItem, len(req.Items))
	copy(items, req.Items)
	sort.Slice(items, func(i, j int) bool {
		return items[i].BookID.String() < items[j].BookID.String()
	})

	raw, _ := json.Marshal(struct {
		Items       []domain.CartItem `json:"items"`
		DeliveryFee int64             `json:"delivery_fee"`
		TotalAmount int64             `json:"total_amount"`
		Email       string            `json:"email"`
		Address     domain.Address    `json:"address"`
	}{
		Items:       items,
		DeliveryFee: req.DeliveryFee,
		TotalAmount: req.TotalAmount,
		Email:       strings.ToLower(strings.TrimSpace(req.BuyerEmail)),
		Address:     req.ShippingAddress.Normalized(),
	})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func validateCheckout(req ports.CheckoutRequest) error {
	var errs domain.ValidationErrors
	if req.BuyerID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "buyer_id", Message: "is required"})
	}
	if strings.TrimSpace(req.BuyerEmail) == "" || !strings.Contains(req.BuyerEmail, "@") {
		errs = append(errs, domain.FieldError{Field: "email", Message: "must be a valid email"})
	}
	if len(req.Items) == 0 {
		errs = append(errs, domain.FieldError{Field: "items", Message: "must not be empty"})
	}
	seen := make(map[uuid.UUID]bool, len(req.Items))
	for i, it := range req.Items {
		field := fmt.Sprintf("items[%d]", i)
		if it.BookID == uuid.Nil || it.SellerID == uuid.Nil {
			errs = append(errs, domain.FieldError{Field: field, Message: "book_id and seller_id are required"})
		}
		if it.Price <= 0 {
			errs = append(errs, domain.FieldError{Field: field + ".price", Message: "must be positive"})
		}
		if seen[it.BookID] {
			errs = append(errs, domain.FieldError{Field: field + ".book_id", Message: "is duplicated"})
		}
		seen[it.BookID] = true
	}
	if req.DeliveryFee < 0 {
		errs = append(errs, domain.FieldError{Field: "delivery_fee", Message: "must not be negative"})
	}
	if err := req.ShippingAddress.Validate(); err != nil {
		errs = append(errs, asValidationErrors(err).Prefix("shipping_address")...)
	}
	if len(errs) > 0 {
		return apperror.Validation(errs.Error())
	}
	return nil
}

// checkBooks compares the cart with the listings it names.
func (s *CheckoutServiceImpl) checkBooks(ctx context.Context, req ports.CheckoutRequest, now time.Time) error {
	books, err := s.books.GetByIDs(ctx, bookIDsOf(req.Items))
	if err != nil {
		return apperror.InternalError(fmt.Errorf("load books: %w", err))
	}
	byID := make(map[uuid.UUID]domain.Book, len(books))
	for _, b := range books {
		byID[b.ID] = b
	}
	for _, it := range req.Items {
		b, ok := byID[it.BookID]
		if !ok {
			return apperror.ErrNotFound("Book")
		}
		if b.SellerID != it.SellerID {
			return apperror.Validation(fmt.Sprintf("book %s is not listed by seller %s", it.BookID, it.SellerID))
		}
		if b.SellerID == req.BuyerID {
			return apperror.Validation("you cannot buy your own book")
		}
		if b.Price != it.Price {
			return apperror.Validation(fmt.Sprintf("price of %q changed to %s", b.Title, money.Format(b.Price)))
		}
		if !b.AvailableFor(req.BuyerID, now) {
			return apperror.ErrBookUnavailable()
		}
	}
	return nil
}

func (s *CheckoutServiceImpl) attachSubaccounts(ctx context.Context, allocs []domain.SellerAllocation) error {
	ids := make([]uuid.UUID, len(allocs))
	for i, a := range allocs {
		ids[i] = a.SellerID
	}
	profiles, err := s.profiles.GetByIDs(ctx, ids)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("load seller profiles: %w", err))
	}
	byID := make(map[uuid.UUID]domain.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}
	for i := range allocs {
		p, ok := byID[allocs[i].SellerID]
		if !ok || !p.HasSubaccount() {
			return apperror.Validation(fmt.Sprintf("seller %s cannot receive payouts yet", allocs[i].SellerID))
		}
		allocs[i].Subaccount = *p.SubaccountCode
	}
	return nil
}

// splitPlan builds a flat split with one share per seller. The bearer is
// the configured platform subaccount, or the main account when unset.
func (s *CheckoutServiceImpl) splitPlan(allocs []domain.SellerAllocation) *domain.SplitPlan {
	plan := &domain.SplitPlan{BearerType: domain.BearerAccount}
	if s.cfg.PlatformSubaccount != "" {
		plan.BearerType = domain.BearerSubaccount
		plan.BearerSubaccount = s.cfg.PlatformSubaccount
	}
	for _, a := range allocs {
		plan.Shares = append(plan.Shares, domain.SplitShare{Subaccount: a.Subaccount, Share: a.Share})
	}
	return plan
}

func (s *CheckoutServiceImpl) reserve(ctx context.Context, ids []uuid.UUID, buyer uuid.UUID, until, now time.Time) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	n, err := s.books.Reserve(ctx, dbTx, ids, buyer, until, now)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("reserve books: %w", err))
	}
	if n != int64(len(ids)) {
		return apperror.ErrBookUnavailable()
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func (s *CheckoutServiceImpl) release(ctx context.Context, log zerolog.Logger, ids []uuid.UUID, buyer uuid.UUID) {
	if err := s.books.ReleaseReservation(ctx, nil, ids, buyer); err != nil {
		log.Warn().Err(err).Msg("failed to release reservation")
	}
}

func sumItems(items []domain.CartItem) int64 {
	var sum int64
	for _, it := range items {
		sum += it.Price
	}
	return sum
}

func bookIDsOf(items []domain.CartItem) []uuid.UUID {
	ids := make([]uuid.UUID, len(items))
	for i, it := range items {
		ids[i] = it.BookID
	}
	return ids
}
