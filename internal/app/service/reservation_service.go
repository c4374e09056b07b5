package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/ikkim/vintage-store-backend/internal/app/model"
	"github.com/ikkim/vintage-store-backend/internal/app/repository"
	"github.com/ikkim/vintage-store-backend/pkg/logger"
	"github.com/ikkim/vintage-store-backend/pkg/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const (
	DefaultSweepCutoff  = 3 * time.Hour
	DefaultReleaseGrace = 5 * time.Minute

	releaseBatchSize    = 100
	maxReleaseAttempts  = 10
	notificationTimeout = 15 * time.Second
)

const (
	noticeReservation = "reservation"
	noticeExpiry      = "expiry"
)

type ReserveRequest struct {
	ProductIDs []uint
	BuyerInfo  string
	Owner      model.CartOwner
}

type ReserveResult struct {
	ExpiresAt     time.Time         `json:"expires_at"`
	ReservedCount int               `json:"reserved_count"`
	ExtendedCount int               `json:"extended_count"`
	Products      []ReservationView `json:"products"`
}

type PauseResult struct {
	Paused   bool              `json:"paused"`
	Products []ReservationView `json:"products"`
}

type FreedProduct struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type SweepResult struct {
	Freed []FreedProduct `json:"freed"`
}

type ReleaseResult struct {
	Released []FreedProduct `json:"released"`
	Skipped  int            `json:"skipped"`
	Failed   int            `json:"failed"`
}

// ReservationView is a product as the storefront shows it, with the
// countdown already computed. A paused reservation reports the time that was
// left when it was paused.
type ReservationView struct {
	ProductID        uint               `json:"product_id"`
	Name             string             `json:"name"`
	Price            decimal.Decimal    `json:"price"`
	Stock            int                `json:"stock"`
	State            model.ProductState `json:"state"`
	BuyerInfo        *string            `json:"buyer_info,omitempty"`
	ReservedAt       *time.Time         `json:"reserved_at,omitempty"`
	ExpiresAt        *time.Time         `json:"expires_at,omitempty"`
	Remaining        string             `json:"remaining,omitempty"`
	RemainingSeconds int64              `json:"remaining_seconds"`
	Expired          bool               `json:"expired"`
	Paused           bool               `json:"paused"`
	PausedAt         *time.Time         `json:"paused_at,omitempty"`
}

type ReservationService interface {
	Reserve(req ReserveRequest) (*ReserveResult, error)
	Confirm(productID uint) (*model.Product, error)
	Cancel(productID uint) (*model.Product, error)
	TogglePause(productID uint) (*PauseResult, error)
	MarkSold(productID uint) (*model.Product, error)
	RevertToAvailable(productID uint) (*model.Product, error)

	GetReservation(productID uint) (*ReservationView, error)
	ListReservations() ([]ReservationView, error)

	// SweepExpired frees reservations older than the flat sweep cutoff. A
	// failure on one product does not stop the others; the returned error
	// aggregates them and the result lists what was freed.
	SweepExpired(ctx context.Context) (*SweepResult, error)

	// ProcessDueReleases runs the release jobs whose time has come.
	ProcessDueReleases(ctx context.Context) (*ReleaseResult, error)
}

type ReservationOptions struct {
	SweepCutoff  time.Duration
	ReleaseGrace time.Duration
	AutoRelease  bool
	Clock        func() time.Time
}

type reservationService struct {
	productRepo repository.ProductRepository
	jobRepo     repository.ReleaseJobRepository
	cartService CartService
	notifier    Notifier
	policy      ExpiryPolicy
	metrics     *metrics.ReservationMetrics

	sweepCutoff  time.Duration
	releaseGrace time.Duration
	autoRelease  bool
	clock        func() time.Time

	notifications sync.WaitGroup
}

func NewReservationService(
	productRepo repository.ProductRepository,
	jobRepo repository.ReleaseJobRepository,
	cartService CartService,
	notifier Notifier,
	policy ExpiryPolicy,
	recorder *metrics.ReservationMetrics,
	opts ReservationOptions,
) ReservationService {
	if opts.SweepCutoff <= 0 {
		opts.SweepCutoff = DefaultSweepCutoff
	}
	if opts.ReleaseGrace < 0 {
		opts.ReleaseGrace = DefaultReleaseGrace
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &reservationService{
		productRepo:  productRepo,
		jobRepo:      jobRepo,
		cartService:  cartService,
		notifier:     notifier,
		policy:       policy,
		metrics:      recorder,
		sweepCutoff:  opts.SweepCutoff,
		releaseGrace: opts.ReleaseGrace,
		autoRelease:  opts.AutoRelease && jobRepo != nil,
		clock:        opts.Clock,
	}
}

func (s *reservationService) now() time.Time {
	return s.clock().UTC()
}

func (s *reservationService) Reserve(req ReserveRequest) (*ReserveResult, error) {
	buyerInfo := strings.TrimSpace(req.BuyerInfo)
	if len(req.ProductIDs) == 0 {
		return nil, ErrNoProducts
	}
	if buyerInfo == "" {
		return nil, ErrBuyerInfoRequired
	}
	if !req.Owner.Valid() {
		return nil, ErrOwnerRequired
	}

	now := s.now()
	fields := req.Owner.LogFields()
	fields["product_ids"] = req.ProductIDs
	fields["buyer_info"] = buyerInfo
	logger.Info("Reserving products", fields)

	stored, err := s.productRepo.Reserve(req.ProductIDs, buyerInfo, req.Owner, now)
	if err != nil {
		var conflict *ConflictError
		switch {
		case errors.As(err, &conflict):
			s.metrics.IncConflict()
			logger.Warn("Reservation rejected: products held by another buyer", map[string]interface{}{
				"buyer_info":  buyerInfo,
				"product_ids": conflict.ProductIDs,
			})
			return nil, err
		case errors.Is(err, gorm.ErrRecordNotFound):
			logger.Warn("Reservation rejected: product not found", fields)
			return nil, ErrProductNotFound
		}
		logger.Error("Failed to reserve products", err, fields)
		return nil, err
	}

	s.metrics.AddTransitions(metrics.TransitionReserved, stored.Reserved)
	s.metrics.AddTransitions(metrics.TransitionExtended, stored.Extended)
	s.scheduleReleases(stored.Products)

	items, total := lineItems(stored.Products)
	s.dispatch(noticeReservation, func(ctx context.Context) error {
		return s.notifier.SendReservationNotice(ctx, buyerInfo, items, total)
	})

	expiresAt := s.policy.ComputeExpiry(now)
	logger.Info("Products reserved", map[string]interface{}{
		"buyer_info": buyerInfo,
		"reserved":   stored.Reserved,
		"extended":   stored.Extended,
		"expires_at": expiresAt,
	})

	return &ReserveResult{
		ExpiresAt:     expiresAt,
		ReservedCount: stored.Reserved,
		ExtendedCount: stored.Extended,
		Products:      s.views(stored.Products, now),
	}, nil
}

func (s *reservationService) Confirm(productID uint) (*model.Product, error) {
	logger.Info("Confirming reservation", map[string]interface{}{
		"product_id": productID,
	})

	product, err := s.productRepo.Confirm(productID)
	if err != nil {
		return nil, s.storeError("confirm reservation", productID, err)
	}

	s.metrics.AddTransitions(metrics.TransitionConfirmed, 1)
	s.cascade(productID)

	logger.Info("Reservation confirmed", map[string]interface{}{
		"product_id": productID,
		"stock":      product.Stock,
	})
	return product, nil
}

func (s *reservationService) Cancel(productID uint) (*model.Product, error) {
	logger.Info("Cancelling reservation", map[string]interface{}{
		"product_id": productID,
	})

	product, err := s.productRepo.Cancel(productID)
	if err != nil {
		return nil, s.storeError("cancel reservation", productID, err)
	}

	s.metrics.AddTransitions(metrics.TransitionCancelled, 1)
	s.cascade(productID)
	return product, nil
}

func (s *reservationService) TogglePause(productID uint) (*PauseResult, error) {
	now := s.now()
	logger.Info("Toggling reservation pause", map[string]interface{}{
		"product_id": productID,
	})

	toggled, err := s.productRepo.TogglePause(productID, now)
	if err != nil {
		return nil, s.storeError("toggle reservation pause", productID, err)
	}

	if toggled.Paused {
		s.metrics.AddTransitions(metrics.TransitionPaused, len(toggled.Products))
	} else {
		s.metrics.AddTransitions(metrics.TransitionResumed, len(toggled.Products))
		s.scheduleReleases(toggled.Products)
	}

	logger.Info("Reservation pause toggled", map[string]interface{}{
		"product_id": productID,
		"paused":     toggled.Paused,
		"group_size": len(toggled.Products),
	})
	return &PauseResult{
		Paused:   toggled.Paused,
		Products: s.views(toggled.Products, now),
	}, nil
}

func (s *reservationService) MarkSold(productID uint) (*model.Product, error) {
	logger.Info("Marking product sold", map[string]interface{}{
		"product_id": productID,
	})

	product, err := s.productRepo.MarkSold(productID)
	if err != nil {
		return nil, s.storeError("mark product sold", productID, err)
	}

	s.metrics.AddTransitions(metrics.TransitionMarkedSold, 1)
	s.cascade(productID)
	return product, nil
}

func (s *reservationService) RevertToAvailable(productID uint) (*model.Product, error) {
	logger.Info("Reverting product to available", map[string]interface{}{
		"product_id": productID,
	})

	product, err := s.productRepo.RevertToAvailable(productID)
	if err != nil {
		return nil, s.storeError("revert product", productID, err)
	}

	s.metrics.AddTransitions(metrics.TransitionReverted, 1)
	s.cascade(productID)
	return product, nil
}

func (s *reservationService) GetReservation(productID uint) (*ReservationView, error) {
	product, err := s.productRepo.FindByID(productID)
	if err != nil {
		return nil, s.storeError("get reservation", productID, err)
	}

	view := s.view(*product, s.now())
	return &view, nil
}

func (s *reservationService) ListReservations() ([]ReservationView, error) {
	products, err := s.productRepo.FindReserved()
	if err != nil {
		logger.Error("Failed to list reservations", err)
		return nil, err
	}
	return s.views(products, s.now()), nil
}

func (s *reservationService) SweepExpired(ctx context.Context) (*SweepResult, error) {
	now := s.now()
	cutoff := now.Add(-s.sweepCutoff)

	stale, err := s.productRepo.FindReservedBefore(cutoff)
	if err != nil {
		logger.Error("Failed to load expired reservations", err, map[string]interface{}{
			"cutoff": cutoff,
		})
		return nil, err
	}

	result := &SweepResult{Freed: []FreedProduct{}}
	var errs error
	for _, product := range stale {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}

		freed, err := s.productRepo.CancelIfReservedBefore(product.ID, cutoff)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("sweep product %d: %w", product.ID, err))
			continue
		}
		if !freed {
			// confirmed, cancelled or extended since it was selected
			continue
		}

		if err := s.cascade(product.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("clear carts for product %d: %w", product.ID, err))
		}
		result.Freed = append(result.Freed, FreedProduct{ID: product.ID, Name: product.Name})
	}

	s.metrics.AddTransitions(metrics.TransitionSwept, len(result.Freed))
	if len(stale) > 0 || errs != nil {
		logger.Info("Expired reservations swept", map[string]interface{}{
			"scanned": len(stale),
			"freed":   len(result.Freed),
			"errors":  len(multierr.Errors(errs)),
		})
	}
	return result, errs
}

func (s *reservationService) ProcessDueReleases(ctx context.Context) (*ReleaseResult, error) {
	result := &ReleaseResult{Released: []FreedProduct{}}
	if s.jobRepo == nil {
		return result, nil
	}

	jobs, err := s.jobRepo.FindDue(s.now(), releaseBatchSize)
	if err != nil {
		return nil, err
	}

	var errs error
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}

		released, err := s.productRepo.ReleaseIfCurrent(job.ProductID, job.ReservationVersion)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				errs = multierr.Append(errs, s.jobRepo.MarkFinished(job.ID, model.ReleaseJobSkipped))
				result.Skipped++
				continue
			}
			result.Failed++
			final := job.Attempts+1 >= maxReleaseAttempts
			errs = multierr.Append(errs, fmt.Errorf("release product %d: %w", job.ProductID, err))
			errs = multierr.Append(errs, s.jobRepo.MarkAttemptFailed(job.ID, err.Error(), final))
			continue
		}

		if released == nil {
			errs = multierr.Append(errs, s.jobRepo.MarkFinished(job.ID, model.ReleaseJobSkipped))
			result.Skipped++
			continue
		}

		// the product is already free; a job left pending here only skips next time
		errs = multierr.Append(errs, s.jobRepo.MarkFinished(job.ID, model.ReleaseJobDone))
		if err := s.cascade(job.ProductID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("clear carts for product %d: %w", job.ProductID, err))
		}
		result.Released = append(result.Released, FreedProduct{ID: released.ID, Name: released.Name})

		name := released.Name
		buyerInfo := ""
		if released.BuyerInfo != nil {
			buyerInfo = *released.BuyerInfo
		}
		s.dispatch(noticeExpiry, func(ctx context.Context) error {
			return s.notifier.SendExpiryNotice(ctx, name, buyerInfo)
		})

		logger.Info("Reservation released after expiry", map[string]interface{}{
			"product_id":          job.ProductID,
			"buyer_info":          buyerInfo,
			"reservation_version": job.ReservationVersion,
		})
	}

	s.metrics.AddTransitions(metrics.TransitionAutoReleased, len(result.Released))
	return result, errs
}

// scheduleReleases stores one release job per running reservation. A store
// failure is logged only: the sweep still frees the product eventually.
func (s *reservationService) scheduleReleases(products []model.Product) {
	if !s.autoRelease {
		return
	}

	jobs := make([]model.ReleaseJob, 0, len(products))
	for _, p := range products {
		if !p.IsReserved() || p.ReservationPaused || p.ReservedAt == nil {
			continue
		}
		jobs = append(jobs, model.ReleaseJob{
			ProductID:          p.ID,
			ReservationVersion: p.ReservationVersion,
			RunAt:              s.policy.ComputeExpiry(*p.ReservedAt).Add(s.releaseGrace).UTC(),
			Status:             model.ReleaseJobPending,
		})
	}

	if err := s.jobRepo.Schedule(jobs); err != nil {
		logger.Error("Failed to schedule reservation release", err, map[string]interface{}{
			"count": len(jobs),
		})
	}
}

// cascade runs after the product write has committed.
func (s *reservationService) cascade(productID uint) error {
	if s.cartService == nil {
		return nil
	}
	return s.cartService.OnReservationResolved(productID)
}

func (s *reservationService) dispatch(kind string, send func(ctx context.Context) error) {
	if s.notifier == nil {
		return
	}

	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()

		ctx, cancel := context.WithTimeout(context.Background(), notificationTimeout)
		defer cancel()

		err := send(ctx)
		s.metrics.ObserveNotification(kind, err)
		if err != nil {
			logger.Error("Failed to send notification", err, map[string]interface{}{
				"kind": kind,
			})
		}
	}()
}

func (s *reservationService) storeError(action string, productID uint, err error) error {
	fields := map[string]interface{}{
		"product_id": productID,
		"action":     action,
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		logger.Warn("Product not found", fields)
		return ErrProductNotFound
	case errors.Is(err, ErrInvalidState):
		logger.Warn("Product not in the required state", fields)
		return err
	}

	logger.Error("Failed to "+action, err, fields)
	return err
}

func (s *reservationService) views(products []model.Product, now time.Time) []ReservationView {
	views := make([]ReservationView, 0, len(products))
	for _, p := range products {
		views = append(views, s.view(p, now))
	}
	return views
}

func (s *reservationService) view(p model.Product, now time.Time) ReservationView {
	view := ReservationView{
		ProductID:  p.ID,
		Name:       p.Name,
		Price:      p.Price,
		Stock:      p.Stock,
		State:      p.State,
		BuyerInfo:  p.BuyerInfo,
		ReservedAt: p.ReservedAt,
		Paused:     p.ReservationPaused,
		PausedAt:   p.PausedAt,
	}
	if !p.IsReserved() || p.ReservedAt == nil {
		return view
	}

	expiresAt := s.policy.ComputeExpiry(*p.ReservedAt)
	view.ExpiresAt = &expiresAt

	reference := now
	if p.ReservationPaused && p.PausedAt != nil {
		reference = *p.PausedAt
	}
	view.Remaining = FormatRemaining(reference, expiresAt)
	if left := expiresAt.Sub(reference); left > 0 {
		view.RemainingSeconds = int64(math.Ceil(left.Seconds()))
	} else {
		view.Expired = true
	}
	return view
}

func lineItems(products []model.Product) ([]LineItem, decimal.Decimal) {
	items := make([]LineItem, 0, len(products))
	total := decimal.Zero
	for _, p := range products {
		items = append(items, LineItem{Name: p.Name, Price: p.Price})
		total = total.Add(p.Price)
	}
	return items, total
}
