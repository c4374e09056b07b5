package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/vintage-store-backend/internal/app/model"
	"github.com/ikkim/vintage-store-backend/internal/app/service"
	apperrors "github.com/ikkim/vintage-store-backend/internal/errors"
	"github.com/ikkim/vintage-store-backend/internal/middleware"
)

// Sweeper runs the expired-reservation sweep under the scheduler's run lock.
type Sweeper interface {
	RunSweep(ctx context.Context) (*service.SweepResult, error)
}

type ReservationController struct {
	reservationService service.ReservationService
	sweeper            Sweeper
}

func NewReservationController(reservationService service.ReservationService, sweeper Sweeper) *ReservationController {
	return &ReservationController{
		reservationService: reservationService,
		sweeper:            sweeper,
	}
}

type ReserveRequest struct {
	ProductIDs []uint `json:"product_ids" binding:"required,min=1"`
	BuyerInfo  string `json:"buyer_info" binding:"required"`
}

type ProductActionRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
}

// Reserve holds products for the caller
// POST /api/v1/reservations
func (ctrl *ReservationController) Reserve(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	owner, ok := middleware.GetOwner(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	var req ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid reservation request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "product_ids and buyer_info are required")
		return
	}

	result, err := ctrl.reservationService.Reserve(service.ReserveRequest{
		ProductIDs: req.ProductIDs,
		BuyerInfo:  req.BuyerInfo,
		Owner:      owner,
	})
	if err != nil {
		respondReservationError(c, err, "reserve products")
		return
	}

	c.JSON(http.StatusCreated, result)
}

// SweepExpired frees reservations past the sweep cutoff
// GET /api/v1/reservations/sweep-expired
func (ctrl *ReservationController) SweepExpired(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var (
		result *service.SweepResult
		err    error
	)
	if ctrl.sweeper != nil {
		result, err = ctrl.sweeper.RunSweep(c.Request.Context())
	} else {
		result, err = ctrl.reservationService.SweepExpired(c.Request.Context())
	}
	if err != nil {
		log.Error("Sweep finished with errors", err)
	}
	if result == nil {
		apperrors.InternalError(c, "Failed to sweep reservations")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"freed_count": len(result.Freed),
		"freed":       result.Freed,
	})
}

// GetProductReservation returns a product with its countdown
// GET /api/v1/reservations/products/:id
func (ctrl *ReservationController) GetProductReservation(c *gin.Context) {
	productID, ok := parseIDParam(c)
	if !ok {
		return
	}

	view, err := ctrl.reservationService.GetReservation(productID)
	if err != nil {
		respondReservationError(c, err, "get reservation")
		return
	}

	c.JSON(http.StatusOK, view)
}

// ListReservations lists every reserved product
// GET /api/v1/reservations
func (ctrl *ReservationController) ListReservations(c *gin.Context) {
	views, err := ctrl.reservationService.ListReservations()
	if err != nil {
		respondReservationError(c, err, "list reservations")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reservations": views,
		"count":        len(views),
	})
}

// Confirm marks a reserved product sold
// POST /api/v1/reservations/confirm
func (ctrl *ReservationController) Confirm(c *gin.Context) {
	ctrl.productAction(c, "confirm reservation", ctrl.reservationService.Confirm)
}

// Cancel returns a reserved product to available
// POST /api/v1/reservations/cancel
func (ctrl *ReservationController) Cancel(c *gin.Context) {
	ctrl.productAction(c, "cancel reservation", ctrl.reservationService.Cancel)
}

// MarkSold records an off-platform sale
// POST /api/v1/reservations/mark-sold
func (ctrl *ReservationController) MarkSold(c *gin.Context) {
	ctrl.productAction(c, "mark product sold", ctrl.reservationService.MarkSold)
}

// RevertToAvailable puts any product back on sale
// POST /api/v1/reservations/revert-available
func (ctrl *ReservationController) RevertToAvailable(c *gin.Context) {
	ctrl.productAction(c, "revert product", ctrl.reservationService.RevertToAvailable)
}

// TogglePause freezes or resumes a reservation group's countdown
// POST /api/v1/reservations/pause
func (ctrl *ReservationController) TogglePause(c *gin.Context) {
	productID, ok := bindProductAction(c)
	if !ok {
		return
	}

	result, err := ctrl.reservationService.TogglePause(productID)
	if err != nil {
		respondReservationError(c, err, "toggle pause")
		return
	}

	c.JSON(http.StatusOK, result)
}

func (ctrl *ReservationController) productAction(c *gin.Context, action string, verb func(uint) (*model.Product, error)) {
	productID, ok := bindProductAction(c)
	if !ok {
		return
	}

	product, err := verb(productID)
	if err != nil {
		respondReservationError(c, err, action)
		return
	}

	userID, _ := middleware.GetUserID(c)
	middleware.GetLoggerFromContext(c).Info("Admin reservation action", map[string]interface{}{
		"action":     action,
		"product_id": productID,
		"user_id":    userID,
		"state":      product.State,
	})
	c.JSON(http.StatusOK, gin.H{
		"product": product,
	})
}

func bindProductAction(c *gin.Context) (uint, bool) {
	var req ProductActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.GetLoggerFromContext(c).Warn("Invalid product action request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "product_id is required")
		return 0, false
	}
	return req.ProductID, true
}

func respondReservationError(c *gin.Context, err error, action string) {
	var conflict *service.ConflictError
	switch {
	case errors.As(err, &conflict):
		apperrors.ReservationConflictError(c, conflict.ProductIDs)
	case errors.Is(err, service.ErrProductNotFound):
		apperrors.NotFound(c, apperrors.ResourceNotFound, "Product not found")
	case errors.Is(err, service.ErrInvalidState):
		apperrors.BadRequest(c, apperrors.ReservationInvalidState, "The product is not in a state that allows this")
	case errors.Is(err, service.ErrNoProducts), errors.Is(err, service.ErrBuyerInfoRequired):
		apperrors.BadRequest(c, apperrors.ValidationRequired, err.Error())
	case errors.Is(err, service.ErrOwnerRequired):
		apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthSessionMissing, "Sign in or send a guest session id")
	default:
		middleware.GetLoggerFromContext(c).Error("Failed to "+action, err)
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, action)
	}
}
