package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/vintage-store-backend/internal/app/service"
	apperrors "github.com/ikkim/vintage-store-backend/internal/errors"
	"github.com/ikkim/vintage-store-backend/internal/middleware"
	"github.com/shopspring/decimal"
)

type CartController struct {
	cartService service.CartService
}

func NewCartController(cartService service.CartService) *CartController {
	return &CartController{
		cartService: cartService,
	}
}

type AddToCartRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,gt=0"`
}

type UpdateCartRequest struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

// GetCart returns the caller's cart
// GET /api/v1/cart
func (ctrl *CartController) GetCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	owner, ok := middleware.GetOwner(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	cartItems, err := ctrl.cartService.GetCart(owner)
	if err != nil {
		log.Error("Failed to fetch cart", err, owner.LogFields())
		apperrors.InternalError(c, "Failed to fetch cart")
		return
	}

	total := decimal.Zero
	for _, item := range cartItems {
		total = total.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	c.JSON(http.StatusOK, gin.H{
		"cart_items": cartItems,
		"count":      len(cartItems),
		"total":      total,
	})
}

// AddToCart adds item to cart
// POST /api/v1/cart
func (ctrl *CartController) AddToCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	owner, ok := middleware.GetOwner(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid add to cart request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request data")
		return
	}

	item, err := ctrl.cartService.AddToCart(owner, req.ProductID, req.Quantity)
	if err != nil {
		respondCartError(c, err, "add to cart")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":   "Item added to cart",
		"cart_item": item,
	})
}

// UpdateCartItem changes an item's quantity
// PUT /api/v1/cart/:id
func (ctrl *CartController) UpdateCartItem(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	owner, ok := middleware.GetOwner(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	cartItemID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req UpdateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid update cart request", map[string]interface{}{
			"cart_item_id": cartItemID,
			"error":        err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request data")
		return
	}

	item, err := ctrl.cartService.UpdateQuantity(owner, cartItemID, req.Quantity)
	if err != nil {
		respondCartError(c, err, "update cart item")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Cart item updated",
		"cart_item": item,
	})
}

// RemoveFromCart removes one item
// DELETE /api/v1/cart/:id
func (ctrl *CartController) RemoveFromCart(c *gin.Context) {
	owner, ok := middleware.GetOwner(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	cartItemID, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := ctrl.cartService.RemoveItem(owner, cartItemID); err != nil {
		respondCartError(c, err, "remove cart item")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item removed from cart",
	})
}

// ClearCart empties the caller's cart
// DELETE /api/v1/cart
func (ctrl *CartController) ClearCart(c *gin.Context) {
	owner, ok := middleware.GetOwner(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	if err := ctrl.cartService.ClearCart(owner); err != nil {
		respondCartError(c, err, "clear cart")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart cleared",
	})
}

// MigrateGuestCart moves the X-Session-ID cart into the signed-in user's cart
// POST /api/v1/cart/migrate
func (ctrl *CartController) MigrateGuestCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}
	sessionID := middleware.GetSessionID(c)
	if sessionID == "" {
		apperrors.BadRequest(c, apperrors.AuthSessionMissing, "X-Session-ID header is required")
		return
	}

	result, err := ctrl.cartService.MigrateGuestCart(sessionID, userID)
	if err != nil {
		log.Error("Failed to migrate guest cart", err, map[string]interface{}{
			"user_id":    userID,
			"session_id": sessionID,
		})
		respondCartError(c, err, "migrate cart")
		return
	}

	c.JSON(http.StatusOK, result)
}

func respondCartError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, service.ErrOwnerRequired):
		apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthSessionMissing, "Sign in or send a guest session id")
	case errors.Is(err, service.ErrProductNotFound):
		apperrors.NotFound(c, apperrors.ResourceNotFound, "Product not found")
	case errors.Is(err, service.ErrCartItemNotFound):
		apperrors.NotFound(c, apperrors.CartItemNotFound, "Cart item not found")
	case errors.Is(err, service.ErrCartConflict):
		apperrors.BadRequest(c, apperrors.CartProductUnavailable, "This product is reserved or sold")
	case errors.Is(err, service.ErrInsufficientStock):
		apperrors.BadRequest(c, apperrors.StockInsufficient, "Not enough stock")
	case errors.Is(err, service.ErrInvalidQuantity):
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Quantity must be at least 1")
	default:
		middleware.GetLoggerFromContext(c).Error("Failed to "+action, err)
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, action)
	}
}

func parseIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid id")
		return 0, false
	}
	return uint(id), true
}
