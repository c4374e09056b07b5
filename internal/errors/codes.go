package errors

// Error codes returned in ErrorResponse.Error.
// Format: CATEGORY_SPECIFIC_DETAIL. The storefront maps these to copy.

const (
	// ==================== Authentication (AUTH_) ====================
	AuthUnauthorized   = "AUTH_UNAUTHORIZED" // sign-in required
	AuthTokenExpired   = "AUTH_TOKEN_EXPIRED"
	AuthTokenInvalid   = "AUTH_TOKEN_INVALID"
	AuthSessionMissing = "AUTH_SESSION_MISSING" // neither a token nor X-Session-ID

	// ==================== Authorization (AUTHZ_) ====================
	AuthzForbidden = "AUTHZ_FORBIDDEN"
	AuthzAdminOnly = "AUTHZ_ADMIN_ONLY"

	// ==================== Validation (VALIDATION_) ====================
	ValidationInvalidInput = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID    = "VALIDATION_INVALID_ID"
	ValidationRequired     = "VALIDATION_REQUIRED"

	// ==================== Resources (RESOURCE_) ====================
	ResourceNotFound      = "RESOURCE_NOT_FOUND"
	ResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS"
	ResourceConflict      = "RESOURCE_CONFLICT"

	// ==================== Reservations (RESERVATION_) ====================
	ReservationInvalidState = "RESERVATION_INVALID_STATE" // product not in the state the verb requires
	ReservationConflict     = "RESERVATION_CONFLICT"      // held by another buyer

	// ==================== Cart (CART_) ====================
	CartItemNotFound       = "CART_ITEM_NOT_FOUND"
	CartProductUnavailable = "CART_PRODUCT_UNAVAILABLE"
	StockInsufficient      = "STOCK_INSUFFICIENT"

	// ==================== Internal (INTERNAL_) ====================
	InternalServerError   = "INTERNAL_SERVER_ERROR"
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR"
	InternalExternalAPI   = "INTERNAL_EXTERNAL_API"
)
