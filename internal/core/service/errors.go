package service

import "errors"

var (
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrServiceClosed     = errors.New("sale service closed")

	ErrEmptyCart       = errors.New("cart is empty")
	ErrOutOfStock      = errors.New("product out of stock")
	ErrNotEnoughStock  = errors.New("not enough stock")
	ErrNotInCart       = errors.New("product not in cart")
	ErrInvalidPayment  = errors.New("invalid payment method")
	ErrInvalidDiscount = errors.New("invalid discount")

	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryInUse    = errors.New("category has products")
	ErrDuplicateSKU     = errors.New("sku already exists")
	ErrSaleNotFound     = errors.New("sale not found")

	// ErrValidation is wrapped with the offending field, e.g.
	// fmt.Errorf("%w: name is required", ErrValidation).
	ErrValidation = errors.New("validation failed")

	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrEmailTaken         = errors.New("email already registered")
	ErrSelfDelete         = errors.New("cannot delete own account")
	ErrUserNotFound       = errors.New("user not found")
)
