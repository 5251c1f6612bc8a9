package handler

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/stockflow/internal/core/service"
)

// errorMapping pairs a service error with how it is reported on each
// surface. Messages are shown to the cashier as they are.
type errorMapping struct {
	err     error
	status  int
	code    codes.Code
	message string
}

var errorMappings = []errorMapping{
	{service.ErrPasswordMismatch, http.StatusBadRequest, codes.InvalidArgument, "Passwords do not match"},
	{service.ErrInvalidPayment, http.StatusBadRequest, codes.InvalidArgument, "Payment method must be Cash, Card or Transfer"},
	{service.ErrInvalidDiscount, http.StatusBadRequest, codes.InvalidArgument, "Discount must be between zero and the subtotal"},
	{service.ErrSelfDelete, http.StatusBadRequest, codes.FailedPrecondition, "You cannot delete your own account"},

	{service.ErrInvalidCredentials, http.StatusUnauthorized, codes.Unauthenticated, "Invalid email or password"},
	{service.ErrUnauthenticated, http.StatusUnauthorized, codes.Unauthenticated, "Please log in to continue"},
	{service.ErrForbidden, http.StatusForbidden, codes.PermissionDenied, "You do not have permission to do that"},

	{service.ErrProductNotFound, http.StatusNotFound, codes.NotFound, "Product not found"},
	{service.ErrCategoryNotFound, http.StatusNotFound, codes.NotFound, "Category not found"},
	{service.ErrSaleNotFound, http.StatusNotFound, codes.NotFound, "Sale not found"},
	{service.ErrUserNotFound, http.StatusNotFound, codes.NotFound, "User not found"},
	{service.ErrNotInCart, http.StatusNotFound, codes.NotFound, "Product is not in the cart"},

	{service.ErrEmailTaken, http.StatusConflict, codes.AlreadyExists, "A user with this email already exists"},
	{service.ErrDuplicateSKU, http.StatusConflict, codes.AlreadyExists, "A product with this SKU already exists"},
	{service.ErrCategoryInUse, http.StatusConflict, codes.FailedPrecondition, "Category still has products"},
	{service.ErrDuplicateRequest, http.StatusConflict, codes.AlreadyExists, "duplicate request"},
	{service.ErrInsufficientStock, http.StatusConflict, codes.ResourceExhausted, "Not enough stock to complete the sale"},

	{service.ErrEmptyCart, http.StatusUnprocessableEntity, codes.FailedPrecondition, "Cart is empty"},
	{service.ErrOutOfStock, http.StatusUnprocessableEntity, codes.FailedPrecondition, "Product out of stock"},
	{service.ErrNotEnoughStock, http.StatusUnprocessableEntity, codes.FailedPrecondition, "Not enough stock"},

	{service.ErrServiceClosed, http.StatusServiceUnavailable, codes.Unavailable, "Checkout is temporarily unavailable"},
}

// classify returns the mapping for err. Validation errors carry their own
// message; anything unknown is an internal error.
func classify(err error) (errorMapping, bool) {
	if errors.Is(err, service.ErrValidation) {
		msg := strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")
		if msg != "" {
			msg = strings.ToUpper(msg[:1]) + msg[1:]
		}
		return errorMapping{err: err, status: http.StatusBadRequest, code: codes.InvalidArgument, message: msg}, true
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m, true
		}
	}
	return errorMapping{err: err, status: http.StatusInternalServerError, code: codes.Internal, message: "internal error"}, false
}
