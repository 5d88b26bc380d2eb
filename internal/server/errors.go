package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/billdesk/internal/auth"
	"github.com/smallbiznis/billdesk/internal/authorization"
	customerdomain "github.com/smallbiznis/billdesk/internal/customer/domain"
	dashboarddomain "github.com/smallbiznis/billdesk/internal/dashboard/domain"
	invoicedomain "github.com/smallbiznis/billdesk/internal/invoice/domain"
	itemdomain "github.com/smallbiznis/billdesk/internal/item/domain"
	"github.com/smallbiznis/billdesk/internal/money"
	organizationdomain "github.com/smallbiznis/billdesk/internal/organization/domain"
	paymentdomain "github.com/smallbiznis/billdesk/internal/payment/domain"
	quotedomain "github.com/smallbiznis/billdesk/internal/quote/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotInOrganization  = errors.New("not_in_organization")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// bindingError turns a ShouldBind failure into a ValidationErrors list keyed by
// json field names.
func bindingError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		out := make([]ValidationError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			out = append(out, ValidationError{
				Field:   fieldPath(fe),
				Code:    fe.Tag(),
				Message: fieldErrorMessage(fe),
			})
		}
		return &ValidationErrors{Errors: out}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return newValidationError(typeErr.Field, "invalid_type", "invalid value type")
	}
	return invalidRequestError()
}

// fieldPath drops the struct name from the validator namespace:
// createInvoiceRequest.items[0].quantity -> items[0].quantity.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min", "gte":
		return fe.Field() + " must be at least " + fe.Param()
	case "max", "lte":
		return fe.Field() + " must be at most " + fe.Param()
	case "len":
		return fe.Field() + " must have length " + fe.Param()
	case "oneof":
		return fe.Field() + " must be one of " + fe.Param()
	default:
		return "invalid value"
	}
}

// registerValidatorTagNames makes validator report json names instead of Go field names.
func registerValidatorTagNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name, _, _ := strings.Cut(field.Tag.Get(tag), ",")
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return field.Name
	})
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case isNotInOrganizationError(err):
		return http.StatusForbidden, errorPayload{
			Type:    "not_in_organization",
			Message: "user is not assigned to an organization",
		}
	case isValidationError(err):
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrUnauthenticated),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidClaims):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, customerdomain.ErrInUse),
		errors.Is(err, quotedomain.ErrNumberUnavailable):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog reports the response type and code of err for the request log.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isNotInOrganizationError(err error) bool {
	switch {
	case errors.Is(err, ErrNotInOrganization),
		errors.Is(err, authorization.ErrInvalidOrganization),
		errors.Is(err, organizationdomain.ErrInvalidOrganization),
		errors.Is(err, customerdomain.ErrInvalidOrganization),
		errors.Is(err, itemdomain.ErrInvalidOrganization),
		errors.Is(err, invoicedomain.ErrInvalidOrganization),
		errors.Is(err, paymentdomain.ErrInvalidOrganization),
		errors.Is(err, quotedomain.ErrInvalidOrganization),
		errors.Is(err, dashboarddomain.ErrInvalidOrganization):
		return true
	default:
		return false
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isMoneyValidationError(err),
		isOrganizationValidationError(err),
		isCustomerValidationError(err),
		isItemValidationError(err),
		isInvoiceValidationError(err),
		isPaymentValidationError(err),
		isQuoteValidationError(err),
		errors.Is(err, dashboarddomain.ErrInvalidRange):
		return true
	default:
		return false
	}
}

func isMoneyValidationError(err error) bool {
	switch {
	case errors.Is(err, money.ErrInvalidItems),
		errors.Is(err, money.ErrInvalidQuantity),
		errors.Is(err, money.ErrInvalidPrice),
		errors.Is(err, money.ErrInvalidRate),
		errors.Is(err, money.ErrInvalidTax),
		errors.Is(err, money.ErrInvalidTaxRate),
		errors.Is(err, money.ErrAmountOutOfRange):
		return true
	default:
		return false
	}
}

// Malformed path ids are reported as missing resources.
func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, organizationdomain.ErrNotFound),
		errors.Is(err, customerdomain.ErrNotFound),
		errors.Is(err, customerdomain.ErrInvalidID),
		errors.Is(err, itemdomain.ErrNotFound),
		errors.Is(err, itemdomain.ErrInvalidID),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, invoicedomain.ErrInvalidID),
		errors.Is(err, paymentdomain.ErrNotFound),
		errors.Is(err, paymentdomain.ErrInvalidID),
		errors.Is(err, quotedomain.ErrNotFound),
		errors.Is(err, quotedomain.ErrInvalidID),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, customerdomain.ErrInUse):
		return "customer is referenced by invoices or quotes"
	case errors.Is(err, quotedomain.ErrNumberUnavailable):
		return "quote number could not be allocated, retry the request"
	default:
		return "conflict"
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_items":
		return "at least one line item is required"
	case "invalid_tax_rate":
		return "tax rate must be between 0 and 100"
	case "invalid_due_date":
		return "due date must not be before issue date"
	case "invalid_expiry_date":
		return "expiry date must not be before issue date"
	case "invalid_status":
		return "status is not allowed"
	default:
		return "invalid value"
	}
}
