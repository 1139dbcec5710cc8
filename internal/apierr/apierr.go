package apierr

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/finaki/finaki/internal/ledger"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidationError is returned when a request body fails its struct tags.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Validate checks s against its validate tags.
func Validate(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Tag: fe.Tag(), Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "uuid", "uuid4":
		return fe.Field() + " must be a valid id"
	case "oneof":
		return fe.Field() + " must be one of " + fe.Param()
	case "min":
		return fe.Field() + " must be at least " + fe.Param()
	case "max":
		return fe.Field() + " must be at most " + fe.Param()
	case "gte":
		return fe.Field() + " must be greater than or equal to " + fe.Param()
	case "gt":
		return fe.Field() + " must be greater than " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}

// Status maps an error to the HTTP status it should be reported with.
func Status(err error) int {
	var fe *fiber.Error
	var ve *ValidationError
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrInvalidType),
		errors.Is(err, ledger.ErrInvalidTransfer),
		errors.Is(err, ledger.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Handler renders every error returned by a route as {"error": ...}.
// Internal errors are logged and replaced by a generic message.
func Handler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := Status(err)
		body := fiber.Map{"error": err.Error()}

		var ve *ValidationError
		if errors.As(err, &ve) {
			body = fiber.Map{"error": "validation failed", "details": ve.Fields}
		}
		var be *ledger.BalanceError
		if errors.As(err, &be) {
			body["wallet_id"] = be.WalletID
			body["balance"] = be.Balance
			body["amount"] = be.Amount
		}
		if status >= http.StatusInternalServerError {
			requestID, _ := c.Locals("X-Request-ID").(string)
			logger.Error("request failed", slog.String("path", c.Path()), slog.String("request_id", requestID), slog.Any("error", err))
			body = fiber.Map{"error": http.StatusText(status)}
		}
		return c.Status(status).JSON(body)
	}
}

// Amount converts a decoded JSON number into whole minor units. A nil value
// yields zero.
func Amount(field string, d *decimal.Decimal) (ledger.Amount, error) {
	if d == nil {
		return 0, nil
	}
	reject := func(tag, msg string) error {
		return &ValidationError{Fields: []FieldError{{Field: field, Tag: tag, Message: field + " " + msg}}}
	}
	switch {
	case d.IsNegative():
		return 0, reject("gte", "must be greater than or equal to 0")
	case !d.Equal(d.Truncate(0)):
		return 0, reject("integer", "must be a whole number of minor units")
	case d.GreaterThan(maxAmount):
		return 0, reject("max", "is too large")
	}
	return ledger.Amount(d.IntPart()), nil
}

var maxAmount = decimal.NewFromInt(math.MaxInt64)
