package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Request bodies. Validation is declarative; handlers only translate the
// validated DTO into a domain call.
type (
	addCardRequest struct {
		CardID int64 `json:"card_id" validate:"required,gt=0"`
	}

	recordTransactionRequest struct {
		CardID      int64  `json:"card_id" validate:"required,gt=0"`
		Category    string `json:"category" validate:"required,notblank"`
		AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
		Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	}

	setBalanceRequest struct {
		Balance int64 `json:"balance" validate:"gte=0"`
	}

	recordRedemptionRequest struct {
		ProgramID   int64  `json:"program_id" validate:"required,gt=0"`
		Miles       int64  `json:"miles" validate:"required,gt=0"`
		Description string `json:"description"`
	}

	createGoalRequest struct {
		Target      int64  `json:"target" validate:"required,gte=1000"`
		Description string `json:"description" validate:"required,notblank"`
	}
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// "required" alone accepts strings of spaces
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

var errBadBody = errors.New("malformed request body")

// decode unmarshals and validates a JSON request body.
func (s *Server) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errBadBody
	}
	return s.validate.Struct(dst)
}

// pathID parses an int64 path segment like {userID}.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
