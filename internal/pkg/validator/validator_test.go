package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"framestudio/internal/pkg/apperr"
)

type sample struct {
	CustomerID int64  `json:"customer_id" validate:"required,gt=0"`
	Method     string `json:"contact_method" validate:"omitempty,oneof=email sms phone"`
}

func TestValidateUsesJSONNames(t *testing.T) {
	errs := Validate(sample{Method: "pigeon"})
	assert.Equal(t, "required", errs["customer_id"])
	assert.Equal(t, "oneof", errs["contact_method"])
}

func TestCheckReturnsValidationError(t *testing.T) {
	err := Check(sample{CustomerID: 0})
	assert.ErrorIs(t, err, apperr.Validation)

	var e *apperr.Error
	if assert.ErrorAs(t, err, &e) {
		assert.Equal(t, "customer_id", e.Field)
	}
	assert.NoError(t, Check(sample{CustomerID: 5, Method: "sms"}))
}
