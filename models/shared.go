package models

import (
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("booking_status", func(fl validator.FieldLevel) bool {
		return BookingStatus(fl.Field().String()).Valid()
	})
	return v
}

// Validate checks a booking decoded from the store before any logic branches on it.
func (b *Booking) Validate() error {
	return validate.Struct(b)
}
