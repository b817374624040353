package appointment

import (
	"errors"

	"framestudio/internal/pkg/apperr"
)

var (
	ErrAppointmentNotFound = apperr.New(apperr.KindNotFound, "appointment not found")
	ErrSlotUnavailable     = apperr.New(apperr.KindSlotUnavailable, "requested time is no longer available")
	ErrNotConfirmed        = apperr.New(apperr.KindValidation, "appointment is no longer confirmed")

	errMoved = errors.New("appointment moved while waiting for lock")
)
