package production

import (
	"errors"

	"framestudio/internal/pkg/apperr"
)

var (
	ErrTaskNotFound      = apperr.New(apperr.KindNotFound, "no scheduled task for order")
	ErrAlreadyScheduled  = apperr.New(apperr.KindValidation, "order already has a task")
	ErrNoFeasibleSlot    = apperr.New(apperr.KindSchedulingConflict, "no feasible slot before the deadline")
	ErrInvalidTransition = apperr.New(apperr.KindValidation, "invalid status transition")

	// errStale signals that the window picked outside the lock was taken by
	// the time the lock was held.
	errStale = errors.New("planned window no longer free")
)
