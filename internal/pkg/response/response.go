package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"framestudio/internal/pkg/apperr"
)

func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

func Error(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func ErrorWithDetails(c *gin.Context, statusCode int, code string, message string, details any) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation:         http.StatusBadRequest,
	apperr.KindSlotUnavailable:    http.StatusConflict,
	apperr.KindSchedulingConflict: http.StatusConflict,
	apperr.KindNotFound:           http.StatusNotFound,
	apperr.KindDependencyUnmet:    http.StatusUnprocessableEntity,
	apperr.KindUnavailable:        http.StatusServiceUnavailable,
}

// FromError renders a domain error as its kind and message. Anything else
// becomes a 500 without leaking internals.
func FromError(c *gin.Context, err error) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		_ = c.Error(err)
		Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}
	status, ok := statusByKind[e.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	details := map[string]any{}
	for k, v := range e.Details {
		details[k] = v
	}
	if e.Field != "" {
		details["field"] = e.Field
	}
	if len(details) == 0 {
		Error(c, status, codeFor(e.Kind), e.Message)
		return
	}
	ErrorWithDetails(c, status, codeFor(e.Kind), e.Message, details)
}

func codeFor(k apperr.Kind) string {
	switch k {
	case apperr.KindValidation:
		return "VALIDATION_ERROR"
	case apperr.KindSlotUnavailable:
		return "SLOT_UNAVAILABLE"
	case apperr.KindSchedulingConflict:
		return "SCHEDULING_CONFLICT"
	case apperr.KindNotFound:
		return "NOT_FOUND"
	case apperr.KindDependencyUnmet:
		return "DEPENDENCY_UNMET"
	case apperr.KindUnavailable:
		return "UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}
