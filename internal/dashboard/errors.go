package dashboard

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stageboard/stageboard/internal/state"
	"github.com/stageboard/stageboard/internal/store"
)

// warningHeader carries a follow-up failure on a write that still succeeded.
const warningHeader = "X-Stageboard-Warning"

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, state.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// writeResult answers a write that returns the entity it touched. A
// non-nil v with a non-nil err means the write landed but its recompute
// failed.
func writeResult[T any](c *gin.Context, code int, v *T, err error) {
	if err != nil && v == nil {
		writeError(c, err)
		return
	}
	if err != nil {
		c.Header(warningHeader, err.Error())
	}
	c.JSON(code, v)
}

var errNotInProject = fmt.Errorf("not part of this project: %w", store.ErrInvalid)
