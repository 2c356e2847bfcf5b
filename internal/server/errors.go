package server

import (
	"errors"
	"net/http"

	"github.com/emrgen/notebook/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// errorStatus maps service errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrLockConflict), errors.Is(err, service.ErrCannotEdit):
		return http.StatusConflict
	case errors.Is(err, service.ErrNotLocked):
		return http.StatusLocked
	case errors.Is(err, service.ErrInvalidRevision),
		errors.Is(err, service.ErrRecordNotFound),
		errors.Is(err, service.ErrFieldNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidRecord):
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	code := errorStatus(err)
	if code == http.StatusInternalServerError {
		logrus.Errorf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}
