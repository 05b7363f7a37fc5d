package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/article-archiver/internal/store"
)

// ErrRunInProgress indicates another run holds the run slot
type ErrRunInProgress struct{}

func (e *ErrRunInProgress) Error() string {
	return "a run is already in progress"
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var validation *ErrValidation
	var busy *ErrRunInProgress
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &busy):
		return http.StatusConflict
	case errors.Is(err, store.ErrSnapshotNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
