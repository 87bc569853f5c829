package models

import (
	"errors"
	"fmt"
)

// Domain specific errors shared by repositories, services and handlers.
var (
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrForbidden       = errors.New("action forbidden")
	ErrBadRequest      = errors.New("bad request")
	ErrValidation      = errors.New("validation failed")

	// ErrFavoriteRace is returned when a concurrent writer changed the same
	// favorite set between our read and our write.
	ErrFavoriteRace = fmt.Errorf("concurrent favorite update: %w", ErrConflict)
)

// ErrorResponse is the JSON body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
