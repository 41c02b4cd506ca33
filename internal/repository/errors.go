package repository

import (
	"errors"
	"fmt"

	"shuttle/internal/domain"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = fmt.Errorf("%w: duplicate entity", domain.ErrConflict)

	// ErrInvalidCursor is returned when a pagination cursor cannot be decoded.
	ErrInvalidCursor = fmt.Errorf("%w: invalid cursor", domain.ErrValidation)
)
