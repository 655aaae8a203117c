package tree

import "errors"

// Sentinel errors returned (wrapped) by tree operations.
// Match them with errors.Is.
var (
	ErrPathNotFound    = errors.New("path not found")
	ErrInvalidPath     = errors.New("invalid path")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrSchemaViolation = errors.New("schema violation")
	ErrInvalidValue    = errors.New("invalid value")
)
