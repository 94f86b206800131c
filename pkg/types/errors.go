package types

import "errors"

// Domain errors for type validation
var (
	ErrMissingFileKey    = errors.New("file key is required")
	ErrMissingOwnerID    = errors.New("owner id is required")
	ErrInvalidSimilarity = errors.New("similarity must be between -1 and 1")
)
