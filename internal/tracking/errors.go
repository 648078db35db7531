package tracking

import "errors"

// Core errors.
var (
	ErrProductExists   = errors.New("tracking: product already exists")
	ErrProductNotFound = errors.New("tracking: product not found")
	ErrEventNotFound   = errors.New("tracking: event not found")
	ErrUnauthorized    = errors.New("tracking: unauthorized")
)

// Lifecycle errors. ErrProductDeactivated is distinct from ErrUnauthorized:
// an authorized actor hitting an inactive product is a state problem, not a
// permission problem.
var (
	ErrProductDeactivated = errors.New("tracking: product is deactivated")
	ErrProductActive      = errors.New("tracking: product is already active")
	ErrReasonRequired     = errors.New("tracking: deactivation reason is required")
)

// Field validation errors, one per violated constraint.
var (
	ErrInvalidProductID      = errors.New("tracking: product id is empty or malformed")
	ErrProductIDTooLong      = errors.New("tracking: product id too long")
	ErrNameRequired          = errors.New("tracking: product name is required")
	ErrNameTooLong           = errors.New("tracking: product name too long")
	ErrOriginRequired        = errors.New("tracking: origin location is required")
	ErrOriginTooLong         = errors.New("tracking: origin location too long")
	ErrCategoryRequired      = errors.New("tracking: category is required")
	ErrCategoryTooLong       = errors.New("tracking: category too long")
	ErrDescriptionTooLong    = errors.New("tracking: description too long")
	ErrTooManyTags           = errors.New("tracking: too many tags")
	ErrTagTooLong            = errors.New("tracking: tag too long")
	ErrTooManyCertifications = errors.New("tracking: too many certification hashes")
	ErrTooManyMediaHashes    = errors.New("tracking: too many media hashes")
	ErrTooManyCustomFields   = errors.New("tracking: too many custom fields")
	ErrCustomValueTooLong    = errors.New("tracking: custom field value too long")
	ErrInvalidHash           = errors.New("tracking: content hash must be 64 hex characters")
	ErrInvalidEventType      = errors.New("tracking: event type is empty or malformed")
	ErrTooManyMetadataFields = errors.New("tracking: too many metadata entries")
	ErrMetadataValueTooLong  = errors.New("tracking: metadata value too long")
)

// Authorization management edge cases.
var (
	ErrAlreadyAuthorized = errors.New("tracking: actor already authorized")
	ErrNotAuthorized     = errors.New("tracking: no authorization entry for actor")
	ErrCannotRemoveOwner = errors.New("tracking: cannot remove the owner's authorization")
)
