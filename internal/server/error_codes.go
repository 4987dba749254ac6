package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument  = 1000
	ErrCodeRequestTooLarge  = 1002
	ErrCodeInvalidID        = 1004
	ErrCodeMissingRequired  = 1009
	ErrCodeInvalidMultipart = 1015
	ErrCodeInvalidFilename  = 1016

	// Domain state (2xxx)
	ErrCodeMarkerNotFound = 2001
	ErrCodeImageNotFound  = 2003
	ErrCodeMarkerIDExists = 2101
	ErrCodeConflict       = 2102

	// Auth & limits (3xxx)
	ErrCodeUnauthorized      = 3001
	ErrCodeForbidden         = 3002
	ErrCodeResourceExhausted = 3003
	ErrCodeInvalidIDToken    = 3004

	// Internal/system (4xxx)
	ErrCodeInternal       = 4001
	ErrCodeStoreFailure   = 4002
	ErrCodeBlobFailure    = 4003
	ErrCodeImportFailed   = 4004
	ErrCodeNotImplemented = 4005
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 401:
		return ErrCodeUnauthorized
	case 403:
		return ErrCodeForbidden
	case 404:
		return ErrCodeMarkerNotFound
	case 409:
		return ErrCodeConflict
	case 429:
		return ErrCodeResourceExhausted
	case 500:
		return ErrCodeInternal
	case 501:
		return ErrCodeNotImplemented
	default:
		return 0
	}
}
