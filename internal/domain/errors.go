package domain

import "errors"

// Sentinel errors that components wrap with context via fmt.Errorf("%w: ...").
// apierrors.FromDomain maps these to stable HTTP error codes.
var (
	ErrBadInput           = errors.New("bad_input")
	ErrNotFound           = errors.New("not_found")
	ErrConflict           = errors.New("conflict")
	ErrStorageUnavailable = errors.New("storage_unavailable")
	ErrForbidden          = errors.New("forbidden")
	ErrAuthFailed         = errors.New("auth_failed")
	ErrUnprocessable      = errors.New("unprocessable_entity")
)
