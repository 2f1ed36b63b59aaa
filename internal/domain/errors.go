package domain

import "errors"

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrUnknownUser     = errors.New("no such user")
	ErrAddressRequired = errors.New("address is required")
	ErrTextRequired    = errors.New("text is required")
	ErrLabelRequired   = errors.New("label is required")
	ErrLabelTooLong    = errors.New("label is too long")
	ErrLabelExists     = errors.New("label already exists for this user")
	ErrLabelNotFound   = errors.New("no text found with the given label")
	ErrContentNotFound = errors.New("text not found for the provided hash")
	ErrFetchFailed     = errors.New("error fetching transactions data")
	ErrStoreFailed     = errors.New("content store failure")
)
