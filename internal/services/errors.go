package services

import "errors"

// Custom errors shared by the services; handlers map them to HTTP statuses.
var (
	ErrValidation    = errors.New("input validation failed")
	ErrBusy          = errors.New("widget is still answering the previous message")
	ErrNoArtifact    = errors.New("widget has no generated document")
	ErrCreatingToken = errors.New("failed to create access token")
)
