package service

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrImportNotConfirmed = errors.New("importing a backup replaces all records; confirmation required")
	ErrRemote             = errors.New("remote store unavailable")
	ErrSessionClosed      = errors.New("session closed")
)
