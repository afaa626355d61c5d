package domain

import "errors"

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("not found")
	ErrNotCompleted   = errors.New("quest not completed")
	ErrAlreadyClaimed = errors.New("quest already claimed")
	ErrPersistence    = errors.New("persistence failure")
)
