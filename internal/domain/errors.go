package domain

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrChatNotFound      = errors.New("chat not found")
	ErrMessageNotFound   = errors.New("message not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrNotAParticipant   = errors.New("user is not a chat participant")
	ErrChatAlreadyExists = errors.New("chat already exists")
)
