package models

import "errors"

var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrBattleNotFound    = errors.New("battle not found")
	ErrUserNotFound      = errors.New("user not found")
)
