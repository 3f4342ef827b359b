package database

import "errors"

var (
	ErrNotFound          = errors.New("campaign not found")
	ErrInvalidTransition = errors.New("campaign is not in a state that allows this action")
	ErrOrderNotFound     = errors.New("payment order not found")
)
