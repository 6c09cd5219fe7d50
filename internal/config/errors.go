package config

import (
	"errors"
	"fmt"
)

// ErrInvalid matches every configuration error via errors.Is.
var ErrInvalid = errors.New("invalid configuration")

// Error is a configuration error naming the offending key.
type Error struct {
	Key    string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Key, e.Reason)
}

func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

func invalid(key, reason string) error {
	return &Error{Key: key, Reason: reason}
}
