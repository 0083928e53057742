// Package domain provides definitions of all entities.
package domain

import "errors"

var (
	// ErrUnknownUser indicates that the referenced account does not exist.
	ErrUnknownUser = errors.New("unknown user")
	// ErrInsufficientFunds indicates that the account balance does not cover the withdrawal.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrUsernameAlreadyExists indicates that the account with the given username already exists.
	ErrUsernameAlreadyExists = errors.New("username already exists")
	// ErrInvalidCredentials indicates a failed login.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrAlreadyLoggedIn indicates that the user holds an active session elsewhere.
	ErrAlreadyLoggedIn = errors.New("user already logged in")
)
