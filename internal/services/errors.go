package services

import "errors"

var (
	// ErrSignatureInvalid rejects a whole webhook batch before any entry is
	// read.
	ErrSignatureInvalid = errors.New("webhook signature invalid")

	// ErrInsufficientBalance is a precondition failure; nothing was changed.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrApprovalNotPending means an admin tried to act on an approval that
	// was already resolved (or whose transaction moved on).
	ErrApprovalNotPending = errors.New("approval is not pending")

	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
)
