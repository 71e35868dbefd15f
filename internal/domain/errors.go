package domain

import "errors"

var (
	ErrNotFound         = errors.New("booking not found")
	ErrInvalidLink      = errors.New("invalid booking link")
	ErrExpired          = errors.New("booking link has expired")
	ErrAlreadyCompleted = errors.New("passenger details already submitted")
	ErrPaymentPending   = errors.New("payment has not been completed yet")
	ErrSubmitInFlight   = errors.New("a submission for this booking is already in progress")
)
