package service

import (
	"errors"
	"fmt"
)

// Business rejections. Callers match them with errors.Is; the returned errors
// carry the member or range that was rejected.
var (
	ErrMemberNotFound  = errors.New("member not found")
	ErrAlreadyInside   = errors.New("member is already inside")
	ErrNoActiveSession = errors.New("member has no active session")
	ErrInvalidRange    = errors.New("end must not be before start")
)

// Input validation.
var (
	ErrInvalidMemberID = errors.New("member_id must be positive")
	ErrInvalidQRCode   = errors.New("qr_code is required")
	ErrSessionNotFound = errors.New("session not found")
)

// ErrStorage wraps every fault reported by a store or member directory.
var ErrStorage = errors.New("storage failure")

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
