package store

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrOpenSessionExists is returned by Create when the member already has
	// an open session.
	ErrOpenSessionExists = errors.New("member already has an open session")

	// ErrSessionNotOpen is returned by Close when the session was closed already.
	ErrSessionNotOpen = errors.New("session is not open")

	// ErrInvalidMemberID is returned by UpsertMember for ids <= 0.
	ErrInvalidMemberID = errors.New("invalid member id")
)
