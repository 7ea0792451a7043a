package service

import "errors"

var (
	ErrReminderLimitExceeded = errors.New("active reminder limit exceeded for plan")
	// ErrCorrelationNotFound means no outstanding event matched the reply.
	ErrCorrelationNotFound = errors.New("no reminder event matches the reply")
	ErrPatientUnresolved   = errors.New("patient could not be resolved")
	// ErrAlreadyResolved is returned when another writer resolved the event
	// first. Callers treat it as a no-op.
	ErrAlreadyResolved = errors.New("reminder event already resolved")
)
