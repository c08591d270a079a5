package app

import "fmt"

// DomainError is the error shape the HTTP layer renders: an HTTP status, a
// stable machine code (LOCKED, ALREADY_SIGNED, VALIDATION_ERROR, ...) and a
// message safe to show in the proposal editor. Details carries structured
// context such as the lock reason and timestamp.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
