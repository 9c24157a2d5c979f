package models

import "time"

// Subscriber is the single persisted entity of the service.
//
// ValidationToken and TokenCreatedAt are present only while the email is
// unvalidated; ValidationDate only after validation succeeded. The repository
// implementations enforce the same shape on disk.
type Subscriber struct {
	ID              int64
	Email           string
	EmailValidated  bool
	ValidationToken string
	TokenCreatedAt  *time.Time
	Preferences     []string
	SignupDate      time.Time
	ValidationDate  *time.Time
	UpdatedAt       time.Time
}
