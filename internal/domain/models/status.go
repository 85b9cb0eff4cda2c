package models

// Lifecycle status shared by users and schools.
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)
