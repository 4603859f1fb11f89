package model

// UserRole mirrors the role claim minted by the platform's identity service.
// There is no user table here; accounts live in the managed backend.
type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)
