package model

// Student is the authenticated user's profile as returned by the backend.
type Student struct {
	// ID is the backend document identifier.
	ID string `json:"_id"`

	// Name is the student's full name.
	Name string `json:"name"`

	// Email is the login email address.
	Email string `json:"email"`

	// StudentID is the institutional registration number.
	StudentID string `json:"studentId"`

	// Department is the student's faculty department.
	Department string `json:"department"`

	// YearOfStudy is the current academic year label.
	YearOfStudy string `json:"yearOfStudy"`

	// Courses lists the enrolled course codes.
	Courses []string `json:"courses"`
}

// Valid reports whether the profile carries the identity fields the
// session layer requires before it may be persisted.
func (s Student) Valid() bool {
	return s.ID != "" && s.Email != ""
}
