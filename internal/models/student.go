package models

import "time"

// StudentStatus tracks the administrative state of an enrolled student.
type StudentStatus string

const (
	StudentStatusActive    StudentStatus = "Active"
	StudentStatusInactive  StudentStatus = "Inactive"
	StudentStatusGraduated StudentStatus = "Graduated"
	StudentStatusDropped   StudentStatus = "Dropped"
)

// Student represents an enrolled student.
type Student struct {
	ID               string        `db:"id" json:"id"`
	StudentID        string        `db:"student_id" json:"student_id"`
	EnquiryID        *string       `db:"enquiry_id" json:"enquiry_id,omitempty"`
	FullName         string        `db:"full_name" json:"full_name"`
	Email            string        `db:"email" json:"email"`
	Phone            string        `db:"phone" json:"phone"`
	DateOfBirth      time.Time     `db:"date_of_birth" json:"date_of_birth"`
	Gender           string        `db:"gender" json:"gender"`
	Course           string        `db:"course" json:"course"`
	Year             int           `db:"year" json:"year"`
	Semester         int           `db:"semester" json:"semester"`
	AdmissionDate    time.Time     `db:"admission_date" json:"admission_date"`
	AddressStreet    string        `db:"address_street" json:"address_street"`
	AddressCity      string        `db:"address_city" json:"address_city"`
	AddressState     string        `db:"address_state" json:"address_state"`
	AddressPincode   string        `db:"address_pincode" json:"address_pincode"`
	GuardianName     string        `db:"guardian_name" json:"guardian_name"`
	GuardianPhone    string        `db:"guardian_phone" json:"guardian_phone"`
	GuardianRelation string        `db:"guardian_relation" json:"guardian_relation"`
	BloodGroup       string        `db:"blood_group" json:"blood_group"`
	Status           StudentStatus `db:"status" json:"status"`
	Remarks          string        `db:"remarks" json:"remarks"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Course    string
	Status    StudentStatus
	Year      int
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// ValidStudentStatus reports whether the given value is a known status.
func ValidStudentStatus(s StudentStatus) bool {
	switch s {
	case StudentStatusActive, StudentStatusInactive, StudentStatusGraduated, StudentStatusDropped:
		return true
	}
	return false
}
