package models

import "time"

// EnquiryStatus tracks where a prospective student sits in the admissions funnel.
type EnquiryStatus string

const (
	EnquiryStatusNew       EnquiryStatus = "New"
	EnquiryStatusContacted EnquiryStatus = "Contacted"
	EnquiryStatusAdmitted  EnquiryStatus = "Admitted"
	EnquiryStatusRejected  EnquiryStatus = "Rejected"
)

// EnquirySource identifies how the enquiry reached the office.
type EnquirySource string

const (
	EnquirySourceWalkIn      EnquirySource = "Walk-in"
	EnquirySourcePhone       EnquirySource = "Phone"
	EnquirySourceEmail       EnquirySource = "Email"
	EnquirySourceWebsite     EnquirySource = "Website"
	EnquirySourceReferral    EnquirySource = "Referral"
	EnquirySourceSocialMedia EnquirySource = "Social Media"
)

// Enquiry represents a prospective-student enquiry.
type Enquiry struct {
	ID            string        `db:"id" json:"id"`
	StudentName   string        `db:"student_name" json:"student_name"`
	Email         string        `db:"email" json:"email"`
	Phone         string        `db:"phone" json:"phone"`
	CourseApplied string        `db:"course_applied" json:"course_applied"`
	EnquiryDate   time.Time     `db:"enquiry_date" json:"enquiry_date"`
	Status        EnquiryStatus `db:"status" json:"status"`
	Source        EnquirySource `db:"source" json:"source"`
	Address       string        `db:"address" json:"address"`
	Remarks       string        `db:"remarks" json:"remarks"`
	FollowUpDate  *time.Time    `db:"follow_up_date" json:"follow_up_date,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// EnquiryFilter encapsulates allowed search parameters for listing enquiries.
type EnquiryFilter struct {
	Status        EnquiryStatus
	CourseApplied string
	Source        EnquirySource
	Search        string
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}

// ConversionPrefill returns enquiry fields pre-filled into the student admission form.
type ConversionPrefill struct {
	EnquiryID string `json:"enquiry_id"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Course    string `json:"course"`
	Address   string `json:"address"`
	Remarks   string `json:"remarks"`
}

// ValidEnquiryStatus reports whether the given value is a known status.
func ValidEnquiryStatus(s EnquiryStatus) bool {
	switch s {
	case EnquiryStatusNew, EnquiryStatusContacted, EnquiryStatusAdmitted, EnquiryStatusRejected:
		return true
	}
	return false
}
