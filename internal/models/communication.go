package models

import "time"

// CommunicationType identifies the channel of a logged interaction.
type CommunicationType string

const (
	CommunicationPhoneCall CommunicationType = "Phone Call"
	CommunicationEmail     CommunicationType = "Email"
	CommunicationSMS       CommunicationType = "SMS"
	CommunicationWhatsApp  CommunicationType = "WhatsApp"
	CommunicationMeeting   CommunicationType = "In-person Meeting"
	CommunicationWalkIn    CommunicationType = "Walk-in Visit"
	CommunicationSystem    CommunicationType = "System"
	CommunicationOther     CommunicationType = "Other"
)

// Communication is a timestamped log entry referencing an enquiry, a student, or both.
type Communication struct {
	ID                string            `db:"id" json:"id"`
	EnquiryID         *string           `db:"enquiry_id" json:"enquiry_id,omitempty"`
	StudentID         *string           `db:"student_id" json:"student_id,omitempty"`
	CommunicationType CommunicationType `db:"communication_type" json:"communication_type"`
	Subject           string            `db:"subject" json:"subject"`
	Notes             string            `db:"notes" json:"notes"`
	CommunicationDate time.Time         `db:"communication_date" json:"communication_date"`
	FollowUpRequired  bool              `db:"follow_up_required" json:"follow_up_required"`
	FollowUpDate      *time.Time        `db:"follow_up_date" json:"follow_up_date,omitempty"`
	FollowUpCompleted bool              `db:"follow_up_completed" json:"follow_up_completed"`
	RecordedBy        string            `db:"recorded_by" json:"recorded_by"`
	RecordedByName    string            `db:"recorded_by_name" json:"recorded_by_name"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`
}

// CommunicationFilter encapsulates allowed search parameters for listing communications.
type CommunicationFilter struct {
	EnquiryID        string
	StudentID        string
	Type             CommunicationType
	FollowUpRequired *bool
	Page             int
	PageSize         int
	SortBy           string
	SortOrder        string
}
