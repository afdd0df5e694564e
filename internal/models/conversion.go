package models

import "time"

// Conversion is the persisted workflow marker for an enquiry→student conversion.
// One row per enquiry; the step flags make a partially completed conversion a
// first-class, resumable condition instead of a silent inconsistency.
type Conversion struct {
	ID                   string    `db:"id" json:"id"`
	EnquiryID            string    `db:"enquiry_id" json:"enquiry_id"`
	StudentID            string    `db:"student_id" json:"student_id"`
	SeatsUpdated         bool      `db:"seats_updated" json:"seats_updated"`
	EnquiryUpdated       bool      `db:"enquiry_updated" json:"enquiry_updated"`
	CommunicationLogged  bool      `db:"communication_logged" json:"communication_logged"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// Complete reports whether every automation step has taken effect.
func (c *Conversion) Complete() bool {
	return c.SeatsUpdated && c.EnquiryUpdated && c.CommunicationLogged
}

// ConversionAutomation reports which automation steps took effect during a
// conversion, so callers can surface partial-success detail to an operator.
type ConversionAutomation struct {
	SeatsUpdated        bool `json:"course_seats_updated"`
	EnquiryUpdated      bool `json:"enquiry_status_updated"`
	CommunicationLogged bool `json:"communication_log_created"`
}

// ConversionResult is the outcome of a successful conversion.
type ConversionResult struct {
	Student    *Student             `json:"student"`
	Automation ConversionAutomation `json:"automation"`
	Resumed    bool                 `json:"resumed,omitempty"`
}
