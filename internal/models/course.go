package models

import "time"

// Course represents an academic program with seat capacity and fee structure.
type Course struct {
	ID                string    `db:"id" json:"id"`
	CourseName        string    `db:"course_name" json:"course_name"`
	CourseCode        string    `db:"course_code" json:"course_code"`
	DurationYears     int       `db:"duration_years" json:"duration_years"`
	DurationSemesters int       `db:"duration_semesters" json:"duration_semesters"`
	Department        string    `db:"department" json:"department"`
	TotalFees         float64   `db:"total_fees" json:"total_fees"`
	AdmissionFee      float64   `db:"admission_fee" json:"admission_fee"`
	CautionDeposit    float64   `db:"caution_deposit" json:"caution_deposit"`
	YearlyFee         float64   `db:"yearly_fee" json:"yearly_fee"`
	ExamFeePerSem     float64   `db:"exam_fee_per_sem" json:"exam_fee_per_sem"`
	SeatsTotal        int       `db:"seats_total" json:"seats_total"`
	SeatsFilled       int       `db:"seats_filled" json:"seats_filled"`
	SeatsAvailable    int       `db:"seats_available" json:"seats_available"`
	Description       string    `db:"description" json:"description"`
	Eligibility       string    `db:"eligibility" json:"eligibility"`
	IsActive          bool      `db:"is_active" json:"is_active"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// CourseFilter encapsulates allowed search parameters for listing courses.
type CourseFilter struct {
	IsActive   *bool
	Department string
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// CourseSummary is the trimmed representation used by dropdowns.
type CourseSummary struct {
	ID             string  `db:"id" json:"id"`
	CourseName     string  `db:"course_name" json:"course_name"`
	CourseCode     string  `db:"course_code" json:"course_code"`
	TotalFees      float64 `db:"total_fees" json:"total_fees"`
	SeatsTotal     int     `db:"seats_total" json:"seats_total"`
	SeatsFilled    int     `db:"seats_filled" json:"seats_filled"`
	SeatsAvailable int     `db:"seats_available" json:"seats_available"`
}
