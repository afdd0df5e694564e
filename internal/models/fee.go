package models

import "time"

// FeeStatus is the derived payment status of a ledger entry.
type FeeStatus string

const (
	FeeStatusPaid    FeeStatus = "Paid"
	FeeStatusPartial FeeStatus = "Partial"
	FeeStatusPending FeeStatus = "Pending"
	FeeStatusOverdue FeeStatus = "Overdue"
)

// FeeType categorises a payment ledger entry.
type FeeType string

const (
	FeeTypeAdmission      FeeType = "Admission Fee"
	FeeTypeYearly         FeeType = "Yearly Fee"
	FeeTypeSemester       FeeType = "Semester Fee"
	FeeTypeExam           FeeType = "Exam Fee"
	FeeTypeCautionDeposit FeeType = "Caution Deposit"
	FeeTypeOther          FeeType = "Other"
)

// Fee is one immutable payment ledger entry. A student's balance is derived
// over all entries, never held as a single mutable field.
type Fee struct {
	ID            string     `db:"id" json:"id"`
	StudentID     string     `db:"student_id" json:"student_id"`
	StudentName   string     `db:"student_name" json:"student_name"`
	StudentCode   string     `db:"student_code" json:"student_code"`
	CourseName    string     `db:"course_name" json:"course_name"`
	FeeType       FeeType    `db:"fee_type" json:"fee_type"`
	AcademicYear  string     `db:"academic_year" json:"academic_year"`
	Semester      *int       `db:"semester" json:"semester,omitempty"`
	TotalAmount   float64    `db:"total_amount" json:"total_amount"`
	PaidAmount    float64    `db:"paid_amount" json:"paid_amount"`
	PendingAmount float64    `db:"pending_amount" json:"pending_amount"`
	PaymentDate   time.Time  `db:"payment_date" json:"payment_date"`
	PaymentMode   string     `db:"payment_mode" json:"payment_mode"`
	TransactionID string     `db:"transaction_id" json:"transaction_id"`
	ReceiptNumber string     `db:"receipt_number" json:"receipt_number"`
	PaymentStatus FeeStatus  `db:"payment_status" json:"payment_status"`
	DueDate       *time.Time `db:"due_date" json:"due_date,omitempty"`
	PaidBy        string     `db:"paid_by" json:"paid_by"`
	Remarks       string     `db:"remarks" json:"remarks"`
	RecordedBy    string     `db:"recorded_by" json:"recorded_by"`
	RecordedByName string    `db:"recorded_by_name" json:"recorded_by_name"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// FeeFilter encapsulates allowed search parameters for listing fees.
type FeeFilter struct {
	StudentID     string
	PaymentStatus FeeStatus
	FeeType       FeeType
	AcademicYear  string
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}

// FeeTotals aggregates monetary sums over a fee selection.
type FeeTotals struct {
	TotalAmount  float64 `db:"total_amount" json:"total_amount"`
	TotalPaid    float64 `db:"total_paid" json:"total_paid"`
	TotalPending float64 `db:"total_pending" json:"total_pending"`
}
