package models

import "time"

// ReceiptFormat selects the rendered output format.
type ReceiptFormat string

const (
	ReceiptFormatPDF ReceiptFormat = "pdf"
	ReceiptFormatCSV ReceiptFormat = "csv"
)

// ReceiptStatus tracks the lifecycle of an asynchronous receipt render.
type ReceiptStatus string

const (
	ReceiptStatusQueued     ReceiptStatus = "QUEUED"
	ReceiptStatusProcessing ReceiptStatus = "PROCESSING"
	ReceiptStatusDone       ReceiptStatus = "DONE"
	ReceiptStatusFailed     ReceiptStatus = "FAILED"
)

// ReceiptJob represents one queued receipt rendering task.
type ReceiptJob struct {
	ID           string        `db:"id" json:"id"`
	FeeID        string        `db:"fee_id" json:"fee_id"`
	Format       ReceiptFormat `db:"format" json:"format"`
	Status       ReceiptStatus `db:"status" json:"status"`
	Progress     int           `db:"progress" json:"progress"`
	FilePath     *string       `db:"file_path" json:"file_path,omitempty"`
	ErrorMessage *string       `db:"error_message" json:"error_message,omitempty"`
	CreatedBy    string        `db:"created_by" json:"created_by"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
	FinishedAt   *time.Time    `db:"finished_at" json:"finished_at,omitempty"`
}
