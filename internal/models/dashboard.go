package models

import "time"

// DashboardStats aggregates the admissions funnel for the overview screen.
type DashboardStats struct {
	Overview  DashboardOverview     `json:"overview"`
	Enquiries EnquiryStatusCounts   `json:"enquiries"`
	Students  StudentStatusCounts   `json:"students"`
	Fees      FeeTotals             `json:"fees"`
	Generated time.Time             `json:"generated_at"`
}

// DashboardOverview carries headline counters.
type DashboardOverview struct {
	TotalEnquiries   int `json:"total_enquiries"`
	TotalStudents    int `json:"total_students"`
	RecentEnquiries  int `json:"recent_enquiries"`
	RecentAdmissions int `json:"recent_admissions"`
}

// EnquiryStatusCounts breaks enquiries down by funnel status.
type EnquiryStatusCounts struct {
	Total     int `json:"total"`
	New       int `json:"new"`
	Contacted int `json:"contacted"`
	Admitted  int `json:"admitted"`
	Rejected  int `json:"rejected"`
}

// StudentStatusCounts breaks students down by administrative status.
type StudentStatusCounts struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Inactive  int `json:"inactive"`
	Graduated int `json:"graduated"`
	Dropped   int `json:"dropped"`
}

// RecentActivity lists the latest enquiries and admissions.
type RecentActivity struct {
	RecentEnquiries []Enquiry `json:"recent_enquiries"`
	RecentStudents  []Student `json:"recent_students"`
}

// StatusCount is a generic (status, count) aggregation row.
type StatusCount struct {
	Status string `db:"status" json:"status"`
	Count  int    `db:"count" json:"count"`
}
