package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/campushq/admissions-api/internal/models"
)

func TestDeriveFeeStatus(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)

	cases := []struct {
		name    string
		total   float64
		paid    float64
		dueDate *time.Time
		want    models.FeeStatus
	}{
		{"fully paid", 1000, 1000, nil, models.FeeStatusPaid},
		{"overpaid still paid", 1000, 1200, nil, models.FeeStatusPaid},
		{"paid wins over past due date", 1000, 1000, &past, models.FeeStatusPaid},
		{"partial payment", 1000, 400, nil, models.FeeStatusPartial},
		{"partial wins over past due date", 1000, 400, &past, models.FeeStatusPartial},
		{"unpaid past due", 1000, 0, &past, models.FeeStatusOverdue},
		{"unpaid before due", 1000, 0, &future, models.FeeStatusPending},
		{"unpaid without due date", 1000, 0, nil, models.FeeStatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveFeeStatus(tc.total, tc.paid, tc.dueDate, now))
		})
	}
}

func TestDerivePendingAmount(t *testing.T) {
	assert.Equal(t, 600.0, DerivePendingAmount(1000, 400))
	assert.Equal(t, 0.0, DerivePendingAmount(1000, 1000))
	assert.Equal(t, 0.0, DerivePendingAmount(1000, 1200))
}

func TestApplyFeeDerivation(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	fee := &models.Fee{TotalAmount: 5000, PaidAmount: 2000}
	ApplyFeeDerivation(fee, now)
	assert.Equal(t, models.FeeStatusPartial, fee.PaymentStatus)
	assert.Equal(t, 3000.0, fee.PendingAmount)
}
