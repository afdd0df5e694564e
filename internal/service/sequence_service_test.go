package service

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockSequenceStore struct {
	values map[string]int64
	calls  []string
}

func (m *mockSequenceStore) next(kind, yearPrefix string) (int64, error) {
	key := kind + ":" + yearPrefix
	m.calls = append(m.calls, key)
	if m.values == nil {
		m.values = make(map[string]int64)
	}
	m.values[key]++
	return m.values[key], nil
}

func (m *mockSequenceStore) Next(ctx context.Context, kind, yearPrefix string) (int64, error) {
	return m.next(kind, yearPrefix)
}

func (m *mockSequenceStore) NextIn(ctx context.Context, tx *sqlx.Tx, kind, yearPrefix string) (int64, error) {
	return m.next(kind, yearPrefix)
}

func TestSequenceServiceNextStudentID(t *testing.T) {
	store := &mockSequenceStore{}
	svc := NewSequenceService(store, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }

	id, err := svc.NextStudentID(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "STU250001", id)

	id, err = svc.NextStudentID(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "STU250002", id)
}

func TestSequenceServiceNextReceiptNumber(t *testing.T) {
	store := &mockSequenceStore{values: map[string]int64{"receipt:25": 41}}
	svc := NewSequenceService(store, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC) }

	number, err := svc.NextReceiptNumber(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "RCP2500042", number)
}

func TestSequenceServiceYearRollover(t *testing.T) {
	store := &mockSequenceStore{}
	svc := NewSequenceService(store, zap.NewNop())

	svc.now = func() time.Time { return time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC) }
	id, err := svc.NextStudentID(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "STU250001", id)

	svc.now = func() time.Time { return time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC) }
	id, err = svc.NextStudentID(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "STU260001", id)
}
