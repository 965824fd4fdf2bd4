package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFitCheckMock(t *testing.T) (*FitCheckService, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewFitCheckService(db), mock
}

func testResult() *FitCheckResult {
	return &FitCheckResult{
		OverallVibe: OutfitVibe{
			Summary:  "Polished and ready for a formal setting.",
			Category: "business casual",
		},
		WhatWorks:     []string{"a", "b", "c"},
		WhatNeedsWork: []string{"d", "e"},
		Suggestions:   []string{"f", "g"},
		ItemFlags:     map[string]string{"top": "visible"},
		Score:         8,
	}
}

func TestFitCheckServiceCreate(t *testing.T) {
	s, mock := newFitCheckMock(t)

	occasion := "job interview"
	now := time.Now()

	mock.ExpectQuery("INSERT INTO fitchecks").
		WithArgs(1, StatusPending, "outfit.png", "image/png", 2048, &occasion).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "created_at"}).
			AddRow(int64(7), string(StatusPending), now))

	fc, err := s.Create(context.Background(), &FitCheck{
		UserID:    1,
		ImageName: "outfit.png",
		ImageType: "image/png",
		ImageSize: 2048,
		Occasion:  &occasion,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(7), fc.ID)
	assert.Equal(t, StatusPending, fc.Status)
	assert.True(t, fc.IsPending())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFitCheckServiceComplete(t *testing.T) {
	s, mock := newFitCheckMock(t)

	result := testResult()
	resultJSON, err := json.Marshal(result)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE fitchecks").
		WithArgs(StatusCompleted, resultJSON, "raw model text", 321, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Complete(context.Background(), 7, result, "raw model text", 321))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFitCheckServiceFail(t *testing.T) {
	t.Run("keeps raw output for fallback", func(t *testing.T) {
		s, mock := newFitCheckMock(t)

		raw := "unparseable model text"
		mock.ExpectExec("UPDATE fitchecks").
			WithArgs(StatusFailed, "could not produce structured feedback", &raw, int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := s.Fail(context.Background(), 7, "could not produce structured feedback", raw)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil raw output when empty", func(t *testing.T) {
		s, mock := newFitCheckMock(t)

		mock.ExpectExec("UPDATE fitchecks").
			WithArgs(StatusFailed, "analysis failed", (*string)(nil), int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.Fail(context.Background(), 7, "analysis failed", ""))
	})
}

func TestFitCheckServiceByID(t *testing.T) {
	columns := []string{
		"id", "user_id", "status", "image_name", "image_type", "image_size", "occasion",
		"vision_description", "result", "raw_output", "tokens_used", "error_message",
		"created_at", "started_at", "completed_at",
	}

	t.Run("completed fitcheck with result", func(t *testing.T) {
		s, mock := newFitCheckMock(t)

		resultJSON, err := json.Marshal(testResult())
		require.NoError(t, err)

		now := time.Now()
		started := now.Add(-10 * time.Second)
		mock.ExpectQuery("FROM fitchecks").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows(columns).AddRow(
				int64(7), 1, string(StatusCompleted), "outfit.png", "image/png", 2048, nil,
				"A navy blazer over a white shirt.", resultJSON, "raw text", 321, nil,
				now.Add(-time.Minute), started, now,
			))

		fc, err := s.ByID(context.Background(), 7)
		require.NoError(t, err)

		assert.True(t, fc.IsCompleted())
		require.NotNil(t, fc.Result)
		assert.Equal(t, 8, fc.Result.Score)
		assert.Equal(t, "business casual", fc.Result.OverallVibe.Category)
		assert.Equal(t, 10*time.Second, fc.Duration().Round(time.Second))
	})

	t.Run("not found", func(t *testing.T) {
		s, mock := newFitCheckMock(t)

		mock.ExpectQuery("FROM fitchecks").
			WillReturnError(sql.ErrNoRows)

		_, err := s.ByID(context.Background(), 99)
		assert.ErrorIs(t, err, ErrFitCheckNotFound)
	})
}

func TestFitCheckServiceByUserID(t *testing.T) {
	s, mock := newFitCheckMock(t)

	columns := []string{
		"id", "user_id", "status", "image_name", "image_type", "image_size", "occasion",
		"result", "tokens_used", "error_message", "created_at", "started_at", "completed_at",
	}

	now := time.Now()
	mock.ExpectQuery("FROM fitchecks").
		WithArgs(1, 20).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(2), 1, string(StatusCompleted), "b.png", "image/png", 100, nil, nil, 50, nil, now, nil, nil).
			AddRow(int64(1), 1, string(StatusFailed), "a.png", "image/png", 100, nil, nil, 0, "analysis failed", now.Add(-time.Hour), nil, nil))

	fitchecks, err := s.ByUserID(context.Background(), 1, 20)
	require.NoError(t, err)

	require.Len(t, fitchecks, 2)
	assert.Equal(t, int64(2), fitchecks[0].ID)
	assert.True(t, fitchecks[1].IsFailed())
}

func TestFitCheckServiceCountByStatus(t *testing.T) {
	s, mock := newFitCheckMock(t)

	mock.ExpectQuery("SELECT status, COUNT").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow(string(StatusCompleted), 4).
			AddRow(string(StatusFailed), 1))

	counts, err := s.CountByStatus(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 4, counts[StatusCompleted])
	assert.Equal(t, 1, counts[StatusFailed])
}

func TestFitCheckServiceDelete(t *testing.T) {
	t.Run("deletes existing fitcheck", func(t *testing.T) {
		s, mock := newFitCheckMock(t)

		mock.ExpectExec("DELETE FROM fitchecks").
			WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.Delete(context.Background(), 7))
	})

	t.Run("not found", func(t *testing.T) {
		s, mock := newFitCheckMock(t)

		mock.ExpectExec("DELETE FROM fitchecks").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, s.Delete(context.Background(), 99), ErrFitCheckNotFound)
	})
}

func TestFitCheckHasFallback(t *testing.T) {
	raw := "raw model text"
	empty := ""

	failed := &FitCheck{Status: StatusFailed, RawOutput: &raw}
	assert.True(t, failed.HasFallback())

	failedEmpty := &FitCheck{Status: StatusFailed, RawOutput: &empty}
	assert.False(t, failedEmpty.HasFallback())

	completed := &FitCheck{Status: StatusCompleted, RawOutput: &raw}
	assert.False(t, completed.HasFallback())
}
