package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type FitCheckStatus string

const (
	StatusPending    FitCheckStatus = "pending"
	StatusProcessing FitCheckStatus = "processing"
	StatusCompleted  FitCheckStatus = "completed"
	StatusFailed     FitCheckStatus = "failed"
)

// OutfitVibe is the overall impression section of a fitcheck result.
type OutfitVibe struct {
	Summary  string `json:"summary"`
	Category string `json:"category"`
}

// FitCheckResult is the structured feedback record produced by the
// refinement pass. Item flag values are "visible" or "not_detected".
type FitCheckResult struct {
	OverallVibe   OutfitVibe        `json:"overall_vibe"`
	WhatWorks     []string          `json:"what_works"`
	WhatNeedsWork []string          `json:"what_needs_work"`
	Suggestions   []string          `json:"suggestions"`
	ItemFlags     map[string]string `json:"item_flags"`
	Score         int               `json:"score"`
}

// FitCheck is one analysis request and its outcome. Only metadata about the
// uploaded image is kept; the image bytes are discarded once the request
// finishes.
type FitCheck struct {
	ID     int64          `json:"id"`
	UserID int            `json:"user_id"`
	Status FitCheckStatus `json:"status"`

	// Upload metadata
	ImageName string  `json:"image_name"`
	ImageType string  `json:"image_type"`
	ImageSize int     `json:"image_size"`
	Occasion  *string `json:"occasion,omitempty"`

	// Pipeline output
	VisionDescription *string         `json:"vision_description,omitempty"`
	Result            *FitCheckResult `json:"result,omitempty"`
	RawOutput         *string         `json:"raw_output,omitempty"`

	// Usage tracking
	TokensUsed   int     `json:"tokens_used"`
	ErrorMessage *string `json:"error_message,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type FitCheckService struct {
	DB *sql.DB
}

func NewFitCheckService(db *sql.DB) *FitCheckService {
	return &FitCheckService{DB: db}
}

// Create inserts a pending fitcheck with the upload metadata.
func (s *FitCheckService) Create(ctx context.Context, fc *FitCheck) (*FitCheck, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err := s.DB.QueryRowContext(
		ctx,
		`INSERT INTO fitchecks (user_id, status, image_name, image_type, image_size, occasion)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, status, created_at`,
		fc.UserID, StatusPending, fc.ImageName, fc.ImageType, fc.ImageSize, fc.Occasion,
	).Scan(&fc.ID, &fc.Status, &fc.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create fitcheck: %w", err)
	}

	return fc, nil
}

func (s *FitCheckService) MarkProcessing(ctx context.Context, id int64) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.DB.ExecContext(
		ctx,
		`UPDATE fitchecks SET status = $1, started_at = NOW() WHERE id = $2`,
		StatusProcessing, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark fitcheck as processing: %w", err)
	}

	return nil
}

// SaveVisionDescription stores the vision-pass output so the intermediate
// stage survives even when the refinement pass fails.
func (s *FitCheckService) SaveVisionDescription(ctx context.Context, id int64, description string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.DB.ExecContext(
		ctx,
		`UPDATE fitchecks SET vision_description = $1 WHERE id = $2`,
		description, id,
	)
	if err != nil {
		return fmt.Errorf("failed to save vision description: %w", err)
	}

	return nil
}

// Complete stores the structured result and marks the fitcheck done.
func (s *FitCheckService) Complete(ctx context.Context, id int64, result *FitCheckResult, rawOutput string, tokensUsed int) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err = s.DB.ExecContext(
		ctx,
		`UPDATE fitchecks
		 SET status = $1, result = $2, raw_output = $3, tokens_used = $4, completed_at = NOW()
		 WHERE id = $5`,
		StatusCompleted, resultJSON, rawOutput, tokensUsed, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete fitcheck: %w", err)
	}

	return nil
}

// Fail marks the fitcheck as failed. rawOutput may carry the unparseable
// model text for fallback display; pass "" when there is none.
func (s *FitCheckService) Fail(ctx context.Context, id int64, errorMsg, rawOutput string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var raw *string
	if rawOutput != "" {
		raw = &rawOutput
	}

	_, err := s.DB.ExecContext(
		ctx,
		`UPDATE fitchecks
		 SET status = $1, error_message = $2, raw_output = COALESCE($3, raw_output), completed_at = NOW()
		 WHERE id = $4`,
		StatusFailed, errorMsg, raw, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark fitcheck as failed: %w", err)
	}

	return nil
}

func (s *FitCheckService) ByID(ctx context.Context, id int64) (*FitCheck, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	fc := &FitCheck{}
	var resultJSON []byte

	err := s.DB.QueryRowContext(
		ctx,
		`SELECT id, user_id, status, image_name, image_type, image_size, occasion,
		        vision_description, result, raw_output, tokens_used, error_message,
		        created_at, started_at, completed_at
		 FROM fitchecks
		 WHERE id = $1`,
		id,
	).Scan(
		&fc.ID, &fc.UserID, &fc.Status, &fc.ImageName, &fc.ImageType, &fc.ImageSize, &fc.Occasion,
		&fc.VisionDescription, &resultJSON, &fc.RawOutput, &fc.TokensUsed, &fc.ErrorMessage,
		&fc.CreatedAt, &fc.StartedAt, &fc.CompletedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFitCheckNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fitcheck: %w", err)
	}

	if len(resultJSON) > 0 {
		var result FitCheckResult
		if err := json.Unmarshal(resultJSON, &result); err == nil {
			fc.Result = &result
		}
	}

	return fc, nil
}

func (s *FitCheckService) ByUserID(ctx context.Context, userID int, limit int) ([]*FitCheck, error) {
	if limit <= 0 {
		limit = 50
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.DB.QueryContext(
		ctx,
		`SELECT id, user_id, status, image_name, image_type, image_size, occasion,
		        result, tokens_used, error_message, created_at, started_at, completed_at
		 FROM fitchecks
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list fitchecks: %w", err)
	}
	defer rows.Close()

	var fitchecks []*FitCheck
	for rows.Next() {
		fc := &FitCheck{}
		var resultJSON []byte
		err := rows.Scan(
			&fc.ID, &fc.UserID, &fc.Status, &fc.ImageName, &fc.ImageType, &fc.ImageSize, &fc.Occasion,
			&resultJSON, &fc.TokensUsed, &fc.ErrorMessage, &fc.CreatedAt, &fc.StartedAt, &fc.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fitcheck: %w", err)
		}

		if len(resultJSON) > 0 {
			var result FitCheckResult
			if err := json.Unmarshal(resultJSON, &result); err == nil {
				fc.Result = &result
			}
		}

		fitchecks = append(fitchecks, fc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fitchecks: %w", err)
	}

	return fitchecks, nil
}

// CountByStatus returns counts of fitchecks grouped by status for a user.
func (s *FitCheckService) CountByStatus(ctx context.Context, userID int) (map[FitCheckStatus]int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.DB.QueryContext(
		ctx,
		`SELECT status, COUNT(*)
		 FROM fitchecks
		 WHERE user_id = $1
		 GROUP BY status`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count fitchecks by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[FitCheckStatus]int)
	for rows.Next() {
		var status FitCheckStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}

	return counts, nil
}

func (s *FitCheckService) Delete(ctx context.Context, id int64) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	result, err := s.DB.ExecContext(ctx, `DELETE FROM fitchecks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete fitcheck: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrFitCheckNotFound
	}

	return nil
}

// HELPER FUNCS --------------------------------

// Duration returns how long the fitcheck took.
// Returns 0 if not completed.
func (fc *FitCheck) Duration() time.Duration {
	if fc.StartedAt == nil || fc.CompletedAt == nil {
		return 0
	}
	return fc.CompletedAt.Sub(*fc.StartedAt)
}

func (fc *FitCheck) IsPending() bool {
	return fc.Status == StatusPending
}

func (fc *FitCheck) IsProcessing() bool {
	return fc.Status == StatusProcessing
}

func (fc *FitCheck) IsCompleted() bool {
	return fc.Status == StatusCompleted
}

func (fc *FitCheck) IsFailed() bool {
	return fc.Status == StatusFailed
}

// HasFallback reports whether a failed fitcheck still has raw model text
// worth showing.
func (fc *FitCheck) HasFallback() bool {
	return fc.IsFailed() && fc.RawOutput != nil && *fc.RawOutput != ""
}
