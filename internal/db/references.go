package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/posture.report/internal/pose"
)

var (
	// ErrReferenceNotFound is returned when no reference has the requested id.
	ErrReferenceNotFound = errors.New("reference not found")
	// ErrInvalidReference is returned for a reference without a name or frames.
	ErrInvalidReference = errors.New("invalid reference")
)

// ReferenceSummary describes a stored reference without its frames.
type ReferenceSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Condition    string    `json:"condition,omitempty"`
	SamplingRate int       `json:"ref_fps"`
	FrameCount   int       `json:"frames"`
	CreatedAt    time.Time `json:"created_at"`
}

// Reference is a stored reference sequence.
type Reference struct {
	ReferenceSummary
	Sequence pose.Sequence `json:"-"`
}

// SaveReference stores seq under name and returns the stored record. A new
// uuid is assigned.
func (db *DB) SaveReference(ctx context.Context, name, condition string, seq pose.Sequence) (*Reference, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidReference)
	}
	if seq.IsZero() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReference, pose.ErrEmptySequence)
	}
	frames, err := json.Marshal(seq.Frames())
	if err != nil {
		return nil, fmt.Errorf("encode frames: %w", err)
	}

	ref := &Reference{
		ReferenceSummary: ReferenceSummary{
			ID:           uuid.NewString(),
			Name:         name,
			Condition:    strings.TrimSpace(condition),
			SamplingRate: seq.Rate(),
			FrameCount:   seq.Len(),
			CreatedAt:    time.Now().UTC().Truncate(time.Second),
		},
		Sequence: seq,
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO reference_sequences
			(reference_id, name, condition, sampling_rate, frame_count, frames_json, created_unix)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ref.ID, ref.Name, ref.Condition, ref.SamplingRate, ref.FrameCount, string(frames), ref.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert reference: %w", err)
	}
	return ref, nil
}

// GetReference loads the reference with id including its frames.
func (db *DB) GetReference(ctx context.Context, id string) (*Reference, error) {
	var (
		ref     Reference
		frames  string
		created int64
	)
	err := db.QueryRowContext(ctx, `
		SELECT reference_id, name, condition, sampling_rate, frame_count, frames_json, created_unix
		FROM reference_sequences WHERE reference_id = ?`, id,
	).Scan(&ref.ID, &ref.Name, &ref.Condition, &ref.SamplingRate, &ref.FrameCount, &frames, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReferenceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query reference %s: %w", id, err)
	}

	var list []pose.Frame
	if err := json.Unmarshal([]byte(frames), &list); err != nil {
		return nil, fmt.Errorf("decode frames for %s: %w", id, err)
	}
	seq, err := pose.NewSequence(list, ref.SamplingRate)
	if err != nil {
		return nil, fmt.Errorf("reference %s: %w", id, err)
	}
	ref.Sequence = seq
	ref.CreatedAt = time.Unix(created, 0).UTC()
	return &ref, nil
}

// ListReferences returns all stored references, newest first.
func (db *DB) ListReferences(ctx context.Context) ([]ReferenceSummary, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT reference_id, name, condition, sampling_rate, frame_count, created_unix
		FROM reference_sequences
		ORDER BY created_unix DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	defer rows.Close()

	refs := []ReferenceSummary{}
	for rows.Next() {
		var (
			s       ReferenceSummary
			created int64
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Condition, &s.SamplingRate, &s.FrameCount, &created); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		s.CreatedAt = time.Unix(created, 0).UTC()
		refs = append(refs, s)
	}
	return refs, rows.Err()
}

// DeleteReference removes the reference with id.
func (db *DB) DeleteReference(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM reference_sequences WHERE reference_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reference %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete reference %s: %w", id, err)
	}
	if n == 0 {
		return ErrReferenceNotFound
	}
	return nil
}
