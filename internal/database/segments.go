package database

import (
	"context"
	"fmt"
	"time"

	"github.com/snarg/audiosift/internal/segment"
)

// StoredSegment is a persisted segment with its provenance.
type StoredSegment struct {
	ID        int64           `json:"id"`
	JobID     string          `json:"job_id"`
	Source    string          `json:"source"`
	Segment   segment.Segment `json:"segment"`
	CreatedAt time.Time       `json:"created_at"`
}

// InsertSegments stores one analysis run's segments in a single
// transaction, tagged with the job that produced them.
func (db *DB) InsertSegments(ctx context.Context, jobID, source string, segs []segment.Segment) error {
	if len(segs) == 0 {
		return nil
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, s := range segs {
		_, err := tx.Exec(ctx, `
			INSERT INTO segments (job_id, source, start_ms, end_ms, text, topics, sentiment, confidence)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, jobID, source, s.StartMS, s.EndMS, s.Text, s.Topics, s.Sentiment, s.Confidence)
		if err != nil {
			return fmt.Errorf("insert segment: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	db.log.Debug().Str("job_id", jobID).Int("segments", len(segs)).Msg("segments stored")
	return nil
}

// ListSegments returns stored segments in insertion order.
func (db *DB) ListSegments(ctx context.Context, limit, offset int) ([]StoredSegment, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, job_id, source, start_ms, end_ms, text, topics, sentiment, confidence, created_at
		FROM segments
		ORDER BY id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var result []StoredSegment
	for rows.Next() {
		var st StoredSegment
		err := rows.Scan(
			&st.ID, &st.JobID, &st.Source,
			&st.Segment.StartMS, &st.Segment.EndMS, &st.Segment.Text,
			&st.Segment.Topics, &st.Segment.Sentiment, &st.Segment.Confidence,
			&st.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		result = append(result, st)
	}
	return result, rows.Err()
}

// CountSegments returns the total number of stored segments.
func (db *DB) CountSegments(ctx context.Context) (int64, error) {
	var n int64
	err := db.Pool.QueryRow(ctx, `SELECT count(*) FROM segments`).Scan(&n)
	return n, err
}

// DeleteSegmentsByJob removes all segments produced by one analysis run.
func (db *DB) DeleteSegmentsByJob(ctx context.Context, jobID string) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM segments WHERE job_id = $1`, jobID)
	if err != nil {
		return 0, fmt.Errorf("delete segments: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteAllSegments clears the store. Used by the working-set reset.
func (db *DB) DeleteAllSegments(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `DELETE FROM segments`)
	return err
}
