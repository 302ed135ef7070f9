package repository

import (
	"context"
	"database/sql"
	"fmt"
)

type SequenceRepository struct {
	db *sql.DB
}

func NewSequenceRepository(db *sql.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// Next increments the named counter and returns the new value. The first call
// for a name returns 1. The increment happens in a single statement, so
// concurrent callers always receive distinct values.
func (r *SequenceRepository) Next(ctx context.Context, name string) (int64, error) {
	var value int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO sequences (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE
			SET value = sequences.value + 1, updated_at = now()
		RETURNING value`,
		name,
	).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("Next: %w", err)
	}
	return value, nil
}
