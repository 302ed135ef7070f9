package service

import (
	"context"
	"fmt"

	"github.com/josh-kwaku/banking-core/internal/domain"
	"github.com/josh-kwaku/banking-core/internal/logging"
)

const accountNumberSequence = "account_number"

type sequenceRepo interface {
	Next(ctx context.Context, name string) (int64, error)
}

type SequenceService struct {
	sequences sequenceRepo
}

func NewSequenceService(sequences sequenceRepo) *SequenceService {
	return &SequenceService{sequences: sequences}
}

// Next hands out the next account-number sequence value. Storage failures
// are reported as unavailable so callers retry rather than give up.
func (s *SequenceService) Next(ctx context.Context) (int64, error) {
	v, err := s.sequences.Next(ctx, accountNumberSequence)
	if err != nil {
		logging.FromContext(ctx).Error("sequence allocation failed", "error", err)
		return 0, fmt.Errorf("Next: %w: %w", domain.ErrSequenceUnavailable, err)
	}
	return v, nil
}
