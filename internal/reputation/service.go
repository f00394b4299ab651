// Package reputation keeps a numeric trust score per user.
package reputation

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fairtix/internal/domain"
	pkgerrors "fairtix/pkg/errors"
	"fairtix/pkg/logger"
)

type Repository interface {
	// Append stores the entry and returns the user's new score.
	Append(ctx context.Context, e *domain.ReputationEntry) (decimal.Decimal, error)
	Score(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	Entries(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.ReputationEntry, error)
}

type Service struct {
	repo   Repository
	logger logger.Logger
}

func NewService(repo Repository, log logger.Logger) *Service {
	return &Service{repo: repo, logger: log}
}

// Adjust adds delta (positive or negative) to the user's score.
func (s *Service) Adjust(ctx context.Context, userID uuid.UUID, delta decimal.Decimal, reason string) (decimal.Decimal, error) {
	if userID == uuid.Nil {
		return decimal.Zero, pkgerrors.Validation("user is required")
	}
	if delta.IsZero() {
		return decimal.Zero, pkgerrors.Validation("reputation delta must be non-zero")
	}

	e := &domain.ReputationEntry{
		ID:        uuid.New(),
		UserID:    userID,
		Delta:     delta,
		Reason:    strings.TrimSpace(reason),
		CreatedAt: time.Now().UTC(),
	}
	score, err := s.repo.Append(ctx, e)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(err, "failed to adjust reputation")
	}

	s.logger.Info("Reputation adjusted", map[string]interface{}{
		"user_id": userID,
		"delta":   delta.String(),
		"score":   score.String(),
		"reason":  e.Reason,
	})
	return score, nil
}

type Summary struct {
	UserID  uuid.UUID                 `json:"user_id"`
	Score   decimal.Decimal           `json:"score"`
	History []*domain.ReputationEntry `json:"history"`
}

func (s *Service) Score(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	return s.repo.Score(ctx, userID)
}

// Summary returns the score with the most recent adjustments.
func (s *Service) Summary(ctx context.Context, userID uuid.UUID, historyLimit int) (*Summary, error) {
	score, err := s.repo.Score(ctx, userID)
	if err != nil {
		return nil, err
	}
	if historyLimit <= 0 || historyLimit > 100 {
		historyLimit = 20
	}
	history, err := s.repo.Entries(ctx, userID, historyLimit, 0)
	if err != nil {
		return nil, err
	}
	return &Summary{UserID: userID, Score: score, History: history}, nil
}
