package reputation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fairtix/internal/domain"
	pkgerrors "fairtix/pkg/errors"
	"fairtix/pkg/logger"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Append(ctx context.Context, e *domain.ReputationEntry) (decimal.Decimal, error) {
	args := m.Called(ctx, e)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockRepository) Score(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockRepository) Entries(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.ReputationEntry, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ReputationEntry), args.Error(1)
}

func TestAdjust(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, logger.NewNop())
	user := uuid.New()
	repo.On("Append", mock.Anything, mock.MatchedBy(func(e *domain.ReputationEntry) bool {
		return e.UserID == user && e.Delta.Equal(decimal.NewFromInt(1)) && e.Reason == "escrow released"
	})).Return(decimal.RequireFromString("4"), nil)

	score, err := svc.Adjust(context.Background(), user, decimal.NewFromInt(1), "escrow released")
	require.NoError(t, err)
	assert.Equal(t, "4", score.String())
}

func TestAdjust_RejectsZeroDeltaAndNilUser(t *testing.T) {
	svc := NewService(new(MockRepository), logger.NewNop())

	_, err := svc.Adjust(context.Background(), uuid.New(), decimal.Zero, "noop")
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = svc.Adjust(context.Background(), uuid.Nil, decimal.NewFromInt(1), "x")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestSummary(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, logger.NewNop())
	user := uuid.New()
	repo.On("Score", mock.Anything, user).Return(decimal.RequireFromString("2.5"), nil)
	repo.On("Entries", mock.Anything, user, 20, 0).Return([]*domain.ReputationEntry{{UserID: user}}, nil)

	sum, err := svc.Summary(context.Background(), user, 0)
	require.NoError(t, err)
	assert.Equal(t, "2.5", sum.Score.String())
	assert.Len(t, sum.History, 1)
}
