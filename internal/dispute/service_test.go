package dispute

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fairtix/internal/audit"
	"fairtix/internal/domain"
	pkgerrors "fairtix/pkg/errors"
	"fairtix/pkg/logger"
)

// --- Mocks ---

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, d *domain.Dispute) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockRepository) Update(ctx context.Context, d *domain.Dispute) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Dispute), args.Error(1)
}

func (m *MockRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Dispute), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, filter domain.DisputeFilter, limit, offset int) ([]*domain.Dispute, error) {
	args := m.Called(ctx, filter, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Dispute), args.Error(1)
}

func (m *MockRepository) CountAgainst(ctx context.Context, userID uuid.UUID) (int, int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Int(1), args.Error(2)
}

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) Parties(ctx context.Context, orderID uuid.UUID) (uuid.UUID, uuid.UUID, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(uuid.UUID), args.Get(1).(uuid.UUID), args.Error(2)
}

func (m *MockOrderService) MarkDispute(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderService) RefundOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderService) ResolveForSeller(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) Record(ctx context.Context, req audit.RecordRequest) (*domain.AuditLogEntry, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuditLogEntry), args.Error(1)
}

type MockReputationService struct {
	mock.Mock
}

func (m *MockReputationService) Adjust(ctx context.Context, userID uuid.UUID, delta decimal.Decimal, reason string) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, delta, reason)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixture struct {
	svc        *Service
	repo       *MockRepository
	orders     *MockOrderService
	users      *MockUserRepository
	audit      *MockAuditService
	reputation *MockReputationService
}

func newFixture() *fixture {
	f := &fixture{
		repo:       new(MockRepository),
		orders:     new(MockOrderService),
		users:      new(MockUserRepository),
		audit:      new(MockAuditService),
		reputation: new(MockReputationService),
	}
	f.svc = NewService(f.repo, f.orders, f.users, f.audit, f.reputation, passthroughTx{}, Config{
		AdverseMarkers: []string{"procedente", "upheld"},
		Penalty:        decimal.RequireFromString("-5.0"),
	}, logger.NewNop())
	return f
}

func (f *fixture) openDispute(orderID *uuid.UUID) *domain.Dispute {
	d := &domain.Dispute{
		ID:             uuid.New(),
		OrderID:        orderID,
		ReporterID:     uuid.New(),
		ReportedUserID: uuid.New(),
		Status:         domain.DisputeStatusOpen,
	}
	f.repo.On("FindByIDForUpdate", mock.Anything, d.ID).Return(d, nil)
	f.repo.On("Update", mock.Anything, d).Return(nil)
	return d
}

// --- Create ---

func TestCreate_RejectsSelfDisputeBeforePersistence(t *testing.T) {
	f := newFixture()
	user := uuid.New()

	_, err := f.svc.Create(context.Background(), &CreateRequest{ReporterID: user, ReportedUserID: user, Reason: "fake ticket"})

	assert.True(t, pkgerrors.IsValidation(err))
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.users.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestCreate_RequiresReasonAndKnownUser(t *testing.T) {
	f := newFixture()
	reported := uuid.New()
	f.users.On("FindByID", mock.Anything, reported).Return(nil, pkgerrors.ErrUserNotFound)

	_, err := f.svc.Create(context.Background(), &CreateRequest{ReporterID: uuid.New(), ReportedUserID: reported, Reason: "  "})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.svc.Create(context.Background(), &CreateRequest{ReporterID: uuid.New(), ReportedUserID: reported, Reason: "no show"})
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestCreate_MarksOrderAndAudits(t *testing.T) {
	f := newFixture()
	reporter, reported := uuid.New(), uuid.New()
	orderID := uuid.New()
	f.orders.On("Parties", mock.Anything, orderID).Return(reporter, reported, nil)
	f.users.On("FindByID", mock.Anything, reported).Return(&domain.User{ID: reported}, nil)
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Dispute")).Return(nil)
	f.audit.On("Record", mock.Anything, mock.MatchedBy(func(r audit.RecordRequest) bool {
		return r.Action == audit.ActionDisputeCreated && r.Metadata["order_id"] == orderID.String()
	})).Return(&domain.AuditLogEntry{}, nil)
	f.orders.On("MarkDispute", mock.Anything, orderID).Return(&domain.Order{ID: orderID}, nil)

	d, err := f.svc.Create(context.Background(), &CreateRequest{
		ReporterID:     reporter,
		ReportedUserID: reported,
		Reason:         "ticket was already used",
		OrderID:        &orderID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStatusOpen, d.Status)
	f.orders.AssertExpectations(t)
	f.audit.AssertExpectations(t)
}

func TestCreate_SwallowsNotApplicableMarkDispute(t *testing.T) {
	for name, markErr := range map[string]error{
		"already released": pkgerrors.State("order cannot be disputed"),
		"order missing":    pkgerrors.ErrOrderNotFound,
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			reporter, reported := uuid.New(), uuid.New()
			orderID := uuid.New()
			f.orders.On("Parties", mock.Anything, orderID).Return(reported, reporter, nil)
			f.users.On("FindByID", mock.Anything, reported).Return(&domain.User{ID: reported}, nil)
			f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
			f.audit.On("Record", mock.Anything, mock.Anything).Return(&domain.AuditLogEntry{}, nil)
			f.orders.On("MarkDispute", mock.Anything, orderID).Return(nil, markErr)

			d, err := f.svc.Create(context.Background(), &CreateRequest{
				ReporterID: reporter, ReportedUserID: reported, Reason: "late", OrderID: &orderID,
			})
			require.NoError(t, err)
			assert.NotNil(t, d)
		})
	}
}

func TestCreate_PropagatesUnexpectedMarkDisputeError(t *testing.T) {
	f := newFixture()
	reporter, reported := uuid.New(), uuid.New()
	orderID := uuid.New()
	f.orders.On("Parties", mock.Anything, orderID).Return(reporter, reported, nil)
	f.users.On("FindByID", mock.Anything, reported).Return(&domain.User{ID: reported}, nil)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.audit.On("Record", mock.Anything, mock.Anything).Return(&domain.AuditLogEntry{}, nil)
	f.orders.On("MarkDispute", mock.Anything, orderID).Return(nil, errors.New("connection reset"))

	_, err := f.svc.Create(context.Background(), &CreateRequest{
		ReporterID: reporter, ReportedUserID: reported, Reason: "late", OrderID: &orderID,
	})
	assert.ErrorContains(t, err, "connection reset")
}

func TestCreate_OrderDisputeRequiresBothParties(t *testing.T) {
	buyer, seller, stranger := uuid.New(), uuid.New(), uuid.New()

	t.Run("stranger cannot freeze escrow", func(t *testing.T) {
		f := newFixture()
		orderID := uuid.New()
		f.orders.On("Parties", mock.Anything, orderID).Return(buyer, seller, nil)

		_, err := f.svc.Create(context.Background(), &CreateRequest{
			ReporterID: stranger, ReportedUserID: seller, Reason: "fake", OrderID: &orderID,
		})
		assert.True(t, pkgerrors.IsPermission(err))
		f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		f.orders.AssertNotCalled(t, "MarkDispute", mock.Anything, mock.Anything)
	})

	t.Run("reported user must be the counterparty", func(t *testing.T) {
		f := newFixture()
		orderID := uuid.New()
		f.orders.On("Parties", mock.Anything, orderID).Return(buyer, seller, nil)

		_, err := f.svc.Create(context.Background(), &CreateRequest{
			ReporterID: buyer, ReportedUserID: stranger, Reason: "fake", OrderID: &orderID,
		})
		assert.True(t, pkgerrors.IsValidation(err))
		f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		f.orders.AssertNotCalled(t, "MarkDispute", mock.Anything, mock.Anything)
	})

	t.Run("seller may dispute the buyer", func(t *testing.T) {
		f := newFixture()
		orderID := uuid.New()
		f.orders.On("Parties", mock.Anything, orderID).Return(buyer, seller, nil)
		f.users.On("FindByID", mock.Anything, buyer).Return(&domain.User{ID: buyer}, nil)
		f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
		f.audit.On("Record", mock.Anything, mock.Anything).Return(&domain.AuditLogEntry{}, nil)
		f.orders.On("MarkDispute", mock.Anything, orderID).Return(&domain.Order{ID: orderID}, nil)

		_, err := f.svc.Create(context.Background(), &CreateRequest{
			ReporterID: seller, ReportedUserID: buyer, Reason: "chargeback", OrderID: &orderID,
		})
		require.NoError(t, err)
		f.orders.AssertCalled(t, "MarkDispute", mock.Anything, orderID)
	})

	t.Run("unknown order", func(t *testing.T) {
		f := newFixture()
		orderID := uuid.New()
		f.orders.On("Parties", mock.Anything, orderID).Return(uuid.Nil, uuid.Nil, pkgerrors.ErrOrderNotFound)

		_, err := f.svc.Create(context.Background(), &CreateRequest{
			ReporterID: buyer, ReportedUserID: seller, Reason: "late", OrderID: &orderID,
		})
		assert.True(t, pkgerrors.IsNotFound(err))
		f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

// --- Resolve ---

func TestResolve_NotFoundAndAlreadyResolved(t *testing.T) {
	f := newFixture()
	missing := uuid.New()
	f.repo.On("FindByIDForUpdate", mock.Anything, missing).Return(nil, pkgerrors.ErrDisputeNotFound)

	_, err := f.svc.Resolve(context.Background(), &ResolveRequest{DisputeID: missing})
	assert.True(t, pkgerrors.IsNotFound(err))

	d := f.openDispute(nil)
	d.Status = domain.DisputeStatusResolved
	_, err = f.svc.Resolve(context.Background(), &ResolveRequest{DisputeID: d.ID})
	assert.True(t, pkgerrors.IsState(err))
}

func TestResolve_RefundBuyer(t *testing.T) {
	f := newFixture()
	orderID := uuid.New()
	d := f.openDispute(&orderID)
	f.orders.On("RefundOrder", mock.Anything, orderID).Return(&domain.Order{ID: orderID}, nil)
	f.reputation.On("Adjust", mock.Anything, d.ReportedUserID, decimal.RequireFromString("-5.0"), mock.Anything).
		Return(decimal.RequireFromString("-5"), nil)
	f.audit.On("Record", mock.Anything, mock.MatchedBy(func(r audit.RecordRequest) bool {
		return r.Action == audit.ActionDisputeResolved && r.Metadata["refund_buyer"] == true
	})).Return(&domain.AuditLogEntry{}, nil)

	got, err := f.svc.Resolve(context.Background(), &ResolveRequest{
		DisputeID:   d.ID,
		AdminNotes:  "Reclamação procedente, ingresso inválido",
		RefundBuyer: true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStatusResolved, got.Status)
	assert.True(t, got.Upheld)
	assert.NotNil(t, got.ResolvedAt)
	f.orders.AssertNotCalled(t, "ResolveForSeller", mock.Anything, mock.Anything)
	f.reputation.AssertExpectations(t)
}

func TestResolve_ForSellerSwallowsStateOnly(t *testing.T) {
	f := newFixture()
	orderID := uuid.New()
	d := f.openDispute(&orderID)
	f.orders.On("ResolveForSeller", mock.Anything, orderID).Return(nil, pkgerrors.State("already released"))
	f.audit.On("Record", mock.Anything, mock.Anything).Return(&domain.AuditLogEntry{}, nil)

	got, err := f.svc.Resolve(context.Background(), &ResolveRequest{DisputeID: d.ID, AdminNotes: "buyer claim rejected"})
	require.NoError(t, err)
	assert.False(t, got.Upheld)
	f.reputation.AssertNotCalled(t, "Adjust", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	f2 := newFixture()
	d2 := f2.openDispute(&orderID)
	f2.orders.On("ResolveForSeller", mock.Anything, orderID).Return(nil, pkgerrors.ErrOrderNotFound)

	_, err = f2.svc.Resolve(context.Background(), &ResolveRequest{DisputeID: d2.ID})
	assert.True(t, pkgerrors.IsNotFound(err))
}

// --- Impact ---

func TestReputationImpact(t *testing.T) {
	f := newFixture()
	user := uuid.New()
	f.repo.On("CountAgainst", mock.Anything, user).Return(4, 2, nil)

	impact, err := f.svc.ReputationImpact(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, 4, impact.TotalDisputes)
	assert.Equal(t, 2, impact.ResolvedAgainst)
	assert.Equal(t, "-10", impact.Penalty.String())
}

func TestIsAdverse(t *testing.T) {
	markers := []string{"procedente", "upheld", "seller at fault"}

	assert.True(t, IsAdverse("PROCEDENTE.", markers))
	assert.True(t, IsAdverse("Complaint upheld after review", markers))
	assert.True(t, IsAdverse("the seller, at fault here", markers))
	assert.False(t, IsAdverse("improcedente", markers))
	assert.False(t, IsAdverse("", markers))
	assert.False(t, IsAdverse("upheld", nil))
}
