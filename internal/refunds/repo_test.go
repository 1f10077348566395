package refunds

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coralreef/resortpay/pkg/db/dbtest"
	"github.com/coralreef/resortpay/pkg/db/models"
	"github.com/coralreef/resortpay/pkg/enums"
	"github.com/coralreef/resortpay/pkg/pagination"
)

func newRefund(paymentID uuid.UUID, status enums.RefundStatus) *models.Refund {
	return &models.Refund{
		ID:               uuid.New(),
		PaymentID:        paymentID,
		RequesterEmail:   "ada@example.com",
		Amount:           decimal.RequireFromString("40.00"),
		Reason:           enums.RefundReasonServiceIssue,
		Status:           status,
		PolicyWindowDays: 30,
	}
}

func TestRepositoryRejectsSecondOpenRefund(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))
	paymentID := uuid.New()

	require.NoError(t, repo.Create(ctx, newRefund(paymentID, enums.RefundStatusRequested)))
	err := repo.Create(ctx, newRefund(paymentID, enums.RefundStatusRequested))
	require.ErrorIs(t, err, ErrOpenRefundExists)

	// closed refunds do not occupy the slot
	require.NoError(t, repo.Create(ctx, newRefund(paymentID, enums.RefundStatusFailed)))
	require.NoError(t, repo.Create(ctx, newRefund(paymentID, enums.RefundStatusDenied)))
}

func TestRepositoryApplyIsConditional(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))
	refund := newRefund(uuid.New(), enums.RefundStatusRequested)
	require.NoError(t, repo.Create(ctx, refund))

	decidedAt := time.Now().UTC()
	ok, err := repo.Apply(ctx, refund.ID, Transition{
		From:   enums.RefundStatusRequested,
		To:     enums.RefundStatusDenied,
		Fields: map[string]any{"decided_by": "ops@example.com", "decided_at": decidedAt},
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Apply(ctx, refund.ID, Transition{From: enums.RefundStatusRequested, To: enums.RefundStatusProcessing})
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := repo.FindByID(ctx, refund.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RefundStatusDenied, stored.Status)
	require.NotNil(t, stored.DecidedBy)
	assert.Equal(t, "ops@example.com", *stored.DecidedBy)
}

func TestRepositoryFindOpenAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))
	paymentID := uuid.New()

	failed := newRefund(paymentID, enums.RefundStatusFailed)
	require.NoError(t, repo.Create(ctx, failed))
	open := newRefund(paymentID, enums.RefundStatusApproved)
	ref := "re_123"
	open.ProcessorRef = &ref
	require.NoError(t, repo.Create(ctx, open))

	found, err := repo.FindOpenByPayment(ctx, paymentID)
	require.NoError(t, err)
	assert.Equal(t, open.ID, found.ID)

	byRef, err := repo.FindByProcessorRef(ctx, "re_123")
	require.NoError(t, err)
	assert.Equal(t, open.ID, byRef.ID)

	all, err := repo.ListByPayment(ctx, paymentID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	approved, err := repo.List(ctx, enums.RefundStatusApproved, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, open.ID, approved[0].ID)
}
