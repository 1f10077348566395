package checkoutcontext

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/coralreef/resortpay/pkg/db/dbtest"
	"github.com/coralreef/resortpay/pkg/db/models"
	"github.com/coralreef/resortpay/pkg/enums"
	"github.com/coralreef/resortpay/pkg/pagination"
)

func seedContext(t *testing.T, repo Repository, checkoutType enums.CheckoutType) *models.CheckoutContext {
	t.Helper()
	record := &models.CheckoutContext{
		Token:        uuid.NewString(),
		Type:         checkoutType,
		PaymentID:    uuid.New(),
		Name:         "Ada Guest",
		Email:        "ada@example.com",
		Amount:       decimal.RequireFromString("250.00"),
		Package:      "Garden suite",
		Status:       enums.CheckoutContextStatusInit,
		ForwardState: enums.ForwardStateNone,
	}
	if checkoutType == enums.CheckoutTypeBooking {
		record.BookingData = datatypes.JSON(`{"room":"garden","nights":2}`)
	}
	require.NoError(t, repo.Create(context.Background(), record))
	return record
}

func TestRepositoryFindByTokenAndPayment(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	record := seedContext(t, repo, enums.CheckoutTypeBooking)

	found, err := repo.FindByToken(ctx, record.Token)
	require.NoError(t, err)
	assert.Equal(t, record.PaymentID, found.PaymentID)
	assert.JSONEq(t, `{"room":"garden","nights":2}`, string(found.BookingData))

	byPayment, err := repo.FindByPaymentID(ctx, record.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, record.Token, byPayment.Token)

	_, err = repo.FindByToken(ctx, "missing")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestRepositoryMarkPaidSingleWinner(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	record := seedContext(t, repo, enums.CheckoutTypeBooking)

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.MarkPaid(context.Background(), record.Token, time.Now().UTC())
			if err == nil && ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
	found, err := repo.FindByToken(context.Background(), record.Token)
	require.NoError(t, err)
	assert.Equal(t, enums.CheckoutContextStatusPaid, found.Status)
	assert.NotNil(t, found.PaidAt)
}

func TestRepositoryListUnforwarded(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	now := time.Now().UTC()

	failed := seedContext(t, repo, enums.CheckoutTypeBooking)
	forwarded := seedContext(t, repo, enums.CheckoutTypeBooking)
	unpaid := seedContext(t, repo, enums.CheckoutTypeBooking)
	cart := seedContext(t, repo, enums.CheckoutTypeCart)

	for _, token := range []string{failed.Token, forwarded.Token, cart.Token} {
		ok, err := repo.MarkPaid(ctx, token, now)
		require.NoError(t, err)
		require.True(t, ok)
	}
	reason := "booking system returned 503"
	require.NoError(t, repo.SetForwardState(ctx, failed.Token, enums.ForwardStateFailed, &reason, now))
	require.NoError(t, repo.SetForwardState(ctx, forwarded.Token, enums.ForwardStateForwarded, nil, now))

	records, err := repo.ListUnforwarded(ctx, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, failed.Token, records[0].Token)
	require.NotNil(t, records[0].ForwardError)
	assert.Equal(t, reason, *records[0].ForwardError)
	assert.NotEqual(t, unpaid.Token, records[0].Token)
}
