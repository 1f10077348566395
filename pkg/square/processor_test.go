package square

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	sq "github.com/square/square-go-sdk"
	sqcheckout "github.com/square/square-go-sdk/checkout"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"
	"github.com/stretchr/testify/require"

	"github.com/coralreef/resortpay/pkg/enums"
	pkgerrors "github.com/coralreef/resortpay/pkg/errors"
	"github.com/coralreef/resortpay/pkg/logger"
	"github.com/coralreef/resortpay/pkg/processor"
)

func newTestClient(api backend) *Client {
	return &Client{
		api:         api,
		environment: sandboxEnv,
		locationID:  "LOC1",
		logger:      logger.New(logger.Options{ServiceName: "square-test", Output: io.Discard}),
	}
}

func TestCreateSessionBuildsPaymentLink(t *testing.T) {
	var captured *sqcheckout.CreatePaymentLinkRequest
	client := newTestClient(backend{
		createPaymentLink: func(_ context.Context, req *sqcheckout.CreatePaymentLinkRequest, _ ...sqoption.RequestOption) (*sq.CreatePaymentLinkResponse, error) {
			captured = req
			return &sq.CreatePaymentLinkResponse{PaymentLink: &sq.PaymentLink{
				ID:      ptrString("PL1"),
				OrderID: ptrString("ORDER1"),
				URL:     ptrString("https://square.link/u/abc"),
			}}, nil
		},
	})

	session, err := client.CreateSession(context.Background(), processor.SessionRequest{
		Currency:       enums.CurrencyUSD,
		CustomerEmail:  "guest@example.com",
		Description:    "Ocean villa",
		LineItems:      []processor.LineItem{{Name: "Ocean villa", UnitAmountCents: 50000, Quantity: 1}},
		Metadata:       map[string]string{processor.MetadataPaymentID: "pay-1"},
		SuccessURL:     "https://resort.example/success",
		IdempotencyKey: "checkout_pay-1",
	})
	require.NoError(t, err)
	require.Equal(t, "ORDER1", session.ID)
	require.Equal(t, "https://square.link/u/abc", session.RedirectURL)

	require.NotNil(t, captured)
	require.Equal(t, "checkout_pay-1", *captured.IdempotencyKey)
	require.Equal(t, "LOC1", captured.Order.LocationID)
	require.Equal(t, "pay-1", *captured.Order.ReferenceID)
	require.Len(t, captured.Order.LineItems, 1)
	require.Equal(t, "1", captured.Order.LineItems[0].Quantity)
	require.Equal(t, int64(50000), *captured.Order.LineItems[0].BasePriceMoney.Amount)
	require.Equal(t, "https://resort.example/success", *captured.CheckoutOptions.RedirectURL)
	require.Equal(t, "guest@example.com", *captured.PrePopulatedData.BuyerEmail)
}

func TestCreateSessionRequiresLineItems(t *testing.T) {
	client := newTestClient(backend{})
	_, err := client.CreateSession(context.Background(), processor.SessionRequest{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGetSessionReportsCompletedOrder(t *testing.T) {
	completed := sq.OrderStateCompleted
	client := newTestClient(backend{
		getOrder: func(_ context.Context, req *sq.GetOrdersRequest, _ ...sqoption.RequestOption) (*sq.GetOrderResponse, error) {
			require.Equal(t, "ORDER1", req.OrderID)
			return &sq.GetOrderResponse{Order: &sq.Order{
				ReferenceID: ptrString("pay-1"),
				State:       &completed,
				TotalMoney:  moneyPtr(50000, "USD"),
				Tenders:     []*sq.Tender{{PaymentID: ptrString("PAYMENT1")}},
			}}, nil
		},
	})

	session, err := client.GetSession(context.Background(), "ORDER1")
	require.NoError(t, err)
	require.True(t, session.Paid)
	require.Equal(t, "PAYMENT1", session.PaymentRef)
	require.Equal(t, int64(50000), session.AmountTotalCents)
	require.Equal(t, "pay-1", session.Metadata[processor.MetadataPaymentID])
}

func TestGetSessionOpenOrderIsUnpaid(t *testing.T) {
	open := sq.OrderStateOpen
	client := newTestClient(backend{
		getOrder: func(context.Context, *sq.GetOrdersRequest, ...sqoption.RequestOption) (*sq.GetOrderResponse, error) {
			return &sq.GetOrderResponse{Order: &sq.Order{State: &open}}, nil
		},
	})

	session, err := client.GetSession(context.Background(), "ORDER2")
	require.NoError(t, err)
	require.False(t, session.Paid)
	require.Empty(t, session.PaymentRef)
}

func TestGetSessionMapsNotFound(t *testing.T) {
	client := newTestClient(backend{
		getOrder: func(context.Context, *sq.GetOrdersRequest, ...sqoption.RequestOption) (*sq.GetOrderResponse, error) {
			return nil, sqcore.NewAPIError(http.StatusNotFound, errors.New(`{"errors":[{"category":"INVALID_REQUEST_ERROR","code":"NOT_FOUND"}]}`))
		},
	})

	_, err := client.GetSession(context.Background(), "missing")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCreateRefundMapsStatus(t *testing.T) {
	var captured *sq.RefundPaymentRequest
	pending := "PENDING"
	client := newTestClient(backend{
		refundPayment: func(_ context.Context, req *sq.RefundPaymentRequest, _ ...sqoption.RequestOption) (*sq.RefundPaymentResponse, error) {
			captured = req
			return &sq.RefundPaymentResponse{Refund: &sq.PaymentRefund{
				ID:          "R1",
				Status:      &pending,
				AmountMoney: moneyPtr(2500, "USD"),
			}}, nil
		},
	})

	refund, err := client.CreateRefund(context.Background(), processor.RefundRequest{
		PaymentRef:     "PAYMENT1",
		AmountCents:    2500,
		Currency:       enums.CurrencyUSD,
		Reason:         enums.RefundReasonServiceIssue,
		IdempotencyKey: "refund_r-1_2500",
	})
	require.NoError(t, err)
	require.Equal(t, "R1", refund.ID)
	require.Equal(t, processor.RefundStatusPending, refund.Status)
	require.False(t, refund.Completed())

	require.Equal(t, "refund_r-1_2500", captured.IdempotencyKey)
	require.Equal(t, "PAYMENT1", *captured.PaymentID)
	require.Equal(t, "Service issue", *captured.Reason)
	require.Equal(t, "USD", string(*captured.AmountMoney.Currency))
}

func TestCreateRefundUpstreamFailure(t *testing.T) {
	client := newTestClient(backend{
		refundPayment: func(context.Context, *sq.RefundPaymentRequest, ...sqoption.RequestOption) (*sq.RefundPaymentResponse, error) {
			return nil, context.DeadlineExceeded
		},
	})

	_, err := client.CreateRefund(context.Background(), processor.RefundRequest{PaymentRef: "PAYMENT1", AmountCents: 100})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUpstream))
}

func TestToRefundStatuses(t *testing.T) {
	status := func(s string) *sq.PaymentRefund { return &sq.PaymentRefund{ID: "R", Status: &s} }

	require.Equal(t, processor.RefundStatusSucceeded, toRefund(status("COMPLETED")).Status)
	require.Equal(t, processor.RefundStatusPending, toRefund(status("PENDING")).Status)

	rejected := toRefund(status("REJECTED"))
	require.Equal(t, processor.RefundStatusFailed, rejected.Status)
	require.Equal(t, "rejected", rejected.FailureReason)
	require.Nil(t, toRefund(nil))
}
