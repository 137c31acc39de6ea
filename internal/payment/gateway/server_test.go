package gateway

import (
	"context"
	"testing"
	"time"

	pb "github.com/fjod/foodcart/internal/payment/paymentrpc"
	"github.com/fjod/foodcart/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func setupServer(t *testing.T, outcome Outcome) *PaymentServiceServer {
	return NewPaymentServiceServer(setupStore(t), outcome, logger.Discard())
}

func TestServer_AuthorizeCaptureRefund(t *testing.T) {
	srv := setupServer(t, approve)
	ctx := context.Background()

	auth, err := srv.Authorize(ctx, &pb.AuthorizeRequest{Amount: "25.50", Currency: "USD"})
	require.NoError(t, err)
	assert.NotEmpty(t, auth.Handle)
	assert.Equal(t, "25.5", auth.Amount)
	assert.Equal(t, "USD", auth.Currency)
	_, err = time.Parse(time.RFC3339, auth.ExpiresAt)
	assert.NoError(t, err)

	capture, err := srv.Capture(ctx, &pb.CaptureRequest{Handle: auth.Handle})
	require.NoError(t, err)
	assert.Equal(t, pb.CaptureStatusSuccess, capture.Status)
	assert.Equal(t, "25.5", capture.Amount)
	assert.NotEmpty(t, capture.TransactionID)

	_, err = srv.Refund(ctx, &pb.RefundRequest{Handle: auth.Handle})
	assert.NoError(t, err)
}

func TestServer_CaptureDeclined(t *testing.T) {
	srv := setupServer(t, decline)
	ctx := context.Background()

	auth, err := srv.Authorize(ctx, &pb.AuthorizeRequest{Amount: "5", Currency: "USD"})
	require.NoError(t, err)

	capture, err := srv.Capture(ctx, &pb.CaptureRequest{Handle: auth.Handle})
	require.NoError(t, err)
	assert.Equal(t, pb.CaptureStatusFailed, capture.Status)
	assert.Equal(t, pb.RefusalCardDeclined, capture.Refusal)
	assert.Empty(t, capture.Amount)
}

func TestServer_StatusCodes(t *testing.T) {
	srv := setupServer(t, approve)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		code codes.Code
	}{
		{
			name: "bad amount",
			call: func() error {
				_, err := srv.Authorize(ctx, &pb.AuthorizeRequest{Amount: "abc", Currency: "USD"})
				return err
			},
			code: codes.InvalidArgument,
		},
		{
			name: "bad currency",
			call: func() error {
				_, err := srv.Authorize(ctx, &pb.AuthorizeRequest{Amount: "1", Currency: "XX"})
				return err
			},
			code: codes.InvalidArgument,
		},
		{
			name: "non positive amount",
			call: func() error {
				_, err := srv.Authorize(ctx, &pb.AuthorizeRequest{Amount: "0", Currency: "USD"})
				return err
			},
			code: codes.InvalidArgument,
		},
		{
			name: "empty handle",
			call: func() error {
				_, err := srv.Capture(ctx, &pb.CaptureRequest{})
				return err
			},
			code: codes.InvalidArgument,
		},
		{
			name: "unknown handle",
			call: func() error {
				_, err := srv.Capture(ctx, &pb.CaptureRequest{Handle: "auth_nope"})
				return err
			},
			code: codes.NotFound,
		},
		{
			name: "refund unknown handle",
			call: func() error {
				_, err := srv.Refund(ctx, &pb.RefundRequest{Handle: "auth_nope"})
				return err
			},
			code: codes.NotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}
