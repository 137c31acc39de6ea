// Package client adapts the payment gateway gRPC API to the checkout flow. Every call has
// a deadline and goes through a circuit breaker, and any doubt about a capture is reported
// as not captured.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/foodcart/internal/domain"
	pb "github.com/fjod/foodcart/internal/payment/paymentrpc"
	"github.com/fjod/foodcart/pkg/circuitbreaker"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

type Authorization struct {
	Handle string
	Amount domain.Money
}

type Capture struct {
	Succeeded      bool
	CapturedAmount domain.Money
	Reason         string
}

type Client struct {
	rpc     pb.PaymentServiceClient
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[any]
	log     *slog.Logger
}

// Dial opens an instrumented connection to the gateway. The connection is lazy.
func Dial(addr string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to payment service: %w", err)
	}
	return conn, nil
}

func New(conn grpc.ClientConnInterface, timeout time.Duration, log *slog.Logger) *Client {
	cfg := circuitbreaker.DefaultConfig("payment-gateway")
	cfg.IsSuccessful = isBusinessOutcome
	return &Client{
		rpc:     pb.NewPaymentServiceClient(conn),
		timeout: timeout,
		breaker: circuitbreaker.New[any](cfg, log),
		log:     log,
	}
}

// isBusinessOutcome keeps answers from a healthy gateway out of the breaker's failure count.
func isBusinessOutcome(err error) bool {
	if err == nil {
		return true
	}
	switch status.Code(err) {
	case codes.InvalidArgument, codes.NotFound, codes.FailedPrecondition:
		return true
	}
	return false
}

func (c *Client) call(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.breaker.Execute(func() (any, error) {
		return fn(ctx)
	})
}

func (c *Client) CreateAuthorization(ctx context.Context, amount domain.Money) (Authorization, error) {
	if !amount.IsPositive() {
		return Authorization{}, fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}

	res, err := c.call(ctx, func(ctx context.Context) (any, error) {
		return c.rpc.Authorize(ctx, &pb.AuthorizeRequest{
			Amount:   amount.Amount.String(),
			Currency: amount.Currency.String(),
		})
	})
	if err != nil {
		if status.Code(err) == codes.InvalidArgument {
			return Authorization{}, fmt.Errorf("%w: %s", domain.ErrValidation, status.Convert(err).Message())
		}
		return Authorization{}, &domain.GatewayError{Op: "authorize", Err: err}
	}

	resp := res.(*pb.AuthorizeResponse)
	authorized, err := domain.ParseMoney(resp.Amount, resp.Currency)
	if err != nil {
		return Authorization{}, &domain.GatewayError{Op: "authorize", Err: err}
	}
	return Authorization{Handle: resp.Handle, Amount: authorized}, nil
}

// ConfirmCapture returns an error only when the gateway could not be asked. A declined,
// unknown or expired authorization is a Capture with Succeeded false.
func (c *Client) ConfirmCapture(ctx context.Context, handle string) (Capture, error) {
	res, err := c.call(ctx, func(ctx context.Context) (any, error) {
		return c.rpc.Capture(ctx, &pb.CaptureRequest{Handle: handle})
	})
	if err != nil {
		switch {
		case status.Code(err) == codes.NotFound:
			return Capture{Reason: "unknown authorization"}, nil
		case status.Code(err) == codes.FailedPrecondition:
			return Capture{Reason: status.Convert(err).Message()}, nil
		case status.Code(err) == codes.InvalidArgument:
			return Capture{Reason: "invalid authorization"}, nil
		case errors.Is(err, context.DeadlineExceeded) || status.Code(err) == codes.DeadlineExceeded:
			return Capture{}, &domain.GatewayError{Op: "capture", Err: fmt.Errorf("timed out: %w", err)}
		case circuitbreaker.IsOpen(err):
			c.log.WarnContext(ctx, "payment gateway circuit open", "handle", handle)
		}
		return Capture{}, &domain.GatewayError{Op: "capture", Err: err}
	}

	resp := res.(*pb.CaptureResponse)
	if resp.Status != pb.CaptureStatusSuccess {
		return Capture{Reason: refusalReason(resp)}, nil
	}

	captured, err := domain.ParseMoney(resp.Amount, resp.Currency)
	if err != nil {
		return Capture{}, &domain.GatewayError{Op: "capture", Err: err}
	}
	return Capture{Succeeded: true, CapturedAmount: captured}, nil
}

func refusalReason(resp *pb.CaptureResponse) string {
	if resp.Reason != "" {
		return resp.Reason
	}
	if resp.Refusal != "" {
		return string(resp.Refusal)
	}
	return "declined"
}

// Refund voids a captured authorization.
func (c *Client) Refund(ctx context.Context, handle string) error {
	_, err := c.call(ctx, func(ctx context.Context) (any, error) {
		return c.rpc.Refund(ctx, &pb.RefundRequest{Handle: handle})
	})
	if err != nil {
		return &domain.GatewayError{Op: "refund", Err: err}
	}
	return nil
}
