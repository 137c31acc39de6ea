package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fjod/foodcart/internal/domain"
	pb "github.com/fjod/foodcart/internal/payment/paymentrpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type PaymentServiceServer struct {
	pb.UnimplementedPaymentServiceServer
	store   *MemoryStore
	outcome Outcome
	log     *slog.Logger
}

func NewPaymentServiceServer(store *MemoryStore, outcome Outcome, log *slog.Logger) *PaymentServiceServer {
	return &PaymentServiceServer{
		store:   store,
		outcome: outcome,
		log:     log,
	}
}

func (s *PaymentServiceServer) Authorize(ctx context.Context, r *pb.AuthorizeRequest) (*pb.AuthorizeResponse, error) {
	amount, err := domain.ParseMoney(r.Amount, r.Currency)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	auth, err := s.store.Authorize(amount)
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.log.InfoContext(ctx, "authorization created", "handle", auth.Handle, "amount", auth.Amount.String())
	return &pb.AuthorizeResponse{
		Handle:    auth.Handle,
		Amount:    auth.Amount.Amount.String(),
		Currency:  auth.Amount.Currency.String(),
		ExpiresAt: auth.ExpiresAt.UTC().Format(time.RFC3339),
	}, nil
}

func (s *PaymentServiceServer) Capture(ctx context.Context, r *pb.CaptureRequest) (*pb.CaptureResponse, error) {
	if r.Handle == "" {
		return nil, status.Error(codes.InvalidArgument, "handle is required")
	}

	auth, err := s.store.Capture(r.Handle, s.outcome)
	if err != nil {
		return nil, mapStoreError(err)
	}

	if auth.State != StateCaptured {
		s.log.InfoContext(ctx, "capture declined", "handle", auth.Handle, "refusal", auth.Refusal)
		return &pb.CaptureResponse{
			Status:  pb.CaptureStatusFailed,
			Refusal: pb.PaymentRefusal(auth.Refusal),
			Reason:  auth.Reason,
		}, nil
	}

	s.log.InfoContext(ctx, "capture succeeded", "handle", auth.Handle, "transaction_id", auth.TransactionID)
	return &pb.CaptureResponse{
		Status:        pb.CaptureStatusSuccess,
		TransactionID: auth.TransactionID,
		Amount:        auth.Amount.Amount.String(),
		Currency:      auth.Amount.Currency.String(),
	}, nil
}

func (s *PaymentServiceServer) Refund(ctx context.Context, r *pb.RefundRequest) (*pb.RefundResponse, error) {
	if r.Handle == "" {
		return nil, status.Error(codes.InvalidArgument, "handle is required")
	}

	if err := s.store.Refund(r.Handle); err != nil {
		return nil, mapStoreError(err)
	}

	s.log.InfoContext(ctx, "authorization refunded", "handle", r.Handle)
	return &pb.RefundResponse{}, nil
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrAuthorizationNotFound):
		return status.Error(codes.NotFound, "authorization not found")
	case errors.Is(err, ErrAuthorizationExpired):
		return status.Error(codes.FailedPrecondition, "authorization has expired")
	case errors.Is(err, ErrInvalidState):
		return status.Error(codes.FailedPrecondition, "invalid authorization state")
	default:
		return status.Errorf(codes.Internal, "internal error: %v", err)
	}
}
