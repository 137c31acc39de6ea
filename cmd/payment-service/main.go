package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/fjod/foodcart/internal/config"
	"github.com/fjod/foodcart/internal/payment/gateway"
	pb "github.com/fjod/foodcart/internal/payment/paymentrpc"
	"github.com/fjod/foodcart/pkg/logger"
	"github.com/fjod/foodcart/pkg/otel"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

const serviceName = "payment-service"

func main() {
	cfg, err := config.LoadPayment()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(os.Stdout, logger.ParseLevel(cfg.LogLevel), serviceName)

	if err := run(cfg, log); err != nil {
		log.Error("payment service stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.PaymentConfig, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.InitTracing(ctx, otel.Config{
		ServiceName: serviceName,
		Endpoint:    cfg.OtelEndpoint,
		Probability: 1,
	})
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	store := gateway.NewMemoryStore(cfg.AuthorizationTTL)
	defer store.Close()
	server := gateway.NewPaymentServiceServer(store, gateway.RandomOutcome{SuccessRate: cfg.SuccessRate}, log)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	pb.RegisterPaymentServiceServer(grpcServer, server)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("payment service listening", "port", cfg.GRPCPort, "success_rate", cfg.SuccessRate)
		serveErr <- grpcServer.Serve(lis)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down payment service")
	grpcServer.GracefulStop()
	log.Info("payment service stopped")
	return nil
}
