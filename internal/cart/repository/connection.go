package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultMaxPoolSize    = 100
	defaultMinPoolSize    = 10
)

// MongoOptions configures the cart store connection. Zero values fall back to defaults.
type MongoOptions struct {
	URI            string
	Database       string
	AppName        string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
	MinPoolSize    uint64
}

func (o MongoOptions) clientOptions() (*options.ClientOptions, error) {
	if o.URI == "" {
		return nil, errors.New("mongo URI is required")
	}
	if o.Database == "" {
		return nil, errors.New("mongo database name is required")
	}

	timeout := o.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	maxPool := o.MaxPoolSize
	if maxPool == 0 {
		maxPool = defaultMaxPoolSize
	}
	minPool := min(o.MinPoolSize, maxPool)
	if o.MinPoolSize == 0 {
		minPool = min(defaultMinPoolSize, maxPool)
	}

	opts := options.Client().
		ApplyURI(o.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout / 2).
		SetMaxPoolSize(maxPool).
		SetMinPoolSize(minPool)
	if o.AppName != "" {
		opts.SetAppName(o.AppName)
	}
	return opts, nil
}

func ConnectMongoDB(ctx context.Context, o MongoOptions) (*mongo.Database, error) {
	clientOpts, err := o.clientOptions()
	if err != nil {
		return nil, err
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(o.Database), nil
}
