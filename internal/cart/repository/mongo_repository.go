package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/foodcart/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type cartDocument struct {
	UserID    string         `bson:"user_id"`
	Items     []lineDocument `bson:"items"`
	Version   int64          `bson:"version"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

type lineDocument struct {
	ItemID   int64     `bson:"item_id"`
	Quantity int       `bson:"quantity"`
	AddedAt  time.Time `bson:"added_at"`
}

func toDocument(cart *domain.Cart) cartDocument {
	doc := cartDocument{
		UserID:    cart.UserID,
		Items:     make([]lineDocument, 0, len(cart.Lines)),
		Version:   cart.Version,
		CreatedAt: cart.CreatedAt,
		UpdatedAt: cart.UpdatedAt,
	}
	for _, line := range cart.SortedLines() {
		doc.Items = append(doc.Items, lineDocument(line))
	}
	return doc
}

func (d cartDocument) toDomain() *domain.Cart {
	cart := domain.NewCart(d.UserID)
	cart.Version = d.Version
	cart.CreatedAt = d.CreatedAt
	cart.UpdatedAt = d.UpdatedAt
	for _, item := range d.Items {
		cart.Lines[item.ItemID] = domain.CartLine(item)
	}
	return cart
}

type mongoRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoRepository(db *mongo.Database) CartRepository {
	return &mongoRepository{
		collection: db.Collection("carts"),
		now:        time.Now,
	}
}

func (m *mongoRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var doc cartDocument

	err := m.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return doc.toDomain(), nil
}

func (m *mongoRepository) SaveCart(ctx context.Context, cart *domain.Cart) error {
	now := m.now().UTC().Truncate(time.Millisecond)
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}

	doc := toDocument(cart)
	doc.UpdatedAt = now
	doc.Version = cart.Version + 1

	if cart.Version == 0 {
		if _, err := m.collection.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return ErrVersionConflict
			}
			return fmt.Errorf("failed to insert cart: %w", err)
		}
	} else {
		filter := bson.M{"user_id": cart.UserID, "version": cart.Version}
		update := bson.M{"$set": bson.M{
			"items":      doc.Items,
			"version":    doc.Version,
			"updated_at": doc.UpdatedAt,
		}}

		result, err := m.collection.UpdateOne(ctx, filter, update)
		if err != nil {
			return fmt.Errorf("failed to update cart: %w", err)
		}
		if result.MatchedCount == 0 {
			return ErrVersionConflict
		}
	}

	cart.Version = doc.Version
	cart.UpdatedAt = now
	return nil
}

func (m *mongoRepository) DeleteCart(ctx context.Context, userID string) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // abandoned carts
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// CreateIndexes is a no-op for repositories that are not Mongo backed.
func CreateIndexes(ctx context.Context, repo CartRepository) error {
	if m, ok := repo.(*mongoRepository); ok {
		return m.CreateIndexes(ctx)
	}
	return nil
}
