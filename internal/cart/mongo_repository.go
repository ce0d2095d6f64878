package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) CartRepository {
	return &mongoRepository{collection: db.Collection("carts")}
}

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

func (m mongoRepository) GetCart(ctx context.Context, customerToken string) (*domain.Cart, error) {
	var cart domain.Cart

	filter := bson.M{"customer_token": customerToken}
	err := m.collection.FindOne(ctx, filter).Decode(&cart)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

func (m mongoRepository) AddItem(ctx context.Context, customerToken string, item domain.CartItem) error {
	now := time.Now()
	filter := bson.M{"customer_token": customerToken}

	var existingCart domain.Cart
	err := m.collection.FindOne(ctx, filter).Decode(&existingCart)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			cart := &domain.Cart{
				CustomerToken: customerToken,
				Items:         []domain.CartItem{item},
				CreatedAt:     now,
				UpdatedAt:     now,
			}

			if _, err := m.collection.InsertOne(ctx, cart); err != nil {
				return fmt.Errorf("failed to create cart with item: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to check existing cart: %w", err)
	}

	itemExists := false
	for _, existingItem := range existingCart.Items {
		if existingItem.ProductID == item.ProductID {
			itemExists = true
			break
		}
	}

	if itemExists {
		update := bson.M{
			"$set": bson.M{
				"items.$[elem].quantity": item.Quantity,
				"updated_at":             now,
			},
		}
		arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{
				bson.M{"elem.product_id": item.ProductID},
			},
		})

		if _, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters); err != nil {
			return fmt.Errorf("failed to update existing item: %w", err)
		}
		return nil
	}

	update := bson.M{
		"$push": bson.M{"items": item},
		"$set":  bson.M{"updated_at": now},
	}

	if _, err := m.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to add new item: %w", err)
	}
	return nil
}

func (m mongoRepository) RemoveItem(ctx context.Context, customerToken string, productID int64) error {
	// The item is part of the filter so a cart that never held the
	// product does not match; $set alone would still bump updated_at and
	// mask the miss.
	filter := bson.M{
		"customer_token":   customerToken,
		"items.product_id": productID,
	}
	update := bson.M{
		"$pull": bson.M{
			"items": bson.M{"product_id": productID},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}

	if result.MatchedCount == 0 {
		// Missing cart and missing item both fail the filter; one more
		// lookup tells them apart.
		err := m.collection.FindOne(ctx, bson.M{"customer_token": customerToken}).Err()
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrCartNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check cart: %w", err)
		}
		return ErrItemNotFound
	}
	return nil
}

func (m mongoRepository) DeleteCart(ctx context.Context, customerToken string) error {
	filter := bson.M{"customer_token": customerToken}

	result, err := m.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "customer_token", Value: 1}},
		Options: options.Index().SetUnique(true),
	}

	if _, err := m.collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		return fmt.Errorf("failed to create cart index: %w", err)
	}
	return nil
}
