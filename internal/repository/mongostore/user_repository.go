package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/domain"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/repository"
)

const usersCollection = "users"

type addressDocument struct {
	ID          primitive.ObjectID  `bson:"_id"`
	Label       string              `bson:"label,omitempty"`
	Street      string              `bson:"street"`
	City        string              `bson:"city"`
	Coordinates *domain.Coordinates `bson:"coordinates,omitempty"`
	IsDefault   bool                `bson:"is_default"`
}

// userDocument mirrors the profile owned by the auth service. Only the
// fields this service reads are mapped.
type userDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Name       string             `bson:"name"`
	Email      string             `bson:"email"`
	Role       domain.Role        `bson:"role"`
	Addresses  []addressDocument  `bson:"addresses"`
	PushTokens []string           `bson:"push_tokens"`
	UpdatedAt  time.Time          `bson:"updated_at,omitempty"`
}

func (d *userDocument) toDomain() *domain.Principal {
	role := d.Role
	if !role.IsValid() {
		role = domain.RoleUser
	}
	addresses := make([]domain.Address, 0, len(d.Addresses))
	for _, a := range d.Addresses {
		addresses = append(addresses, domain.Address{
			ID:          a.ID.Hex(),
			Label:       a.Label,
			Street:      a.Street,
			City:        a.City,
			Coordinates: a.Coordinates,
			IsDefault:   a.IsDefault,
		})
	}
	return &domain.Principal{
		ID:         d.ID.Hex(),
		Name:       d.Name,
		Email:      d.Email,
		Role:       role,
		Addresses:  addresses,
		PushTokens: d.PushTokens,
	}
}

type userRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) repository.UserRepository {
	return &userRepository{collection: db.Collection(usersCollection)}
}

func (m *userRepository) GetUser(ctx context.Context, id string) (*domain.Principal, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrUserNotFound
	}
	return m.findOne(ctx, bson.M{"_id": oid})
}

func (m *userRepository) GetUserByEmail(ctx context.Context, email string) (*domain.Principal, error) {
	return m.findOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (m *userRepository) findOne(ctx context.Context, filter bson.M) (*domain.Principal, error) {
	var doc userDocument
	err := m.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return doc.toDomain(), nil
}

func (m *userRepository) SetRole(ctx context.Context, id string, role domain.Role) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return repository.ErrUserNotFound
	}
	update := bson.M{"$set": bson.M{"role": role, "updated_at": time.Now()}}
	result, err := m.collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

// InsertUser is used by seeding and tests; registration lives in the auth service.
func InsertUser(ctx context.Context, db *mongo.Database, p *domain.Principal) (string, error) {
	doc := userDocument{
		Name:       p.Name,
		Email:      strings.ToLower(strings.TrimSpace(p.Email)),
		Role:       p.Role,
		PushTokens: p.PushTokens,
		UpdatedAt:  time.Now(),
	}
	if doc.Role == "" {
		doc.Role = domain.RoleUser
	}
	for _, a := range p.Addresses {
		oid := primitive.NewObjectID()
		if a.ID != "" {
			if parsed, err := primitive.ObjectIDFromHex(a.ID); err == nil {
				oid = parsed
			}
		}
		doc.Addresses = append(doc.Addresses, addressDocument{
			ID:          oid,
			Label:       a.Label,
			Street:      a.Street,
			City:        a.City,
			Coordinates: a.Coordinates,
			IsDefault:   a.IsDefault,
		})
	}

	res, err := db.Collection(usersCollection).InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("failed to insert user: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

func createUserIndexes(ctx context.Context, c *mongo.Collection) error {
	_, err := c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}
