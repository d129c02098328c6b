package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/redmonkez12/wheels-api/internal/database"
)

// userDocument is the BSON shape of an account in the users collection.
// The password hash lives under "password" for compatibility with
// documents written by the legacy Node backend. Accounts created there carry
// an ObjectId _id, accounts created here a UUID string.
type userDocument struct {
	ID           any    `bson:"_id"`
	Name         string `bson:"name"`
	Email        string `bson:"email"`
	Contact      string `bson:"contact"`
	Address      string `bson:"address"`
	Role         string `bson:"role"`
	PasswordHash string `bson:"password"`

	ResetCodeHash       *string    `bson:"reset_code_hash"`
	ResetCodeExpiresAt  *time.Time `bson:"reset_code_expires_at"`
	ResetCodeAttempts   int        `bson:"reset_code_attempts"`
	ResetTokenHash      *string    `bson:"reset_token_hash"`
	ResetTokenExpiresAt *time.Time `bson:"reset_token_expires_at"`
	ResetLastSentAt     *time.Time `bson:"reset_last_sent_at"`

	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// MongoRepository is the MongoDB credential store
type MongoRepository struct {
	users *mongo.Collection
}

var _ Store = (*MongoRepository)(nil)

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{users: db.Collection(database.UsersCollection)}
}

func (r *MongoRepository) Create(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	doc := userDocument{
		ID:           uuid.New().String(),
		Name:         u.Name,
		Email:        NormalizeEmail(u.Email),
		Contact:      u.Contact,
		Address:      u.Address,
		Role:         u.Role,
		PasswordHash: u.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if doc.Role == "" {
		doc.Role = RoleUser
	}

	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	created, err := doc.toModel()
	if err != nil {
		return err
	}
	*u = *created
	return nil
}

func (r *MongoRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, "get user by email", bson.M{"email": NormalizeEmail(email)})
}

func (r *MongoRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.findOne(ctx, "get user by id", bson.M{"_id": idFilter(id)})
}

func (r *MongoRepository) GetByResetTokenHash(ctx context.Context, tokenHash string) (*User, error) {
	return r.findOne(ctx, "get user by reset token", bson.M{"reset_token_hash": tokenHash})
}

func (r *MongoRepository) findOne(ctx context.Context, op string, filter bson.M) (*User, error) {
	var doc userDocument
	if err := r.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}

	return doc.toModel()
}

func (r *MongoRepository) UpdateRecoveryByEmail(ctx context.Context, email string, rec Recovery) error {
	return r.updateOne(ctx, "update recovery state",
		bson.M{"email": NormalizeEmail(email)},
		bson.M{"$set": bson.M{
			"reset_code_hash":        rec.CodeHash,
			"reset_code_expires_at":  rec.CodeExpiresAt,
			"reset_code_attempts":    rec.CodeAttempts,
			"reset_token_hash":       rec.TokenHash,
			"reset_token_expires_at": rec.TokenExpiresAt,
			"reset_last_sent_at":     rec.LastSentAt,
			"updatedAt":              time.Now().UTC(),
		}},
	)
}

func (r *MongoRepository) IncrementCodeAttempts(ctx context.Context, email string, limit int) error {
	email = NormalizeEmail(email)
	err := r.updateOne(ctx, "increment reset code attempts",
		attemptsBelow(email, limit),
		bson.M{
			"$inc": bson.M{"reset_code_attempts": 1},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	// nothing matched: either the account is gone or the limit was reached
	count, err := r.users.CountDocuments(ctx, bson.M{"email": email}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrAttemptsExhausted
}

// attemptsBelow matches the account while its counter is under limit.
// Documents from the Node backend may not carry the counter yet.
func attemptsBelow(email string, limit int) bson.M {
	return bson.M{
		"email": email,
		"$or": bson.A{
			bson.M{"reset_code_attempts": bson.M{"$lt": limit}},
			bson.M{"reset_code_attempts": bson.M{"$exists": false}},
		},
	}
}

func (r *MongoRepository) UpdatePasswordByID(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.updateOne(ctx, "update password",
		bson.M{"_id": idFilter(id)},
		bson.M{"$set": bson.M{
			"password":               passwordHash,
			"reset_code_hash":        nil,
			"reset_code_expires_at":  nil,
			"reset_code_attempts":    0,
			"reset_token_hash":       nil,
			"reset_token_expires_at": nil,
			"reset_last_sent_at":     nil,
			"updatedAt":              time.Now().UTC(),
		}},
	)
}

func (r *MongoRepository) updateOne(ctx context.Context, op string, filter, update bson.M) error {
	result, err := r.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// uuidFromObjectID maps a legacy ObjectId onto a version 8 UUID so the rest of
// the service can keep addressing accounts by uuid.UUID. The twelve ObjectId
// bytes fill every position except the version and variant bytes and the
// zeroed trailing pair, which makes the mapping reversible.
func uuidFromObjectID(oid bson.ObjectID) uuid.UUID {
	var id uuid.UUID
	copy(id[0:6], oid[0:6])
	id[6] = 0x80
	id[7] = oid[6]
	id[8] = 0x80
	copy(id[9:14], oid[7:12])
	return id
}

// legacyObjectID reverses uuidFromObjectID
func legacyObjectID(id uuid.UUID) (bson.ObjectID, bool) {
	var oid bson.ObjectID
	if id[6] != 0x80 || id[8] != 0x80 || id[14] != 0 || id[15] != 0 {
		return oid, false
	}
	copy(oid[0:6], id[0:6])
	oid[6] = id[7]
	copy(oid[7:12], id[9:14])
	return oid, true
}

// idFilter is the _id value stored for id
func idFilter(id uuid.UUID) any {
	if oid, ok := legacyObjectID(id); ok {
		return oid
	}
	return id.String()
}

func parseDocumentID(raw any) (uuid.UUID, error) {
	switch v := raw.(type) {
	case bson.ObjectID:
		return uuidFromObjectID(v), nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to parse user id %q: %w", v, err)
		}
		return id, nil
	default:
		return uuid.Nil, fmt.Errorf("unsupported user id type %T", raw)
	}
}

func (d userDocument) toModel() (*User, error) {
	id, err := parseDocumentID(d.ID)
	if err != nil {
		return nil, err
	}

	return &User{
		ID:           id,
		Name:         d.Name,
		Email:        d.Email,
		Contact:      d.Contact,
		Address:      d.Address,
		Role:         d.Role,
		PasswordHash: d.PasswordHash,
		Recovery: Recovery{
			CodeHash:       d.ResetCodeHash,
			CodeExpiresAt:  d.ResetCodeExpiresAt,
			CodeAttempts:   d.ResetCodeAttempts,
			TokenHash:      d.ResetTokenHash,
			TokenExpiresAt: d.ResetTokenExpiresAt,
			LastSentAt:     d.ResetLastSentAt,
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}
