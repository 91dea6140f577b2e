package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/botforge/miniapp-system/internal/core/domain"
)

const principalCollection = "principals"

// PrincipalRepository persists principals in MongoDB. The unique index
// on identity_keys is what enforces the one-key-one-principal invariant
// under concurrency; every write path relies on it.
type PrincipalRepository struct {
	coll *mongo.Collection
}

func NewPrincipalRepository(db *mongo.Database) *PrincipalRepository {
	return &PrincipalRepository{coll: db.Collection(principalCollection)}
}

// EnsureIndexes creates the unique identity-key index. Call once at
// startup before serving traffic.
func (r *PrincipalRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "identity_keys", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create identity index: %w", err)
	}
	return nil
}

type principalDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	IdentityKeys []string           `bson:"identity_keys"`
	Roles        []string           `bson:"roles"`
	Username     string             `bson:"username,omitempty"`
	PasswordHash string             `bson:"password_hash,omitempty"`
	CreatedAt    int64              `bson:"created_at"`
	UpdatedAt    int64              `bson:"updated_at"`
}

func (r *PrincipalRepository) FindByID(ctx context.Context, id string) (*domain.Principal, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrPrincipalNotFound
	}

	var doc principalDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("find principal: %w", err)
	}
	return docToPrincipal(&doc), nil
}

func (r *PrincipalRepository) FindByIdentity(ctx context.Context, key string) (*domain.Principal, error) {
	var doc principalDoc
	if err := r.coll.FindOne(ctx, bson.M{"identity_keys": key}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("find principal by identity: %w", err)
	}
	return docToPrincipal(&doc), nil
}

// EnsureByIdentity is a single atomic insert-if-absent: a filtered upsert
// with $setOnInsert. When two first-time resolutions race, one insert
// wins; the loser either matches the winner's document directly or hits
// the unique index and re-reads it.
func (r *PrincipalRepository) EnsureByIdentity(ctx context.Context, identity domain.ExternalIdentity) (*domain.Principal, error) {
	now := time.Now().UTC().Unix()
	update := bson.M{
		"$setOnInsert": bson.M{
			"identity_keys": []string{identity.Key},
			"roles":         []string{string(domain.RoleUser)},
			"username":      identity.Username,
			"created_at":    now,
			"updated_at":    now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc principalDoc
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"identity_keys": identity.Key}, update, opts).Decode(&doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return r.FindByIdentity(ctx, identity.Key)
		}
		return nil, fmt.Errorf("ensure principal: %w", err)
	}
	return docToPrincipal(&doc), nil
}

// LinkIdentity binds an extra identity key to the principal. The unique
// index turns a concurrent bind of the same key elsewhere into a
// conflict instead of a silent merge.
func (r *PrincipalRepository) LinkIdentity(ctx context.Context, principalID string, identity domain.ExternalIdentity) (*domain.Principal, error) {
	bound, err := r.FindByIdentity(ctx, identity.Key)
	if err != nil && err != domain.ErrPrincipalNotFound {
		return nil, err
	}
	if bound != nil {
		if bound.ID == principalID {
			return bound, nil
		}
		return nil, domain.ErrIdentityConflict
	}

	oid, err := primitive.ObjectIDFromHex(principalID)
	if err != nil {
		return nil, domain.ErrPrincipalNotFound
	}

	update := bson.M{
		"$addToSet": bson.M{"identity_keys": identity.Key},
		"$set":      bson.M{"updated_at": time.Now().UTC().Unix()},
	}
	res, err := r.coll.UpdateByID(ctx, oid, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrIdentityConflict
		}
		return nil, fmt.Errorf("link identity: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, domain.ErrPrincipalNotFound
	}
	return r.FindByID(ctx, principalID)
}

func (r *PrincipalRepository) SetPasswordHash(ctx context.Context, principalID, hash string) error {
	oid, err := primitive.ObjectIDFromHex(principalID)
	if err != nil {
		return domain.ErrPrincipalNotFound
	}

	update := bson.M{"$set": bson.M{
		"password_hash": hash,
		"updated_at":    time.Now().UTC().Unix(),
	}}
	res, err := r.coll.UpdateByID(ctx, oid, update)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrPrincipalNotFound
	}
	return nil
}

// SyncOwnerRoles reconciles owner assignments in one ordered bulk write:
// grant owner to configured principals lacking it, revoke it everywhere
// else. Each document update is atomic, so no reader ever sees a
// principal with a half-applied role set, and user/admin roles are
// untouched.
func (r *PrincipalRepository) SyncOwnerRoles(ctx context.Context, configuredKeys []string) error {
	if configuredKeys == nil {
		configuredKeys = []string{}
	}
	owner := string(domain.RoleOwner)

	grant := mongo.NewUpdateManyModel().
		SetFilter(bson.M{
			"identity_keys": bson.M{"$in": configuredKeys},
			"roles":         bson.M{"$ne": owner},
		}).
		SetUpdate(bson.M{"$addToSet": bson.M{"roles": owner}})

	revoke := mongo.NewUpdateManyModel().
		SetFilter(bson.M{
			"identity_keys": bson.M{"$nin": configuredKeys},
			"roles":         owner,
		}).
		SetUpdate(bson.M{"$pull": bson.M{"roles": owner}})

	_, err := r.coll.BulkWrite(ctx, []mongo.WriteModel{grant, revoke}, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return fmt.Errorf("owner role sync: %w", err)
	}
	return nil
}

func docToPrincipal(doc *principalDoc) *domain.Principal {
	roles := make([]domain.Role, 0, len(doc.Roles))
	for _, s := range doc.Roles {
		if r, ok := domain.ParseRole(s); ok {
			roles = append(roles, r)
		}
	}
	return &domain.Principal{
		ID:           doc.ID.Hex(),
		IdentityKeys: doc.IdentityKeys,
		Roles:        roles,
		Username:     doc.Username,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    unixToTime(doc.CreatedAt),
		UpdatedAt:    unixToTime(doc.UpdatedAt),
	}
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
