package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/davicafu/phoneregistry/internal/report/domain"
)

// ProjectionRepoMongoDB guarda pertenencias y contadores en dos colecciones. Las
// escrituras van en una transacción, por lo que Mongo debe correr como replica set.
type ProjectionRepoMongoDB struct {
	client      *mongo.Client
	memberships *mongo.Collection
	tallies     *mongo.Collection
	now         func() time.Time
}

func NewProjectionRepoMongoDB(ctx context.Context, client *mongo.Client, dbName string) (*ProjectionRepoMongoDB, error) {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}

	db := client.Database(dbName)
	return &ProjectionRepoMongoDB{
		client:      client,
		memberships: db.Collection("location_memberships"),
		tallies:     db.Collection("location_tallies"),
		now:         time.Now,
	}, nil
}

// --- Structs de BSON para el mapeo ---

type mongoMembership struct {
	ContactID   string     `bson:"_id"`
	PersonID    string     `bson:"personId"`
	LocationKey string     `bson:"locationKey"`
	Location    string     `bson:"location"`
	DeletedAt   *time.Time `bson:"deletedAt,omitempty"`
}

type mongoTally struct {
	Key       string    `bson:"_id"`
	Location  string    `bson:"location"`
	Count     int       `bson:"count"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func (r *ProjectionRepoMongoDB) ApplyMembership(ctx context.Context, contactID uuid.UUID, next *domain.LocationMembership) ([]domain.TallyDelta, error) {
	session, err := r.client.StartSession()
	if err != nil {
		return nil, err
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		// 1. Pertenencia previa
		prev, err := r.findMembership(sessCtx, contactID)
		if err != nil {
			return nil, err
		}
		plan := domain.PlanMembershipWrite(prev, next)
		if plan.Skip {
			return []domain.TallyDelta(nil), nil
		}

		// 2. Sustituir o borrar la pertenencia (las lápidas se guardan)
		if plan.Row == nil {
			_, err = r.memberships.DeleteOne(sessCtx, bson.M{"_id": contactID.String()})
		} else {
			doc := mongoMembership{
				ContactID:   contactID.String(),
				PersonID:    plan.Row.PersonID.String(),
				LocationKey: plan.Row.LocationKey,
				Location:    plan.Row.Location,
				DeletedAt:   plan.Row.DeletedAt,
			}
			_, err = r.memberships.ReplaceOne(sessCtx, bson.M{"_id": doc.ContactID}, doc, options.Replace().SetUpsert(true))
		}
		if err != nil {
			return nil, fmt.Errorf("failed to write membership: %w", err)
		}

		// 3. Ajustar contadores
		for _, d := range plan.Deltas {
			if err := r.applyDelta(sessCtx, d); err != nil {
				return nil, err
			}
		}
		return plan.Deltas, nil
	})
	if err != nil {
		return nil, err
	}
	deltas, _ := result.([]domain.TallyDelta)
	return deltas, nil
}

func (r *ProjectionRepoMongoDB) findMembership(ctx context.Context, contactID uuid.UUID) (*domain.LocationMembership, error) {
	var doc mongoMembership
	err := r.memberships.FindOne(ctx, bson.M{"_id": contactID.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	personID, err := uuid.Parse(doc.PersonID)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID in membership document: %w", err)
	}
	m := &domain.LocationMembership{
		ContactID:   contactID,
		PersonID:    personID,
		LocationKey: doc.LocationKey,
		Location:    doc.Location,
	}
	if doc.DeletedAt != nil {
		at := doc.DeletedAt.UTC()
		m.DeletedAt = &at
	}
	return m, nil
}

func (r *ProjectionRepoMongoDB) applyDelta(ctx context.Context, d domain.TallyDelta) error {
	now := r.now().UTC()
	if d.Delta > 0 {
		_, err := r.tallies.UpdateOne(ctx,
			bson.M{"_id": d.Key},
			bson.M{
				"$inc":         bson.M{"count": d.Delta},
				"$set":         bson.M{"updatedAt": now},
				"$setOnInsert": bson.M{"location": d.Location},
			},
			options.Update().SetUpsert(true),
		)
		return err
	}

	if _, err := r.tallies.UpdateOne(ctx,
		bson.M{"_id": d.Key, "count": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"count": d.Delta}, "$set": bson.M{"updatedAt": now}},
	); err != nil {
		return err
	}
	_, err := r.tallies.DeleteOne(ctx, bson.M{"_id": d.Key, "count": bson.M{"$lte": 0}})
	return err
}

func (r *ProjectionRepoMongoDB) ListTallies(ctx context.Context) ([]domain.LocationTally, error) {
	cursor, err := r.tallies.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []mongoTally
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	tallies := make([]domain.LocationTally, 0, len(docs))
	for _, d := range docs {
		tallies = append(tallies, domain.LocationTally{Key: d.Key, Location: d.Location, Count: d.Count, UpdatedAt: d.UpdatedAt})
	}
	return tallies, nil
}

var _ domain.ProjectionStore = (*ProjectionRepoMongoDB)(nil)
