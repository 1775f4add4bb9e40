package traffic

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"senderguard/internal/blocklist/models"
	"senderguard/pkg/platform/sentinel"
)

// Finder is the subset of *mongo.Collection the reader uses.
type Finder interface {
	Find(ctx context.Context, filter any, opts ...*options.FindOptions) (*mongo.Cursor, error)
}

// MongoReader reads traffic documents shaped {senderName, providerId, providerName}.
type MongoReader struct {
	coll Finder
}

func NewMongo(coll Finder) *MongoReader {
	return &MongoReader{coll: coll}
}

// FindBySenderNames issues one $in query for the whole name set.
func (r *MongoReader) FindBySenderNames(ctx context.Context, senderNames []string) ([]models.TrafficRecord, error) {
	if len(senderNames) == 0 {
		return []models.TrafficRecord{}, nil
	}
	filter := bson.M{"senderName": bson.M{"$in": senderNames}}
	opts := options.Find().SetProjection(bson.M{"_id": 0, "senderName": 1, "providerId": 1, "providerName": 1})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find sender traffic: %w", classify(err))
	}
	defer cursor.Close(ctx)

	out := make([]models.TrafficRecord, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode sender traffic: %w", classify(err))
	}
	return out, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), mongo.IsTimeout(err):
		return fmt.Errorf("%w: %w", sentinel.ErrTimeout, err)
	case mongo.IsNetworkError(err):
		return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	return err
}
