package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Protocol-Lattice/memory-mcp/src/memory/model"
)

// MongoStore keeps memories in one collection and searches them with Atlas
// $vectorSearch. The Atlas vector index must declare user_id as a filter
// field; it is managed outside this process.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	index      string
}

const (
	mongoCloseTimeout = 5 * time.Second
	minNumCandidates  = 100
)

func NewMongoStore(ctx context.Context, uri, database, collection, index string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if database == "" {
		return nil, errors.New("mongo database name is required")
	}
	if collection == "" {
		return nil, errors.New("mongo collection name is required")
	}
	if index == "" {
		index = "memories_vector_index"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
		index:      index,
	}, nil
}

func (ms *MongoStore) StoreMemory(ctx context.Context, rec model.MemoryRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	_, err := ms.collection.InsertOne(ctx, newMongoMemoryDocument(rec))
	return err
}

func (ms *MongoStore) SearchMemory(ctx context.Context, userID string, queryEmbedding []float32, limit int) ([]model.MemoryRecord, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	cursor, err := ms.collection.Aggregate(ctx, searchPipeline(ms.index, userID, queryEmbedding, limit))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []model.MemoryRecord
	for cursor.Next(ctx) {
		var doc struct {
			mongoMemoryDocument `bson:",inline"`
			Score               float64 `bson:"score"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		rec := doc.toRecord()
		rec.Score = doc.Score
		records = append(records, rec)
	}
	return records, cursor.Err()
}

// searchPipeline pre-filters the ANN search by owner, so other users'
// vectors never reach the candidate set.
func searchPipeline(index, userID string, queryEmbedding []float32, limit int) mongo.Pipeline {
	return mongo.Pipeline{
		{
			{Key: "$vectorSearch", Value: bson.D{
				{Key: "index", Value: index},
				{Key: "path", Value: "embedding"},
				{Key: "queryVector", Value: float64Embedding(queryEmbedding)},
				{Key: "numCandidates", Value: int64(max(limit*10, minNumCandidates))},
				{Key: "limit", Value: int64(limit)},
				{Key: "filter", Value: bson.D{{Key: "user_id", Value: userID}}},
			}},
		},
		{
			{Key: "$addFields", Value: bson.D{
				{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
			}},
		},
		{
			{Key: "$project", Value: bson.D{{Key: "embedding", Value: 0}}},
		},
	}
}

func (ms *MongoStore) Iterate(ctx context.Context, userID string, fn func(model.MemoryRecord) bool) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetProjection(bson.D{{Key: "embedding", Value: 0}})
	cursor, err := ms.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	for cursor.Next(ctx) {
		var doc mongoMemoryDocument
		if err := cursor.Decode(&doc); err != nil {
			return err
		}
		if cont := fn(doc.toRecord()); !cont {
			break
		}
	}
	return cursor.Err()
}

func (ms *MongoStore) DeleteUser(ctx context.Context, userID string) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	res, err := ms.collection.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}

func (ms *MongoStore) Count(ctx context.Context, userID string) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	count, err := ms.collection.CountDocuments(ctx, bson.M{"user_id": userID})
	return int(count), err
}

// CreateSchema ensures the regular per-user index used by Iterate, Count and
// DeleteUser.
func (ms *MongoStore) CreateSchema(ctx context.Context) error {
	_, err := ms.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}},
		Options: options.Index().SetName("user_created_at"),
	})
	if err != nil {
		return fmt.Errorf("mongo create index: %w", err)
	}
	return nil
}

// Close releases the underlying MongoDB client.
func (ms *MongoStore) Close() error {
	if ms == nil || ms.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoCloseTimeout)
	defer cancel()
	return ms.client.Disconnect(ctx)
}

type mongoMemoryDocument struct {
	ID        string         `bson:"_id"`
	UserID    string         `bson:"user_id"`
	Content   string         `bson:"content"`
	Hash      string         `bson:"hash"`
	Metadata  map[string]any `bson:"metadata,omitempty"`
	Embedding []float64      `bson:"embedding,omitempty"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

func newMongoMemoryDocument(rec model.MemoryRecord) mongoMemoryDocument {
	return mongoMemoryDocument{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Content:   rec.Content,
		Hash:      rec.Hash,
		Metadata:  model.CloneMetadata(rec.Metadata),
		Embedding: float64Embedding(rec.Embedding),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func (doc mongoMemoryDocument) toRecord() model.MemoryRecord {
	return model.MemoryRecord{
		ID:        doc.ID,
		UserID:    doc.UserID,
		Content:   doc.Content,
		Hash:      doc.Hash,
		Metadata:  doc.Metadata,
		Embedding: float32Embedding(doc.Embedding),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func float64Embedding(vec []float32) []float64 {
	if len(vec) == 0 {
		return nil
	}
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}

func float32Embedding(vec []float64) []float32 {
	if len(vec) == 0 {
		return nil
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}
