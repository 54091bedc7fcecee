package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"reposter-bot/internal/database/models"

	"go.mongodb.org/mongo-driver/mongo"
)

const postLogCollectionName = "post_logs"

// MongoLogger implements the PostLogger interface using MongoDB. It keeps
// an audit trail of republished posts; it is not the dedup store, that is
// the history snapshot file.
type MongoLogger struct {
	db *mongo.Database
}

// NewMongoLogger creates and returns a new MongoLogger instance.
// It requires a connected MongoDB database instance.
func NewMongoLogger(db *mongo.Database) *MongoLogger {
	return &MongoLogger{db: db}
}

// LogPublishedPost writes a log entry for a successfully republished post.
// If the database insertion fails, it logs an error with context and returns the error.
func (m *MongoLogger) LogPublishedPost(logEntry models.PostLog) error {
	collection := m.db.Collection(postLogCollectionName)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := collection.InsertOne(ctx, logEntry)
	if err != nil {
		wrappedErr := fmt.Errorf("failed to insert post log into collection '%s': %w", postLogCollectionName, err)
		log.Printf("%v", wrappedErr)
		return wrappedErr
	}
	return nil
}
