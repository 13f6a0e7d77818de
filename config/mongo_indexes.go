package config

import (
	"context"
	"errors"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureMongoIndexes() error {
	if MongoClient == nil {
		return errors.New("MongoClient is nil; call InitMongo() first")
	}

	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "intervue"
	}
	db := MongoClient.Database(dbName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// capture_bursts indexes
	bursts := db.Collection("capture_bursts")
	_, err := bursts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		// 1) TTL index: expire at ExpiresAt (must be Date)
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().
				SetName("ttl_expires_at").
				SetExpireAfterSeconds(0),
		},
		// 2) One burst per question per interview
		{
			Keys: bson.D{{Key: "interview_id", Value: 1}, {Key: "question_number", Value: 1}},
			Options: options.Index().
				SetName("uniq_interview_question").
				SetUnique(true),
		},
		// 3) Query helper
		{
			Keys:    bson.D{{Key: "interview_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("by_interview_ts"),
		},
	})
	return err
}
