package connector

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.sirus.dev/p2p-comm/duochat/pkg/store"
)

// MongoConfig define mongo connection configuration structure
type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
	Timeout  int    `mapstructure:"timeout"`
}

// DefaultMongoConfig is default mongo connection configuration
var DefaultMongoConfig = &MongoConfig{
	URI:      "mongodb://localhost:27017",
	Database: "duochat",
	Timeout:  10,
}

// ConnectToMongo will connect to mongo server and wrap the database
// as a document store
func ConnectToMongo(config *MongoConfig) (store.Store, error) {
	ctx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(config.Timeout)*time.Second,
	)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, err
	}
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, err
	}
	return store.NewMongo(client.Database(config.Database)), nil
}

// ConnectToMemory will create an in-memory document store,
// used on test suites
func ConnectToMemory() store.Store {
	return store.NewMemory()
}
