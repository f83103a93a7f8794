package store

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/civitas-labs/dispatch-api/schema"
)

const (
	mongoLogPrefix = "mongo"
	defaultTimeout = 5 * time.Second
)

// MongoStore - interface for mongodb operations
type MongoStore interface {
	ProfileOperator
	Closer
	Pinger
}

// ProfileOperator - profile storage operations
type ProfileOperator interface {
	CreateProfile(principal, name, mobile string, role schema.UserRole) (*schema.UserProfile, error)
	GetProfile(principal string) (*schema.UserProfile, error)
	UpdateProfile(principal, name, mobile string) error
	AssignRole(principal string, role schema.UserRole) error
	ListProfiles() ([]schema.UserProfile, error)
}

// Closer - close db connection
type Closer interface {
	Close()
}

// Pinger - ping database
type Pinger interface {
	Ping() error
}

type mongoDB struct {
	client   *mongo.Client
	database string
}

// Ping - ping mongo db
func (m *mongoDB) Ping() error {
	return m.client.Ping(context.Background(), nil)
}

// Close - close mongo db connections
func (m *mongoDB) Close() {
	log.WithField("prefix", mongoLogPrefix).Info("closing mongo db connections")
	_ = m.client.Disconnect(context.Background())
}

// NewMongoStore - return mongo db operations
func NewMongoStore(client *mongo.Client, database string) MongoStore {
	return &mongoDB{
		client:   client,
		database: database,
	}
}
