package store

import (
	"context"
	"os"
	"testing"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/civitas-labs/dispatch-api/schema"
)

// DispatchStoreTestSuite runs the durable store against live databases.
// It is skipped unless DISPATCH_TEST_PG_CONN and DISPATCH_TEST_MONGO_CONN
// point at disposable test instances.
type DispatchStoreTestSuite struct {
	suite.Suite
	pgConn    string
	mongoConn string

	ormDB       *gorm.DB
	mongoClient *mongo.Client
	store       *DispatchStore
}

func (s *DispatchStoreTestSuite) SetupSuite() {
	ormDB, err := gorm.Open("postgres", s.pgConn)
	if err != nil {
		s.T().Fatalf("connect postgres with error: %s", err)
	}

	opts := options.Client().ApplyURI(s.mongoConn)
	mongoClient, err := mongo.NewClient(opts)
	if err != nil {
		s.T().Fatalf("create mongo client with error: %s", err)
	}
	if err := mongoClient.Connect(context.Background()); err != nil {
		s.T().Fatalf("connect mongo database with error: %s", err)
	}

	ormDB.DropTableIfExists(&schema.ChatMessage{}, &schema.HelpRequest{})

	s.ormDB = ormDB
	s.mongoClient = mongoClient
	s.store = NewDispatchStore(ormDB, NewMongoStore(mongoClient, "test-dispatch"))

	if err := s.store.Migrate(); err != nil {
		s.T().Fatal(err)
	}
}

func (s *DispatchStoreTestSuite) TearDownSuite() {
	if s.store != nil {
		s.store.Close()
	}
}

func (s *DispatchStoreTestSuite) TestRequestLifecycle() {
	req, err := s.store.CreateRequest("citizen-pg-1", "Asha", "+91 98450 12345", "", schema.Location{Latitude: 12.97, Longitude: 77.59})
	s.Require().NoError(err)
	s.Equal(schema.StatusPending, req.Status)

	s.NoError(s.store.AcceptRequest(req.ID, "officer-pg-1"))
	s.Equal(ErrRequestNotPending, s.store.AcceptRequest(req.ID, "officer-pg-2"))

	got, err := s.store.GetRequest(req.ID)
	s.NoError(err)
	s.Equal(schema.StatusAccepted, got.Status)
	s.Equal("officer-pg-1", got.AssignedOfficer)

	s.NoError(s.store.CompleteRequest(req.ID, "officer-pg-1"))
	s.Equal(ErrRequestNotAccepted, s.store.CompleteRequest(req.ID, "officer-pg-1"))
}

func (s *DispatchStoreTestSuite) TestMessageSequence() {
	req, err := s.store.CreateRequest("citizen-pg-2", "Asha", "+91 98450 12345", "", schema.Location{Latitude: 12.97, Longitude: 77.59})
	s.Require().NoError(err)

	m0, err := s.store.AppendMessage(req.ID, "C", "help")
	s.Require().NoError(err)
	m1, err := s.store.AppendMessage(req.ID, "O", "on our way")
	s.Require().NoError(err)
	s.Equal(uint64(0), m0.Sequence)
	s.Equal(uint64(1), m1.Sequence)

	msgs, err := s.store.ListMessages(req.ID)
	s.NoError(err)
	s.Require().Len(msgs, 2)
	s.Equal("help", msgs[0].Message)

	_, err = s.store.AppendMessage(999999, "C", "help")
	s.Equal(ErrRequestNotFound, err)
}

func TestDispatchStoreTestSuite(t *testing.T) {
	pgConn := os.Getenv("DISPATCH_TEST_PG_CONN")
	mongoConn := os.Getenv("DISPATCH_TEST_MONGO_CONN")
	if pgConn == "" || mongoConn == "" {
		t.Skip("DISPATCH_TEST_PG_CONN / DISPATCH_TEST_MONGO_CONN not set")
	}

	suite.Run(t, &DispatchStoreTestSuite{pgConn: pgConn, mongoConn: mongoConn})
}
