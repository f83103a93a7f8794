package store

import (
	"github.com/jinzhu/gorm"

	"github.com/civitas-labs/dispatch-api/schema"
)

// DispatchStore is the durable implementation of DispatchCore. Help
// requests and chat messages live in Postgres; profiles live in mongo.
type DispatchStore struct {
	ormDB *gorm.DB
	mongo MongoStore
}

func NewDispatchStore(ormDB *gorm.DB, mongo MongoStore) *DispatchStore {
	return &DispatchStore{
		ormDB: ormDB,
		mongo: mongo,
	}
}

// Migrate creates the request and message tables. The composite primary
// key on chat_messages makes a duplicated sequence impossible at the
// database even if the serialization in AppendMessage were bypassed.
func (s *DispatchStore) Migrate() error {
	if err := s.ormDB.AutoMigrate(&schema.HelpRequest{}, &schema.ChatMessage{}).Error; err != nil {
		return err
	}

	return s.ormDB.Model(&schema.ChatMessage{}).
		AddForeignKey("request_id", "help_requests(id)", "RESTRICT", "RESTRICT").Error
}

// Ping is to check the storage health status
func (s *DispatchStore) Ping() error {
	if err := s.ormDB.DB().Ping(); err != nil {
		return err
	}
	return s.mongo.Ping()
}

// Close closes all db connections
func (s *DispatchStore) Close() {
	_ = s.ormDB.Close()
	s.mongo.Close()
}

func (s *DispatchStore) CreateProfile(principal, name, mobile string, role schema.UserRole) (*schema.UserProfile, error) {
	return s.mongo.CreateProfile(principal, name, mobile, role)
}

func (s *DispatchStore) GetProfile(principal string) (*schema.UserProfile, error) {
	return s.mongo.GetProfile(principal)
}

func (s *DispatchStore) UpdateProfile(principal, name, mobile string) error {
	return s.mongo.UpdateProfile(principal, name, mobile)
}

func (s *DispatchStore) AssignRole(principal string, role schema.UserRole) error {
	return s.mongo.AssignRole(principal, role)
}

func (s *DispatchStore) ListProfiles() ([]schema.UserProfile, error) {
	return s.mongo.ListProfiles()
}
