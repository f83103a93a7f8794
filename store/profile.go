package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/civitas-labs/dispatch-api/schema"
)

func (m *mongoDB) profileCollection() *mongo.Collection {
	return m.client.Database(m.database).Collection(schema.ProfileCollection)
}

// CreateProfile registers a principal. The very first profile in the
// system is granted the admin role so there is always one principal able
// to manage role assignments.
func (m *mongoDB) CreateProfile(principal, name, mobile string, role schema.UserRole) (*schema.UserProfile, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	c := m.profileCollection()

	count, err := c.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	if count == 0 {
		role = schema.RoleAdmin
	}

	profile := schema.UserProfile{
		Principal: principal,
		Name:      name,
		Mobile:    mobile,
		Role:      role,
		CreatedAt: time.Now(),
	}

	if _, err := c.InsertOne(ctx, profile); err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrAccountTaken
		}
		return nil, err
	}

	return &profile, nil
}

func (m *mongoDB) GetProfile(principal string) (*schema.UserProfile, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var profile schema.UserProfile
	err := m.profileCollection().FindOne(ctx, bson.M{"principal": principal}).Decode(&profile)
	if err == mongo.ErrNoDocuments {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile updates the contact fields of a profile. The role field
// is deliberately out of reach here; it only changes through AssignRole.
func (m *mongoDB) UpdateProfile(principal, name, mobile string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	result, err := m.profileCollection().UpdateOne(ctx,
		bson.M{"principal": principal},
		bson.M{"$set": bson.M{"name": name, "mobile": mobile}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (m *mongoDB) AssignRole(principal string, role schema.UserRole) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	result, err := m.profileCollection().UpdateOne(ctx,
		bson.M{"principal": principal},
		bson.M{"$set": bson.M{"role": role}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (m *mongoDB) ListProfiles() ([]schema.UserProfile, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	cursor, err := m.profileCollection().Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	profiles := []schema.UserProfile{}
	if err := cursor.All(ctx, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

func isDuplicateKeyError(err error) bool {
	if we, ok := err.(mongo.WriteException); ok {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	return false
}
