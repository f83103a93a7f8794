package schema

import (
	"fmt"
	"time"
)

// RequestStatus is the lifecycle state of a help request. The only legal
// movement is pending -> accepted -> resolved; resolved is terminal.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusAccepted RequestStatus = "accepted"
	StatusResolved RequestStatus = "resolved"
)

// ParseRequestStatus validates a status string coming from the outside.
func ParseRequestStatus(s string) (RequestStatus, error) {
	switch RequestStatus(s) {
	case StatusPending, StatusAccepted, StatusResolved:
		return RequestStatus(s), nil
	}
	return "", fmt.Errorf("unknown request status: %q", s)
}

// Location - a latitude/longitude pair captured from the citizen's device
type Location struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
}

// Valid reports whether the coordinates are on the globe.
func (l Location) Valid() bool {
	return l.Latitude >= -90 && l.Latitude <= 90 &&
		l.Longitude >= -180 && l.Longitude <= 180
}

// HelpRequest is an SOS alert tracked through its response lifecycle.
//
// CitizenName, CitizenMobile and Address are snapshots taken at creation
// time so responders see the contact details as of the alert, even if the
// profile changes later.
type HelpRequest struct {
	ID               uint64        `json:"id" gorm:"primary_key;auto_increment"`
	Status           RequestStatus `json:"status" gorm:"type:varchar(16)" sql:"default:'pending'"`
	CitizenPrincipal string        `json:"citizen_principal"`
	CitizenName      string        `json:"citizen_name"`
	CitizenMobile    string        `json:"citizen_mobile"`
	Location         Location      `json:"location" gorm:"embedded;embedded_prefix:location_"`
	Address          string        `json:"address"`
	AssignedOfficer  string        `json:"assigned_officer,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}
