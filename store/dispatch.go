package store

import (
	"fmt"

	"github.com/civitas-labs/dispatch-api/schema"
)

var (
	ErrRequestNotFound    = fmt.Errorf("help request not found")
	ErrRequestNotPending  = fmt.Errorf("help request is no longer pending")
	ErrRequestNotAccepted = fmt.Errorf("help request is not accepted")
	ErrAccountTaken       = fmt.Errorf("this principal has already been registered")
	ErrAccountNotFound    = fmt.Errorf("account not found")
)

// DispatchCore is the authoritative dispatch datastore: the help request
// lifecycle, the per-request message log and the registered profiles.
type DispatchCore interface {
	Ping() error
	Close()

	// Profile
	CreateProfile(principal, name, mobile string, role schema.UserRole) (*schema.UserProfile, error)
	GetProfile(principal string) (*schema.UserProfile, error)
	UpdateProfile(principal, name, mobile string) error
	AssignRole(principal string, role schema.UserRole) error
	ListProfiles() ([]schema.UserProfile, error)

	// Lifecycle
	CreateRequest(principal, name, mobile, address string, loc schema.Location) (*schema.HelpRequest, error)
	GetRequest(requestID uint64) (*schema.HelpRequest, error)
	ListRequests() ([]schema.HelpRequest, error)
	ListRequestsByStatus(status schema.RequestStatus) ([]schema.HelpRequest, error)
	ListRequestsByPrincipal(principal string) ([]schema.HelpRequest, error)
	AcceptRequest(requestID uint64, officer string) error
	CompleteRequest(requestID uint64, officer string) error

	// Message log
	AppendMessage(requestID uint64, sender, message string) (*schema.ChatMessage, error)
	ListMessages(requestID uint64) ([]schema.ChatMessage, error)
}
