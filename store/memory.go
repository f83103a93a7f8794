package store

import (
	"sync"
	"time"

	"github.com/civitas-labs/dispatch-api/schema"
)

// MemoryStore is a process-lifetime implementation of DispatchCore. It is
// the store behind the dev mode (no database configured) and the test
// suites. Entities are never evicted.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   uint64
	requests map[uint64]*requestRecord
	order    []uint64

	profileMu sync.RWMutex
	profiles  map[string]*schema.UserProfile
	enrolled  []string
}

// requestRecord keeps a request together with its message log. logMu
// serializes appends per request only; appends to different requests
// take different locks and do not contend.
type requestRecord struct {
	request schema.HelpRequest

	logMu    sync.Mutex
	messages []schema.ChatMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: make(map[uint64]*requestRecord),
		profiles: make(map[string]*schema.UserProfile),
	}
}

func (s *MemoryStore) Ping() error { return nil }

func (s *MemoryStore) Close() {}

func (s *MemoryStore) CreateProfile(principal, name, mobile string, role schema.UserRole) (*schema.UserProfile, error) {
	s.profileMu.Lock()
	defer s.profileMu.Unlock()

	if _, ok := s.profiles[principal]; ok {
		return nil, ErrAccountTaken
	}

	// first registered principal bootstraps the admin role
	if len(s.profiles) == 0 {
		role = schema.RoleAdmin
	}

	profile := &schema.UserProfile{
		Principal: principal,
		Name:      name,
		Mobile:    mobile,
		Role:      role,
		CreatedAt: time.Now(),
	}
	s.profiles[principal] = profile
	s.enrolled = append(s.enrolled, principal)

	p := *profile
	return &p, nil
}

func (s *MemoryStore) GetProfile(principal string) (*schema.UserProfile, error) {
	s.profileMu.RLock()
	defer s.profileMu.RUnlock()

	profile, ok := s.profiles[principal]
	if !ok {
		return nil, ErrAccountNotFound
	}
	p := *profile
	return &p, nil
}

func (s *MemoryStore) UpdateProfile(principal, name, mobile string) error {
	s.profileMu.Lock()
	defer s.profileMu.Unlock()

	profile, ok := s.profiles[principal]
	if !ok {
		return ErrAccountNotFound
	}
	profile.Name = name
	profile.Mobile = mobile
	return nil
}

func (s *MemoryStore) AssignRole(principal string, role schema.UserRole) error {
	s.profileMu.Lock()
	defer s.profileMu.Unlock()

	profile, ok := s.profiles[principal]
	if !ok {
		return ErrAccountNotFound
	}
	profile.Role = role
	return nil
}

func (s *MemoryStore) ListProfiles() ([]schema.UserProfile, error) {
	s.profileMu.RLock()
	defer s.profileMu.RUnlock()

	profiles := make([]schema.UserProfile, 0, len(s.enrolled))
	for _, principal := range s.enrolled {
		profiles = append(profiles, *s.profiles[principal])
	}
	return profiles, nil
}

func (s *MemoryStore) CreateRequest(principal, name, mobile, address string, loc schema.Location) (*schema.HelpRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	req := schema.HelpRequest{
		ID:               s.nextID,
		Status:           schema.StatusPending,
		CitizenPrincipal: principal,
		CitizenName:      name,
		CitizenMobile:    mobile,
		Location:         loc,
		Address:          address,
		CreatedAt:        time.Now(),
	}

	s.requests[req.ID] = &requestRecord{request: req}
	s.order = append(s.order, req.ID)

	r := req
	return &r, nil
}

func (s *MemoryStore) GetRequest(requestID uint64) (*schema.HelpRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.requests[requestID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	req := rec.request
	return &req, nil
}

func (s *MemoryStore) ListRequests() ([]schema.HelpRequest, error) {
	return s.list(func(schema.HelpRequest) bool { return true })
}

func (s *MemoryStore) ListRequestsByStatus(status schema.RequestStatus) ([]schema.HelpRequest, error) {
	return s.list(func(r schema.HelpRequest) bool { return r.Status == status })
}

func (s *MemoryStore) ListRequestsByPrincipal(principal string) ([]schema.HelpRequest, error) {
	return s.list(func(r schema.HelpRequest) bool { return r.CitizenPrincipal == principal })
}

// list snapshots matching requests in id order under the read lock, so a
// racing write is seen either entirely or not at all.
func (s *MemoryStore) list(match func(schema.HelpRequest) bool) ([]schema.HelpRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reqs := []schema.HelpRequest{}
	for _, id := range s.order {
		if req := s.requests[id].request; match(req) {
			reqs = append(reqs, req)
		}
	}
	return reqs, nil
}

// AcceptRequest is the check-then-set transition pending -> accepted,
// done under the write lock as one indivisible step. Of N concurrent
// accepts exactly one observes the pending status.
func (s *MemoryStore) AcceptRequest(requestID uint64, officer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.requests[requestID]
	if !ok {
		return ErrRequestNotFound
	}
	if rec.request.Status != schema.StatusPending {
		return ErrRequestNotPending
	}

	rec.request.Status = schema.StatusAccepted
	rec.request.AssignedOfficer = officer
	return nil
}

// CompleteRequest is the transition accepted -> resolved. The caller is
// not required to be the assigned officer; any officer can close out.
func (s *MemoryStore) CompleteRequest(requestID uint64, officer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.requests[requestID]
	if !ok {
		return ErrRequestNotFound
	}
	if rec.request.Status != schema.StatusAccepted {
		return ErrRequestNotAccepted
	}

	rec.request.Status = schema.StatusResolved
	return nil
}

// AppendMessage appends to a request's log, in any request state. The
// record is resolved under the read lock (requests are never deleted, so
// the pointer stays valid) and the append itself serializes on the
// per-request log lock.
func (s *MemoryStore) AppendMessage(requestID uint64, sender, message string) (*schema.ChatMessage, error) {
	s.mu.RLock()
	rec, ok := s.requests[requestID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrRequestNotFound
	}

	rec.logMu.Lock()
	defer rec.logMu.Unlock()

	msg := schema.ChatMessage{
		RequestID: requestID,
		Sequence:  uint64(len(rec.messages)),
		Sender:    sender,
		Message:   message,
		CreatedAt: time.Now(),
	}
	rec.messages = append(rec.messages, msg)

	m := msg
	return &m, nil
}

func (s *MemoryStore) ListMessages(requestID uint64) ([]schema.ChatMessage, error) {
	s.mu.RLock()
	rec, ok := s.requests[requestID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrRequestNotFound
	}

	rec.logMu.Lock()
	defer rec.logMu.Unlock()

	msgs := make([]schema.ChatMessage, len(rec.messages))
	copy(msgs, rec.messages)
	return msgs, nil
}
