package store

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/civitas-labs/dispatch-api/schema"
)

type MemoryStoreTestSuite struct {
	suite.Suite
	store *MemoryStore
}

func (s *MemoryStoreTestSuite) SetupTest() {
	s.store = NewMemoryStore()
}

func (s *MemoryStoreTestSuite) mustCreate(principal string) *schema.HelpRequest {
	req, err := s.store.CreateRequest(principal, "Asha", "+91 98450 12345", "", schema.Location{Latitude: 12.97, Longitude: 77.59})
	s.Require().NoError(err)
	return req
}

func (s *MemoryStoreTestSuite) TestLifecycleTransitions() {
	req := s.mustCreate("citizen-1")
	s.Equal(uint64(1), req.ID)
	s.Equal(schema.StatusPending, req.Status)
	s.Empty(req.AssignedOfficer)

	s.NoError(s.store.AcceptRequest(req.ID, "officer-1"))

	got, err := s.store.GetRequest(req.ID)
	s.NoError(err)
	s.Equal(schema.StatusAccepted, got.Status)
	s.Equal("officer-1", got.AssignedOfficer)

	// accepted is not pending anymore
	s.Equal(ErrRequestNotPending, s.store.AcceptRequest(req.ID, "officer-2"))

	s.NoError(s.store.CompleteRequest(req.ID, "officer-1"))

	got, err = s.store.GetRequest(req.ID)
	s.NoError(err)
	s.Equal(schema.StatusResolved, got.Status)
	s.Equal("officer-1", got.AssignedOfficer)

	// resolved is terminal
	s.Equal(ErrRequestNotAccepted, s.store.CompleteRequest(req.ID, "officer-1"))
	s.Equal(ErrRequestNotPending, s.store.AcceptRequest(req.ID, "officer-2"))
}

func (s *MemoryStoreTestSuite) TestCompleteBeforeAccept() {
	req := s.mustCreate("citizen-1")
	s.Equal(ErrRequestNotAccepted, s.store.CompleteRequest(req.ID, "officer-1"))
}

func (s *MemoryStoreTestSuite) TestUnknownRequest() {
	_, err := s.store.GetRequest(42)
	s.Equal(ErrRequestNotFound, err)
	s.Equal(ErrRequestNotFound, s.store.AcceptRequest(42, "officer-1"))
	s.Equal(ErrRequestNotFound, s.store.CompleteRequest(42, "officer-1"))
	_, err = s.store.AppendMessage(42, "x", "y")
	s.Equal(ErrRequestNotFound, err)
	_, err = s.store.ListMessages(42)
	s.Equal(ErrRequestNotFound, err)
}

func (s *MemoryStoreTestSuite) TestConcurrentAcceptHasOneWinner() {
	req := s.mustCreate("citizen-1")

	const officers = 50
	var wg sync.WaitGroup
	errs := make([]error, officers)

	wg.Add(officers)
	for i := 0; i < officers; i++ {
		go func(i int) {
			defer wg.Done()
			errs[i] = s.store.AcceptRequest(req.ID, fmt.Sprintf("officer-%d", i))
		}(i)
	}
	wg.Wait()

	winners := 0
	var winner string
	for i, err := range errs {
		if err == nil {
			winners++
			winner = fmt.Sprintf("officer-%d", i)
		} else {
			s.Equal(ErrRequestNotPending, err)
		}
	}
	s.Equal(1, winners)

	got, err := s.store.GetRequest(req.ID)
	s.NoError(err)
	s.Equal(schema.StatusAccepted, got.Status)
	s.Equal(winner, got.AssignedOfficer)
}

func (s *MemoryStoreTestSuite) TestAssigneeSetIffNotPending() {
	pending := s.mustCreate("citizen-1")
	accepted := s.mustCreate("citizen-2")
	resolved := s.mustCreate("citizen-3")

	s.NoError(s.store.AcceptRequest(accepted.ID, "officer-1"))
	s.NoError(s.store.AcceptRequest(resolved.ID, "officer-2"))
	s.NoError(s.store.CompleteRequest(resolved.ID, "officer-2"))

	reqs, err := s.store.ListRequests()
	s.NoError(err)
	s.Len(reqs, 3)
	for _, r := range reqs {
		if r.Status == schema.StatusPending {
			s.Empty(r.AssignedOfficer, "request %d", r.ID)
		} else {
			s.NotEmpty(r.AssignedOfficer, "request %d", r.ID)
		}
	}
	_ = pending
}

func (s *MemoryStoreTestSuite) TestConcurrentAppendsAreGapless() {
	first := s.mustCreate("citizen-1")
	second := s.mustCreate("citizen-2")

	const writers = 4
	const perWriter = 25

	var wg sync.WaitGroup
	for _, req := range []*schema.HelpRequest{first, second} {
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(id uint64, w int) {
				defer wg.Done()
				for i := 0; i < perWriter; i++ {
					_, err := s.store.AppendMessage(id, fmt.Sprintf("sender-%d", w), "hello")
					s.NoError(err)
				}
			}(req.ID, w)
		}
	}
	wg.Wait()

	for _, req := range []*schema.HelpRequest{first, second} {
		msgs, err := s.store.ListMessages(req.ID)
		s.NoError(err)
		s.Require().Len(msgs, writers*perWriter)

		seqs := make([]int, len(msgs))
		for i, m := range msgs {
			seqs[i] = int(m.Sequence)
		}
		s.True(sort.IntsAreSorted(seqs))
		for i, seq := range seqs {
			s.Equal(i, seq)
		}
	}
}

func (s *MemoryStoreTestSuite) TestAppendAfterResolution() {
	req := s.mustCreate("citizen-1")
	s.NoError(s.store.AcceptRequest(req.ID, "officer-1"))
	s.NoError(s.store.CompleteRequest(req.ID, "officer-1"))

	msg, err := s.store.AppendMessage(req.ID, "Asha", "thanks, all good now")
	s.NoError(err)
	s.Equal(uint64(0), msg.Sequence)
}

func (s *MemoryStoreTestSuite) TestMessageOrder() {
	req := s.mustCreate("citizen-1")

	m0, err := s.store.AppendMessage(req.ID, "C", "help")
	s.NoError(err)
	m1, err := s.store.AppendMessage(req.ID, "O", "on our way")
	s.NoError(err)
	s.Equal(uint64(0), m0.Sequence)
	s.Equal(uint64(1), m1.Sequence)

	msgs, err := s.store.ListMessages(req.ID)
	s.NoError(err)
	s.Require().Len(msgs, 2)
	s.Equal("help", msgs[0].Message)
	s.Equal("on our way", msgs[1].Message)
}

func (s *MemoryStoreTestSuite) TestListSnapshotIsDetached() {
	req := s.mustCreate("citizen-1")

	msgs, err := s.store.ListMessages(req.ID)
	s.NoError(err)
	s.Len(msgs, 0)

	_, err = s.store.AppendMessage(req.ID, "C", "help")
	s.NoError(err)

	// the earlier snapshot does not grow
	s.Len(msgs, 0)
}

func (s *MemoryStoreTestSuite) TestListFilters() {
	first := s.mustCreate("citizen-1")
	second := s.mustCreate("citizen-2")
	third := s.mustCreate("citizen-1")

	s.NoError(s.store.AcceptRequest(second.ID, "officer-1"))

	pending, err := s.store.ListRequestsByStatus(schema.StatusPending)
	s.NoError(err)
	s.Len(pending, 2)
	s.Equal(first.ID, pending[0].ID)
	s.Equal(third.ID, pending[1].ID)

	accepted, err := s.store.ListRequestsByStatus(schema.StatusAccepted)
	s.NoError(err)
	s.Len(accepted, 1)

	mine, err := s.store.ListRequestsByPrincipal("citizen-1")
	s.NoError(err)
	s.Len(mine, 2)
}

func (s *MemoryStoreTestSuite) TestProfileRegistration() {
	first, err := s.store.CreateProfile("principal-1", "Asha", "+91 98450 12345", schema.RoleCitizen)
	s.NoError(err)
	// bootstrap: first registered principal is the admin
	s.Equal(schema.RoleAdmin, first.Role)

	second, err := s.store.CreateProfile("principal-2", "Ravi", "+91 98450 99999", schema.RoleOfficer)
	s.NoError(err)
	s.Equal(schema.RoleOfficer, second.Role)

	_, err = s.store.CreateProfile("principal-2", "Ravi", "+91 98450 99999", schema.RoleOfficer)
	s.Equal(ErrAccountTaken, err)
}

func (s *MemoryStoreTestSuite) TestProfileUpdateKeepsRole() {
	_, err := s.store.CreateProfile("principal-1", "Asha", "+91 98450 12345", schema.RoleCitizen)
	s.NoError(err)
	_, err = s.store.CreateProfile("principal-2", "Ravi", "+91 98450 99999", schema.RoleCitizen)
	s.NoError(err)

	s.NoError(s.store.UpdateProfile("principal-2", "Ravi K", "+91 90000 00000"))

	profile, err := s.store.GetProfile("principal-2")
	s.NoError(err)
	s.Equal("Ravi K", profile.Name)
	s.Equal("+91 90000 00000", profile.Mobile)
	s.Equal(schema.RoleCitizen, profile.Role)

	s.NoError(s.store.AssignRole("principal-2", schema.RoleOfficer))
	profile, err = s.store.GetProfile("principal-2")
	s.NoError(err)
	s.Equal(schema.RoleOfficer, profile.Role)

	s.Equal(ErrAccountNotFound, s.store.UpdateProfile("nobody", "x", "y"))
	s.Equal(ErrAccountNotFound, s.store.AssignRole("nobody", schema.RoleOfficer))
	_, err = s.store.GetProfile("nobody")
	s.Equal(ErrAccountNotFound, err)
}

func (s *MemoryStoreTestSuite) TestListProfiles() {
	_, err := s.store.CreateProfile("principal-1", "Asha", "+91 98450 12345", schema.RoleCitizen)
	s.NoError(err)
	_, err = s.store.CreateProfile("principal-2", "Ravi", "+91 98450 99999", schema.RoleOfficer)
	s.NoError(err)

	profiles, err := s.store.ListProfiles()
	s.NoError(err)
	s.Require().Len(profiles, 2)
	s.Equal("principal-1", profiles[0].Principal)
	s.Equal("principal-2", profiles[1].Principal)
}

func TestMemoryStoreTestSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreTestSuite))
}
