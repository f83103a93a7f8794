package syncer

import (
	"sync"

	"github.com/civitas-labs/dispatch-api/schema"
)

// Cache is the engine's owned snapshot of server state, keyed by query
// identity: one entry for the request list and one per watched message
// thread. There is no merge logic anywhere; the server is authoritative
// and every refresh replaces a snapshot wholesale.
type Cache struct {
	mu sync.RWMutex

	requests      []schema.HelpRequest
	requestsValid bool
	requestsGen   uint64

	messages map[uint64]*messageView
}

type messageView struct {
	messages []schema.ChatMessage
	valid    bool
	gen      uint64
}

func NewCache() *Cache {
	return &Cache{
		messages: make(map[uint64]*messageView),
	}
}

// Requests returns the cached request list. ok is false when the view
// was invalidated or never fetched; the caller then refreshes eagerly
// instead of waiting for the next poll.
func (c *Cache) Requests() ([]schema.HelpRequest, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.requestsValid {
		return nil, false
	}
	snap := make([]schema.HelpRequest, len(c.requests))
	copy(snap, c.requests)
	return snap, true
}

// RequestsGeneration returns the invalidation generation of the list
// view. A refresh records it before going to the server; SetRequests
// then refuses to validate the view if a mutation invalidated it while
// the fetch was on the wire, so the snapshot taken before the mutation
// can never mask it.
func (c *Cache) RequestsGeneration() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.requestsGen
}

func (c *Cache) SetRequests(reqs []schema.HelpRequest, gen uint64) {
	snap := make([]schema.HelpRequest, len(reqs))
	copy(snap, reqs)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = snap
	c.requestsValid = c.requestsGen == gen
}

func (c *Cache) InvalidateRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestsValid = false
	c.requestsGen++
}

func (c *Cache) Messages(requestID uint64) ([]schema.ChatMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	view, ok := c.messages[requestID]
	if !ok || !view.valid {
		return nil, false
	}
	snap := make([]schema.ChatMessage, len(view.messages))
	copy(snap, view.messages)
	return snap, true
}

// MessagesGeneration is the per-thread counterpart of
// RequestsGeneration.
func (c *Cache) MessagesGeneration(requestID uint64) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if view, ok := c.messages[requestID]; ok {
		return view.gen
	}
	return 0
}

func (c *Cache) SetMessages(requestID uint64, msgs []schema.ChatMessage, gen uint64) {
	snap := make([]schema.ChatMessage, len(msgs))
	copy(snap, msgs)

	c.mu.Lock()
	defer c.mu.Unlock()
	view, ok := c.messages[requestID]
	if !ok {
		view = &messageView{}
		c.messages[requestID] = view
	}
	view.messages = snap
	view.valid = view.gen == gen
}

func (c *Cache) InvalidateMessages(requestID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	view, ok := c.messages[requestID]
	if !ok {
		// no view yet, but a fetch may already be in flight; leave an
		// invalidated placeholder so its result cannot validate
		c.messages[requestID] = &messageView{gen: 1}
		return
	}
	view.valid = false
	view.gen++
}

// DropMessages forgets a thread entirely, for navigation away from a
// request view.
func (c *Cache) DropMessages(requestID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.messages, requestID)
}
