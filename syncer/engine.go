// Package syncer keeps a polling client consistent with the dispatch
// server. It owns a local cache of the request list and of watched
// message threads, refreshes them on fixed cadences, and surfaces
// newly-pending alerts to officer observers without duplicates or a
// notification storm at startup.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/sirupsen/logrus"

	"github.com/civitas-labs/dispatch-api/schema"
)

var log = logrus.WithField("prefix", "syncer")

const (
	defaultRequestInterval = 5 * time.Second
	defaultMessageInterval = 2 * time.Second
)

// Dispatcher is the remote surface the engine polls and writes through.
// client.Client implements it.
type Dispatcher interface {
	GetAllRequests() ([]schema.HelpRequest, error)
	GetMessages(requestID uint64) ([]schema.ChatMessage, error)
	SendSOS(loc schema.Location) (*schema.HelpRequest, error)
	AcceptRequest(requestID uint64) error
	CompleteRequest(requestID uint64) error
	SendMessage(requestID uint64, sender, message string) (*schema.ChatMessage, error)
}

// Notification summarizes the newly-pending requests observed by one
// poll of the request list.
type Notification struct {
	NewPending int
	RequestIDs []uint64
	Summary    string
}

type Option func(*Engine)

// WithIntervals overrides the polling cadences: coarse for the request
// list, finer for watched message threads.
func WithIntervals(request, message time.Duration) Option {
	return func(e *Engine) {
		e.requestInterval = request
		e.messageInterval = message
	}
}

// WithLocalizer localizes notification summaries.
func WithLocalizer(loc *i18n.Localizer) Option {
	return func(e *Engine) {
		e.localizer = loc
	}
}

// Engine is one observer's synchronization state. An engine is built for
// a single caller with a fixed role; only officer engines run the
// pending-diff notification logic.
type Engine struct {
	dispatcher Dispatcher
	role       schema.UserRole
	cache      *Cache

	requestInterval time.Duration
	messageInterval time.Duration
	localizer       *i18n.Localizer

	notifications chan Notification

	// pending-diff state, touched by the poll loop and by eager
	// refreshes triggered from reads. closed suppresses notification
	// sends once Close has drained the loops.
	pendMu      sync.Mutex
	prevPending map[uint64]struct{}
	primed      bool
	closed      bool

	// serializes list fetches; the poll loop additionally skips its
	// tick when one is already in flight
	refreshMu       sync.Mutex
	requestInflight int32

	mu      sync.Mutex
	threads map[uint64]context.CancelFunc
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(dispatcher Dispatcher, role schema.UserRole, opts ...Option) *Engine {
	e := &Engine{
		dispatcher:      dispatcher,
		role:            role,
		cache:           NewCache(),
		requestInterval: defaultRequestInterval,
		messageInterval: defaultMessageInterval,
		notifications:   make(chan Notification, 16),
		prevPending:     make(map[uint64]struct{}),
		threads:         make(map[uint64]context.CancelFunc),
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Notifications is the stream of newly-pending alerts. The channel is
// closed by Close.
func (e *Engine) Notifications() <-chan Notification {
	return e.notifications
}

// Start launches the request-list polling loop. The loop runs for the
// lifetime of the engine; per-thread message loops come and go with
// WatchThread/StopThread.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.wg.Add(1)
	go e.requestLoop(ctx)
}

// Close stops every polling loop and closes the notification channel.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.cancel == nil {
		e.mu.Unlock()
		return
	}
	e.cancel()
	e.cancel = nil
	for id, stop := range e.threads {
		stop()
		delete(e.threads, id)
	}
	e.mu.Unlock()

	e.wg.Wait()

	// reads may still trigger refreshes after Close; mark the engine
	// closed under pendMu so their diffs never send on the closed channel
	e.pendMu.Lock()
	e.closed = true
	e.pendMu.Unlock()

	close(e.notifications)
}

func (e *Engine) requestLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.requestInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.refreshRequests(); err != nil {
				// no retry here; the next tick is the retry
				log.WithError(err).Warn("refresh request list")
			}
		}
	}
}

// refreshRequests is the poll-loop entry: a tick arriving while another
// refresh is still in flight is skipped, never queued.
func (e *Engine) refreshRequests() error {
	if !atomic.CompareAndSwapInt32(&e.requestInflight, 0, 1) {
		return nil
	}
	defer atomic.StoreInt32(&e.requestInflight, 0)

	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()
	return e.fetchRequestsLocked()
}

// ensureRequests is the eager-read entry: it waits for any in-flight
// refresh rather than skipping, then fetches only if the view is still
// invalid once the lock is held.
func (e *Engine) ensureRequests() error {
	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()

	if _, ok := e.cache.Requests(); ok {
		return nil
	}
	return e.fetchRequestsLocked()
}

// fetchRequestsLocked fetches the request list, replaces the cached
// snapshot and runs the notification diff. The generation read before
// the fetch keeps a snapshot taken before a concurrent local mutation
// from re-validating the view that mutation invalidated.
func (e *Engine) fetchRequestsLocked() error {
	gen := e.cache.RequestsGeneration()

	reqs, err := e.dispatcher.GetAllRequests()
	if err != nil {
		return err
	}

	e.cache.SetRequests(reqs, gen)
	e.diffPending(reqs)
	return nil
}

// diffPending compares the pending ids of this poll against the previous
// successful one and emits a single notification for the fresh ones. The
// very first poll after startup only primes the set, so already-pending
// requests at load time never cause an alert storm. Priming is a
// one-shot flag rather than a check that the previous pending set was
// non-empty: after a first poll that finds no open alerts, the next
// alert to arrive is still announced. Citizen observers do not notify
// at all.
func (e *Engine) diffPending(reqs []schema.HelpRequest) {
	if e.role != schema.RoleOfficer {
		return
	}

	now := make(map[uint64]struct{})
	for _, req := range reqs {
		if req.Status == schema.StatusPending {
			now[req.ID] = struct{}{}
		}
	}

	e.pendMu.Lock()
	defer e.pendMu.Unlock()

	fresh := []uint64{}
	for id := range now {
		if _, seen := e.prevPending[id]; !seen {
			fresh = append(fresh, id)
		}
	}
	primed := e.primed
	e.prevPending = now
	e.primed = true

	// the closed check and the send stay under pendMu; Close takes the
	// same lock before closing the channel, so a send can never race the
	// close
	if !primed || len(fresh) == 0 || e.closed {
		return
	}

	n := Notification{
		NewPending: len(fresh),
		RequestIDs: fresh,
		Summary:    e.summary(len(fresh)),
	}

	select {
	case e.notifications <- n:
	default:
		log.Warn("notification channel full, dropping event")
	}
}

func (e *Engine) summary(count int) string {
	if e.localizer == nil {
		return fmt.Sprintf("%d new emergency alerts", count)
	}

	msg, err := e.localizer.Localize(&i18n.LocalizeConfig{
		DefaultMessage: &i18n.Message{
			ID:    "NewPendingRequests",
			One:   "{{.Count}} new emergency alert",
			Other: "{{.Count}} new emergency alerts",
		},
		TemplateData: map[string]interface{}{"Count": count},
		PluralCount:  count,
	})
	if err != nil {
		return fmt.Sprintf("%d new emergency alerts", count)
	}
	return msg
}

// Requests returns the cached request list, fetching eagerly when the
// view is invalidated or has never been filled. The loop re-checks
// after each fetch because a concurrent local mutation can invalidate
// the view again before the read completes.
func (e *Engine) Requests() ([]schema.HelpRequest, error) {
	for {
		if snap, ok := e.cache.Requests(); ok {
			return snap, nil
		}
		if err := e.ensureRequests(); err != nil {
			return nil, err
		}
	}
}

// Messages returns the cached log of a request, fetching eagerly when
// the view is invalidated or has never been filled.
func (e *Engine) Messages(requestID uint64) ([]schema.ChatMessage, error) {
	for {
		if snap, ok := e.cache.Messages(requestID); ok {
			return snap, nil
		}
		if err := e.refreshMessages(requestID); err != nil {
			return nil, err
		}
	}
}

func (e *Engine) refreshMessages(requestID uint64) error {
	gen := e.cache.MessagesGeneration(requestID)

	msgs, err := e.dispatcher.GetMessages(requestID)
	if err != nil {
		return err
	}
	e.cache.SetMessages(requestID, msgs, gen)
	return nil
}

// WatchThread starts the fine-cadence polling loop of one request's
// message log. Watching an already-watched thread is a no-op.
func (e *Engine) WatchThread(requestID uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.threads[requestID]; ok {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.threads[requestID] = cancel

	e.wg.Add(1)
	go e.messageLoop(ctx, requestID)
}

// StopThread cancels a thread's polling loop and drops its cached view;
// this is the navigation-away path.
func (e *Engine) StopThread(requestID uint64) {
	e.mu.Lock()
	cancel, ok := e.threads[requestID]
	if ok {
		delete(e.threads, requestID)
	}
	e.mu.Unlock()

	if ok {
		cancel()
		e.cache.DropMessages(requestID)
	}
}

func (e *Engine) messageLoop(ctx context.Context, requestID uint64) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.messageInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// the loop body is synchronous, so a slow round trip makes
			// the ticker coalesce the missed ticks instead of
			// overlapping requests
			if err := e.refreshMessages(requestID); err != nil {
				log.WithError(err).WithField("request_id", requestID).Warn("refresh messages")
			}
		}
	}
}

// SendSOS raises an alert and invalidates the request list, so the
// caller's own dashboard reflects the new request before the next tick.
func (e *Engine) SendSOS(loc schema.Location) (*schema.HelpRequest, error) {
	req, err := e.dispatcher.SendSOS(loc)
	if err != nil {
		return nil, err
	}
	e.cache.InvalidateRequests()
	return req, nil
}

// Accept takes ownership of a pending request. A lost race surfaces as a
// precondition error from the server and is not retried; the list is
// invalidated either way so the UI re-reads the authoritative state.
func (e *Engine) Accept(requestID uint64) error {
	err := e.dispatcher.AcceptRequest(requestID)
	e.cache.InvalidateRequests()
	return err
}

// Complete resolves an accepted request and invalidates the list view.
func (e *Engine) Complete(requestID uint64) error {
	err := e.dispatcher.CompleteRequest(requestID)
	e.cache.InvalidateRequests()
	return err
}

// SendMessage appends to one thread and invalidates exactly that
// thread's cached view.
func (e *Engine) SendMessage(requestID uint64, sender, message string) (*schema.ChatMessage, error) {
	msg, err := e.dispatcher.SendMessage(requestID, sender, message)
	if err != nil {
		return nil, err
	}
	e.cache.InvalidateMessages(requestID)
	return msg, nil
}
