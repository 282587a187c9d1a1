// Package conversation holds the client-side state of the active
// conversation: its identity, the delivered message sequence, paging
// position and the flags the chat controller drives.
package conversation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/edtube/platform/internal/codec"
	"github.com/edtube/platform/internal/model"
	"github.com/edtube/platform/pkg/logger"
)

// PageSize is the number of records requested per page.
const PageSize = 50

// MessageFetcher loads one page of stored messages.
type MessageFetcher interface {
	ListMessages(ctx context.Context, conversationID string, page, limit int) ([]model.MessageRecord, error)
}

// Snapshot is a point-in-time copy of the store state.
type Snapshot struct {
	Conversation *model.Conversation
	Messages     []model.Message
	CurrentPage  int
	HasNextPage  bool
	IsLoading    bool
	LoadError    error
	AIResponding bool
	TurnError    error
	RetryCount   int
}

// Listener is notified with a snapshot after every state change.
type Listener func(Snapshot)

// PageResult is returned by LoadPage.
type PageResult struct {
	Messages    []model.Message
	HasNextPage bool
}

// Store is the conversation state for one session. It is safe for
// concurrent use.
type Store struct {
	fetcher MessageFetcher
	log     *logger.Logger

	mu         sync.Mutex
	conv       *model.Conversation
	messages   []model.Message
	page       int
	hasNext    bool
	loading    bool
	loadErr    error
	responding bool
	turnErr    error
	retries    int
	listeners  map[int]Listener
	nextSub    int

	// busy guards submission for the whole store, not per conversation.
	busy atomic.Bool
}

// NewStore creates an empty store backed by fetcher.
func NewStore(fetcher MessageFetcher, log *logger.Logger) *Store {
	return &Store{
		fetcher:   fetcher,
		log:       logger.OrNop(log).Named("conversation"),
		page:      1,
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// SetActiveConversation replaces the active conversation and clears the
// page state. A non-nil conversation has its first page loaded.
func (s *Store) SetActiveConversation(ctx context.Context, conv *model.Conversation) error {
	var id string
	s.update(func() {
		if conv != nil {
			c := *conv
			s.conv = &c
			id = c.ID
		} else {
			s.conv = nil
		}
		s.messages = nil
		s.page = 1
		s.hasNext = false
		s.loadErr = nil
		s.turnErr = nil
		s.retries = 0
	})

	if conv == nil {
		return nil
	}
	_, err := s.LoadPage(ctx, id, 1)
	return err
}

// LoadPage fetches one page of conversationID. Page 1 replaces the
// delivered sequence; later pages are older and are prepended. The result
// is applied even if the active conversation changed during the fetch.
func (s *Store) LoadPage(ctx context.Context, conversationID string, page int) (PageResult, error) {
	if page < 1 {
		page = 1
	}

	s.update(func() {
		s.loading = true
		s.loadErr = nil
	})

	records, err := s.fetcher.ListMessages(ctx, conversationID, page, PageSize)
	if err != nil {
		err = fmt.Errorf("load page %d of %s: %w", page, conversationID, err)
		s.log.Warn("failed to load messages",
			zap.String("conversation_id", conversationID),
			zap.Int("page", page),
			zap.Error(err),
		)
		s.update(func() {
			s.loading = false
			s.loadErr = err
		})
		return PageResult{}, err
	}

	msgs := make([]model.Message, 0, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		msgs = append(msgs, codec.ToUIMessage(rec))
	}
	hasNext := len(records) == PageSize

	s.update(func() {
		if page == 1 {
			s.messages = msgs
		} else {
			merged := make([]model.Message, 0, len(msgs)+len(s.messages))
			merged = append(merged, msgs...)
			s.messages = append(merged, s.messages...)
		}
		s.page = page
		s.hasNext = hasNext
		s.loading = false
	})

	s.log.Debug("loaded messages",
		zap.String("conversation_id", conversationID),
		zap.Int("page", page),
		zap.Int("count", len(msgs)),
		zap.Bool("has_next_page", hasNext),
	)

	return PageResult{Messages: append([]model.Message(nil), msgs...), HasNextPage: hasNext}, nil
}

// LoadOlder loads the next older page of the active conversation. It does
// nothing when there is no active conversation or no further page.
func (s *Store) LoadOlder(ctx context.Context) (PageResult, error) {
	s.mu.Lock()
	conv, next, page := s.conv, s.hasNext, s.page
	s.mu.Unlock()

	if conv == nil || !next {
		return PageResult{}, nil
	}
	return s.LoadPage(ctx, conv.ID, page+1)
}

// State returns a copy of the current state.
func (s *Store) State() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Active returns a copy of the active conversation, or nil.
func (s *Store) Active() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conv == nil {
		return nil
	}
	c := *s.conv
	return &c
}

// Messages returns a copy of the delivered sequence.
func (s *Store) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Message(nil), s.messages...)
}

// Append sanitizes msg and adds it to the end of the delivered sequence.
func (s *Store) Append(msg model.Message) {
	msg = codec.Sanitize(msg)
	s.update(func() {
		s.messages = append(s.messages, msg)
	})
}

// TryAcquire takes the submission guard. It reports false when a turn is
// already in flight.
func (s *Store) TryAcquire() bool {
	return s.busy.CompareAndSwap(false, true)
}

// Release frees the submission guard.
func (s *Store) Release() {
	s.busy.Store(false)
}

// SetResponding sets the assistant-responding flag.
func (s *Store) SetResponding(v bool) {
	s.update(func() { s.responding = v })
}

// SetTurnError records or clears the last turn failure.
func (s *Store) SetTurnError(err error) {
	s.update(func() { s.turnErr = err })
}

// IncRetry increments the retry counter and returns the new value.
func (s *Store) IncRetry() int {
	var n int
	s.update(func() {
		s.retries++
		n = s.retries
	})
	return n
}

// Close drops all subscribers and resets the state.
func (s *Store) Close() {
	s.mu.Lock()
	s.listeners = make(map[int]Listener)
	s.conv = nil
	s.messages = nil
	s.page = 1
	s.hasNext = false
	s.loading = false
	s.loadErr = nil
	s.responding = false
	s.turnErr = nil
	s.retries = 0
	s.mu.Unlock()
	s.busy.Store(false)
}

// update applies fn under the lock and notifies listeners outside it.
func (s *Store) update(fn func()) {
	s.mu.Lock()
	fn()
	snap := s.snapshotLocked()
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.mu.Unlock()

	for _, l := range ls {
		l(snap)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	var conv *model.Conversation
	if s.conv != nil {
		c := *s.conv
		conv = &c
	}
	return Snapshot{
		Conversation: conv,
		Messages:     append([]model.Message(nil), s.messages...),
		CurrentPage:  s.page,
		HasNextPage:  s.hasNext,
		IsLoading:    s.loading,
		LoadError:    s.loadErr,
		AIResponding: s.responding,
		TurnError:    s.turnErr,
		RetryCount:   s.retries,
	}
}
