package service

import (
	"container/heap"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/terranote/internal/domain"
)

// SessionStore keeps at most one pending session per user. Users are spread
// over shards; every operation on a user runs under that user's shard lock,
// so upsert, take and expiry never interleave for the same user.
type SessionStore struct {
	ttl    time.Duration
	shards []*storeShard
}

type storeShard struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	expiry   expiryQueue
}

func NewSessionStore(ttl time.Duration, shards int) *SessionStore {
	if shards <= 0 {
		shards = 1
	}
	s := &SessionStore{
		ttl:    ttl,
		shards: make([]*storeShard, shards),
	}
	for i := range s.shards {
		s.shards[i] = &storeShard{sessions: make(map[string]*domain.Session)}
	}
	return s
}

func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

func (s *SessionStore) shard(userID string) *storeShard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Upsert applies ev to the user's pending session, creating one when none is
// active. Text and location are last-write-wins per field. A session whose
// window closed before now is retired as expired and returned as superseded;
// ev then opens a fresh session instead of reviving the dead one.
func (s *SessionStore) Upsert(ev domain.InboundEvent, now time.Time) (current domain.Session, superseded *domain.Session) {
	sh := s.shard(ev.UserID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess := sh.sessions[ev.UserID]
	if sess != nil && sess.IsDue(now) {
		delete(sh.sessions, ev.UserID)
		sess.State = domain.SessionExpired
		old := snapshot(sess)
		superseded = &old
		sess = nil
	}

	if sess == nil {
		sess = &domain.Session{
			ID:        uuid.NewString(),
			UserID:    ev.UserID,
			Platform:  ev.Platform,
			State:     domain.SessionPending,
			CreatedAt: now,
			ExpiresAt: now.Add(s.ttl),
		}
		sh.sessions[ev.UserID] = sess
		heap.Push(&sh.expiry, expiryItem{
			userID:    ev.UserID,
			sessionID: sess.ID,
			expiresAt: sess.ExpiresAt,
		})
	}

	switch ev.Kind {
	case domain.KindText:
		sess.Text = ev.Text
	case domain.KindLocation:
		loc := ev.Location()
		sess.Location = &loc
	}
	sess.UpdatedAt = now

	return snapshot(sess), superseded
}

// TakeIfCompleted removes and returns the user's session when both fields are
// set and now is strictly before its expiry. Otherwise the session is left
// untouched.
func (s *SessionStore) TakeIfCompleted(userID string, now time.Time) (domain.Session, bool) {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess := sh.sessions[userID]
	if sess == nil || !sess.IsComplete() || sess.IsDue(now) {
		return domain.Session{}, false
	}
	delete(sh.sessions, userID)
	sess.State = domain.SessionCompleted
	return snapshot(sess), true
}

// ExpireDue removes and returns every pending session whose expiry is at or
// before now.
func (s *SessionStore) ExpireDue(now time.Time) []domain.Session {
	var expired []domain.Session
	for _, sh := range s.shards {
		expired = append(expired, sh.expireDue(now)...)
	}
	return expired
}

func (sh *storeShard) expireDue(now time.Time) []domain.Session {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	var expired []domain.Session
	for sh.expiry.Len() > 0 && !now.Before(sh.expiry[0].expiresAt) {
		item := heap.Pop(&sh.expiry).(expiryItem)
		// Entries of sessions already completed or replaced are stale.
		sess := sh.sessions[item.userID]
		if sess == nil || sess.ID != item.sessionID || sess.State != domain.SessionPending {
			continue
		}
		delete(sh.sessions, item.userID)
		sess.State = domain.SessionExpired
		expired = append(expired, snapshot(sess))
	}
	return expired
}

// Get returns a copy of the user's active session.
func (s *SessionStore) Get(userID string) (domain.Session, bool) {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess := sh.sessions[userID]
	if sess == nil {
		return domain.Session{}, false
	}
	return snapshot(sess), true
}

// Active returns copies of all active sessions, oldest first.
func (s *SessionStore) Active() []domain.Session {
	var all []domain.Session
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, sess := range sh.sessions {
			all = append(all, snapshot(sess))
		}
		sh.mu.Unlock()
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	return all
}

func (s *SessionStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.sessions)
		sh.mu.Unlock()
	}
	return n
}

func snapshot(sess *domain.Session) domain.Session {
	cp := *sess
	if sess.Location != nil {
		loc := *sess.Location
		cp.Location = &loc
	}
	return cp
}

type expiryItem struct {
	userID    string
	sessionID string
	expiresAt time.Time
}

// expiryQueue is a min-heap on expiresAt.
type expiryQueue []expiryItem

func (q expiryQueue) Len() int           { return len(q) }
func (q expiryQueue) Less(i, j int) bool { return q[i].expiresAt.Before(q[j].expiresAt) }
func (q expiryQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *expiryQueue) Push(x any) {
	*q = append(*q, x.(expiryItem))
}

func (q *expiryQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
