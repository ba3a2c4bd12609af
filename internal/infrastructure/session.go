package infrastructure

import (
	"hash/fnv"
	"sync"
)

// sessionShards keeps lock contention low when many conversations arrive at
// once. 32 is plenty for the webhook volume a single engine sees.
const sessionShards = 32

type sessionShard struct {
	mu       sync.RWMutex
	current  map[string]int64       // conversation key -> current node id
	keyLocks map[string]*sync.Mutex // per-conversation serialization point
}

// SessionManager is the volatile "where is this user in the menu tree"
// store. A restart drops everything, which only means users see the root
// menu on their next message.
type SessionManager struct {
	shards [sessionShards]*sessionShard
}

func NewSessionManager() *SessionManager {
	sm := &SessionManager{}
	for i := range sm.shards {
		sm.shards[i] = &sessionShard{
			current:  make(map[string]int64),
			keyLocks: make(map[string]*sync.Mutex),
		}
	}
	return sm
}

func sessionKey(instance, conversationID string) string {
	return instance + "|" + conversationID
}

func (sm *SessionManager) shard(key string) *sessionShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return sm.shards[h.Sum32()%sessionShards]
}

// Get returns the current submenu node for a conversation, false when the
// conversation is at root.
func (sm *SessionManager) Get(instance, conversationID string) (int64, bool) {
	key := sessionKey(instance, conversationID)
	s := sm.shard(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.current[key]
	return id, ok
}

// Set records the submenu a conversation navigated into.
func (sm *SessionManager) Set(instance, conversationID string, nodeID int64) {
	key := sessionKey(instance, conversationID)
	s := sm.shard(key)
	s.mu.Lock()
	s.current[key] = nodeID
	s.mu.Unlock()
}

// Clear sends the conversation back to root.
func (sm *SessionManager) Clear(instance, conversationID string) {
	key := sessionKey(instance, conversationID)
	s := sm.shard(key)
	s.mu.Lock()
	delete(s.current, key)
	s.mu.Unlock()
}

// Lock acquires the per-conversation mutex so two interleaved deliveries
// for the same chat never race on the session transition. Deliveries for
// different conversations proceed in parallel.
func (sm *SessionManager) Lock(instance, conversationID string) func() {
	key := sessionKey(instance, conversationID)
	s := sm.shard(key)

	s.mu.Lock()
	l, ok := s.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.keyLocks[key] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}
