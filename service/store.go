package service

import (
	"context"
	"sync"
	"time"

	"github.com/mahdichowdhury714-hub/passportkit/utils"
	"go.uber.org/zap"
)

// SessionStore 内存中的会话表，空闲超过 ttl 的会话会被清理
type SessionStore struct {
	editor *Editor
	ttl    time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionStore(editor *Editor, ttl time.Duration) *SessionStore {
	return &SessionStore{
		editor:   editor,
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

func (st *SessionStore) Create() *Session {
	s := NewSession(utils.GenerateID(), st.editor)

	st.mu.Lock()
	st.sessions[s.ID()] = s
	st.mu.Unlock()

	return s
}

func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if ok {
		s.touch()
	}
	return s, ok
}

func (st *SessionStore) Delete(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return false
	}
	delete(st.sessions, id)
	return true
}

func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Purge 删除过期会话，返回删除数量
func (st *SessionStore) Purge(now time.Time) int {
	if st.ttl <= 0 {
		return 0
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for id, s := range st.sessions {
		if s.idle(now) > st.ttl {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// Run 定期清理过期会话，直到 ctx 结束
func (st *SessionStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := st.Purge(now); n > 0 {
				utils.Logger.Info("expired sessions removed",
					zap.Int("count", n),
					zap.Int("remaining", st.Len()))
			}
		}
	}
}
