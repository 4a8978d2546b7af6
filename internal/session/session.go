// Package session keys game sessions by cookie and keeps them alive across
// restarts through store snapshots.
package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	constants "github.com/RomainGaget-hub/foot-challenge/internal/constants"
	game "github.com/RomainGaget-hub/foot-challenge/internal/game"
	store "github.com/RomainGaget-hub/foot-challenge/internal/store"
	util "github.com/RomainGaget-hub/foot-challenge/internal/util"
)

type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*game.Session

	source       game.ChallengeSource
	store        *store.Store
	questionTime time.Duration
	ttl          time.Duration
	cookieMaxAge time.Duration
	secure       bool
}

func NewRegistry(source game.ChallengeSource, st *store.Store, questionTime, ttl, cookieMaxAge time.Duration, secure bool) *Registry {
	return &Registry{
		sessions:     make(map[string]*game.Session),
		source:       source,
		store:        st,
		questionTime: questionTime,
		ttl:          ttl,
		cookieMaxAge: cookieMaxAge,
		secure:       secure,
	}
}

// GetOrCreateSessionID reads the session cookie, minting a new id when the
// cookie is missing or malformed.
func (r *Registry) GetOrCreateSessionID(c *gin.Context) string {
	sessionID, err := c.Cookie(constants.SessionCookieName)
	if err != nil || len(sessionID) < 10 {
		sessionID = uuid.NewString()
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(constants.SessionCookieName, sessionID, int(r.cookieMaxAge.Seconds()), "/", "", r.secure, true)
		util.LogInfo("Created new session: %s", sessionID)
	}
	return sessionID
}

// Get returns the live session for an id, restoring it from a stored
// snapshot when the process has restarted since the player last played.
func (r *Registry) Get(ctx context.Context, sessionID string) *game.Session {
	r.mu.RLock()
	sess, exists := r.sessions[sessionID]
	r.mu.RUnlock()
	if exists {
		sess.Touch()
		return sess
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, exists = r.sessions[sessionID]; exists {
		sess.Touch()
		return sess
	}

	sess = game.NewSession(r.source)
	sess.SetTimeLimit(r.questionTime)
	if r.store != nil {
		if blob, err := r.store.LoadSnapshot(ctx, sessionID); err != nil {
			util.LogWarn("Failed to load snapshot for session %s: %v", sessionID, err)
		} else if blob != nil {
			if err := sess.RestoreSnapshot(blob); err != nil {
				util.LogWarn("Discarding corrupt snapshot for session %s: %v", sessionID, err)
			} else {
				util.LogInfo("Restored session %s from snapshot", sessionID)
			}
		}
	}
	r.sessions[sessionID] = sess
	return sess
}

// Save writes the session's durable state through to the store. Best
// effort: gameplay never fails because a snapshot write did.
func (r *Registry) Save(ctx context.Context, sessionID string, sess *game.Session) {
	sess.Touch()
	if r.store == nil {
		return
	}
	blob, err := sess.Snapshot()
	if err != nil {
		util.LogWarn("Failed to snapshot session %s: %v", sessionID, err)
		return
	}
	if err := r.store.SaveSnapshot(ctx, sessionID, blob); err != nil {
		util.LogWarn("Failed to persist snapshot for session %s: %v", sessionID, err)
	}
}

func (r *Registry) CleanupExpired() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.ttl)
	expired := 0
	for sessionID, sess := range r.sessions {
		if sess.LastAccess().Before(cutoff) {
			sess.CancelQuestionTimer()
			delete(r.sessions, sessionID)
			expired++
		}
	}
	if expired > 0 {
		util.LogInfo("Cleaned up %d expired sessions", expired)
	}
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// StartCleanup evicts idle sessions on a timer and mirrors the eviction to
// stored snapshots.
func (r *Registry) StartCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	go func() {
		defer ticker.Stop()
		for range ticker.C {
			r.CleanupExpired()
			if r.store != nil {
				cutoff := time.Now().Add(-r.ttl)
				if n, err := r.store.PurgeSnapshotsBefore(context.Background(), cutoff); err != nil {
					util.LogWarn("Failed to purge stale snapshots: %v", err)
				} else if n > 0 {
					util.LogInfo("Purged %d stale snapshots", n)
				}
			}
		}
	}()
	util.LogInfo("Started session cleanup goroutine")
}
