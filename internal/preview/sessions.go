// Package preview tracks pending role-change previews. A preview is shown to
// a user before their change is applied; it lives in memory, keyed by the
// message that carries it, and expires if nobody confirms it in time.
package preview

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultTTL is how long a preview stays actionable.
const DefaultTTL = 5 * time.Minute

// Session is one pending preview. The nonce ties interaction callbacks to
// the session that created them so a stale or forged component ID cannot act
// on somebody else's preview.
type Session struct {
	Nonce     string
	GuildID   string
	UserID    string
	TargetID  string
	Action    string
	RoleIDs   []string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Manager owns the session map and its expiry sweep.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]Session
	ttl      time.Duration
	cron     *cron.Cron
	log      *zap.Logger
}

// NewManager creates a manager with the given TTL. Pass 0 for DefaultTTL.
// Call Start to begin the background sweep and Stop on shutdown.
func NewManager(ttl time.Duration, log *zap.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		sessions: make(map[string]Session),
		ttl:      ttl,
		cron:     cron.New(),
		log:      log,
	}
}

// Start schedules the periodic sweep of expired sessions. Expiry is also
// enforced on access, so the sweep only bounds memory.
func (m *Manager) Start() error {
	if _, err := m.cron.AddFunc("@every 1m", m.sweep); err != nil {
		return err
	}
	m.cron.Start()
	return nil
}

// Stop halts the background sweep. Sessions already stored remain readable
// until they expire.
func (m *Manager) Stop() {
	m.cron.Stop()
}

// Create registers a new session under the message ID, replacing any previous
// session for that message, and returns it with a fresh nonce.
func (m *Manager) Create(messageID, guildID, userID, targetID, action string, roleIDs []string) Session {
	now := time.Now()
	s := Session{
		Nonce:     uuid.NewString(),
		GuildID:   guildID,
		UserID:    userID,
		TargetID:  targetID,
		Action:    action,
		RoleIDs:   append([]string(nil), roleIDs...),
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	m.mu.Lock()
	m.sessions[messageID] = s
	m.mu.Unlock()

	m.log.Debug("preview session created",
		zap.String("message_id", messageID), zap.String("guild_id", guildID), zap.String("user_id", userID))
	return s
}

// Get returns the session for the message if the nonce matches and the
// session has not expired. An expired session is removed on the spot.
func (m *Manager) Get(messageID, nonce string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[messageID]
	if !ok || s.Nonce != nonce {
		return Session{}, false
	}
	if time.Now().After(s.ExpiresAt) {
		delete(m.sessions, messageID)
		return Session{}, false
	}
	return s, true
}

// Delete removes the session for the message, if any. Used on confirm and
// cancel.
func (m *Manager) Delete(messageID string) {
	m.mu.Lock()
	delete(m.sessions, messageID)
	m.mu.Unlock()
}

// Len reports the number of live sessions, expired or not yet swept included.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) sweep() {
	now := time.Now()
	removed := 0

	m.mu.Lock()
	for id, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			delete(m.sessions, id)
			removed++
		}
	}
	m.mu.Unlock()

	if removed > 0 {
		m.log.Debug("swept expired preview sessions", zap.Int("removed", removed))
	}
}
