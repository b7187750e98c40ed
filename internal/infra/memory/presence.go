package memory

import (
	"context"
	"sync"

	"classroom-poll-service/internal/domain"
)

// Presence is an in-memory liveness mirror used when Redis is not configured.
type Presence struct {
	mu    sync.RWMutex
	roles map[string]domain.Role
}

func NewPresence() *Presence {
	return &Presence{roles: make(map[string]domain.Role)}
}

func (p *Presence) Mark(_ context.Context, participant domain.Participant) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roles[participant.SessionID] = participant.Role
	return nil
}

func (p *Presence) Clear(_ context.Context, sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.roles, sessionID)
	return nil
}

// Role reports the mirrored role of sessionID.
func (p *Presence) Role(sessionID string) (domain.Role, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	role, ok := p.roles[sessionID]
	return role, ok
}

func (p *Presence) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.roles)
}
