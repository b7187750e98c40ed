package app

import (
	"strings"

	"classroom-poll-service/internal/domain"
)

// Registry maps session ids to participants, keeping first-join order.
// It is not safe for concurrent use; Classroom serializes access.
type Registry struct {
	participants map[string]*domain.Participant
	order        []string
}

func NewRegistry() *Registry {
	return &Registry{participants: make(map[string]*domain.Participant)}
}

// Join inserts or refreshes a participant. A rejoin keeps the original position.
func (r *Registry) Join(sessionID, displayName string, role domain.Role, connID string) (rejoined bool, err error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(displayName) == "" {
		return false, domain.ErrInvalidJoin
	}
	if role != domain.RoleTeacher && role != domain.RoleStudent {
		return false, domain.ErrInvalidJoin
	}

	if p, ok := r.participants[sessionID]; ok {
		p.DisplayName = displayName
		p.Role = role
		p.ConnID = connID
		return true, nil
	}
	r.participants[sessionID] = &domain.Participant{
		SessionID:   sessionID,
		DisplayName: displayName,
		Role:        role,
		ConnID:      connID,
	}
	r.order = append(r.order, sessionID)
	return false, nil
}

// Remove deletes a participant and returns the removed record.
func (r *Registry) Remove(sessionID string) (domain.Participant, bool) {
	p, ok := r.participants[sessionID]
	if !ok {
		return domain.Participant{}, false
	}
	delete(r.participants, sessionID)
	for i, id := range r.order {
		if id == sessionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return *p, true
}

// Get returns a copy of the participant.
func (r *Registry) Get(sessionID string) (domain.Participant, bool) {
	p, ok := r.participants[sessionID]
	if !ok {
		return domain.Participant{}, false
	}
	return *p, true
}

// ByConn lists the session ids currently attached to connID.
func (r *Registry) ByConn(connID string) []string {
	var ids []string
	for _, id := range r.order {
		if r.participants[id].ConnID == connID {
			ids = append(ids, id)
		}
	}
	return ids
}

// Students returns the roster in join order.
func (r *Registry) Students() []domain.StudentSummary {
	out := make([]domain.StudentSummary, 0, len(r.order))
	for _, id := range r.order {
		p := r.participants[id]
		if p.Role != domain.RoleStudent {
			continue
		}
		out = append(out, domain.StudentSummary{Name: p.DisplayName, SessionID: p.SessionID})
	}
	return out
}

// Teachers returns the connection handles of teacher participants.
func (r *Registry) Teachers() []string {
	var conns []string
	seen := make(map[string]struct{})
	for _, id := range r.order {
		p := r.participants[id]
		if p.Role != domain.RoleTeacher || p.ConnID == "" {
			continue
		}
		if _, dup := seen[p.ConnID]; dup {
			continue
		}
		seen[p.ConnID] = struct{}{}
		conns = append(conns, p.ConnID)
	}
	return conns
}

func (r *Registry) Len() int {
	return len(r.order)
}

// Count returns how many participants hold role.
func (r *Registry) Count(role domain.Role) int {
	n := 0
	for _, p := range r.participants {
		if p.Role == role {
			n++
		}
	}
	return n
}
