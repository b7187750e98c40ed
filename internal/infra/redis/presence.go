package redis

import (
	"context"
	"time"

	"classroom-poll-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Presence mirrors joined participants as classroom:participant:{sessionID} = role.
// The in-process registry stays authoritative; keys expire after ttl.
type Presence struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPresence(client *redis.Client, ttl time.Duration) *Presence {
	return &Presence{client: client, ttl: ttl}
}

func (p *Presence) Mark(ctx context.Context, participant domain.Participant) error {
	return p.client.Set(ctx, p.key(participant.SessionID), string(participant.Role), p.ttl).Err()
}

func (p *Presence) Clear(ctx context.Context, sessionID string) error {
	return p.client.Del(ctx, p.key(sessionID)).Err()
}

func (p *Presence) key(sessionID string) string {
	return "classroom:participant:" + sessionID
}
