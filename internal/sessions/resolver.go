package sessions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	wis "wis-backend"
)

// Session is an operator's unlocked workspace: the plant it works on and the
// threshold profile its diagnoses use.
type Session struct {
	Ref              string        `json:"sessionRef"`
	Plant            wis.PlantSpec `json:"plant"`
	ThresholdProfile string        `json:"thresholdProfile"`
	CreatedAt        time.Time     `json:"createdAt"`
}

type Resolver interface {
	ResolveByRef(ctx context.Context, sessionRef string) (Session, error)
}

type Store interface {
	GetSession(ctx context.Context, sessionRef string) (Session, error)
	SaveSession(ctx context.Context, session Session) error
}

type resolver struct {
	store Store
}

func NewResolver(store Store) Resolver {
	return &resolver{store: store}
}

func (r *resolver) ResolveByRef(ctx context.Context, sessionRef string) (Session, error) {
	ref := strings.TrimSpace(sessionRef)
	if ref == "" {
		return Session{}, ErrInvalidInput
	}
	if _, err := uuid.Parse(ref); err != nil {
		return Session{}, fmt.Errorf("sessionRef must be a uuid: %w", ErrInvalidInput)
	}
	if r.store == nil {
		return Session{}, ErrNotConfigured
	}
	return r.store.GetSession(ctx, ref)
}
