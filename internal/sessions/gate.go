package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	wis "wis-backend"
)

// Gate unlocks sessions with a shared access secret. A gate without a secret
// hash is open: every caller may use the service without a session.
type Gate struct {
	hash  []byte
	store Store
	now   func() time.Time
}

func NewGate(secretHash string, store Store) (*Gate, error) {
	hash := strings.TrimSpace(secretHash)
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("access secret hash: %w", err)
		}
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &Gate{hash: []byte(hash), store: store, now: time.Now}, nil
}

// Enabled reports whether requests need a session.
func (g *Gate) Enabled() bool {
	return len(g.hash) > 0
}

func (g *Gate) Resolver() Resolver {
	return NewResolver(g.store)
}

// Open checks the secret and stores a new session for the plant and profile.
func (g *Gate) Open(ctx context.Context, secret string, plant wis.PlantSpec, profile string) (Session, error) {
	if g.Enabled() {
		if err := bcrypt.CompareHashAndPassword(g.hash, []byte(secret)); err != nil {
			if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				return Session{}, ErrUnauthorized
			}
			return Session{}, fmt.Errorf("check access secret: %w", err)
		}
	}
	if err := wis.ValidatePlant(plant); err != nil {
		return Session{}, fmt.Errorf("%v: %w", err, ErrInvalidInput)
	}
	if plant == (wis.PlantSpec{}) {
		plant = wis.DefaultPlantSpec()
	}
	session := Session{
		Ref:              uuid.NewString(),
		Plant:            plant,
		ThresholdProfile: strings.TrimSpace(profile),
		CreatedAt:        g.now().UTC(),
	}
	if err := g.store.SaveSession(ctx, session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// HashSecret produces the value expected in ACCESS_SECRET_HASH.
func HashSecret(secret string) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", fmt.Errorf("secret is empty: %w", ErrInvalidInput)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
