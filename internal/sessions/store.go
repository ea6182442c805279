package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	wis "wis-backend"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) GetSession(ctx context.Context, sessionRef string) (Session, error) {
	row := s.pool.QueryRow(ctx, `SELECT id::text, design_flow, tank_volume, threshold_profile, created_at FROM operator_sessions WHERE id=$1`, sessionRef)
	var session Session
	var plant wis.PlantSpec
	if err := row.Scan(&session.Ref, &plant.DesignFlow, &plant.TankVolume, &session.ThresholdProfile, &session.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	session.Plant = plant
	return session, nil
}

func (s *PostgresStore) SaveSession(ctx context.Context, session Session) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO operator_sessions (id, design_flow, tank_volume, threshold_profile, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET design_flow=EXCLUDED.design_flow, tank_volume=EXCLUDED.tank_volume, threshold_profile=EXCLUDED.threshold_profile`,
		session.Ref, session.Plant.DesignFlow, session.Plant.TankVolume, session.ThresholdProfile, session.CreatedAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
