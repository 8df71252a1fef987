package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/rk9ine/skrawl-game-sub000/internal/v1/logging"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/metrics"
)

// Postgres writes finished sessions to a Postgres database through a
// circuit breaker. When the breaker is open, writes are dropped and
// gameplay continues.
type Postgres struct {
	pool *pgxpool.Pool
	cb   *gobreaker.CircuitBreaker
}

// NewPostgres connects to databaseURL and verifies the connection.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	cfg.MaxConns = 8

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	st := gobreaker.Settings{
		Name:        "postgres",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("postgres").Set(stateVal)
		},
	}

	logging.Info(ctx, "Connected to Postgres")
	return &Postgres{
		pool: pool,
		cb:   gobreaker.NewCircuitBreaker(st),
	}, nil
}

// EnsureSchema creates the session tables if they do not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS game_session (
			id         TEXT PRIMARY KEY,
			room_id    TEXT NOT NULL,
			host_id    TEXT NOT NULL DEFAULT '',
			mode       TEXT NOT NULL DEFAULT 'public',
			settings   JSONB NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at   TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS game_participant (
			session_id      TEXT NOT NULL REFERENCES game_session(id),
			user_id         TEXT NOT NULL,
			display_name    TEXT NOT NULL,
			final_score     INT NOT NULL,
			final_rank      INT NOT NULL,
			correct_guesses INT NOT NULL DEFAULT 0,
			best_guess_ms   BIGINT NOT NULL DEFAULT 0,
			joined_at       TIMESTAMPTZ NOT NULL,
			left_at         TIMESTAMPTZ,
			PRIMARY KEY (session_id, user_id)
		);
		CREATE TABLE IF NOT EXISTS game_round (
			session_id      TEXT NOT NULL REFERENCES game_session(id),
			round_number    INT NOT NULL,
			drawer_user_id  TEXT NOT NULL,
			word            TEXT NOT NULL,
			correct_guesses INT NOT NULL,
			scores_json     JSONB NOT NULL DEFAULT '{}',
			started_at      TIMESTAMPTZ NOT NULL,
			ended_at        TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (session_id, round_number, drawer_user_id)
		);`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// SaveSession writes the session, its participants and its rounds in one
// transaction.
func (p *Postgres) SaveSession(ctx context.Context, rec *SessionRecord) error {
	_, err := p.cb.Execute(func() (any, error) {
		return nil, p.saveTx(ctx, rec)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("postgres").Inc()
			logging.Warn(ctx, "Postgres circuit breaker open, dropping session record",
				zap.String("sessionId", rec.SessionID))
			return nil // Graceful degradation
		}
		logging.Error(ctx, "Failed to save game session",
			zap.String("sessionId", rec.SessionID), zap.Error(err))
		return err
	}
	return nil
}

func (p *Postgres) saveTx(ctx context.Context, rec *SessionRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO game_session (id, room_id, host_id, mode, settings, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.SessionID, rec.RoomID, rec.HostID, rec.Mode, rec.Settings, rec.StartedAt, rec.EndedAt)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	for _, part := range rec.Participants {
		_, err = tx.Exec(ctx, `
			INSERT INTO game_participant (session_id, user_id, display_name, final_score, final_rank, correct_guesses, best_guess_ms, joined_at, left_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			rec.SessionID, part.UserID, part.DisplayName, part.FinalScore, part.FinalRank, part.CorrectGuesses, part.BestGuessMs, part.JoinedAt, part.LeftAt)
		if err != nil {
			return fmt.Errorf("failed to insert participant %s: %w", part.UserID, err)
		}
	}

	for _, round := range rec.Rounds {
		scores := round.ScoresJSON
		if len(scores) == 0 {
			scores = []byte("{}")
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO game_round (session_id, round_number, drawer_user_id, word, correct_guesses, scores_json, started_at, ended_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			rec.SessionID, round.RoundNumber, round.DrawerUserID, round.Word, round.CorrectGuesses, scores, round.StartedAt, round.EndedAt)
		if err != nil {
			return fmt.Errorf("failed to insert round %d: %w", round.RoundNumber, err)
		}
	}

	return tx.Commit(ctx)
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
