// Package sweeper runs the periodic housekeeping jobs: pruning expired
// reconnection tokens and clearing finished games.
package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"holdem-live/apps/server/internal/lobby"
	"holdem-live/apps/server/internal/persist"
	"holdem-live/holdem"
)

type TokenPruner interface {
	Prune(now time.Time) int
}

// Records is the part of the persistence gateway the sweeper drives.
type Records interface {
	Cleanup(ctx context.Context, gameID string) error
	SweepCompleted(ctx context.Context, cutoff time.Time) ([]string, error)
}

type Options struct {
	// Schedule is a robfig/cron spec, e.g. "@every 1m".
	Schedule string
	// Retention is how long a finished game stays live and how long its
	// record is kept.
	Retention time.Duration
	Now       func() time.Time
	Logger    *zap.Logger
}

type Sweeper struct {
	cron    *cron.Cron
	tokens  TokenPruner
	lobby   *lobby.Lobby
	records Records

	schedule  string
	retention time.Duration
	now       func() time.Time
	log       *zap.Logger
}

// Report summarizes one sweep.
type Report struct {
	TokensPruned int
	Evicted      []string
	RecordsSwept []string
}

func New(tokens TokenPruner, l *lobby.Lobby, records Records, opts Options) *Sweeper {
	if opts.Schedule == "" {
		opts.Schedule = "@every 1m"
	}
	if opts.Retention <= 0 {
		opts.Retention = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	cronLog := cron.PrintfLogger(zap.NewStdLog(opts.Logger.Named("cron")))
	return &Sweeper{
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		tokens:    tokens,
		lobby:     l,
		records:   records,
		schedule:  opts.Schedule,
		retention: opts.Retention,
		now:       opts.Now,
		log:       opts.Logger,
	}
}

func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("[Sweeper] started", zap.String("schedule", s.schedule), zap.Duration("retention", s.retention))
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("[Sweeper] stopped")
}

// RunOnce prunes expired tokens, evicts finished games and deletes completed
// records older than the retention window.
func (s *Sweeper) RunOnce(ctx context.Context) Report {
	now := s.now()
	r := Report{TokensPruned: s.tokens.Prune(now)}

	for _, id := range s.lobby.List() {
		t, err := s.lobby.Get(id)
		if err != nil {
			continue
		}
		state := t.Snapshot()
		if state.Phase != holdem.PhaseComplete {
			continue
		}
		gameOver := state.PlayersWithChips() < 2
		if !gameOver && !t.IsIdleFor(s.retention) {
			continue
		}
		// evict first so no further commits queue saves for the game
		if s.lobby.Delete(id) {
			r.Evicted = append(r.Evicted, id)
		}
		if gameOver {
			// nothing left to resume
			if err := s.records.Cleanup(ctx, id); err != nil {
				s.logStoreError("record cleanup failed", err, zap.String("game", id))
			}
		}
	}

	swept, err := s.records.SweepCompleted(ctx, now.Add(-s.retention))
	if err != nil {
		s.logStoreError("record sweep failed", err)
	}
	r.RecordsSwept = swept

	if r.TokensPruned > 0 || len(r.Evicted) > 0 || len(r.RecordsSwept) > 0 {
		s.log.Info("[Sweeper] sweep done",
			zap.Int("tokens_pruned", r.TokensPruned),
			zap.Strings("evicted", r.Evicted),
			zap.Strings("records_swept", r.RecordsSwept))
	}
	return r
}

// A store that is switched off fails every call; that is not worth a warning
// each minute.
func (s *Sweeper) logStoreError(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if errors.Is(err, persist.ErrUnavailable) {
		s.log.Debug("[Sweeper] "+msg, fields...)
		return
	}
	s.log.Warn("[Sweeper] "+msg, fields...)
}
