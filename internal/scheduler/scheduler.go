// Package scheduler runs jellyvr's periodic background work.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jmylchreest/jellyvr/internal/models"
	"github.com/jmylchreest/jellyvr/pkg/jellyfin"
)

// DefaultProgressSchedule is how often playback positions are pushed upstream.
const DefaultProgressSchedule = "@every 30s"

// SessionStore lists and persists sessions.
type SessionStore interface {
	List(ctx context.Context) ([]*models.Session, error)
	Update(ctx context.Context, session *models.Session) error
}

// ProgressReporter reports a play session's position to Jellyfin.
type ProgressReporter interface {
	ReportPlaybackProgress(ctx context.Context, token string, info jellyfin.PlaybackProgressInfo) error
}

// TickSummary counts what one extrapolation pass did.
type TickSummary struct {
	Updated    int
	AutoPaused int
	Failed     int
	Skipped    int
}

// ProgressExtrapolator keeps Jellyfin's resume position current while a
// player is running without sending events. On every tick each playing
// session's position is advanced by the time elapsed since its last update;
// sessions that run past the end of the item are paused instead.
type ProgressExtrapolator struct {
	mu sync.Mutex

	sessions SessionStore
	reporter ProgressReporter
	schedule string
	now      func() time.Time
	logger   *slog.Logger

	cron   *cron.Cron
	cancel context.CancelFunc
}

// NewProgressExtrapolator creates an extrapolator running on a cron schedule.
// An empty schedule uses DefaultProgressSchedule.
func NewProgressExtrapolator(sessions SessionStore, reporter ProgressReporter, schedule string) *ProgressExtrapolator {
	if schedule == "" {
		schedule = DefaultProgressSchedule
	}
	return &ProgressExtrapolator{
		sessions: sessions,
		reporter: reporter,
		schedule: schedule,
		now:      time.Now,
		logger:   slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (p *ProgressExtrapolator) WithLogger(logger *slog.Logger) *ProgressExtrapolator {
	p.logger = logger
	return p
}

// WithClock replaces the time source.
func (p *ProgressExtrapolator) WithClock(now func() time.Time) *ProgressExtrapolator {
	p.now = now
	return p
}

// Start schedules the tick. Ticks never overlap; one still running when the
// next is due causes that one to be skipped.
func (p *ProgressExtrapolator) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cron != nil {
		return fmt.Errorf("progress extrapolator already started")
	}

	log := cronLogger{logger: p.logger}
	c := cron.New(
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)

	runCtx, cancel := context.WithCancel(ctx)
	_, err := c.AddFunc(p.schedule, func() {
		if runCtx.Err() != nil {
			return
		}
		// A tick in progress finishes even if the process context is cancelled.
		p.Tick(context.WithoutCancel(runCtx))
	})
	if err != nil {
		cancel()
		return fmt.Errorf("scheduling progress extrapolation %q: %w", p.schedule, err)
	}

	c.Start()
	p.cron = c
	p.cancel = cancel

	p.logger.Info("progress extrapolator started", slog.String("schedule", p.schedule))
	return nil
}

// Stop cancels future ticks and waits for a running tick to finish.
func (p *ProgressExtrapolator) Stop() {
	p.mu.Lock()
	c, cancel := p.cron, p.cancel
	p.cron, p.cancel = nil, nil
	p.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()

	p.logger.Info("progress extrapolator stopped")
}

// Tick runs one extrapolation pass over all sessions. Failures are logged
// per session and never abort the pass.
func (p *ProgressExtrapolator) Tick(ctx context.Context) TickSummary {
	var summary TickSummary

	sessions, err := p.sessions.List(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "listing sessions for progress update failed", slog.String("error", err.Error()))
		return summary
	}

	for _, session := range sessions {
		switch p.advance(ctx, session) {
		case outcomeUpdated:
			summary.Updated++
		case outcomeAutoPaused:
			summary.AutoPaused++
		case outcomeFailed:
			summary.Failed++
		default:
			summary.Skipped++
		}
	}

	level := slog.LevelDebug
	if summary.Updated+summary.AutoPaused+summary.Failed > 0 {
		level = slog.LevelInfo
	}
	p.logger.Log(ctx, level, "progress tick complete",
		slog.Int("updated", summary.Updated),
		slog.Int("auto_paused", summary.AutoPaused),
		slog.Int("failed", summary.Failed),
		slog.Int("skipped", summary.Skipped),
	)
	return summary
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeUpdated
	outcomeAutoPaused
	outcomeFailed
)

func (p *ProgressExtrapolator) advance(ctx context.Context, session *models.Session) outcome {
	st, ok := session.State().(models.Authenticated)
	if !ok || st.LastPlayback == nil || st.LastPlayback.Paused {
		return outcomeSkipped
	}

	log := p.logger.With(
		slog.String("session_id", session.ID.String()),
		slog.String("item_id", st.LastPlayback.ItemID),
	)

	playback := *st.LastPlayback
	now := p.now()
	predicted := playback.Predict(now)

	if playback.Overruns(predicted) {
		// Position stays at the last reported value; only the paused flag moves.
		playback.Paused = true
		playback.LastUpdate = now
		if err := p.persist(ctx, session, &playback); err != nil {
			log.WarnContext(ctx, "persisting auto-pause failed", slog.String("error", err.Error()))
			return outcomeFailed
		}
		log.InfoContext(ctx, "playback auto-paused past end of item",
			slog.Int64("predicted_ms", predicted),
			slog.Int64("duration_ms", playback.DurationMs),
		)
		return outcomeAutoPaused
	}

	err := p.reporter.ReportPlaybackProgress(ctx, st.UpstreamToken, jellyfin.PlaybackProgressInfo{
		ItemID:                 playback.ItemID,
		PlaySessionID:          playback.PlaySessionID,
		PositionTicks:          jellyfin.MsToTicks(predicted),
		IsPaused:               false,
		CanSeek:                true,
		PlayMethod:             jellyfin.PlayMethodTranscode,
		PlaybackStartTimeTicks: jellyfin.TimeToTicks(playback.StartedAt),
	})
	if err != nil {
		log.WarnContext(ctx, "reporting playback progress failed", slog.String("error", err.Error()))
		return outcomeFailed
	}

	playback.PositionMs = predicted
	playback.LastUpdate = now
	if err := p.persist(ctx, session, &playback); err != nil {
		log.WarnContext(ctx, "persisting playback progress failed", slog.String("error", err.Error()))
		return outcomeFailed
	}
	return outcomeUpdated
}

func (p *ProgressExtrapolator) persist(ctx context.Context, session *models.Session, playback *models.PlaybackState) error {
	if err := session.SetPlayback(playback); err != nil {
		return err
	}
	return p.sessions.Update(ctx, session)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, slog.String("error", err.Error()))...)
}
