package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/synergypro/verifyd/services/credential"
	"github.com/synergypro/verifyd/services/logging"
	"go.uber.org/zap"
)

// Sweeper periodically evicts pending codes older than the expiry window.
// Verify checks expiry on its own; sweeping only reclaims space.
type Sweeper struct {
	cron     *cron.Cron
	store    credential.Sweeper
	schedule string
	expiry   time.Duration
	logger   *logging.Service
	now      func() time.Time
}

// NewSweeper returns nil when store cannot sweep, as with the Redis store
// whose keys expire on their own.
func NewSweeper(store credential.Store, schedule string, expiry time.Duration, logger *logging.Service) *Sweeper {
	sweeper, ok := store.(credential.Sweeper)
	if !ok {
		return nil
	}

	cronLogger := cron.DiscardLogger
	if l := logger.Logger(); l != nil {
		cronLogger = cron.PrintfLogger(zap.NewStdLog(l))
	}

	return &Sweeper{
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger))),
		store:    sweeper,
		schedule: schedule,
		expiry:   expiry,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			s.logger.Error("pending code sweep failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule pending code sweep: %w", err)
	}

	s.logger.Info("scheduled pending code sweep", zap.String("schedule", s.schedule))
	s.cron.Start()
	return nil
}

// Stop waits for a running sweep to finish or ctx to end.
func (s *Sweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	removed, err := s.store.DeleteExpired(ctx, s.now().Add(-s.expiry))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Debug("swept expired pending codes", zap.Int64("removed", removed))
	}
	return removed, nil
}
