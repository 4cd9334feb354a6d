package service

import (
	"context"
	"sync"
	"time"

	"github.com/Harshitk-cp/veritas/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultRetentionInterval = 1 * time.Hour
	DefaultRetentionKeep     = 50
)

// RetentionService is the only code path that shortens audit trails. It
// trims entries older than the retention window while always keeping the
// newest entries of every claim.
type RetentionService struct {
	claimStore domain.ClaimStore
	logger     *zap.Logger

	retention time.Duration
	keep      int
	interval  time.Duration
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func NewRetentionService(cs domain.ClaimStore, retentionDays, keep int, logger *zap.Logger) *RetentionService {
	if keep <= 0 {
		keep = DefaultRetentionKeep
	}
	return &RetentionService{
		claimStore: cs,
		logger:     logger,
		retention:  time.Duration(retentionDays) * 24 * time.Hour,
		keep:       keep,
		interval:   defaultRetentionInterval,
		stopCh:     make(chan struct{}),
	}
}

func (s *RetentionService) SetInterval(d time.Duration) {
	s.interval = d
}

// Enabled reports whether a retention window is configured.
func (s *RetentionService) Enabled() bool {
	return s.retention > 0
}

// Start runs retention on a periodic schedule in a background goroutine.
// It does nothing when retention is disabled.
func (s *RetentionService) Start() {
	if !s.Enabled() {
		s.logger.Info("audit retention disabled")
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("audit retention started",
			zap.Duration("interval", s.interval),
			zap.Duration("retention", s.retention),
			zap.Int("keep", s.keep))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				_, _ = s.Run(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("audit retention stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the retention loop.
func (s *RetentionService) Stop() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.wg.Wait()
}

// Run performs one trim pass and logs what it removed.
func (s *RetentionService) Run(ctx context.Context) (int64, error) {
	if !s.Enabled() {
		return 0, nil
	}
	cutoff := timeNow().Add(-s.retention)
	claims, entries, err := s.claimStore.TrimAuditTrail(ctx, cutoff, s.keep)
	if err != nil {
		s.logger.Error("failed to trim audit trails", zap.Error(err))
		return 0, err
	}
	if entries > 0 {
		s.logger.Info("trimmed audit trails",
			zap.Time("cutoff", cutoff),
			zap.Int("keep", s.keep),
			zap.Int64("claims", claims),
			zap.Int64("entries", entries))
	}
	return entries, nil
}
