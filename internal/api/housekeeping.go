package api

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dehost-labs/dehost/internal/serverdb"
)

// HousekeepingStats summarizes one housekeeping run.
type HousekeepingStats struct {
	CodesExpired int
	CodesPruned  int64
	EventsPruned int64
}

func (s *Server) scheduleHousekeeping() error {
	interval := s.config.HousekeepingInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	_, err := s.scheduler.Every(interval).WaitForSchedule().SingletonMode().Do(func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("housekeeping panic", "panic", r)
			}
		}()
		stats, err := s.RunHousekeeping()
		if err != nil {
			slog.Error("housekeeping", "err", err)
			return
		}
		if stats.CodesPruned > 0 || stats.EventsPruned > 0 {
			slog.Info("housekeeping",
				"codes_expired", stats.CodesExpired,
				"codes_pruned", stats.CodesPruned,
				"events_pruned", stats.EventsPruned,
			)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule housekeeping: %w", err)
	}
	return nil
}

// RunHousekeeping records an expired event for each unverified code about to be
// pruned, prunes those codes and trims old pairing events. Verified codes are
// never removed.
func (s *Server) RunHousekeeping() (HousekeepingStats, error) {
	var stats HousekeepingStats

	expired, err := s.store.ExpiredPendingCodes()
	if err != nil {
		return stats, err
	}
	cutoff := s.store.Now().Add(-s.config.CodeRetention)
	for _, vc := range expired {
		if !vc.ExpiresAt.Before(cutoff) {
			continue
		}
		meta := fmt.Sprintf(`{"expires_at":%q}`, vc.ExpiresAt.UTC().Format(time.RFC3339))
		if err := s.store.InsertPairingEvent(vc.ID, serverdb.PairingEventExpired, meta); err != nil {
			slog.Warn("record expired event", "code_id", vc.ID, "err", err)
			continue
		}
		stats.CodesExpired++
	}

	stats.CodesPruned, err = s.store.PruneExpiredCodes(s.config.CodeRetention)
	if err != nil {
		return stats, err
	}
	s.metrics.codesPruned.Add(float64(stats.CodesPruned))

	if s.config.PairingEventRetention > 0 {
		stats.EventsPruned, err = s.store.CleanupPairingEvents(s.config.PairingEventRetention)
		if err != nil {
			return stats, err
		}
	}
	return stats, nil
}
