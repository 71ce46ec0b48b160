package lockstore

import (
	"context"
	"time"
)

// RunSweeper calls Sweep every interval until ctx is done. Locks expire
// without it; the sweeper only bounds memory held by keys nobody touches again.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("swept expired locks", "removed", n)
			}
		}
	}
}
