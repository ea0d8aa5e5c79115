package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweep runs a loop deleting expired entries every interval,
// until the context is cancelled.
func Sweep(ctx context.Context, s Sweeper, interval time.Duration, log zerolog.Logger) {
	log.Info().Msgf("Starting expired entry sweep every %s", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Stopping expired entry sweep")
			return
		case <-ticker.C:
			n, err := s.DeleteExpired(ctx)
			if err != nil {
				log.Error().Err(err).Msg("Could not delete expired entries")
				continue
			}
			if n > 0 {
				log.Trace().Int("removed", n).Msg("Deleted expired entries")
			}
		}
	}
}
