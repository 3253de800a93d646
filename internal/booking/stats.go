package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

const statsKeyPrefix = "stats"

// StatsKey returns the cache key of a statistics query.
func StatsKey(filter StatsFilter) string {
	scope := filter.FacilityID
	if scope == "" {
		scope = "all"
	}
	return fmt.Sprintf("%s:%s:%d:%d", statsKeyPrefix, scope, unixOrZero(filter.From), unixOrZero(filter.To))
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// GetBookingStats serves aggregate counts, read-through cached for a short TTL.
// Cache failures degrade to a direct store query.
func (s *service) GetBookingStats(ctx context.Context, filter StatsFilter) (*Stats, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.To.After(filter.From) {
		return nil, ErrInvalidTimeRange
	}

	key := StatsKey(filter)
	if s.KV != nil {
		raw, ok, err := s.KV.Get(ctx, key)
		switch {
		case err != nil:
			log.Printf("booking: read stats cache %s failed: %v", key, err)
		case ok:
			var cached Stats
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return &cached, nil
			}
			log.Printf("booking: discarding malformed stats cache entry %s", key)
		}
	}

	stats, err := s.Repo.Stats(ctx, filter)
	if err != nil {
		return nil, upstream("booking stats", err)
	}

	if s.KV != nil {
		if raw, err := json.Marshal(stats); err == nil {
			if err := s.KV.Set(ctx, key, string(raw), s.statsTTL); err != nil {
				log.Printf("booking: write stats cache %s failed: %v", key, err)
			}
		}
	}
	return stats, nil
}

// invalidateStats drops the cached statistics a booking change can affect:
// every entry of its facility and every cross-facility entry.
func (s *service) invalidateStats(ctx context.Context, facilityID string) {
	if s.KV == nil {
		return
	}
	patterns := []string{fmt.Sprintf("%s:all:*", statsKeyPrefix)}
	if facilityID != "" {
		patterns = append(patterns, fmt.Sprintf("%s:%s:*", statsKeyPrefix, facilityID))
	}

	for _, p := range patterns {
		keys, err := s.KV.Keys(ctx, p)
		if err != nil {
			log.Printf("booking: list stats cache %s failed: %v", p, err)
			continue
		}
		if len(keys) == 0 {
			continue
		}
		if _, err := s.KV.Del(ctx, keys...); err != nil {
			log.Printf("booking: invalidate stats cache %s failed: %v", p, err)
		}
	}
}
