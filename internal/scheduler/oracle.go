package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"techroute-service/internal/platform/metrics"
	"techroute-service/internal/ports"
)

// ErrUnreachable marks a pair of addresses with no resolvable driving time.
// The assigner treats such a pairing as infeasible and moves on.
var ErrUnreachable = errors.New("no driving time between addresses")

// Oracle answers driving-time lookups for the assigner. Tests supply a
// table-driven stub; production uses TravelOracle.
type Oracle interface {
	Minutes(ctx context.Context, origin, destination string) (int, error)
}

// TravelOracle memoizes driving-time lookups through a persistent cache. A
// provider failure degrades to ErrUnreachable rather than aborting the run.
//
// Safe for concurrent use when the underlying cache is.
type TravelOracle struct {
	provider ports.TravelTimeProvider
	cache    ports.TravelCache
	mode     string
	traffic  bool

	hits     atomic.Int64
	calls    atomic.Int64
	failures atomic.Int64
}

func NewTravelOracle(provider ports.TravelTimeProvider, cache ports.TravelCache) *TravelOracle {
	return &TravelOracle{
		provider: provider,
		cache:    cache,
		mode:     "driving",
		traffic:  true,
	}
}

// OracleStats is a snapshot of lookup counters for cost monitoring.
type OracleStats struct {
	CacheHits     int64
	ExternalCalls int64
	Failures      int64
}

func (o *TravelOracle) Stats() OracleStats {
	return OracleStats{
		CacheHits:     o.hits.Load(),
		ExternalCalls: o.calls.Load(),
		Failures:      o.failures.Load(),
	}
}

func normalizeAddr(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// key builds the normalized cache key for a pair of addresses.
func (o *TravelOracle) key(origin, destination string) string {
	traffic := "traffic"
	if !o.traffic {
		traffic = "no-traffic"
	}
	return normalizeAddr(origin) + "|" + normalizeAddr(destination) + "|" + o.mode + "|" + traffic
}

// Minutes returns the driving time between two addresses, consulting the
// cache first. Identical addresses cost zero without any lookup.
func (o *TravelOracle) Minutes(ctx context.Context, origin, destination string) (int, error) {
	if normalizeAddr(origin) == "" || normalizeAddr(destination) == "" {
		return 0, fmt.Errorf("travel minutes: origin and destination must be non-empty")
	}
	if normalizeAddr(origin) == normalizeAddr(destination) {
		return 0, nil
	}

	key := o.key(origin, destination)

	if o.cache != nil {
		minutes, ok, err := o.cache.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Msg("travel cache read failed")
		} else if ok {
			o.hits.Add(1)
			metrics.TravelLookups.WithLabelValues("cache").Inc()
			return minutes, nil
		}
	}

	minutes, err := o.provider.TravelMinutes(ctx, origin, destination)
	if err != nil {
		// A canceled run must abort, not mark the pairing unreachable.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		o.failures.Add(1)
		metrics.TravelLookups.WithLabelValues("unreachable").Inc()
		log.Warn().Err(err).Str("origin", origin).Str("destination", destination).
			Msg("travel lookup failed")
		return 0, fmt.Errorf("travel %q -> %q: %w", origin, destination, ErrUnreachable)
	}

	o.calls.Add(1)
	metrics.TravelLookups.WithLabelValues("provider").Inc()

	if o.cache != nil {
		if err := o.cache.Put(ctx, key, minutes); err != nil {
			log.Warn().Err(err).Msg("travel cache write failed")
		}
	}

	return minutes, nil
}
