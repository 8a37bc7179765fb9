package scheduler

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"techroute-service/internal/domain"
	"techroute-service/internal/ports"
)

// TechRef is the slice of a technician the prefilter ranks on.
type TechRef struct {
	Name string
	FSA  string
}

// Prefilter bounds candidate pools before any travel-time lookup: exact FSA
// match first, then straight-line distance between FSA centroids. Each
// centroid is geocoded once ("FSA, Canada") and cached indefinitely.
//
// A nil geocoder degrades gracefully: ranking falls back to FSA match plus
// stable input order.
type Prefilter struct {
	geocoder ports.Geocoder
	cache    ports.GeocodeCache

	mu        sync.Mutex
	centroids map[string]domain.Coordinates
	failed    map[string]struct{}
}

func NewPrefilter(geocoder ports.Geocoder, cache ports.GeocodeCache) *Prefilter {
	return &Prefilter{
		geocoder:  geocoder,
		cache:     cache,
		centroids: map[string]domain.Coordinates{},
		failed:    map[string]struct{}{},
	}
}

// centroid resolves the approximate center of an FSA, memoizing both
// successes and failures for the lifetime of the prefilter.
func (p *Prefilter) centroid(ctx context.Context, fsa string) (domain.Coordinates, bool) {
	if fsa == "" {
		return domain.Coordinates{}, false
	}

	p.mu.Lock()
	if c, ok := p.centroids[fsa]; ok {
		p.mu.Unlock()
		return c, true
	}
	if _, ok := p.failed[fsa]; ok {
		p.mu.Unlock()
		return domain.Coordinates{}, false
	}
	p.mu.Unlock()

	query := fsa + ", Canada"

	if p.cache != nil {
		cached, err := p.cache.GetMany(ctx, []string{query})
		if err != nil {
			log.Warn().Err(err).Str("fsa", fsa).Msg("geocode cache read failed")
		} else if c, ok := cached[query]; ok {
			p.remember(fsa, c)
			return c, true
		}
	}

	if p.geocoder == nil {
		p.forget(fsa)
		return domain.Coordinates{}, false
	}

	c, _, err := p.geocoder.Geocode(ctx, query)
	if err != nil || c.IsZero() {
		log.Warn().Err(err).Str("fsa", fsa).Msg("FSA centroid geocode failed")
		p.forget(fsa)
		return domain.Coordinates{}, false
	}

	if p.cache != nil {
		if err := p.cache.PutMany(ctx, map[string]domain.Coordinates{query: c}); err != nil {
			log.Warn().Err(err).Msg("geocode cache write failed")
		}
	}

	p.remember(fsa, c)
	return c, true
}

func (p *Prefilter) remember(fsa string, c domain.Coordinates) {
	p.mu.Lock()
	p.centroids[fsa] = c
	p.mu.Unlock()
}

func (p *Prefilter) forget(fsa string) {
	p.mu.Lock()
	p.failed[fsa] = struct{}{}
	p.mu.Unlock()
}

// rank orders item indexes by proximity to originFSA: exact FSA matches in
// input order first, then rising centroid distance, then the unrankable
// remainder in input order.
func (p *Prefilter) rank(ctx context.Context, originFSA string, fsas []string, limit int) []int {
	if limit <= 0 || len(fsas) == 0 {
		return nil
	}

	exact := make([]int, 0, len(fsas))
	rest := make([]int, 0, len(fsas))
	for i, fsa := range fsas {
		if originFSA != "" && fsa == originFSA {
			exact = append(exact, i)
		} else {
			rest = append(rest, i)
		}
	}

	if len(exact) >= limit {
		return exact[:limit]
	}

	origin, originOK := p.centroid(ctx, originFSA)
	if originOK {
		type ranked struct {
			idx  int
			dist float64
			ok   bool
		}
		rs := make([]ranked, 0, len(rest))
		for _, i := range rest {
			c, ok := p.centroid(ctx, fsas[i])
			r := ranked{idx: i, ok: ok}
			if ok {
				r.dist = domain.HaversineKm(origin, c)
			}
			rs = append(rs, r)
		}
		sort.SliceStable(rs, func(a, b int) bool {
			if rs[a].ok != rs[b].ok {
				return rs[a].ok
			}
			if !rs[a].ok {
				return false
			}
			return rs[a].dist < rs[b].dist
		})
		rest = rest[:0]
		for _, r := range rs {
			rest = append(rest, r.idx)
		}
	}

	out := append(exact, rest...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// CandidateJobs narrows a job pool to the closest candidates for an origin
// FSA, capped at limit.
func (p *Prefilter) CandidateJobs(ctx context.Context, originFSA string, jobs []domain.Job, limit int) []domain.Job {
	fsas := make([]string, len(jobs))
	for i, j := range jobs {
		fsas[i] = j.FSA
	}

	idxs := p.rank(ctx, originFSA, fsas, limit)
	out := make([]domain.Job, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, jobs[i])
	}
	return out
}

// NearestTechnicians narrows the available technicians to those closest to a
// job's FSA, capped at limit.
func (p *Prefilter) NearestTechnicians(ctx context.Context, jobFSA string, techs []TechRef, limit int) []TechRef {
	fsas := make([]string, len(techs))
	for i, t := range techs {
		fsas[i] = t.FSA
	}

	idxs := p.rank(ctx, jobFSA, fsas, limit)
	out := make([]TechRef, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, techs[i])
	}
	return out
}
