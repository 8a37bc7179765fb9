package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"techroute-service/internal/domain"
)

// Params are the tuning knobs of one scheduling run. All durations are
// minutes.
type Params struct {
	// DailyBudgetMin is the active time available per technician per day
	// (travel + onsite + buffer), lunch already deducted.
	DailyBudgetMin int
	LunchMin       int
	BufferMin      int

	// MinChunkMin is the smallest part a multi-day split may produce other
	// than the final one.
	MinChunkMin int

	// OvertimeCeilingMin caps an overtime day's active time including lunch;
	// OvertimeMaxOverageMin caps how far past the normal budget the single
	// overtime job may run.
	OvertimeCeilingMin    int
	OvertimeMaxOverageMin int

	MaxDays     int
	SoloPool    int
	DuoPool     int
	NearbyTechs int

	StrictZones bool
	Penalties   domain.ZonePenalties
}

// Assigner is the day-by-day greedy scheduler. Each day runs a carryover
// pass, a duo pass, a solo pass, and a return-home step per technician.
// Once booked, a job is never un-assigned.
type Assigner struct {
	oracle    Oracle
	prefilter *Prefilter
	params    Params
}

func NewAssigner(oracle Oracle, prefilter *Prefilter, params Params) *Assigner {
	if prefilter == nil {
		prefilter = NewPrefilter(nil, nil)
	}
	return &Assigner{oracle: oracle, prefilter: prefilter, params: params}
}

// techState is one technician's position within the current day.
type techState struct {
	tech domain.Technician

	loc  string
	zone domain.Zone
	fsa  string

	used      int
	seq       int
	worked    bool
	dayLocked bool

	carry *domain.CarryoverSplit
}

func (s *techState) resetDay() {
	s.loc = s.tech.HomeAddress
	s.zone = s.tech.Zone
	s.fsa = s.tech.FSA
	s.used = 0
	s.seq = 0
	s.worked = false
	s.dayLocked = false
}

// Run schedules jobs onto the given roster. Oracle failures degrade to
// skipping the pairing; the only hard error is context cancellation.
func (a *Assigner) Run(ctx context.Context, techs []domain.Technician, jobs []domain.Job) (domain.PlanResult, error) {
	result := domain.PlanResult{
		RunID: uuid.NewString(),
		Techs: len(techs),
	}

	var solo, duo []domain.Job
	for _, j := range jobs {
		switch {
		case j.TechsRequired > 2:
			result.Unplannable = append(result.Unplannable, j)
		case j.TechsRequired == 2:
			duo = append(duo, j)
		default:
			solo = append(solo, j)
		}
	}

	byID := make(map[string]domain.Job, len(jobs))
	for _, j := range jobs {
		byID[j.ID] = j
	}

	states := make([]*techState, len(techs))
	for i, t := range techs {
		states[i] = &techState{tech: t}
	}

	day := 0
	for day = 1; day <= a.params.MaxDays; day++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if len(solo) == 0 && len(duo) == 0 && !anyCarryover(states) {
			day--
			break
		}

		for _, s := range states {
			s.resetDay()
		}

		for _, s := range states {
			if s.carry != nil {
				a.continueCarryover(ctx, day, s, &result)
			}
		}

		duo = a.duoPass(ctx, day, states, duo, &result)

		for _, s := range states {
			solo = a.soloPass(ctx, day, s, solo, &result)
		}

		a.returnHome(ctx, day, states, &result)
	}
	if day > a.params.MaxDays {
		day = a.params.MaxDays
	}

	result.Days = day
	result.Unscheduled = append(result.Unscheduled, duo...)
	result.Unscheduled = append(result.Unscheduled, solo...)
	openSplits := map[string]bool{}
	for _, s := range states {
		if s.carry != nil {
			openSplits[s.carry.JobID] = true
			if j, ok := byID[s.carry.JobID]; ok {
				result.Unscheduled = append(result.Unscheduled, j)
			}
		}
	}
	result.Success = len(result.Unscheduled) == 0 && len(result.Unplannable) == 0

	labelSplitParts(result.Visits, openSplits)

	log.Info().
		Str("run_id", result.RunID).
		Int("techs", result.Techs).
		Int("days", result.Days).
		Int("visits", len(result.Visits)).
		Int("unscheduled", len(result.Unscheduled)).
		Bool("success", result.Success).
		Msg("scheduling run finished")

	return result, nil
}

func anyCarryover(states []*techState) bool {
	for _, s := range states {
		if s.carry != nil {
			return true
		}
	}
	return false
}

// continueCarryover books the next part of an in-progress split. The
// technician stays locked for the day unless the split closes out.
func (a *Assigner) continueCarryover(ctx context.Context, day int, s *techState, result *domain.PlanResult) {
	c := s.carry

	travel, err := a.oracle.Minutes(ctx, s.loc, c.Address)
	if err != nil {
		s.dayLocked = true
		return
	}

	capacity := a.params.DailyBudgetMin - s.used - travel - a.params.BufferMin
	if capacity <= 0 {
		s.dayLocked = true
		return
	}

	if c.RemainingMin <= capacity {
		a.book(day, s, bookReq{
			jobID:   c.JobID,
			address: c.Address,
			zone:    c.Zone,
			fsa:     c.FSA,
			travel:  travel,
			onsite:  c.RemainingMin,
			part:    c.NextPart,
		}, result)
		s.carry = nil
		return
	}

	chunk := capacity
	if c.RemainingMin-chunk < a.params.MinChunkMin {
		chunk = c.RemainingMin - a.params.MinChunkMin
	}
	if chunk <= 0 {
		s.dayLocked = true
		return
	}

	a.book(day, s, bookReq{
		jobID:   c.JobID,
		address: c.Address,
		zone:    c.Zone,
		fsa:     c.FSA,
		travel:  travel,
		onsite:  chunk,
		part:    c.NextPart,
	}, result)

	c.RemainingMin -= chunk
	c.NextPart++
	s.dayLocked = true
}

// duoPairing is one feasible (job, pair) combination under evaluation.
type duoPairing struct {
	job      domain.Job
	a, b     *techState
	travelA  int
	travelB  int
	start    int
	overtime bool
}

// duoPass books two-technician jobs onto pairs until none fit. Selection
// minimizes (common start, max travel) across every candidate job and
// geographically-ranked pair.
func (a *Assigner) duoPass(ctx context.Context, day int, states []*techState, duo []domain.Job, result *domain.PlanResult) []domain.Job {
	for len(duo) > 0 {
		free := availableStates(states)
		if len(free) < 2 {
			return duo
		}

		pool := duo
		if len(pool) > a.params.DuoPool {
			pool = pool[:a.params.DuoPool]
		}

		best := a.bestPairing(ctx, pool, free, false)
		if best == nil {
			// Overtime exception: one pair on an otherwise-empty day may
			// exceed the budget by a small overage.
			best = a.bestPairing(ctx, pool, free, true)
		}
		if best == nil {
			return duo
		}

		onsiteEach := (best.job.DurationMin + 1) / 2
		for _, s := range []*techState{best.a, best.b} {
			travel := best.travelA
			if s == best.b {
				travel = best.travelB
			}
			a.book(day, s, bookReq{
				jobID:    best.job.ID,
				address:  best.job.Address,
				zone:     best.job.Zone,
				fsa:      best.job.FSA,
				travel:   travel,
				onsite:   onsiteEach,
				startAt:  best.start,
				duo:      true,
				overtime: best.overtime,
			}, result)
			if best.overtime {
				s.dayLocked = true
			}
		}

		duo = removeJob(duo, best.job.ID)
	}
	return duo
}

func availableStates(states []*techState) []*techState {
	out := make([]*techState, 0, len(states))
	for _, s := range states {
		if s.dayLocked || s.carry != nil {
			continue
		}
		out = append(out, s)
	}
	return out
}

// bestPairing evaluates candidate jobs against all unordered pairs of their
// nearest technicians. With overtime set, only fresh pairs on an empty day
// qualify and the budget stretches to the overtime ceiling.
func (a *Assigner) bestPairing(ctx context.Context, pool []domain.Job, free []*techState, overtime bool) *duoPairing {
	byName := make(map[string]*techState, len(free))
	refs := make([]TechRef, 0, len(free))
	for _, s := range free {
		byName[s.tech.Name] = s
		refs = append(refs, TechRef{Name: s.tech.Name, FSA: s.fsa})
	}

	var best *duoPairing
	var bestMaxTravel int

	for _, job := range pool {
		near := a.prefilter.NearestTechnicians(ctx, job.FSA, refs, a.params.NearbyTechs)
		if len(near) < 2 {
			continue
		}

		for i := 0; i < len(near); i++ {
			for j := i + 1; j < len(near); j++ {
				sa, sb := byName[near[i].Name], byName[near[j].Name]

				p, ok := a.evaluatePair(ctx, job, sa, sb, overtime)
				if !ok {
					continue
				}

				maxTravel := p.travelA
				if p.travelB > maxTravel {
					maxTravel = p.travelB
				}
				if best == nil || p.start < best.start ||
					(p.start == best.start && maxTravel < bestMaxTravel) {
					cp := p
					best = &cp
					bestMaxTravel = maxTravel
				}
			}
		}
	}

	return best
}

// evaluatePair checks one (job, pair) combination. Feasibility includes the
// drive home: both running totals must close the day within budget.
func (a *Assigner) evaluatePair(ctx context.Context, job domain.Job, sa, sb *techState, overtime bool) (duoPairing, bool) {
	if overtime && (sa.worked || sb.worked) {
		return duoPairing{}, false
	}

	travelA, err := a.oracle.Minutes(ctx, sa.loc, job.Address)
	if err != nil {
		return duoPairing{}, false
	}
	travelB, err := a.oracle.Minutes(ctx, sb.loc, job.Address)
	if err != nil {
		return duoPairing{}, false
	}

	onsiteEach := (job.DurationMin + 1) / 2

	start := sa.used + travelA
	if sb.used+travelB > start {
		start = sb.used + travelB
	}
	end := start + onsiteEach + a.params.BufferMin

	retA, err := a.oracle.Minutes(ctx, job.Address, sa.tech.HomeAddress)
	if err != nil {
		return duoPairing{}, false
	}
	retB, err := a.oracle.Minutes(ctx, job.Address, sb.tech.HomeAddress)
	if err != nil {
		return duoPairing{}, false
	}

	if !overtime {
		if end+retA > a.params.DailyBudgetMin || end+retB > a.params.DailyBudgetMin {
			return duoPairing{}, false
		}
	} else {
		overage := end - a.params.DailyBudgetMin
		if overage <= 0 || overage >= a.params.OvertimeMaxOverageMin {
			return duoPairing{}, false
		}
		if end+a.params.LunchMin > a.params.OvertimeCeilingMin {
			return duoPairing{}, false
		}
	}

	return duoPairing{
		job:      job,
		a:        sa,
		b:        sb,
		travelA:  travelA,
		travelB:  travelB,
		start:    start,
		overtime: overtime,
	}, true
}

// soloPass fills one technician's remaining day with single-technician jobs,
// then tries an overtime booking, then tries to open a multi-day split.
func (a *Assigner) soloPass(ctx context.Context, day int, s *techState, solo []domain.Job, result *domain.PlanResult) []domain.Job {
	if s.dayLocked || s.carry != nil {
		return solo
	}

	for len(solo) > 0 && s.used < a.params.DailyBudgetMin {
		pool := a.zonePool(solo, s.tech.Zone)
		pool = a.prefilter.CandidateJobs(ctx, s.fsa, pool, a.params.SoloPool)

		type candidate struct {
			job    domain.Job
			travel int
			score  int
		}
		var best *candidate

		for _, job := range pool {
			travel, err := a.oracle.Minutes(ctx, s.loc, job.Address)
			if err != nil {
				continue
			}
			score := travel + a.params.Penalties.Penalty(s.zone, job.Zone)

			needed := travel + job.DurationMin + a.params.BufferMin
			if s.used+needed > a.params.DailyBudgetMin {
				continue
			}
			if best == nil || score < best.score {
				best = &candidate{job: job, travel: travel, score: score}
			}
		}

		if best == nil {
			if !s.worked {
				if booked := a.tryOvertime(ctx, day, s, pool, result); booked != "" {
					return removeJob(solo, booked)
				}
			}
			if booked := a.trySplitStart(ctx, day, s, pool, result); booked != "" {
				return removeJob(solo, booked)
			}
			return solo
		}

		a.book(day, s, bookReq{
			jobID:   best.job.ID,
			address: best.job.Address,
			zone:    best.job.Zone,
			fsa:     best.job.FSA,
			travel:  best.travel,
			onsite:  best.job.DurationMin,
		}, result)
		solo = removeJob(solo, best.job.ID)
	}

	return solo
}

// zonePool applies strict-zone narrowing: own zone first, then the
// MTL/other spillover, then everything.
func (a *Assigner) zonePool(jobs []domain.Job, zone domain.Zone) []domain.Job {
	if !a.params.StrictZones {
		return jobs
	}

	own := make([]domain.Job, 0, len(jobs))
	for _, j := range jobs {
		if j.Zone == zone {
			own = append(own, j)
		}
	}
	if len(own) > 0 {
		return own
	}

	spill := make([]domain.Job, 0, len(jobs))
	for _, j := range jobs {
		if j.Zone == domain.ZoneMTLLaval || j.Zone == domain.ZoneOther {
			spill = append(spill, j)
		}
	}
	if len(spill) > 0 {
		return spill
	}
	return jobs
}

// tryOvertime books the closest job as the technician's single job of the
// day past the normal budget. Returns the booked job id, or "".
func (a *Assigner) tryOvertime(ctx context.Context, day int, s *techState, pool []domain.Job, result *domain.PlanResult) string {
	type candidate struct {
		job    domain.Job
		travel int
	}
	var best *candidate

	for _, job := range pool {
		travel, err := a.oracle.Minutes(ctx, s.loc, job.Address)
		if err != nil {
			continue
		}

		end := s.used + travel + job.DurationMin + a.params.BufferMin
		overage := end - a.params.DailyBudgetMin
		if overage <= 0 || overage >= a.params.OvertimeMaxOverageMin {
			continue
		}
		if end+a.params.LunchMin > a.params.OvertimeCeilingMin {
			continue
		}
		if best == nil || travel < best.travel {
			best = &candidate{job: job, travel: travel}
		}
	}

	if best == nil {
		return ""
	}

	a.book(day, s, bookReq{
		jobID:    best.job.ID,
		address:  best.job.Address,
		zone:     best.job.Zone,
		fsa:      best.job.FSA,
		travel:   best.travel,
		onsite:   best.job.DurationMin,
		overtime: true,
	}, result)
	s.dayLocked = true

	return best.job.ID
}

// trySplitStart opens a multi-day split for the closest job whose on-site
// duration alone exceeds the daily budget, honoring the no-crumbs rule.
// Returns the booked job id, or "".
func (a *Assigner) trySplitStart(ctx context.Context, day int, s *techState, pool []domain.Job, result *domain.PlanResult) string {
	type candidate struct {
		job    domain.Job
		travel int
		chunk  int
	}
	var best *candidate

	for _, job := range pool {
		if job.DurationMin <= a.params.DailyBudgetMin {
			continue
		}

		travel, err := a.oracle.Minutes(ctx, s.loc, job.Address)
		if err != nil {
			continue
		}

		chunk := a.params.DailyBudgetMin - s.used - travel - a.params.BufferMin
		if chunk <= 0 {
			continue
		}
		if job.DurationMin-chunk < a.params.MinChunkMin {
			chunk = job.DurationMin - a.params.MinChunkMin
		}
		if chunk < a.params.MinChunkMin {
			continue
		}
		if best == nil || travel < best.travel {
			best = &candidate{job: job, travel: travel, chunk: chunk}
		}
	}

	if best == nil {
		return ""
	}

	a.book(day, s, bookReq{
		jobID:   best.job.ID,
		address: best.job.Address,
		zone:    best.job.Zone,
		fsa:     best.job.FSA,
		travel:  best.travel,
		onsite:  best.chunk,
		part:    1,
	}, result)

	s.carry = &domain.CarryoverSplit{
		JobID:        best.job.ID,
		Address:      best.job.Address,
		Zone:         best.job.Zone,
		FSA:          best.job.FSA,
		RemainingMin: best.job.DurationMin - best.chunk,
		NextPart:     2,
	}
	s.dayLocked = true

	return best.job.ID
}

// bookReq is one visit to record against a technician's day.
type bookReq struct {
	jobID   string
	address string
	zone    domain.Zone
	fsa     string
	travel  int
	onsite  int

	// startAt forces a common start (duo bookings); zero means the visit
	// starts right after travel.
	startAt  int
	part     int
	duo      bool
	overtime bool
}

func (a *Assigner) book(day int, s *techState, req bookReq, result *domain.PlanResult) {
	start := s.used + req.travel
	if req.startAt > start {
		start = req.startAt
	}
	end := start + req.onsite + a.params.BufferMin

	s.seq++

	partLabel := ""
	if req.part > 0 {
		partLabel = fmt.Sprintf("PART %d", req.part)
	}

	result.Visits = append(result.Visits, domain.ScheduledVisit{
		Day:        day,
		Technician: s.tech.Name,
		Sequence:   s.seq,
		JobID:      req.jobID,
		StartMin:   start,
		EndMin:     end,
		TravelMin:  req.travel,
		OnsiteMin:  req.onsite,
		BufferMin:  a.params.BufferMin,
		Zone:       req.zone,
		Address:    req.address,
		Duo:        req.duo,
		Overtime:   req.overtime,
		PartLabel:  partLabel,
	})

	s.used = end
	s.loc = req.address
	s.zone = req.zone
	s.fsa = req.fsa
	s.worked = true
}

// returnHome appends the synthetic end-of-day drive home and the day summary
// for every technician who worked.
func (a *Assigner) returnHome(ctx context.Context, day int, states []*techState, result *domain.PlanResult) {
	for _, s := range states {
		if !s.worked {
			continue
		}

		ret, err := a.oracle.Minutes(ctx, s.loc, s.tech.HomeAddress)
		if err != nil {
			log.Warn().Str("technician", s.tech.Name).Msg("return-home travel unresolvable, reporting zero")
			ret = 0
		}

		s.seq++
		result.Visits = append(result.Visits, domain.ScheduledVisit{
			Day:        day,
			Technician: s.tech.Name,
			Sequence:   s.seq,
			JobID:      domain.ReturnHomeJobID,
			StartMin:   s.used,
			EndMin:     s.used + ret,
			TravelMin:  ret,
			Zone:       s.tech.Zone,
			Address:    s.tech.HomeAddress,
		})

		summary := domain.DaySummary{
			Technician:      s.tech.Name,
			Day:             day,
			ReturnTravelMin: ret,
		}
		for _, v := range result.Visits {
			if v.Day != day || v.Technician != s.tech.Name || v.JobID == domain.ReturnHomeJobID {
				continue
			}
			summary.Stops++
			summary.TravelMin += v.TravelMin
			summary.OnsiteMin += v.OnsiteMin
			summary.BufferMin += v.BufferMin
			if v.Overtime {
				summary.Overtime = true
			}
		}
		summary.TotalMin = summary.TravelMin + summary.OnsiteMin + summary.BufferMin
		result.Summaries = append(result.Summaries, summary)
	}
}

// labelSplitParts rewrites "PART i" labels to "PART i/N" once every split's
// total part count is known. Splits still open at the horizon get "PART i/?"
// since their total is unknown.
func labelSplitParts(visits []domain.ScheduledVisit, open map[string]bool) {
	totals := map[string]int{}
	for _, v := range visits {
		if v.PartLabel != "" {
			totals[v.JobID]++
		}
	}
	for i := range visits {
		if visits[i].PartLabel == "" {
			continue
		}
		var part int
		fmt.Sscanf(visits[i].PartLabel, "PART %d", &part)
		if open[visits[i].JobID] {
			visits[i].PartLabel = fmt.Sprintf("PART %d/?", part)
			continue
		}
		visits[i].PartLabel = fmt.Sprintf("PART %d/%d", part, totals[visits[i].JobID])
	}
}

func removeJob(jobs []domain.Job, id string) []domain.Job {
	out := jobs[:0:0]
	for _, j := range jobs {
		if j.ID != id {
			out = append(out, j)
		}
	}
	return out
}
