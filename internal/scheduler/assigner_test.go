package scheduler

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techroute-service/internal/domain"
)

// tableOracle answers travel lookups from a fixed table. A missing pair
// falls back to def; a negative value means unreachable.
type tableOracle struct {
	times map[string]int
	def   int
}

func (o tableOracle) Minutes(_ context.Context, origin, destination string) (int, error) {
	if origin == destination {
		return 0, nil
	}
	m, ok := o.times[origin+"|"+destination]
	if !ok {
		m = o.def
	}
	if m < 0 {
		return 0, fmt.Errorf("travel %q -> %q: %w", origin, destination, ErrUnreachable)
	}
	return m, nil
}

func testParams() Params {
	return Params{
		DailyBudgetMin:        450,
		LunchMin:              30,
		BufferMin:             10,
		MinChunkMin:           180,
		OvertimeCeilingMin:    840,
		OvertimeMaxOverageMin: 180,
		MaxDays:               31,
		SoloPool:              40,
		DuoPool:               15,
		NearbyTechs:           4,
		Penalties:             domain.ZonePenalties{NorthSouth: 90, MTLOther: 45, Other: 30},
	}
}

func newTestAssigner(oracle Oracle, params Params) *Assigner {
	return NewAssigner(oracle, NewPrefilter(nil, nil), params)
}

func soloJob(id string, duration int) domain.Job {
	return domain.Job{ID: id, Address: "addr " + id, DurationMin: duration, TechsRequired: 1}
}

func visitsFor(result domain.PlanResult, day int, tech string) []domain.ScheduledVisit {
	var out []domain.ScheduledVisit
	for _, v := range result.Visits {
		if v.Day == day && v.Technician == tech {
			out = append(out, v)
		}
	}
	return out
}

func jobVisits(result domain.PlanResult, jobID string) []domain.ScheduledVisit {
	var out []domain.ScheduledVisit
	for _, v := range result.Visits {
		if v.JobID == jobID {
			out = append(out, v)
		}
	}
	return out
}

// Canonical boundary case: two 240-minute jobs do not fit one 480-minute day
// once travel is counted, so the second defers to day two.
func TestSecondJobDefersToNextDay(t *testing.T) {
	oracle := tableOracle{times: map[string]int{
		"A|addr B":    30,
		"addr B|addr C": 30,
		"A|addr C":    30,
		"addr B|A":    30,
		"addr C|A":    30,
	}}

	params := testParams()
	params.DailyBudgetMin = 480
	params.BufferMin = 0

	tech := domain.Technician{Name: "Martin", HomeAddress: "A"}
	jobs := []domain.Job{soloJob("B", 240), soloJob("C", 240)}

	result, err := newTestAssigner(oracle, params).Run(context.Background(), []domain.Technician{tech}, jobs)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 2, result.Days)

	day1 := visitsFor(result, 1, "Martin")
	require.Len(t, day1, 2)
	assert.Equal(t, "B", day1[0].JobID)
	assert.Equal(t, 30, day1[0].StartMin)
	assert.Equal(t, 270, day1[0].EndMin)
	assert.Equal(t, domain.ReturnHomeJobID, day1[1].JobID)
	assert.Equal(t, 270, day1[1].StartMin)
	assert.Equal(t, 300, day1[1].EndMin)

	day2 := visitsFor(result, 2, "Martin")
	require.Len(t, day2, 2)
	assert.Equal(t, "C", day2[0].JobID)
	assert.Equal(t, 30, day2[0].StartMin)
	assert.Equal(t, 270, day2[0].EndMin)
}

// Per-technician daily totals (excluding return home) stay within the budget
// except overtime days, which stay under the extended ceiling.
func TestDailyBudgetBound(t *testing.T) {
	oracle := tableOracle{def: 20}
	params := testParams()

	techs := []domain.Technician{
		{Name: "Martin", HomeAddress: "home m"},
		{Name: "Sophie", HomeAddress: "home s"},
	}
	var jobs []domain.Job
	for i := 0; i < 12; i++ {
		jobs = append(jobs, soloJob(fmt.Sprintf("J%02d", i), 60+i*17))
	}

	result, err := newTestAssigner(oracle, params).Run(context.Background(), techs, jobs)
	require.NoError(t, err)

	type key struct {
		tech string
		day  int
	}
	totals := map[key]int{}
	overtime := map[key]bool{}
	for _, v := range result.Visits {
		if v.JobID == domain.ReturnHomeJobID {
			continue
		}
		k := key{v.Technician, v.Day}
		totals[k] += v.TravelMin + v.OnsiteMin + v.BufferMin
		if v.Overtime {
			overtime[k] = true
		}
	}

	for k, total := range totals {
		if overtime[k] {
			assert.LessOrEqual(t, total+params.LunchMin, params.OvertimeCeilingMin, "%v", k)
		} else {
			assert.LessOrEqual(t, total, params.DailyBudgetMin, "%v", k)
		}
	}
}

// A 500-minute job against a 450-minute day must not leave a sub-180-minute
// crumb: the first part shrinks so the final part is at least the minimum
// chunk.
func TestSplitAvoidsCrumbs(t *testing.T) {
	oracle := tableOracle{def: 0}
	params := testParams()
	params.BufferMin = 0
	params.OvertimeMaxOverageMin = 0 // force the split path

	tech := domain.Technician{Name: "Martin", HomeAddress: "home"}
	jobs := []domain.Job{soloJob("BIG", 500)}

	result, err := newTestAssigner(oracle, params).Run(context.Background(), []domain.Technician{tech}, jobs)
	require.NoError(t, err)
	require.True(t, result.Success)

	parts := jobVisits(result, "BIG")
	require.Len(t, parts, 2)

	assert.Equal(t, 1, parts[0].Day)
	assert.Equal(t, "PART 1/2", parts[0].PartLabel)
	assert.Equal(t, 320, parts[0].OnsiteMin)

	assert.Equal(t, 2, parts[1].Day)
	assert.Equal(t, "PART 2/2", parts[1].PartLabel)
	assert.Equal(t, 180, parts[1].OnsiteMin)

	// No produced part is below the minimum chunk.
	for _, p := range parts {
		assert.GreaterOrEqual(t, p.OnsiteMin, params.MinChunkMin)
	}
	assert.Equal(t, 500, parts[0].OnsiteMin+parts[1].OnsiteMin)
}

// A split cut off by the horizon keeps an open-ended part label instead of
// implying the job completed, and the job stays unscheduled.
func TestUnfinishedSplitLabeledOpenEnded(t *testing.T) {
	oracle := tableOracle{def: 0}
	params := testParams()
	params.BufferMin = 0
	params.OvertimeMaxOverageMin = 0
	params.MaxDays = 1

	tech := domain.Technician{Name: "Martin", HomeAddress: "home"}
	jobs := []domain.Job{soloJob("BIG", 700)}

	result, err := newTestAssigner(oracle, params).Run(context.Background(), []domain.Technician{tech}, jobs)
	require.NoError(t, err)

	assert.False(t, result.Success)
	require.Len(t, result.Unscheduled, 1)
	assert.Equal(t, "BIG", result.Unscheduled[0].ID)

	parts := jobVisits(result, "BIG")
	require.Len(t, parts, 1)
	assert.Equal(t, "PART 1/?", parts[0].PartLabel)
	assert.Equal(t, 450, parts[0].OnsiteMin)
}

// A small overage on an otherwise-empty day books the oversized job whole
// under overtime instead of splitting it.
func TestOvertimeBooksOversizedJobWhole(t *testing.T) {
	oracle := tableOracle{def: 10}
	params := testParams()
	params.BufferMin = 0

	tech := domain.Technician{Name: "Martin", HomeAddress: "home"}
	jobs := []domain.Job{soloJob("BIG", 500)}

	result, err := newTestAssigner(oracle, params).Run(context.Background(), []domain.Technician{tech}, jobs)
	require.NoError(t, err)
	require.True(t, result.Success)

	big := jobVisits(result, "BIG")
	require.Len(t, big, 1)
	assert.Equal(t, 1, big[0].Day)
	assert.True(t, big[0].Overtime)
	assert.Empty(t, big[0].PartLabel)
	assert.Equal(t, 500, big[0].OnsiteMin)
}

// A duo job produces exactly two visits: same job, same start, distinct
// technicians, each within budget.
func TestDuoJobBooksPair(t *testing.T) {
	oracle := tableOracle{times: map[string]int{
		"home m|addr D": 20,
		"home s|addr D": 30,
		"addr D|home m": 20,
		"addr D|home s": 30,
	}}
	params := testParams()

	techs := []domain.Technician{
		{Name: "Martin", HomeAddress: "home m"},
		{Name: "Sophie", HomeAddress: "home s"},
	}
	jobs := []domain.Job{{ID: "D", Address: "addr D", DurationMin: 200, TechsRequired: 2}}

	result, err := newTestAssigner(oracle, params).Run(context.Background(), techs, jobs)
	require.NoError(t, err)
	require.True(t, result.Success)

	visits := jobVisits(result, "D")
	require.Len(t, visits, 2)
	assert.True(t, visits[0].Duo)
	assert.True(t, visits[1].Duo)
	assert.NotEqual(t, visits[0].Technician, visits[1].Technician)

	// Both start together once the slower traveler arrives, each doing half
	// the on-site time.
	assert.Equal(t, 30, visits[0].StartMin)
	assert.Equal(t, visits[0].StartMin, visits[1].StartMin)
	assert.Equal(t, 100, visits[0].OnsiteMin)
	assert.Equal(t, visits[0].EndMin, visits[1].EndMin)
}

func TestThreeTechJobIsUnplannable(t *testing.T) {
	oracle := tableOracle{def: 10}

	tech := domain.Technician{Name: "Martin", HomeAddress: "home"}
	jobs := []domain.Job{{ID: "TRIO", Address: "addr", DurationMin: 60, TechsRequired: 3}}

	result, err := newTestAssigner(oracle, testParams()).Run(context.Background(), []domain.Technician{tech}, jobs)
	require.NoError(t, err)

	assert.False(t, result.Success)
	require.Len(t, result.Unplannable, 1)
	assert.Equal(t, "TRIO", result.Unplannable[0].ID)
	assert.Empty(t, jobVisits(result, "TRIO"))
}

// Starting a split locks the technician for the day; closing it out the next
// day frees them for more work.
func TestCarryoverLocksThenUnlocks(t *testing.T) {
	// The small job is unreachable from home, so day one is the split's
	// first part only; day two closes the split and frees the technician
	// to take the small job from the split's address.
	oracle := tableOracle{def: 0, times: map[string]int{
		"home|addr SMALL":     -1,
		"addr BIG|addr SMALL": 5,
	}}
	params := testParams()
	params.BufferMin = 0
	params.OvertimeMaxOverageMin = 0

	tech := domain.Technician{Name: "Martin", HomeAddress: "home"}
	jobs := []domain.Job{soloJob("BIG", 700), soloJob("SMALL", 60)}

	result, err := newTestAssigner(oracle, params).Run(context.Background(), []domain.Technician{tech}, jobs)
	require.NoError(t, err)
	require.True(t, result.Success)

	parts := jobVisits(result, "BIG")
	require.Len(t, parts, 2)
	assert.Equal(t, 1, parts[0].Day)
	assert.Equal(t, 450, parts[0].OnsiteMin)
	assert.Equal(t, 2, parts[1].Day)
	assert.Equal(t, 250, parts[1].OnsiteMin)

	small := jobVisits(result, "SMALL")
	require.Len(t, small, 1)
	assert.Equal(t, 2, small[0].Day)

	// Day two runs the final part first, then the freed technician takes the
	// small job.
	day2 := visitsFor(result, 2, "Martin")
	require.Len(t, day2, 3)
	assert.Equal(t, "BIG", day2[0].JobID)
	assert.Equal(t, "SMALL", day2[1].JobID)
	assert.Equal(t, domain.ReturnHomeJobID, day2[2].JobID)
}

// No job id other than RETURN_HOME repeats unless it is a split with
// contiguous part labels.
func TestNoDuplicateBookings(t *testing.T) {
	oracle := tableOracle{def: 15}
	params := testParams()

	techs := []domain.Technician{
		{Name: "Martin", HomeAddress: "home m"},
		{Name: "Sophie", HomeAddress: "home s"},
	}
	jobs := []domain.Job{
		soloJob("J1", 120),
		soloJob("J2", 200),
		{ID: "D1", Address: "addr D1", DurationMin: 300, TechsRequired: 2},
		soloJob("J3", 90),
	}

	result, err := newTestAssigner(oracle, params).Run(context.Background(), techs, jobs)
	require.NoError(t, err)
	require.True(t, result.Success)

	perTech := map[string]map[string]int{}
	for _, v := range result.Visits {
		if v.JobID == domain.ReturnHomeJobID {
			continue
		}
		if perTech[v.Technician] == nil {
			perTech[v.Technician] = map[string]int{}
		}
		perTech[v.Technician][v.JobID]++
	}
	for tech, counts := range perTech {
		for id, n := range counts {
			assert.Equal(t, 1, n, "job %s booked %d times for %s", id, n, tech)
		}
	}
}

// Two runs over identical inputs produce identical plans.
func TestRunIsDeterministic(t *testing.T) {
	oracle := tableOracle{def: 25}
	params := testParams()

	techs := []domain.Technician{
		{Name: "Martin", HomeAddress: "home m"},
		{Name: "Sophie", HomeAddress: "home s"},
	}
	var jobs []domain.Job
	for i := 0; i < 9; i++ {
		jobs = append(jobs, soloJob(fmt.Sprintf("J%d", i), 80+i*23))
	}
	jobs = append(jobs, domain.Job{ID: "D", Address: "addr D", DurationMin: 160, TechsRequired: 2})

	run := func() domain.PlanResult {
		r, err := newTestAssigner(oracle, params).Run(context.Background(), techs, jobs)
		require.NoError(t, err)
		return r
	}

	first, second := run(), run()
	assert.Equal(t, first.Visits, second.Visits)
	assert.Equal(t, first.Summaries, second.Summaries)
	assert.Equal(t, first.Unscheduled, second.Unscheduled)
	assert.Equal(t, first.Days, second.Days)
}

func TestAutoPlanGrowsRoster(t *testing.T) {
	oracle := tableOracle{def: 30}
	params := testParams()
	params.DailyBudgetMin = 480
	params.BufferMin = 0
	params.MaxDays = 1

	techs := []domain.Technician{
		{Name: "Martin", HomeAddress: "home m"},
		{Name: "Sophie", HomeAddress: "home s"},
		{Name: "Alex", HomeAddress: "home a"},
	}
	jobs := []domain.Job{soloJob("J1", 240), soloJob("J2", 240), soloJob("J3", 240)}

	result, err := newTestAssigner(oracle, params).AutoPlan(context.Background(), techs, jobs)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Techs)
}
