package scheduler

import (
	"context"

	"github.com/rs/zerolog/log"

	"techroute-service/internal/domain"
)

// AutoPlan tries growing roster prefixes until a run places every job: one
// technician, then two, and so on. Each attempt is a full independent run;
// the first success wins. When no prefix succeeds, the full-roster result is
// returned.
func (a *Assigner) AutoPlan(ctx context.Context, techs []domain.Technician, jobs []domain.Job) (domain.PlanResult, error) {
	var last domain.PlanResult

	for n := 1; n <= len(techs); n++ {
		result, err := a.Run(ctx, techs[:n], jobs)
		if err != nil {
			return result, err
		}

		log.Info().
			Int("techs", n).
			Bool("success", result.Success).
			Int("unscheduled", len(result.Unscheduled)).
			Msg("auto-plan attempt")

		if result.Success {
			return result, nil
		}
		last = result
	}

	return last, nil
}
