package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"techroute-service/internal/api/dto"
	"techroute-service/internal/domain"
	"techroute-service/internal/scheduler"
)

type PlanHandler struct {
	Planner      *scheduler.Assigner
	DefaultTechs []domain.Technician
}

// Plan runs the greedy scheduler over a posted job list and roster.
func (h *PlanHandler) Plan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req dto.PlanRequest

	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return
	}

	if len(req.Jobs) == 0 {
		writeError(w, r, http.StatusBadRequest, "jobs is required")
		return
	}

	techs := h.DefaultTechs
	if len(req.Technicians) > 0 {
		techs = rosterFromMap(req.Technicians)
	}
	if len(techs) == 0 {
		writeError(w, r, http.StatusBadRequest, "technicians is required when no default roster is configured")
		return
	}

	jobs := make([]domain.Job, 0, len(req.Jobs))
	for _, j := range req.Jobs {
		if strings.TrimSpace(j.ID) == "" {
			writeError(w, r, http.StatusBadRequest, "every job needs an id")
			return
		}
		if j.DurationMinutes <= 0 {
			writeError(w, r, http.StatusBadRequest, "job "+j.ID+": duration_minutes must be positive")
			return
		}
		if strings.TrimSpace(j.Address) == "" {
			writeError(w, r, http.StatusBadRequest, "job "+j.ID+": address is required")
			return
		}

		postal := domain.NormalizePostal(j.Postal)
		if postal == "" {
			postal = domain.ExtractPostal(j.Address)
		}

		required := j.TechniciansRequired
		if required == 0 {
			required = 1
		}

		jobs = append(jobs, domain.Job{
			ID:            strings.TrimSpace(j.ID),
			CustomerName:  j.CustomerName,
			Description:   j.Description,
			Address:       strings.TrimSpace(j.Address),
			City:          j.City,
			Postal:        postal,
			FSA:           domain.FSA(postal),
			Zone:          domain.ZoneFromPostal(postal),
			DurationMin:   j.DurationMinutes,
			TechsRequired: required,
		})
	}

	var result domain.PlanResult
	var err error
	if req.AutoTechCount {
		result, err = h.Planner.AutoPlan(r.Context(), techs, jobs)
	} else {
		result, err = h.Planner.Run(r.Context(), techs, jobs)
	}
	if err != nil {
		log.Error().Err(err).Msg("scheduling run failed")
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, r, http.StatusOK, planResponse(result))
}

// rosterFromMap sorts the roster by name so map iteration order never leaks
// into the plan.
func rosterFromMap(m map[string]string) []domain.Technician {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	techs := make([]domain.Technician, 0, len(names))
	for _, name := range names {
		techs = append(techs, domain.NewTechnician(name, m[name]))
	}
	return techs
}

func planResponse(result domain.PlanResult) dto.PlanResponse {
	res := dto.PlanResponse{
		RunID:       result.RunID,
		Techs:       result.Techs,
		Days:        result.Days,
		Success:     result.Success,
		Visits:      make([]dto.VisitResponse, 0, len(result.Visits)),
		Summaries:   make([]dto.SummaryResponse, 0, len(result.Summaries)),
		Unscheduled: make([]string, 0, len(result.Unscheduled)),
		Unplannable: make([]string, 0, len(result.Unplannable)),
	}

	for _, v := range result.Visits {
		res.Visits = append(res.Visits, dto.VisitResponse{
			Day:           v.Day,
			Technician:    v.Technician,
			Sequence:      v.Sequence,
			JobID:         v.JobID,
			Start:         v.StartHHMM(),
			End:           v.EndHHMM(),
			TravelMinutes: v.TravelMin,
			OnsiteMinutes: v.OnsiteMin,
			BufferMinutes: v.BufferMin,
			Zone:          string(v.Zone),
			Address:       v.Address,
			Duo:           v.Duo,
			Overtime:      v.Overtime,
			PartLabel:     v.PartLabel,
		})
	}
	for _, s := range result.Summaries {
		res.Summaries = append(res.Summaries, dto.SummaryResponse{
			Technician:          s.Technician,
			Day:                 s.Day,
			Stops:               s.Stops,
			TravelMinutes:       s.TravelMin,
			OnsiteMinutes:       s.OnsiteMin,
			BufferMinutes:       s.BufferMin,
			TotalMinutes:        s.TotalMin,
			ReturnTravelMinutes: s.ReturnTravelMin,
			Overtime:            s.Overtime,
		})
	}
	for _, j := range result.Unscheduled {
		res.Unscheduled = append(res.Unscheduled, j.ID)
	}
	for _, j := range result.Unplannable {
		res.Unplannable = append(res.Unplannable, j.ID)
	}

	return res
}
