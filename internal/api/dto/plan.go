package dto

type JobRequest struct {
	ID                  string `json:"id"`
	Address             string `json:"address"`
	Postal              string `json:"postal"`
	City                string `json:"city"`
	CustomerName        string `json:"customer_name"`
	Description         string `json:"description"`
	DurationMinutes     int    `json:"duration_minutes"`
	TechniciansRequired int    `json:"technicians_required"`
}

type PlanRequest struct {
	// Technicians maps name to home address. Empty means the server's
	// configured roster.
	Technicians map[string]string `json:"technicians"`
	Jobs        []JobRequest      `json:"jobs"`

	// AutoTechCount grows the roster one technician at a time until a run
	// places every job.
	AutoTechCount bool `json:"auto_tech_count"`
}

type VisitResponse struct {
	Day           int    `json:"day"`
	Technician    string `json:"technician"`
	Sequence      int    `json:"sequence"`
	JobID         string `json:"job_id"`
	Start         string `json:"start"`
	End           string `json:"end"`
	TravelMinutes int    `json:"travel_minutes"`
	OnsiteMinutes int    `json:"onsite_minutes"`
	BufferMinutes int    `json:"buffer_minutes"`
	Zone          string `json:"zone"`
	Address       string `json:"address"`
	Duo           bool   `json:"duo"`
	Overtime      bool   `json:"overtime"`
	PartLabel     string `json:"part_label,omitempty"`
}

type SummaryResponse struct {
	Technician          string `json:"technician"`
	Day                 int    `json:"day"`
	Stops               int    `json:"stops"`
	TravelMinutes       int    `json:"travel_minutes"`
	OnsiteMinutes       int    `json:"onsite_minutes"`
	BufferMinutes       int    `json:"buffer_minutes"`
	TotalMinutes        int    `json:"total_minutes"`
	ReturnTravelMinutes int    `json:"return_travel_minutes"`
	Overtime            bool   `json:"overtime"`
}

type PlanResponse struct {
	RunID       string            `json:"run_id"`
	Techs       int               `json:"techs"`
	Days        int               `json:"days"`
	Success     bool              `json:"success"`
	Visits      []VisitResponse   `json:"visits"`
	Summaries   []SummaryResponse `json:"summaries"`
	Unscheduled []string          `json:"unscheduled_job_ids"`
	Unplannable []string          `json:"unplannable_job_ids"`
}
