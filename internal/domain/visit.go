package domain

import "fmt"

// ReturnHomeJobID marks the synthetic end-of-day visit that accounts for the
// drive back to the technician's home address. It exists for reporting only
// and is excluded from the daily budget.
const ReturnHomeJobID = "RETURN_HOME"

// ScheduledVisit is one booked stop in the plan. Visits are append-only
// output; the only post-hoc mutation is filling PartLabel once a split job's
// total part count is known.
type ScheduledVisit struct {
	Day        int
	Technician string
	Sequence   int
	JobID      string
	StartMin   int
	EndMin     int
	TravelMin  int
	OnsiteMin  int
	BufferMin  int
	Zone       Zone
	Address    string
	Duo        bool
	Overtime   bool
	PartLabel  string
}

// StartHHMM renders the start offset as a clock-style HH:MM string.
func (v ScheduledVisit) StartHHMM() string { return minutesToHHMM(v.StartMin) }

// EndHHMM renders the end offset as a clock-style HH:MM string.
func (v ScheduledVisit) EndHHMM() string { return minutesToHHMM(v.EndMin) }

func minutesToHHMM(m int) string {
	if m < 0 {
		m = 0
	}
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// CarryoverSplit tracks a job being completed across consecutive business
// days by one technician. At most one carryover is active per technician; the
// record is dropped once RemainingMin reaches zero.
type CarryoverSplit struct {
	JobID        string
	Address      string
	Zone         Zone
	FSA          string
	RemainingMin int
	NextPart     int
}

// DaySummary aggregates one technician's day. Return-home travel is reported
// separately because it does not count against the daily budget.
type DaySummary struct {
	Technician      string
	Day             int
	Stops           int
	TravelMin       int
	OnsiteMin       int
	BufferMin       int
	TotalMin        int
	ReturnTravelMin int
	Overtime        bool
}

// PlanResult is the full output of a scheduling run. Success means every
// loadable job was placed; otherwise Unscheduled holds what remains.
// Unplannable lists jobs the scheduler will never place (more than two
// technicians required).
type PlanResult struct {
	RunID       string
	Techs       int
	Days        int
	Visits      []ScheduledVisit
	Summaries   []DaySummary
	Unscheduled []Job
	Unplannable []Job
	Success     bool
}
