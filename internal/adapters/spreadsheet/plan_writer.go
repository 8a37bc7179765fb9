package spreadsheet

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"techroute-service/internal/domain"
)

// Output sheet names of the planning workbook.
const (
	sheetVisits      = "Visits"
	sheetSummary     = "Summary"
	sheetUnscheduled = "Unscheduled"
	sheetJobsInput   = "Jobs_Input"
	sheetTechInput   = "Tech_Input"
)

// WritePlan renders a scheduling run into the five-sheet planning workbook.
// The caller owns the returned file and is expected to Close it.
func WritePlan(
	result domain.PlanResult,
	jobs []domain.Job,
	techs []domain.Technician,
) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := writeVisits(f, result.Visits); err != nil {
		return nil, err
	}
	if err := writeSummary(f, result.Summaries); err != nil {
		return nil, err
	}
	if err := writeUnscheduled(f, result); err != nil {
		return nil, err
	}
	if err := writeJobs(f, sheetJobsInput, jobs); err != nil {
		return nil, err
	}
	if err := writeTechs(f, techs); err != nil {
		return nil, err
	}

	// excelize creates a default "Sheet1" that would otherwise linger.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	idx, err := f.GetSheetIndex(sheetVisits)
	if err != nil {
		return nil, fmt.Errorf("locate %s sheet: %w", sheetVisits, err)
	}
	f.SetActiveSheet(idx)

	return f, nil
}

// WritePlanFile renders the planning workbook and saves it at path.
func WritePlanFile(
	path string,
	result domain.PlanResult,
	jobs []domain.Job,
	techs []domain.Technician,
) error {
	f, err := WritePlan(result, jobs, techs)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save plan workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create %s sheet: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name for %s row %d: %w", sheet, i+1, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func writeVisits(f *excelize.File, visits []domain.ScheduledVisit) error {
	rows := [][]any{{
		"Day", "Technician", "Seq", "Job ID", "Part", "Start", "End",
		"Travel Min", "Onsite Min", "Buffer Min", "Zone", "Address",
		"Duo", "Overtime",
	}}
	for _, v := range visits {
		rows = append(rows, []any{
			v.Day, v.Technician, v.Sequence, v.JobID, v.PartLabel,
			v.StartHHMM(), v.EndHHMM(),
			v.TravelMin, v.OnsiteMin, v.BufferMin, string(v.Zone), v.Address,
			v.Duo, v.Overtime,
		})
	}
	return writeRows(f, sheetVisits, rows)
}

func writeSummary(f *excelize.File, summaries []domain.DaySummary) error {
	rows := [][]any{{
		"Technician", "Day", "Stops", "Travel Min", "Onsite Min",
		"Buffer Min", "Total Min", "Return Travel Min", "Overtime",
	}}
	for _, s := range summaries {
		rows = append(rows, []any{
			s.Technician, s.Day, s.Stops, s.TravelMin, s.OnsiteMin,
			s.BufferMin, s.TotalMin, s.ReturnTravelMin, s.Overtime,
		})
	}
	return writeRows(f, sheetSummary, rows)
}

func writeUnscheduled(f *excelize.File, result domain.PlanResult) error {
	rows := [][]any{{
		"Job ID", "Customer", "Address", "Zone", "Duration Min", "Techs", "Reason",
	}}
	for _, j := range result.Unscheduled {
		rows = append(rows, unscheduledRow(j, "no remaining capacity"))
	}
	for _, j := range result.Unplannable {
		rows = append(rows, unscheduledRow(j, "requires more than two technicians"))
	}
	return writeRows(f, sheetUnscheduled, rows)
}

func unscheduledRow(j domain.Job, reason string) []any {
	return []any{
		j.ID, j.CustomerName, j.Address, string(j.Zone),
		j.DurationMin, j.TechsRequired, reason,
	}
}

func writeJobs(f *excelize.File, sheet string, jobs []domain.Job) error {
	rows := [][]any{{
		"Job ID", "Customer", "Description", "Address", "City", "Postal",
		"FSA", "Zone", "Duration Min", "Techs",
	}}
	for _, j := range jobs {
		rows = append(rows, []any{
			j.ID, j.CustomerName, j.Description, j.Address, j.City, j.Postal,
			j.FSA, string(j.Zone), j.DurationMin, j.TechsRequired,
		})
	}
	return writeRows(f, sheet, rows)
}

func writeTechs(f *excelize.File, techs []domain.Technician) error {
	rows := [][]any{{"Technician", "Home Address", "Postal", "FSA", "Zone"}}
	for _, t := range techs {
		rows = append(rows, []any{
			t.Name, t.HomeAddress, t.Postal, t.FSA, string(t.Zone),
		})
	}
	return writeRows(f, sheetTechInput, rows)
}
