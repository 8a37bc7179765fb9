package spreadsheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techroute-service/internal/domain"
)

func TestWritePlanProducesAllSheets(t *testing.T) {
	result := domain.PlanResult{
		RunID: "run-1",
		Techs: 1,
		Days:  1,
		Visits: []domain.ScheduledVisit{
			{
				Day: 1, Technician: "Martin", Sequence: 1, JobID: "1001",
				StartMin: 30, EndMin: 190, TravelMin: 30, OnsiteMin: 150,
				BufferMin: 10, Zone: domain.ZoneRiveSud,
				Address: "100 Rue Principale, Longueuil",
			},
			{
				Day: 1, Technician: "Martin", Sequence: 2,
				JobID: domain.ReturnHomeJobID, StartMin: 190, EndMin: 220,
				TravelMin: 30,
			},
		},
		Summaries: []domain.DaySummary{
			{Technician: "Martin", Day: 1, Stops: 1, TravelMin: 30,
				OnsiteMin: 150, BufferMin: 10, TotalMin: 190, ReturnTravelMin: 30},
		},
		Unscheduled: []domain.Job{
			{ID: "1002", CustomerName: "Beta", DurationMin: 300, TechsRequired: 1},
		},
		Unplannable: []domain.Job{
			{ID: "1003", CustomerName: "Gamma", DurationMin: 120, TechsRequired: 3},
		},
	}

	jobs := []domain.Job{{ID: "1001", DurationMin: 150, TechsRequired: 1}}
	techs := []domain.Technician{domain.NewTechnician("Martin", "5 Rue A, Longueuil QC J4G 1A1")}

	f, err := WritePlan(result, jobs, techs)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t,
		[]string{sheetVisits, sheetSummary, sheetUnscheduled, sheetJobsInput, sheetTechInput},
		f.GetSheetList(),
	)

	rows, err := f.GetRows(sheetVisits)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Day", rows[0][0])
	assert.Equal(t, "1001", rows[1][3])
	assert.Equal(t, "00:30", rows[1][5])
	assert.Equal(t, domain.ReturnHomeJobID, rows[2][3])

	rows, err = f.GetRows(sheetUnscheduled)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "1002", rows[1][0])
	assert.Equal(t, "requires more than two technicians", rows[2][6])

	rows, err = f.GetRows(sheetTechInput)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Martin", rows[1][0])
	assert.Equal(t, "J4G", rows[1][3])
}
