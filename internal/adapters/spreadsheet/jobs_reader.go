package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"techroute-service/internal/domain"
)

// ErrMissingColumn marks a workbook missing a column the loader cannot work
// without.
var ErrMissingColumn = errors.New("required column not found")

// jobsSheet is the expected sheet of the work-order export; the first sheet
// is used as a fallback.
const jobsSheet = "Export"

// minAddressLen drops rows whose assembled address is too short to geocode.
const minAddressLen = 9

// ReadJobs parses a work-order export workbook into normalized jobs.
//
// Rows are dropped (not failed) when the id is blank, the duration resolves
// to zero or less, or the assembled address is unusably short. Duplicate ids
// keep the first occurrence. The load fails when neither duration column
// (onsite hours, SRT hours) is present.
func ReadJobs(r io.Reader) ([]domain.Job, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open jobs workbook: %w", err)
	}
	defer f.Close()

	sheet := jobsSheet
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("sheet %q has no data rows", sheet)
	}

	cols := resolveColumns(rows[0])

	_, hasOrder := cols[colJobID]
	_, hasFA := cols[colFAJobID]
	if !hasOrder && !hasFA {
		return nil, fmt.Errorf("job id: %w", ErrMissingColumn)
	}
	_, hasOnsite := cols[colOnsiteHours]
	_, hasSRT := cols[colSRTHours]
	if !hasOnsite && !hasSRT {
		return nil, fmt.Errorf("onsite or SRT hours: %w", ErrMissingColumn)
	}

	cell := func(row []string, canonical string) string {
		idx, ok := cols[canonical]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	jobs := make([]domain.Job, 0, len(rows)-1)
	seen := make(map[string]struct{}, len(rows)-1)
	dropped := 0

	for _, row := range rows[1:] {
		id := cell(row, colJobID)
		if id == "" {
			// Some export versions carry the work order under FA JOB #.
			id = cell(row, colFAJobID)
		}
		if id == "" {
			dropped++
			continue
		}
		if _, ok := seen[id]; ok {
			dropped++
			continue
		}

		duration := durationMinutes(cell(row, colOnsiteHours), cell(row, colSRTHours))
		if duration <= 0 {
			dropped++
			continue
		}

		address := joinAddress(
			cell(row, colAddress1),
			cell(row, colAddress2),
			cell(row, colAddress3),
			cell(row, colCity),
			cell(row, colState),
			cell(row, colZip),
		)
		if len(address) < minAddressLen {
			dropped++
			continue
		}

		postal := domain.NormalizePostal(cell(row, colZip))
		if postal == "" {
			postal = domain.ExtractPostal(address)
		}

		techs := 1
		if n, err := strconv.Atoi(cell(row, colTechsNeeded)); err == nil && n >= 1 {
			techs = n
		}

		seen[id] = struct{}{}
		jobs = append(jobs, domain.Job{
			ID:            id,
			CustomerName:  cell(row, colCustomer),
			Description:   joinDescription(cell(row, colDescription), cell(row, colUpcoming)),
			Address:       address,
			City:          cell(row, colCity),
			Postal:        postal,
			FSA:           domain.FSA(postal),
			Zone:          domain.ZoneFromPostal(postal),
			DurationMin:   duration,
			TechsRequired: techs,
		})
	}

	log.Info().
		Str("sheet", sheet).
		Int("loaded", len(jobs)).
		Int("dropped", dropped).
		Msg("jobs workbook loaded")

	return jobs, nil
}

// durationMinutes converts the onsite-hours value, falling back to SRT hours.
func durationMinutes(onsite, srt string) int {
	for _, s := range []string{onsite, srt} {
		h, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
		if err != nil {
			continue
		}
		return int(math.Round(h * 60))
	}
	return 0
}

func joinAddress(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

func joinDescription(desc, upcoming string) string {
	return strings.Trim(desc+" | "+upcoming, " |")
}
