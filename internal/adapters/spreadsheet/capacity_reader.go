package spreadsheet

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Layout of the technician capacity workbook: technician names live in
// column C starting at row 3, training labels in row 2 columns H through X,
// and a non-empty cell at the intersection marks the training as completed.
const (
	capacitySheet    = "Trainings"
	capacityNameCol  = 3  // column C
	capacityFirstRow = 3  // first technician row
	capacityLastRow  = 22 // last technician row
	capacityFirstLab = 8  // column H
	capacityLastLab  = 24 // column X
)

// Capacity lists which trainings each technician has completed.
type Capacity struct {
	Trainings []string
	ByTech    map[string][]string
}

// Eligible returns the technicians qualified for the given training label.
func (c Capacity) Eligible(training string) []string {
	want := normalizeHeader(training)
	var out []string
	for tech, done := range c.ByTech {
		for _, d := range done {
			if normalizeHeader(d) == want {
				out = append(out, tech)
				break
			}
		}
	}
	return out
}

// ReadCapacity parses the fixed-layout capacity workbook.
func ReadCapacity(r io.Reader) (Capacity, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Capacity{}, fmt.Errorf("open capacity workbook: %w", err)
	}
	defer f.Close()

	if idx, err := f.GetSheetIndex(capacitySheet); err != nil || idx < 0 {
		return Capacity{}, fmt.Errorf("capacity workbook has no %q sheet", capacitySheet)
	}

	cellValue := func(col, row int) string {
		name, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return ""
		}
		v, err := f.GetCellValue(capacitySheet, name)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(v)
	}

	out := Capacity{ByTech: map[string][]string{}}

	labelCols := make([]int, 0, capacityLastLab-capacityFirstLab+1)
	for col := capacityFirstLab; col <= capacityLastLab; col++ {
		label := cellValue(col, 2)
		if label == "" {
			continue
		}
		out.Trainings = append(out.Trainings, label)
		labelCols = append(labelCols, col)
	}

	for row := capacityFirstRow; row <= capacityLastRow; row++ {
		name := cellValue(capacityNameCol, row)
		if name == "" {
			continue
		}

		var done []string
		for i, col := range labelCols {
			if cellValue(col, row) != "" {
				done = append(done, out.Trainings[i])
			}
		}
		out.ByTech[name] = done
	}

	return out, nil
}

// FetchCapacity downloads and parses the capacity workbook from a raw URL.
func FetchCapacity(ctx context.Context, client *http.Client, url string) (Capacity, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Capacity{}, fmt.Errorf("create capacity request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Capacity{}, fmt.Errorf("fetch capacity workbook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Capacity{}, fmt.Errorf("fetch capacity workbook: unexpected status %d", resp.StatusCode)
	}

	return ReadCapacity(resp.Body)
}
