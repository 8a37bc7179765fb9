package spreadsheet

import "strings"

// Canonical column names of the work-order export. Headers are matched
// case-insensitively against a synonym list, first match wins.
const (
	colJobID       = "job_id"
	colFAJobID     = "fa_job_id"
	colCustomer    = "customer_name"
	colDescription = "description"
	colUpcoming    = "upcoming_services"
	colOnsiteHours = "onsite_hours"
	colSRTHours    = "srt_hours"
	colTechsNeeded = "techs_needed"
	colAddress1    = "address_1"
	colAddress2    = "address_2"
	colAddress3    = "address_3"
	colCity        = "city"
	colState       = "state"
	colZip         = "zip"
)

// columnSynonyms maps each canonical field to the header variants seen across
// export versions.
var columnSynonyms = map[string][]string{
	colJobID:       {"ORDER #", "ORDER NO", "ORDER", "JOB #", "JOB ID"},
	colFAJobID:     {"FA JOB #", "FA JOB"},
	colCustomer:    {"CUSTOMER NAME", "CUSTOMER"},
	colDescription: {"PM SERVICE DESC.", "PM SERVICE DESC", "SERVICE DESC", "SERVICE DESCRIPTION"},
	colUpcoming:    {"UPCOMING SERVICES", "UPCOMING SERVICE"},
	colOnsiteHours: {"ONSITE SRT HRS", "ONSITE HRS", "ONSITE HOURS"},
	colSRTHours:    {"SRT HRS", "SRT HOURS"},
	colTechsNeeded: {"# OF TECHS NEEDED", "TECHS NEEDED", "# TECHS", "NB TECHS"},
	colAddress1:    {"ADDRESS 1", "ADDRESS1", "ADDRESS"},
	colAddress2:    {"ADDRESS 2", "ADDRESS2"},
	colAddress3:    {"ADDRESS 3", "ADDRESS3"},
	colCity:        {"SITE CITY", "CITY", "VILLE"},
	colState:       {"SITE STATE", "STATE", "PROVINCE"},
	colZip:         {"SITE ZIP CODE", "ZIP CODE", "POSTAL CODE", "SITE POSTAL CODE", "ZIP"},
}

func normalizeHeader(h string) string {
	return strings.ToUpper(strings.Join(strings.Fields(h), " "))
}

// resolveColumns maps canonical fields to column indexes in the header row.
// Fields with no matching header are simply absent from the result; the
// caller decides which ones are required.
func resolveColumns(header []string) map[string]int {
	byHeader := make(map[string]int, len(header))
	for i, h := range header {
		n := normalizeHeader(h)
		if n == "" {
			continue
		}
		if _, ok := byHeader[n]; !ok {
			byHeader[n] = i
		}
	}

	out := make(map[string]int, len(columnSynonyms))
	for canonical, variants := range columnSynonyms {
		for _, v := range variants {
			if idx, ok := byHeader[normalizeHeader(v)]; ok {
				out[canonical] = idx
				break
			}
		}
	}
	return out
}
