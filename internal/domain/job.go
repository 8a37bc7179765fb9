package domain

// Represents a single service job extracted from the work-order export.
// A Job is created once at load time and never mutated afterwards except for
// the derived postal/zone tags attached during normalization; scheduling
// removes it from the remaining pool rather than updating it in place.
type Job struct {
	ID            string
	CustomerName  string
	Description   string
	Address       string
	City          string
	Postal        string
	FSA           string
	Zone          Zone
	DurationMin   int
	TechsRequired int
}

// Duo reports whether the job needs exactly two technicians on site at once.
func (j Job) Duo() bool { return j.TechsRequired == 2 }

// Technician is an immutable roster entry. The FSA and zone are derived from
// the home address at construction.
type Technician struct {
	Name        string
	HomeAddress string
	Postal      string
	FSA         string
	Zone        Zone
}

// NewTechnician builds a roster entry, extracting the postal code from the
// home address when one is embedded.
func NewTechnician(name, homeAddress string) Technician {
	postal := ExtractPostal(homeAddress)
	return Technician{
		Name:        name,
		HomeAddress: homeAddress,
		Postal:      postal,
		FSA:         FSA(postal),
		Zone:        ZoneFromPostal(postal),
	}
}
