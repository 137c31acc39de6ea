package domain

import "strings"

type Address struct {
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Unit       string `json:"unit"`
	Street     string `json:"street"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
}

// MissingFields lists the json names of blank fields.
func (a Address) MissingFields() []string {
	fields := []struct {
		name  string
		value string
	}{
		{"full_name", a.FullName},
		{"phone", a.Phone},
		{"unit", a.Unit},
		{"street", a.Street},
		{"city", a.City},
		{"region", a.Region},
		{"postal_code", a.PostalCode},
	}

	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

func (a Address) Validate() error {
	if missing := a.MissingFields(); len(missing) > 0 {
		return &IncompleteAddressError{Missing: missing}
	}
	return nil
}
