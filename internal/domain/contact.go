package domain

// Contact is the synthetic contact a preview session simulates.
type Contact struct {
	UUID      string            `json:"uuid"`
	Name      string            `json:"name,omitempty"`
	URNs      []string          `json:"urns"`
	Fields    map[string]string `json:"fields"`
	Groups    []Group           `json:"groups"`
	Language  string            `json:"language,omitempty"`
	CreatedOn string            `json:"created_on,omitempty"`
}

// Group is a contact group reference.
type Group struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// PrimaryURN returns the first URN of the contact, or "" when it has none.
func (c Contact) PrimaryURN() string {
	if len(c.URNs) == 0 {
		return ""
	}
	return c.URNs[0]
}
