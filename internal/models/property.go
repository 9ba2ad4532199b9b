package models

// Property is owned by the catalog; bookings reference it by id.
type Property struct {
	ID               string `yaml:"id" json:"id"`
	Name             string `yaml:"name" json:"name"`
	GoogleCalendarID string `yaml:"google_calendar_id" json:"google_calendar_id,omitempty"`
}

// SyncEnabled reports whether confirmed bookings are mirrored to an external calendar.
func (p *Property) SyncEnabled() bool {
	return p != nil && p.GoogleCalendarID != ""
}

// Customer is owned by the CRM; bookings reference it by id.
type Customer struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Email string `yaml:"email" json:"email"`
}
