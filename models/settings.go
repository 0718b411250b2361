package models

import "time"

// SettingsKey identifies the single settings record in every backend.
const SettingsKey = "config"

type Settings struct {
	AllowSignups     bool      `json:"allow_signups"`
	ContactNumber    string    `json:"contact_number"`
	MinOrderQuantity int       `json:"min_order_quantity"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// DefaultSettings is the record written on the first read of an empty store.
func DefaultSettings(allowSignups bool) Settings {
	return Settings{
		AllowSignups:     allowSignups,
		MinOrderQuantity: 1,
	}
}

// SettingsPatch carries a partial update; nil fields are left unchanged.
type SettingsPatch struct {
	AllowSignups     *bool   `json:"allow_signups" mapstructure:"allow_signups"`
	ContactNumber    *string `json:"contact_number" mapstructure:"contact_number"`
	MinOrderQuantity *int    `json:"min_order_quantity" mapstructure:"min_order_quantity"`
}

// Empty reports whether the patch changes nothing.
func (p SettingsPatch) Empty() bool {
	return p.AllowSignups == nil && p.ContactNumber == nil && p.MinOrderQuantity == nil
}

// Apply merges the patch into s.
func (p SettingsPatch) Apply(s *Settings) {
	if p.AllowSignups != nil {
		s.AllowSignups = *p.AllowSignups
	}
	if p.ContactNumber != nil {
		s.ContactNumber = *p.ContactNumber
	}
	if p.MinOrderQuantity != nil {
		s.MinOrderQuantity = *p.MinOrderQuantity
	}
}
