package models

// ServiceSnapshot is the read-only projection of a catalog service.
type ServiceSnapshot struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Category        string `json:"category,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
	Price           int64  `json:"price"` // minor units
	Currency        string `json:"currency,omitempty"`
	Active          bool   `json:"active"`
}

// ContractorSnapshot is the read-only projection of a contractor profile.
type ContractorSnapshot struct {
	ID        string  `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Rating    float64 `json:"rating,omitempty"`
	Active    bool    `json:"active"`
}
