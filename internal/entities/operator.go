package entities

// Operator is a human agent or tenant admin able to log into the
// management API.
type Operator struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Name         string `json:"name"`
	Role         string `json:"role"` // admin or operator
	Instance     string `json:"instance"`
	IsActive     bool   `json:"is_active"`
}

// InstanceSettings holds the per-tenant engine switches.
type InstanceSettings struct {
	Instance   string `json:"instance"`
	BotEnabled bool   `json:"bot_enabled"`
}
