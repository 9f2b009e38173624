package domain

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

type Address struct {
	ID          string       `json:"id"`
	Label       string       `json:"label,omitempty"`
	Street      string       `json:"street"`
	City        string       `json:"city"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	IsDefault   bool         `json:"is_default"`
}

// Principal is the authenticated caller as loaded from the user store.
type Principal struct {
	ID         string
	Name       string
	Email      string
	Role       Role
	Addresses  []Address
	PushTokens []string
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

func (p *Principal) FindAddress(id string) (Address, bool) {
	for _, a := range p.Addresses {
		if a.ID == id {
			return a, true
		}
	}
	return Address{}, false
}

// Recipient returns the notification target for this principal.
func (p *Principal) Recipient() Recipient {
	return Recipient{
		UserID:     p.ID,
		Email:      p.Email,
		PushTokens: append([]string(nil), p.PushTokens...),
	}
}
