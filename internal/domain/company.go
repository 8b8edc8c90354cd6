package domain

// Company holds the slot counters of a tenant. MaxAdmins and MaxMembers only
// grow through credits tied to a paid PaymentRecord.
type Company struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	ID         int64  `json:"id"`
	MaxAdmins  int    `json:"max_admins"`
	MaxMembers int    `json:"max_members"`
}

// Apply returns the counters after crediting delta
func (c Company) Apply(delta SlotDelta) Company {
	c.MaxAdmins += delta.Admins
	c.MaxMembers += delta.Members
	return c
}
