package domain

// Role enumerates access levels for authenticated principals.
type Role string

const (
	RoleSubscriber Role = "SUBSCRIBER"
	RoleMerchant   Role = "MERCHANT"
	RoleSupport    Role = "SUPPORT"
	RoleAdmin      Role = "ADMIN"
)

// Valid reports whether the role is a known member of the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleSubscriber, RoleMerchant, RoleSupport, RoleAdmin:
		return true
	}
	return false
}

// Capability names a discrete permission granted to a role.
type Capability string

const (
	CapViewDashboard  Capability = "dashboard.view"
	CapManageStore    Capability = "store.manage"
	CapViewOrders     Capability = "orders.view"
	CapHandleTickets  Capability = "tickets.handle"
	CapManagePlatform Capability = "platform.manage"
	CapViewAuditTrail Capability = "audit.view"
)

// roleCapabilities is the single authority for role -> permission mapping.
// Evaluated once during identity reconstruction, not ad hoc per route.
var roleCapabilities = map[Role][]Capability{
	RoleSubscriber: {CapViewDashboard},
	RoleMerchant:   {CapViewDashboard, CapManageStore, CapViewOrders},
	RoleSupport:    {CapViewDashboard, CapHandleTickets},
	RoleAdmin:      {CapViewDashboard, CapManageStore, CapViewOrders, CapHandleTickets, CapManagePlatform, CapViewAuditTrail},
}

// CapabilitySet is a fixed permission set attached to an Identity.
type CapabilitySet map[Capability]struct{}

// Has reports membership.
func (s CapabilitySet) Has(cap Capability) bool {
	_, ok := s[cap]
	return ok
}

// List returns the capabilities as a slice for serialization.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s))
	for cap := range s {
		out = append(out, cap)
	}
	return out
}

// CapabilitiesFor resolves the static capability set for a role.
// Unknown roles get an empty set.
func CapabilitiesFor(role Role) CapabilitySet {
	caps := roleCapabilities[role]
	set := make(CapabilitySet, len(caps))
	for _, cap := range caps {
		set[cap] = struct{}{}
	}
	return set
}
