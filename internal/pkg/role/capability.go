package role

// Capability is a portal feature whose access depends on role.
type Capability string

const (
	ManageRoutes     Capability = "manage_routes"
	ManageReports    Capability = "manage_reports"
	ViewAnalytics    Capability = "view_analytics"
	EmergencyUpdates Capability = "emergency_updates"
	ManageUsers      Capability = "manage_users"
	SubmitReports    Capability = "submit_reports"
)

var capabilities = map[Capability]Requirement{
	ManageRoutes:     OneOf(Officer, Admin),
	ManageReports:    OneOf(Officer, Admin),
	ViewAnalytics:    OneOf(Officer, Admin),
	EmergencyUpdates: OneOf(Officer, Admin),
	ManageUsers:      Exactly(Admin),
	SubmitReports:    OneOf(User, Officer, Admin),
}

// Requires returns the requirement for a capability. Unknown capabilities
// report ok=false.
func Requires(c Capability) (Requirement, bool) {
	q, ok := capabilities[c]
	return q, ok
}

// Can reports whether r may use capability c. Unknown capabilities are denied.
func Can(r Role, c Capability) bool {
	q, ok := capabilities[c]
	return ok && q.Allows(r)
}

// Capabilities lists what r may do, in a stable order.
func Capabilities(r Role) []Capability {
	ordered := []Capability{ManageRoutes, ManageReports, ViewAnalytics, EmergencyUpdates, ManageUsers, SubmitReports}
	out := make([]Capability, 0, len(ordered))
	for _, c := range ordered {
		if Can(r, c) {
			out = append(out, c)
		}
	}
	return out
}
