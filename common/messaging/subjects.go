package messaging

// Subject constants for the parkpos message bus.
// Follow the pattern: {app}.{domain}.{resource}
const (
	// SubjectSessionEvents carries session lifecycle events (logout, forced
	// re-authentication) so every terminal sharing a login can react.
	SubjectSessionEvents = "parkpos.session.events"
)
