package fetchmode

// Mode is the fetch strategy authoritative for a render.
type Mode string

// Fetch mode constants.
const (
	// Unified issues one request for navigation, listing, facets and breadcrumbs.
	Unified Mode = "unified"
	// Consolidated issues one request for listing and facets.
	Consolidated Mode = "consolidated"
	// Split issues independent listing and facet requests.
	Split Mode = "split"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Unified || m == Consolidated || m == Split
}

// Resolve picks the mode from the single-request preference and the interaction flag.
func Resolve(preferSingleRequest, interacted bool) Mode {
	switch {
	case preferSingleRequest && !interacted:
		return Unified
	case preferSingleRequest:
		return Consolidated
	default:
		return Split
	}
}
