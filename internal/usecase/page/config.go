package page

// Default request sizes.
const (
	DefaultPageSize          = 24
	DefaultConsolidatedLimit = 24
)

// Config controls strategy selection and request sizes.
type Config struct {
	// PreferSingleRequest enables the unified and consolidated strategies.
	// When false every render uses split listing and facet requests.
	PreferSingleRequest bool
	PageSize            int
	ConsolidatedLimit   int
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.ConsolidatedLimit <= 0 {
		c.ConsolidatedLimit = DefaultConsolidatedLimit
	}
	return c
}
