package pricing

import "fmt"

// ArgumentError reports an invalid pricing input. It is returned to the
// caller immediately and never recovered internally.
type ArgumentError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("pricing: invalid %s (%g): %s", e.Field, e.Value, e.Reason)
}
