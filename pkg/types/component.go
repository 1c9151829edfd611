package types

// ComponentRef is a monitored component as listed by the upstream catalog.
// Group is true for Statuspage group containers; GroupID links a member to
// its container. The reporter never mutates these values.
type ComponentRef struct {
	ID      string
	Name    string
	GroupID string
	Group   bool
}
