package compute

import (
	"fmt"

	"github.com/obsidianstack/slareport/pkg/types"
	"github.com/obsidianstack/slareport/reporter/internal/apperr"
)

// Catalog is the run's snapshot of an upstream component list. It is built
// before any fan-out and read-only afterwards.
type Catalog struct {
	components []types.ComponentRef
	byID       map[string]types.ComponentRef
	groupName  map[string]string // component id -> containing group name
}

// NewCatalog indexes comps. A member whose GroupID is not itself in comps is
// a lookup error.
func NewCatalog(comps []types.ComponentRef) (*Catalog, error) {
	c := &Catalog{
		components: append([]types.ComponentRef(nil), comps...),
		byID:       make(map[string]types.ComponentRef, len(comps)),
		groupName:  make(map[string]string),
	}
	for _, ref := range comps {
		c.byID[ref.ID] = ref
	}
	for _, ref := range comps {
		if ref.GroupID == "" {
			continue
		}
		group, ok := c.byID[ref.GroupID]
		if !ok {
			return nil, apperr.Lookup("catalog",
				fmt.Sprintf("component %s (%s) references unknown group %s", ref.ID, ref.Name, ref.GroupID))
		}
		c.groupName[ref.ID] = group.Name
	}
	return c, nil
}

// Components returns the catalog in upstream order.
func (c *Catalog) Components() []types.ComponentRef {
	return c.components
}

// Len returns the number of catalogued components.
func (c *Catalog) Len() int { return len(c.components) }

// Lookup returns the catalogued component with the given id.
func (c *Catalog) Lookup(id string) (types.ComponentRef, error) {
	ref, ok := c.byID[id]
	if !ok {
		return types.ComponentRef{}, apperr.Lookup("catalog", fmt.Sprintf("component %s not in catalog", id))
	}
	return ref, nil
}

// GroupName returns the name of the group containing component id, or "" for
// a top-level component.
func (c *Catalog) GroupName(id string) (string, error) {
	if _, err := c.Lookup(id); err != nil {
		return "", err
	}
	return c.groupName[id], nil
}
