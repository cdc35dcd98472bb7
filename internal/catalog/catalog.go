package catalog

import (
	"errors"
	"fmt"

	"NarraPulse/internal/domain/models"
)

// ErrNotFound is returned when a narrative ID is not registered.
var ErrNotFound = errors.New("catalog: narrative not found")

// Group filter values accepted by List.
const (
	FilterAll           = "all"
	FilterCore          = "core"
	FilterSupplementary = "supplementary"
)

// narratives is the fixed taxonomy. IDs match the backend's primary label
// values; declaration order is the stable listing order.
var narratives = []models.Narrative{
	// Core
	{ID: "Goldilocks economy", Label: "Goldilocks Economy", Group: models.GroupCore,
		Description: "Growth steady, inflation cooling, risk-on/soft landing narrative"},
	{ID: "Market crash", Label: "Market Crash", Group: models.GroupCore,
		Description: "Sharp, broad selloffs; crisis/contagion; systemic stress"},
	{ID: "Inflation", Label: "Inflation", Group: models.GroupCore,
		Description: "Prices rising/sticky; cost-of-living; CPI/PCE; inflation expectations"},
	{ID: "Growth slowdown", Label: "US Growth Slowdown", Group: models.GroupCore,
		Description: "Weakening macro: GDP slowing, recession risk, weak demand, falling output"},
	{ID: "Stagflation", Label: "Stagflation", Group: models.GroupCore,
		Description: "High inflation plus weak or contracting growth together"},

	// Supplementary
	{ID: "Worker layoffs", Label: "Worker Layoffs", Group: models.GroupSupplementary,
		Description: "Job cuts, restructurings, downsizing announcements"},
	{ID: "Labor market", Label: "Labor Market", Group: models.GroupSupplementary,
		Description: "Hiring, jobs, wages, participation, unemployment trends"},
	{ID: "International conflict", Label: "International Conflict", Group: models.GroupSupplementary,
		Description: "State-level military conflict or major geopolitical escalation"},
	{ID: "Trade war", Label: "Trade War", Group: models.GroupSupplementary,
		Description: "Tariffs, export controls, sanctions, retaliatory trade measures"},
	{ID: "Fiscal sustainability", Label: "Fiscal Sustainability", Group: models.GroupSupplementary,
		Description: "Government deficits, debt ceiling, sovereign downgrade"},
	{ID: "Rate watch", Label: "Markets / Rate-Watch", Group: models.GroupSupplementary,
		Description: "Central bank policy expectations and rate-sensitive market moves"},
}

// Catalog is the static registry of tracked narratives. Pure, no I/O.
type Catalog struct {
	ordered []models.Narrative
	byID    map[string]models.Narrative
}

// New builds the catalog over the fixed taxonomy.
func New() *Catalog {
	byID := make(map[string]models.Narrative, len(narratives))
	for _, n := range narratives {
		byID[n.ID] = n
	}
	return &Catalog{ordered: narratives, byID: byID}
}

// List returns narratives in declaration order, optionally filtered by
// group ("all", "core", "supplementary"). Unknown filters list everything.
func (c *Catalog) List(group string) []models.Narrative {
	if group == "" || group == FilterAll {
		out := make([]models.Narrative, len(c.ordered))
		copy(out, c.ordered)
		return out
	}
	out := make([]models.Narrative, 0, len(c.ordered))
	for _, n := range c.ordered {
		if string(n.Group) == group {
			out = append(out, n)
		}
	}
	return out
}

// Resolve returns the narrative registered under id.
func (c *Catalog) Resolve(id string) (models.Narrative, error) {
	n, ok := c.byID[id]
	if !ok {
		return models.Narrative{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return n, nil
}

// Size returns the number of registered narratives.
func (c *Catalog) Size() int { return len(c.ordered) }
