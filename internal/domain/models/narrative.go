package models

// Group partitions the narrative taxonomy.
type Group string

const (
	GroupCore          Group = "core"
	GroupSupplementary Group = "supplementary"
)

// Narrative is a tracked macro-economic theme. The set of narratives is
// fixed at process start; instances are never mutated.
type Narrative struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Group       Group  `json:"group"`
}
