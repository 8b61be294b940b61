package models

// Position is a normalized 2-D coordinate, both axes in [0,1].
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Domain is a named architectural zone. The name is the key of the owning map.
type Domain struct {
	Color      string   `json:"color"`
	Position   Position `json:"position"`
	Components []string `json:"components"`
}

// Interaction is a directed, labelled relationship between two domains.
type Interaction struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Relationship string `json:"relationship"`
	Color        string `json:"color,omitempty"`
	Curve        bool   `json:"curve,omitempty"`
}

// Snapshot is the document persisted for an iteration. Selected threats and
// mitigations are full copies taken at save time, not references.
type Snapshot struct {
	Domains             map[string]Domain     `json:"domains"`
	Interactions        []Interaction         `json:"interactions"`
	SelectedThreats     map[string]Threat     `json:"selected_threats"`
	SelectedMitigations map[string]Mitigation `json:"selected_mitigations"`
}
