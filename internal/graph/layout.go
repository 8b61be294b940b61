package graph

import "github.com/starford/threatmap/internal/models"

const (
	defaultEdgeColor = "gray"
	curveBend        = 0.15
)

// Node is one domain marker in the render model.
type Node struct {
	Name       string   `json:"name"`
	Label      string   `json:"label"`
	Color      string   `json:"color"`
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Components []string `json:"components"`
}

// Edge is one drawable interaction. Index points back into the stored
// interaction list.
type Edge struct {
	Index        int     `json:"index"`
	From         string  `json:"from"`
	To           string  `json:"to"`
	Relationship string  `json:"relationship"`
	Label        string  `json:"label"`
	Color        string  `json:"color"`
	Curve        bool    `json:"curve"`
	X0           float64 `json:"x0"`
	Y0           float64 `json:"y0"`
	X1           float64 `json:"x1"`
	Y1           float64 `json:"y1"`
	LabelX       float64 `json:"label_x"`
	LabelY       float64 `json:"label_y"`
	ControlX     float64 `json:"control_x,omitempty"`
	ControlY     float64 `json:"control_y,omitempty"`
}

// RenderModel is what the presentation layer draws.
type RenderModel struct {
	Nodes   []Node `json:"nodes"`
	Edges   []Edge `json:"edges"`
	Skipped []int  `json:"skipped"`
}

// ComputeLayout places every domain and every interaction whose endpoints
// both exist. Dangling interactions are listed in Skipped by index and are
// not modified.
func ComputeLayout(domains map[string]models.Domain, interactions []models.Interaction) RenderModel {
	rm := RenderModel{
		Nodes:   make([]Node, 0, len(domains)),
		Edges:   make([]Edge, 0, len(interactions)),
		Skipped: []int{},
	}

	for _, name := range sortedNames(domains) {
		d := domains[name]
		components := d.Components
		if components == nil {
			components = []string{}
		}
		rm.Nodes = append(rm.Nodes, Node{
			Name:       name,
			Label:      name,
			Color:      d.Color,
			X:          d.Position.X,
			Y:          d.Position.Y,
			Components: components,
		})
	}

	for i, in := range interactions {
		from, okFrom := domains[in.From]
		to, okTo := domains[in.To]
		if !okFrom || !okTo {
			rm.Skipped = append(rm.Skipped, i)
			continue
		}
		rm.Edges = append(rm.Edges, layoutEdge(i, in, from.Position, to.Position))
	}

	return rm
}

func layoutEdge(index int, in models.Interaction, p0, p1 models.Position) Edge {
	color := in.Color
	if color == "" {
		color = defaultEdgeColor
	}
	e := Edge{
		Index:        index,
		From:         in.From,
		To:           in.To,
		Relationship: in.Relationship,
		Label:        "<<" + in.Relationship + ">>",
		Color:        color,
		Curve:        in.Curve,
		X0:           p0.X,
		Y0:           p0.Y,
		X1:           p1.X,
		Y1:           p1.Y,
		LabelX:       (p0.X + p1.X) / 2,
		LabelY:       (p0.Y + p1.Y) / 2,
	}
	if !in.Curve {
		return e
	}

	// Quadratic bezier: the control point sits on the perpendicular through
	// the midpoint and the label moves to the curve's own midpoint.
	dx, dy := p1.X-p0.X, p1.Y-p0.Y
	e.ControlX = e.LabelX - dy*curveBend
	e.ControlY = e.LabelY + dx*curveBend
	e.LabelX = 0.25*p0.X + 0.5*e.ControlX + 0.25*p1.X
	e.LabelY = 0.25*p0.Y + 0.5*e.ControlY + 0.25*p1.Y
	return e
}
