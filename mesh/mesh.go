package mesh

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/feaingest/utils"
)

// Node is a mesh point with its solver identifier
type Node struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
}

// Element is a mesh cell. NodeIDs keep the solver-defined order.
type Element struct {
	ID      int               `json:"id"`
	NodeIDs []int             `json:"nodes"`
	Type    string            `json:"type"`            // Source tag: INP TYPE= value or VTK cell code
	Shape   utils.ElementType `json:"shape,omitempty"` // Shape resolved from Type
}

// Mesh holds the authoritative node set and element topology for one parse
type Mesh struct {
	Nodes    []Node
	Elements []Element

	// IDIndex maps node ID -> position in Nodes. Kept by AddNode and BuildIndex,
	// later stages look nodes up through it instead of array order.
	IDIndex map[int]int
}

// NewMesh creates an empty mesh with non-nil slices
func NewMesh() *Mesh {
	return &Mesh{
		Nodes:    []Node{},
		Elements: []Element{},
		IDIndex:  make(map[int]int),
	}
}

// AddNode appends a node unless its ID is already present. Returns false for
// a duplicate, the first occurrence wins.
func (m *Mesh) AddNode(n Node) bool {
	if _, exists := m.IDIndex[n.ID]; exists {
		return false
	}
	m.IDIndex[n.ID] = len(m.Nodes)
	m.Nodes = append(m.Nodes, n)
	return true
}

// BuildIndex rebuilds IDIndex from Nodes, dropping later duplicates
func (m *Mesh) BuildIndex() {
	nodes := m.Nodes
	m.Nodes = make([]Node, 0, len(nodes))
	m.IDIndex = make(map[int]int, len(nodes))
	for _, n := range nodes {
		m.AddNode(n)
	}
}

// GetNodeIndex returns the array index for a node ID
func (m *Mesh) GetNodeIndex(nodeID int) (int, bool) {
	idx, ok := m.IDIndex[nodeID]
	return idx, ok
}

// NumNodes returns the node count
func (m *Mesh) NumNodes() int { return len(m.Nodes) }

// HasTopology reports whether element connectivity is available
func (m *Mesh) HasTopology() bool { return len(m.Elements) > 0 }

// ElementsByID returns an element ID -> element lookup
func (m *Mesh) ElementsByID() map[int]*Element {
	byID := make(map[int]*Element, len(m.Elements))
	for i := range m.Elements {
		e := &m.Elements[i]
		if _, exists := byID[e.ID]; !exists {
			byID[e.ID] = e
		}
	}
	return byID
}

// SortedElements returns the elements ordered by ID, leaving m.Elements untouched
func (m *Mesh) SortedElements() []*Element {
	sorted := make([]*Element, len(m.Elements))
	for i := range m.Elements {
		sorted[i] = &m.Elements[i]
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return sorted
}

// BoundingBox returns the axis aligned box of all finite node coordinates.
// ok is false when no node has finite coordinates.
func (m *Mesh) BoundingBox() (box r3.Box, ok bool) {
	for _, n := range m.Nodes {
		p := r3.Vec{X: n.X, Y: n.Y, Z: n.Z}
		if !finiteVec(p) {
			continue
		}
		if !ok {
			box = r3.Box{Min: p, Max: p}
			ok = true
			continue
		}
		box.Min = r3.Vec{X: math.Min(box.Min.X, p.X), Y: math.Min(box.Min.Y, p.Y), Z: math.Min(box.Min.Z, p.Z)}
		box.Max = r3.Vec{X: math.Max(box.Max.X, p.X), Y: math.Max(box.Max.Y, p.Y), Z: math.Max(box.Max.Z, p.Z)}
	}
	return
}

// Diagonal is the length of the bounding box diagonal, 0 for an empty mesh
func (m *Mesh) Diagonal() float64 {
	box, ok := m.BoundingBox()
	if !ok {
		return 0
	}
	return r3.Norm(r3.Sub(box.Max, box.Min))
}

func finiteVec(p r3.Vec) bool {
	for _, v := range []float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Dimension is the largest element dimension, -1 without known shapes
func (m *Mesh) Dimension() int {
	dim := -1
	for _, e := range m.Elements {
		if d := e.Shape.Dimension(); d > dim {
			dim = d
		}
	}
	return dim
}

// ShapeMismatches counts elements whose connectivity length does not fit
// their resolved shape
func (m *Mesh) ShapeMismatches() (n int) {
	for _, e := range m.Elements {
		if !e.Shape.Matches(len(e.NodeIDs)) {
			n++
		}
	}
	return
}

// LogStatistics writes mesh statistics to the logger
func (m *Mesh) LogStatistics(logger *slog.Logger) {
	// Count element shapes
	typeCounts := make(map[utils.ElementType]int)
	for _, e := range m.Elements {
		typeCounts[e.Shape]++
	}
	attrs := []any{
		slog.Int("nodes", len(m.Nodes)),
		slog.Int("elements", len(m.Elements)),
		slog.Int("dimension", m.Dimension()),
		slog.Float64("diagonal", m.Diagonal()),
	}
	if bad := m.ShapeMismatches(); bad > 0 {
		attrs = append(attrs, slog.Int("shapeMismatches", bad))
	}
	shapes := make([]utils.ElementType, 0, len(typeCounts))
	for t := range typeCounts {
		shapes = append(shapes, t)
	}
	sort.Slice(shapes, func(i, j int) bool { return shapes[i] < shapes[j] })
	for _, t := range shapes {
		attrs = append(attrs, slog.Int("shape."+t.String(), typeCounts[t]))
	}
	logger.Debug("mesh statistics", attrs...)
}
