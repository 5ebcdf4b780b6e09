package fields

// NodeValue holds the components of a field at one node
type NodeValue struct {
	Components []float64 `json:"components"`
}

// Mode tells whether a field was read per node or projected from elements
type Mode uint8

const (
	ModeNode Mode = iota
	ModeElement
)

func (m Mode) String() string {
	if m == ModeElement {
		return "element"
	}
	return "node"
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// Confidence of the element id match used during projection
type Confidence uint8

const (
	ConfidenceExact      Confidence = iota
	ConfidencePositional            // Some rows were paired with elements by sorted position
)

func (c Confidence) String() string {
	if c == ConfidencePositional {
		return "positional"
	}
	return "exact"
}

func (c Confidence) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Projection describes how per-node values were obtained
type Projection struct {
	Mode           Mode       `json:"mode"`
	Confidence     Confidence `json:"confidence"`
	NodeRows       int        `json:"nodeRows"`       // Rows placed directly on a node
	ExactRows      int        `json:"exactRows"`      // Element rows matched by id
	PositionalRows int        `json:"positionalRows"` // Element rows paired by sorted position
	UnmappedRows   int        `json:"unmappedRows"`   // Rows that reached no node
}

// Field is one classified, node aligned result quantity.
// PerNodeValues and ScalarValues always have one slot per mesh node, nil
// marks a node without data.
type Field struct {
	Name             string          `json:"name"`
	DisplayName      string          `json:"displayName"`
	Header           string          `json:"header,omitempty"`
	Kind             Kind            `json:"type"`
	ComponentNames   []string        `json:"componentNames,omitempty"`
	PerNodeValues    []*NodeValue    `json:"values"`
	ScalarValues     []*float64      `json:"scalarValues"`
	PerElementValues map[int]float64 `json:"elValues"`
	Min              float64         `json:"min"`
	Max              float64         `json:"max"`
	Classification   Classification  `json:"classification"`
	Projection       Projection      `json:"projection"`
}

// NewField allocates a field with nNodes empty slots
func NewField(name string, nNodes int) *Field {
	return &Field{
		Name:             name,
		DisplayName:      name,
		PerNodeValues:    make([]*NodeValue, nNodes),
		ScalarValues:     make([]*float64, nNodes),
		PerElementValues: make(map[int]float64),
	}
}

// ScalarCount returns the number of nodes with a scalar value
func (f *Field) ScalarCount() (n int) {
	for _, s := range f.ScalarValues {
		if s != nil {
			n++
		}
	}
	return
}

// IsPositional flags fields populated through the positional element fallback
func (f *Field) IsPositional() bool {
	return f.Projection.Confidence == ConfidencePositional
}
