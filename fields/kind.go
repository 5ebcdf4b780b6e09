package fields

// Kind is the physical meaning assigned to a field
type Kind uint8

const (
	KindUnknown Kind = iota
	KindDisplacement
	KindStress
	KindStrain
	KindVector
	KindScalar
)

func (k Kind) String() string {
	switch k {
	case KindDisplacement:
		return "displacement"
	case KindStress:
		return "stress"
	case KindStrain:
		return "strain"
	case KindVector:
		return "vector"
	case KindScalar:
		return "scalar"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Stage records which classification step decided the kind
type Stage uint8

const (
	StageDefault    Stage = iota // Nothing matched
	StageHeader                  // Header or array name keyword
	StageComponents              // Component count and component names
	StageCoverage                // Full per-node coverage with three components
	StageMagnitude               // Value magnitude against the mesh size
	StageArrayShape              // Binary array component count rule
)

func (s Stage) String() string {
	return [...]string{"default", "header", "components", "coverage", "magnitude", "array-shape"}[s]
}

func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Classification is the tagged result of the classifier. Later pipeline
// stages consume it and never look at header text again.
type Classification struct {
	Kind           Kind  `json:"kind"`
	Stage          Stage `json:"stage"`
	ElementIndexed bool  `json:"elementIndexed"` // Row ids name elements rather than nodes
	NodeHits       int   `json:"nodeHits"`
	ElementHits    int   `json:"elementHits"`
}
