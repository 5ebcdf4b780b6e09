package fields

import (
	"fmt"
	"regexp"

	"github.com/notargets/feaingest/InputParameters"
	"github.com/notargets/feaingest/mesh"
)

// Classifier assigns a Kind to result blocks. It holds only compiled
// parameters and is safe for concurrent use.
type Classifier struct {
	hp           InputParameters.HeuristicParameters
	displacement *regexp.Regexp
	stress       *regexp.Regexp
	strain       *regexp.Regexp
	vector       *regexp.Regexp
	stressComp   *regexp.Regexp
}

// NewClassifier compiles the keyword patterns. nil selects the defaults.
func NewClassifier(hp *InputParameters.HeuristicParameters) (*Classifier, error) {
	if hp == nil {
		hp = InputParameters.Defaults()
	}
	if err := hp.Validate(); err != nil {
		return nil, fmt.Errorf("invalid heuristic parameters: %w", err)
	}
	return &Classifier{
		hp:           *hp,
		displacement: regexp.MustCompile(hp.DisplacementPattern),
		stress:       regexp.MustCompile(hp.StressPattern),
		strain:       regexp.MustCompile(hp.StrainPattern),
		vector:       regexp.MustCompile(hp.VectorPattern),
		stressComp:   regexp.MustCompile(hp.StressComponentPattern),
	}, nil
}

// Parameters returns a copy of the parameters in use
func (c *Classifier) Parameters() InputParameters.HeuristicParameters { return c.hp }

// ByName matches header or array name keywords. Displacement wins over
// stress, stress over strain, strain over vector.
func (c *Classifier) ByName(text string) (Kind, bool) {
	switch {
	case text == "":
		return KindUnknown, false
	case c.displacement.MatchString(text):
		return KindDisplacement, true
	case c.stress.MatchString(text):
		return KindStress, true
	case c.strain.MatchString(text):
		return KindStrain, true
	case c.vector.MatchString(text):
		return KindVector, true
	}
	return KindUnknown, false
}

func (c *Classifier) hasStressComponents(names []string) bool {
	for _, n := range names {
		if c.stressComp.MatchString(n) {
			return true
		}
	}
	return false
}

// Classify runs the header, component count and coverage stages on a block
// against the authoritative mesh. The magnitude stage needs derived scalars
// and runs later through Refine.
func (c *Classifier) Classify(blk *mesh.RowBlock, msh *mesh.Mesh) (cls Classification) {
	elIDs := make(map[int]struct{}, len(msh.Elements))
	for _, e := range msh.Elements {
		elIDs[e.ID] = struct{}{}
	}
	seen := make(map[int]struct{}, len(blk.Rows))
	for _, r := range blk.Rows {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		if _, ok := msh.GetNodeIndex(r.ID); ok {
			cls.NodeHits++
		}
		if _, ok := elIDs[r.ID]; ok {
			cls.ElementHits++
		}
	}

	nRows := len(blk.Rows)
	nComp := blk.NumComponents()

	// 1. Header keywords
	if kind, ok := c.ByName(blk.Header); ok {
		cls.Kind, cls.Stage = kind, StageHeader
	}

	// 2. Component count: a six component block with stress component names is a tensor
	if cls.Kind == KindUnknown && nComp == 6 && c.hasStressComponents(blk.Names) {
		cls.Kind, cls.Stage = KindStress, StageComponents
	}
	// Most ids are element ids rather than node ids, whatever the kind
	if msh.HasTopology() && 2*cls.ElementHits > nRows && cls.ElementHits > cls.NodeHits {
		cls.ElementIndexed = true
	}

	// 3. Coverage: one three component row for every node
	if cls.Kind == KindUnknown && !cls.ElementIndexed && msh.NumNodes() > 0 &&
		nRows == msh.NumNodes() && nComp == 3 &&
		float64(cls.NodeHits) >= c.hp.CoverageFraction*float64(nRows) {
		cls.Kind, cls.Stage = KindDisplacement, StageCoverage
	}
	return
}

// Refine runs the magnitude stage: an unknown field whose largest scalar is
// small against the mesh diagonal is a displacement, a large one a generic
// scalar. Fields without a finite scalar or a sized mesh are left alone.
func (c *Classifier) Refine(cls Classification, scalars []*float64, diagonal float64) Classification {
	if cls.Kind != KindUnknown || diagonal <= 0 {
		return cls
	}
	maxAbs, ok := MaxAbs(scalars)
	if !ok {
		return cls
	}
	switch {
	case maxAbs < c.hp.DisplacementRatio*diagonal:
		cls.Kind, cls.Stage = KindDisplacement, StageMagnitude
	case maxAbs > c.hp.ScalarRatio*diagonal:
		cls.Kind, cls.Stage = KindScalar, StageMagnitude
	}
	return cls
}

// ClassifyArray classifies a named binary array by keywords, then by its
// component count: 6 is a stress tensor, 3 a vector, anything else a scalar.
func (c *Classifier) ClassifyArray(name string, nComp int) Classification {
	if kind, ok := c.ByName(name); ok {
		if kind == KindDisplacement && nComp != 3 && nComp != 6 {
			return Classification{Kind: KindScalar, Stage: StageArrayShape}
		}
		return Classification{Kind: kind, Stage: StageHeader}
	}
	switch nComp {
	case 6:
		return Classification{Kind: KindStress, Stage: StageArrayShape}
	case 3:
		return Classification{Kind: KindVector, Stage: StageArrayShape}
	}
	return Classification{Kind: KindScalar, Stage: StageArrayShape}
}
