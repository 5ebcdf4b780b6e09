package fields

import (
	"log/slog"
	"math"
	"sort"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/feaingest/mesh"
)

// Projected is the node aligned result of projecting one block's rows
type Projected struct {
	Values           []*NodeValue
	PerElementValues map[int]float64
	Projection       Projection
}

type contribution struct {
	element    *mesh.Element
	components []float64
}

// Project places rows on mesh nodes. Rows whose id is a node id go straight to
// that node. When the field is element indexed (flagged by the classifier, or
// fewer than ElementIndexedFraction of the nodes received a value while
// unmatched rows and a topology exist) every unmatched row is spread onto the
// nodes of its element and each node gets the mean of its contributing
// elements. Rows with an id unknown to the topology are paired with elements
// by sorted position; such fields are marked ConfidencePositional.
func Project(rows []mesh.FieldRow, msh *mesh.Mesh, cls Classification,
	elementFraction float64, logger *slog.Logger) (p Projected) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	nNodes := msh.NumNodes()
	p.Values = make([]*NodeValue, nNodes)
	p.PerElementValues = make(map[int]float64)

	// Unmatched rows keyed by id: first occurrence order, last value wins
	var (
		unmatchedIDs []int
		unmatched    = make(map[int][]float64)
		nodeHasValue int
	)
	for _, r := range rows {
		if idx, ok := msh.GetNodeIndex(r.ID); ok && !cls.ElementIndexed {
			if p.Values[idx] == nil {
				nodeHasValue++
			}
			p.Values[idx] = &NodeValue{Components: append([]float64(nil), r.Components...)}
			p.Projection.NodeRows++
			continue
		}
		if _, seen := unmatched[r.ID]; !seen {
			unmatchedIDs = append(unmatchedIDs, r.ID)
		}
		unmatched[r.ID] = r.Components
	}

	threshold := int(math.Max(1, math.Floor(float64(nNodes)*elementFraction)))
	elementIndexed := msh.HasTopology() && len(unmatched) > 0 &&
		(cls.ElementIndexed || nodeHasValue < threshold)
	if !elementIndexed {
		p.Projection.UnmappedRows = len(unmatched)
		return
	}
	p.Projection.Mode = ModeElement

	var (
		elByID   = msh.ElementsByID()
		contribs = make([]contribution, 0, len(unmatched))
		noMatch  []int
	)
	for _, id := range unmatchedIDs {
		el, ok := elByID[id]
		if !ok {
			// The result and mesh files disagree on element ids
			noMatch = append(noMatch, id)
			continue
		}
		contribs = append(contribs, contribution{element: el, components: unmatched[id]})
		setElementValue(p.PerElementValues, id, unmatched[id], cls.Kind)
		p.Projection.ExactRows++
	}

	if len(noMatch) > 0 {
		sort.Ints(noMatch)
		sorted := msh.SortedElements()
		mapCount := len(noMatch)
		if len(sorted) < mapCount {
			mapCount = len(sorted)
		}
		for k := 0; k < mapCount; k++ {
			el := sorted[k]
			comps := unmatched[noMatch[k]]
			contribs = append(contribs, contribution{element: el, components: comps})
			if _, exists := p.PerElementValues[el.ID]; !exists {
				setElementValue(p.PerElementValues, el.ID, comps, cls.Kind)
			}
		}
		p.Projection.PositionalRows = mapCount
		p.Projection.UnmappedRows = len(noMatch) - mapCount
		if mapCount > 0 {
			p.Projection.Confidence = ConfidencePositional
			logger.Warn("element ids do not match the mesh, paired rows by sorted position",
				slog.Int("rows", len(noMatch)), slog.Int("paired", mapCount))
		}
	}

	averageOntoNodes(p.Values, contribs, msh)
	return
}

func setElementValue(elValues map[int]float64, id int, comps []float64, kind Kind) {
	if v := Reduce(comps, kind); !math.IsNaN(v) && !math.IsInf(v, 0) {
		elValues[id] = v
	}
}

// ElementMeans gives every element the mean of the finite node scalars it
// references. Elements without one get no entry.
func ElementMeans(scalars []*float64, msh *mesh.Mesh) map[int]float64 {
	means := make(map[int]float64)
	for _, el := range msh.Elements {
		var (
			sum float64
			n   int
		)
		for _, nid := range el.NodeIDs {
			idx, ok := msh.GetNodeIndex(nid)
			if !ok || idx >= len(scalars) || scalars[idx] == nil {
				continue
			}
			sum += *scalars[idx]
			n++
		}
		if n == 0 {
			continue
		}
		if m := sum / float64(n); !math.IsInf(m, 0) {
			means[el.ID] = m
		}
	}
	return means
}

// FillElementValues sets PerElementValues of a node mode field from its node
// scalars. Element mode fields keep the values reduced from their own rows.
func FillElementValues(f *Field, msh *mesh.Mesh) {
	if f.Projection.Mode != ModeNode || !msh.HasTopology() {
		return
	}
	f.PerElementValues = ElementMeans(f.ScalarValues, msh)
}

// averageOntoNodes assembles the node x contribution incidence matrix and
// multiplies it with the contribution values. An appended column of ones
// yields the number of contributions per node. A node listed twice by one
// element counts twice.
func averageOntoNodes(values []*NodeValue, contribs []contribution, msh *mesh.Mesh) {
	nNodes := len(values)
	if nNodes == 0 || len(contribs) == 0 {
		return
	}
	var width int
	for _, c := range contribs {
		if len(c.components) > width {
			width = len(c.components)
		}
	}

	incidence := sparse.NewDOK(nNodes, len(contribs))
	vals := mat.NewDense(len(contribs), width+1, nil)
	var linked bool
	for k, c := range contribs {
		for j, v := range c.components {
			vals.Set(k, j, v)
		}
		vals.Set(k, width, 1)
		for _, nid := range c.element.NodeIDs {
			idx, ok := msh.GetNodeIndex(nid)
			if !ok {
				continue
			}
			incidence.Set(idx, k, incidence.At(idx, k)+1)
			linked = true
		}
	}
	if !linked {
		return
	}

	// sums = incidence * vals over the stored entries only
	sums := mat.NewDense(nNodes, width+1, nil)
	incidence.ToCSR().DoNonZero(func(i, k int, w float64) {
		for j := 0; j <= width; j++ {
			sums.Set(i, j, sums.At(i, j)+w*vals.At(k, j))
		}
	})
	for i := 0; i < nNodes; i++ {
		count := sums.At(i, width)
		if count == 0 {
			continue
		}
		comps := make([]float64, width)
		for j := range comps {
			comps[j] = sums.At(i, j) / count
		}
		values[i] = &NodeValue{Components: comps}
	}
}
