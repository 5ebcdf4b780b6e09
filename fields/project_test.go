package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/feaingest/mesh"
)

// Two quads sharing node 5
func sharedNodeMesh() *mesh.Mesh {
	return testMesh(8,
		mesh.Element{ID: 101, NodeIDs: []int{1, 2, 3, 5}},
		mesh.Element{ID: 102, NodeIDs: []int{5, 6, 7, 8}},
	)
}

func TestProjectNodeRows(t *testing.T) {
	msh := testMesh(3)
	rows := []mesh.FieldRow{
		{ID: 3, Components: []float64{30}},
		{ID: 1, Components: []float64{10}},
		{ID: 1, Components: []float64{11}}, // last value wins
	}
	p := Project(rows, msh, Classification{}, 0.5, nil)
	require.Len(t, p.Values, 3)
	assert.Equal(t, []float64{11}, p.Values[0].Components)
	assert.Nil(t, p.Values[1])
	assert.Equal(t, []float64{30}, p.Values[2].Components)
	assert.Equal(t, ModeNode, p.Projection.Mode)
	assert.Equal(t, 3, p.Projection.NodeRows)
	assert.Empty(t, p.PerElementValues)
}

func TestProjectElementRows(t *testing.T) {
	msh := sharedNodeMesh()
	rows := []mesh.FieldRow{
		{ID: 101, Components: []float64{10}},
		{ID: 102, Components: []float64{20}},
	}
	p := Project(rows, msh, Classification{}, 0.5, nil)
	require.Len(t, p.Values, 8)
	assert.Equal(t, ModeElement, p.Projection.Mode)
	assert.Equal(t, ConfidenceExact, p.Projection.Confidence)
	assert.Equal(t, 2, p.Projection.ExactRows)

	for _, idx := range []int{0, 1, 2} {
		require.NotNil(t, p.Values[idx])
		assert.Equal(t, []float64{10}, p.Values[idx].Components)
	}
	require.NotNil(t, p.Values[4])
	assert.InDelta(t, 15.0, p.Values[4].Components[0], 1e-12, "shared node gets the mean")
	assert.Equal(t, []float64{20}, p.Values[7].Components)
	assert.Nil(t, p.Values[3], "node 4 belongs to no element")
	assert.Equal(t, map[int]float64{101: 10, 102: 20}, p.PerElementValues)
}

func TestProjectMultiComponent(t *testing.T) {
	msh := sharedNodeMesh()
	rows := []mesh.FieldRow{
		{ID: 101, Components: []float64{100, 0, 0, 0, 0, 0}},
		{ID: 102, Components: []float64{0, 0, 0, 0, 0, 0}},
	}
	p := Project(rows, msh, Classification{Kind: KindStress}, 0.5, nil)
	assert.Equal(t, []float64{50, 0, 0, 0, 0, 0}, p.Values[4].Components)
	assert.Equal(t, 100.0, p.PerElementValues[101])
}

func TestProjectPositional(t *testing.T) {
	msh := sharedNodeMesh()
	rows := []mesh.FieldRow{
		{ID: 9002, Components: []float64{20}},
		{ID: 9001, Components: []float64{10}},
	}
	p := Project(rows, msh, Classification{}, 0.5, nil)
	assert.Equal(t, ModeElement, p.Projection.Mode)
	assert.Equal(t, ConfidencePositional, p.Projection.Confidence)
	assert.Equal(t, 2, p.Projection.PositionalRows)
	assert.Equal(t, 0, p.Projection.ExactRows)
	// 9001 pairs with 101, 9002 with 102
	assert.Equal(t, []float64{10}, p.Values[0].Components)
	assert.Equal(t, []float64{20}, p.Values[7].Components)
	assert.InDelta(t, 15.0, p.Values[4].Components[0], 1e-12)
	assert.Equal(t, map[int]float64{101: 10, 102: 20}, p.PerElementValues)

	// More rows than elements
	rows = append(rows, mesh.FieldRow{ID: 9003, Components: []float64{30}})
	p = Project(rows, msh, Classification{}, 0.5, nil)
	assert.Equal(t, 2, p.Projection.PositionalRows)
	assert.Equal(t, 1, p.Projection.UnmappedRows)
}

func TestProjectElementIndexedHint(t *testing.T) {
	// Element ids coincide with node ids
	msh := testMesh(4,
		mesh.Element{ID: 1, NodeIDs: []int{1, 2}},
		mesh.Element{ID: 2, NodeIDs: []int{3, 4}},
	)
	rows := []mesh.FieldRow{
		{ID: 1, Components: []float64{4}},
		{ID: 2, Components: []float64{8}},
	}
	p := Project(rows, msh, Classification{ElementIndexed: true}, 0.5, nil)
	assert.Equal(t, ModeElement, p.Projection.Mode)
	assert.Equal(t, []float64{4}, p.Values[1].Components)
	assert.Equal(t, []float64{8}, p.Values[3].Components)

	// Without the hint the rows are node rows
	p = Project(rows, msh, Classification{}, 0.5, nil)
	assert.Equal(t, ModeNode, p.Projection.Mode)
	assert.Equal(t, []float64{4}, p.Values[0].Components)
	assert.Nil(t, p.Values[3])
}

func TestProjectNoTopology(t *testing.T) {
	msh := testMesh(2)
	rows := []mesh.FieldRow{{ID: 77, Components: []float64{1}}}
	p := Project(rows, msh, Classification{}, 0.5, nil)
	assert.Equal(t, ModeNode, p.Projection.Mode)
	assert.Equal(t, 1, p.Projection.UnmappedRows)
	assert.Equal(t, []*NodeValue{nil, nil}, p.Values)
}

func TestProjectEmptyMesh(t *testing.T) {
	p := Project(rowsOf([]int{1, 2}, 1), mesh.NewMesh(), Classification{}, 0.5, nil)
	assert.Empty(t, p.Values)
	assert.Empty(t, p.PerElementValues)
}

func TestElementMeans(t *testing.T) {
	msh := sharedNodeMesh()
	msh.Elements = append(msh.Elements, mesh.Element{ID: 103, NodeIDs: []int{3, 42}})
	scalars := make([]*float64, msh.NumNodes())
	for i := range scalars {
		if i != 2 {
			v := float64(i + 1)
			scalars[i] = &v
		}
	}
	means := ElementMeans(scalars, msh)
	// Node 3 has no value and node 42 is not in the mesh
	assert.Equal(t, map[int]float64{101: 8.0 / 3, 102: 6.5}, means)
	assert.Empty(t, ElementMeans(make([]*float64, 8), msh))
}

func TestFillElementValues(t *testing.T) {
	msh := sharedNodeMesh()
	node := Project(rowsOf([]int{1, 2, 3, 5}, 2), msh, Classification{}, 0.25, nil)
	f := NewField("f", msh.NumNodes())
	f.PerNodeValues, f.PerElementValues, f.Projection = node.Values, node.PerElementValues, node.Projection
	DeriveField(f)
	FillElementValues(f, msh)
	assert.Equal(t, map[int]float64{101: 2, 102: 2}, f.PerElementValues)

	// Element mode keeps the values reduced from its own rows
	el := Project(rowsOf([]int{101}, 7), msh, Classification{}, 0.5, nil)
	require.Equal(t, ModeElement, el.Projection.Mode)
	g := NewField("g", msh.NumNodes())
	g.PerNodeValues, g.PerElementValues, g.Projection = el.Values, el.PerElementValues, el.Projection
	DeriveField(g)
	FillElementValues(g, msh)
	assert.Equal(t, map[int]float64{101: 7}, g.PerElementValues)

	// No topology, nothing to fill
	h := NewField("h", 2)
	FillElementValues(h, testMesh(2))
	assert.Empty(t, h.PerElementValues)
}
