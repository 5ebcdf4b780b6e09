package ingest

import (
	"github.com/notargets/feaingest/mesh"
)

// Source names where the authoritative node set came from
type Source uint8

const (
	SourceNone Source = iota
	SourceMeshFile
	SourceResultBlock
)

func (s Source) String() string {
	switch s {
	case SourceMeshFile:
		return "mesh-file"
	case SourceResultBlock:
		return "result-block"
	}
	return "none"
}

func (s Source) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Resolution is the committed mesh. NodeBlock is the index of the block that
// supplied coordinates, -1 when the nodes came from elsewhere.
type Resolution struct {
	Mesh      *mesh.Mesh
	NodeBlock int
	Source    Source
}

// Resolve picks the authoritative nodes. A mesh definition with at least one
// node is used as is. Otherwise the block with the most rows becomes the node
// list, ties going to the first such block, with components (a, b, c) read as
// (x, y, z). Element topology comes from the mesh definition whenever one is
// given. With no node source at all the mesh is empty, which is not an error.
func Resolve(authoritative *mesh.Mesh, blocks []mesh.RowBlock) (res Resolution) {
	res.NodeBlock = -1
	res.Mesh = mesh.NewMesh()
	if authoritative != nil {
		res.Mesh.Elements = append(res.Mesh.Elements, authoritative.Elements...)
		if authoritative.NumNodes() > 0 {
			res.Mesh.Nodes = append(res.Mesh.Nodes, authoritative.Nodes...)
			res.Mesh.BuildIndex()
			res.Source = SourceMeshFile
			return
		}
	}

	best := -1
	for i := range blocks {
		if best < 0 || len(blocks[i].Rows) > len(blocks[best].Rows) {
			best = i
		}
	}
	if best < 0 || len(blocks[best].Rows) == 0 {
		return
	}
	for _, r := range blocks[best].Rows {
		res.Mesh.AddNode(mesh.Node{ID: r.ID, X: component(r, 0), Y: component(r, 1), Z: component(r, 2)})
	}
	res.NodeBlock, res.Source = best, SourceResultBlock
	return
}

func component(r mesh.FieldRow, i int) float64 {
	if i < len(r.Components) {
		return r.Components[i]
	}
	return 0
}
