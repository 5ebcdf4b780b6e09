package ingest

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/notargets/feaingest/fields"
	"github.com/notargets/feaingest/mesh"
	"github.com/notargets/feaingest/readers"
)

// BlockSummary describes one scanned row block
type BlockSummary struct {
	Index       int         `json:"index"`
	Rows        int         `json:"rows"`
	Components  int         `json:"components"`
	Header      string      `json:"header"`
	NodeHits    int         `json:"nodeHits"`
	ElementHits int         `json:"elementHits"`
	Kind        fields.Kind `json:"kind"`
}

// Report is the structural overview of a result file
type Report struct {
	Blocks        int            `json:"blocks"`
	MalformedRows int            `json:"malformedRows"`
	NodeBlock     int            `json:"nodeBlock"`
	Source        Source         `json:"source"`
	Nodes         int            `json:"nodes"`
	Elements      int            `json:"elements"`
	Top           []BlockSummary `json:"top"`
	Preview       []mesh.Node    `json:"preview"`
}

// InspectFiles reads a result file and an optional mesh file and inspects
// them. Missing files wrap ErrNotFound.
func InspectFiles(resultPath, meshPath string, top int, opts Options) (*Report, error) {
	data, err := readSource(resultPath)
	if err != nil {
		return nil, err
	}
	msh, err := readMesh(meshPath)
	if err != nil {
		return nil, err
	}
	return Inspect(data, msh, top, opts)
}

// Inspect scans result text and lists the top largest blocks, largest first
// with ties in file order
func Inspect(result []byte, msh *mesh.Mesh, top int, opts Options) (*Report, error) {
	c, err := fields.NewClassifier(opts.Params)
	if err != nil {
		return nil, err
	}
	hp := c.Parameters()
	blocks, malformed, err := readers.ScanBlocksReader(bytes.NewReader(result), &hp)
	if err != nil {
		return nil, err
	}
	res := Resolve(msh, blocks)

	rep := &Report{
		Blocks:        len(blocks),
		MalformedRows: malformed,
		NodeBlock:     res.NodeBlock,
		Source:        res.Source,
		Nodes:         res.Mesh.NumNodes(),
		Elements:      len(res.Mesh.Elements),
		Top:           make([]BlockSummary, 0, len(blocks)),
	}
	for i := range blocks {
		cls := c.Classify(&blocks[i], res.Mesh)
		rep.Top = append(rep.Top, BlockSummary{
			Index:       i,
			Rows:        len(blocks[i].Rows),
			Components:  blocks[i].NumComponents(),
			Header:      blocks[i].Header,
			NodeHits:    cls.NodeHits,
			ElementHits: cls.ElementHits,
			Kind:        cls.Kind,
		})
	}
	sort.SliceStable(rep.Top, func(i, j int) bool { return rep.Top[i].Rows > rep.Top[j].Rows })
	if top >= 0 && len(rep.Top) > top {
		rep.Top = rep.Top[:top]
	}
	n := 5
	if res.Mesh.NumNodes() < n {
		n = res.Mesh.NumNodes()
	}
	rep.Preview = append([]mesh.Node{}, res.Mesh.Nodes[:n]...)
	return rep, nil
}

// Write prints the report as plain text
func (r *Report) Write(w io.Writer) {
	fmt.Fprintf(w, "total blocks: %d, malformed rows: %d\n", r.Blocks, r.MalformedRows)
	for _, b := range r.Top {
		fmt.Fprintf(w, "block[%d] count=%d comps=%d nodeHits=%d elHits=%d kind=%s header=%q\n",
			b.Index, b.Rows, b.Components, b.NodeHits, b.ElementHits, b.Kind, b.Header)
	}
	fmt.Fprintf(w, "nodes: %d from %s", r.Nodes, r.Source)
	if r.NodeBlock >= 0 {
		fmt.Fprintf(w, " (block %d)", r.NodeBlock)
	}
	fmt.Fprintf(w, ", elements: %d\n", r.Elements)
	for _, n := range r.Preview {
		fmt.Fprintf(w, "  node %d: (%g, %g, %g)\n", n.ID, n.X, n.Y, n.Z)
	}
}
