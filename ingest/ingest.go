// Package ingest turns solver result text, an optional mesh definition or an
// XML unstructured grid into one node aligned {nodes, elements, fields} result.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/notargets/feaingest/InputParameters"
	"github.com/notargets/feaingest/fields"
	"github.com/notargets/feaingest/mesh"
	"github.com/notargets/feaingest/readers"
)

// ErrNotFound is returned when a named input file does not exist
var ErrNotFound = fmt.Errorf("input source not found: %w", fs.ErrNotExist)

// Options configure one parse. The zero value uses the default parameters and
// discards log output.
type Options struct {
	Params *InputParameters.HeuristicParameters
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// Result is the unified output handed to renderers
type Result struct {
	Nodes    []mesh.Node     `json:"nodes"`
	Elements []mesh.Element  `json:"elements"`
	Fields   []*fields.Field `json:"fields"`
}

func newResult(msh *mesh.Mesh, flds []*fields.Field) *Result {
	res := &Result{Nodes: msh.Nodes, Elements: msh.Elements, Fields: flds}
	if res.Nodes == nil {
		res.Nodes = []mesh.Node{}
	}
	if res.Elements == nil {
		res.Elements = []mesh.Element{}
	}
	if res.Fields == nil {
		res.Fields = []*fields.Field{}
	}
	return res
}

// Parse ingests result text and optional mesh definition text (either may be empty)
func Parse(result, meshText []byte, opts Options) (*Result, error) {
	var msh *mesh.Mesh
	if len(bytes.TrimSpace(meshText)) > 0 {
		var err error
		if msh, err = readers.ParseInp(meshText); err != nil {
			return nil, err
		}
	}
	return ParseWithMesh(result, msh, opts)
}

// ParseWithMesh ingests result text against an already parsed mesh definition,
// msh may be nil
func ParseWithMesh(result []byte, msh *mesh.Mesh, opts Options) (*Result, error) {
	logger := opts.logger()
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
	logger.Debug("resolved mesh",
		slog.Int("blocks", len(blocks)),
		slog.Int("malformedRows", malformed),
		slog.String("source", res.Source.String()),
		slog.Int("nodeBlock", res.NodeBlock))
	res.Mesh.LogStatistics(logger)

	var (
		diagonal = res.Mesh.Diagonal()
		flds     = make([]*fields.Field, 0, len(blocks))
	)
	for bi := range blocks {
		if bi == res.NodeBlock {
			continue
		}
		f := buildField(c, bi, &blocks[bi], res.Mesh, diagonal, logger)
		logger.Debug("field",
			slog.String("name", f.Name),
			slog.String("kind", f.Kind.String()),
			slog.String("stage", f.Classification.Stage.String()),
			slog.String("mode", f.Projection.Mode.String()),
			slog.Int("scalars", f.ScalarCount()))
		flds = append(flds, f)
	}
	logger.Info("parsed result",
		slog.Int("nodes", res.Mesh.NumNodes()),
		slog.Int("elements", len(res.Mesh.Elements)),
		slog.Int("fields", len(flds)))
	return newResult(res.Mesh, flds), nil
}

// buildField runs classification, projection, derivation and the magnitude
// stage for one block
func buildField(c *fields.Classifier, bi int, blk *mesh.RowBlock, msh *mesh.Mesh,
	diagonal float64, logger *slog.Logger) *fields.Field {
	hp := c.Parameters()
	cls := c.Classify(blk, msh)

	f := fields.NewField(fieldName(blk, bi, cls), msh.NumNodes())
	f.DisplayName = prettyHeader(blk.Header)
	if f.DisplayName == "" {
		f.DisplayName = f.Name
	}
	f.Header = blk.Header
	f.ComponentNames = blk.Names

	p := fields.Project(blk.Rows, msh, cls, hp.ElementIndexedFraction, logger)
	f.PerNodeValues, f.PerElementValues, f.Projection = p.Values, p.PerElementValues, p.Projection
	f.Kind = cls.Kind
	fields.DeriveField(f)
	fields.FillElementValues(f, msh)

	// The magnitude stage only relabels, scalars stay as derived
	f.Classification = c.Refine(cls, f.ScalarValues, diagonal)
	f.Kind = f.Classification.Kind
	return f
}

// fieldName prefers metadata names, then the kind found in the header, then
// the header text itself
func fieldName(blk *mesh.RowBlock, bi int, cls fields.Classification) string {
	switch {
	case blk.FromMetadata && blk.Header != "":
		return blk.Header
	case cls.Stage == fields.StageHeader:
		return cls.Kind.String()
	case blk.Header != "":
		return blk.Header
	}
	return fmt.Sprintf("field_%d", bi)
}

var (
	headerNumberRe = regexp.MustCompile(`[+-]?\d+(?:\.\d+)?(?:[Ee][+-]?\d+)?`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
)

// prettyHeader builds a short display name from a header line
func prettyHeader(h string) string {
	if h == "" {
		return ""
	}
	nums := headerNumberRe.FindAllString(h, -1)
	if len(nums) >= 4 && (nums[0] == "-1" || nums[0] == "-1.0") {
		return fmt.Sprintf("id=%s params=%s", nums[1], strings.Join(nums[2:], ","))
	}
	if len(nums) > 0 {
		return "nums=" + strings.Join(nums, ",")
	}
	s := strings.TrimSpace(whitespaceRe.ReplaceAllString(h, " "))
	if r := []rune(s); len(r) > 80 {
		s = string(r[:80])
	}
	return s
}

// ParseVTU ingests an XML unstructured grid document
func ParseVTU(data []byte, opts Options) (*Result, error) {
	c, err := fields.NewClassifier(opts.Params)
	if err != nil {
		return nil, err
	}
	msh, flds, err := readers.ParseVTU(data, c, opts.logger())
	if err != nil {
		return nil, err
	}
	return newResult(msh, flds), nil
}

// ParseFiles reads a result file and an optional mesh file ("" for none). A
// .vtu result is decoded on its own and the mesh file is ignored.
func ParseFiles(resultPath, meshPath string, opts Options) (*Result, error) {
	data, err := readSource(resultPath)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(resultPath), ".vtu") {
		if meshPath != "" {
			opts.logger().Warn("mesh file ignored for VTU input", slog.String("mesh", meshPath))
		}
		return ParseVTU(data, opts)
	}
	msh, err := readMesh(meshPath)
	if err != nil {
		return nil, err
	}
	return ParseWithMesh(data, msh, opts)
}

func readMesh(meshPath string) (*mesh.Mesh, error) {
	if meshPath == "" {
		return nil, nil
	}
	if _, err := os.Stat(meshPath); err != nil {
		return nil, notFound(meshPath, err)
	}
	return readers.ReadMeshFile(meshPath)
}

func readSource(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, notFound(path, err)
	}
	return data, nil
}

func notFound(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return err
}
