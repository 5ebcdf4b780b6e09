package readers

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/notargets/feaingest/fields"
	"github.com/notargets/feaingest/mesh"
	"github.com/notargets/feaingest/utils"
)

type vtkFile struct {
	XMLName    xml.Name `xml:"VTKFile"`
	Type       string   `xml:"type,attr"`
	ByteOrder  string   `xml:"byte_order,attr"`
	HeaderType string   `xml:"header_type,attr"`
	Compressor string   `xml:"compressor,attr"`
	Grid       *vtkGrid `xml:"UnstructuredGrid"`
}

type vtkGrid struct {
	Pieces []vtkPiece `xml:"Piece"`
}

type vtkPiece struct {
	NumberOfPoints int           `xml:"NumberOfPoints,attr"`
	NumberOfCells  int           `xml:"NumberOfCells,attr"`
	Points         vtkArrayGroup `xml:"Points"`
	Cells          vtkArrayGroup `xml:"Cells"`
	PointData      vtkArrayGroup `xml:"PointData"`
	CellData       vtkArrayGroup `xml:"CellData"`
}

type vtkArrayGroup struct {
	Arrays []vtkDataArray `xml:"DataArray"`
}

type vtkDataArray struct {
	Type               string `xml:"type,attr"`
	Name               string `xml:"Name,attr"`
	NumberOfComponents int    `xml:"NumberOfComponents,attr"`
	NumberOfTuples     int    `xml:"NumberOfTuples,attr"`
	Format             string `xml:"format,attr"`
	Offset             string `xml:"offset,attr"`
	Text               string `xml:",chardata"`
}

func (a *vtkDataArray) components() int {
	if a.NumberOfComponents < 1 {
		return 1
	}
	return a.NumberOfComponents
}

func (g *vtkArrayGroup) byName(name string) *vtkDataArray {
	for i := range g.Arrays {
		if strings.EqualFold(g.Arrays[i].Name, name) {
			return &g.Arrays[i]
		}
	}
	return nil
}

// ReadVTU reads an XML unstructured grid file (.vtu)
func ReadVTU(filename string, c *fields.Classifier, logger *slog.Logger) (*mesh.Mesh, []*fields.Field, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, nil, err
	}
	return ParseVTU(data, c, logger)
}

// ParseVTU decodes the first Piece of an UnstructuredGrid document. Node and
// element ids are 1 based positions. PointData arrays become node fields and
// CellData arrays are projected onto the nodes of their cells. A nil
// classifier uses the default parameters.
func ParseVTU(data []byte, c *fields.Classifier, logger *slog.Logger) (*mesh.Mesh, []*fields.Field, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if c == nil {
		var err error
		if c, err = fields.NewClassifier(nil); err != nil {
			return nil, nil, err
		}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil, fmt.Errorf("%w: empty document", ErrMalformedVTU)
	}

	doc, appended, isBase64, err := cutAppendedData(data)
	if err != nil {
		return nil, nil, err
	}
	var vf vtkFile
	if err = xml.Unmarshal(doc, &vf); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedVTU, err)
	}
	if vf.Type != "" && vf.Type != "UnstructuredGrid" {
		return nil, nil, fmt.Errorf("%w: dataset type %q is not UnstructuredGrid", ErrMalformedVTU, vf.Type)
	}
	if vf.Grid == nil {
		return nil, nil, fmt.Errorf("%w: missing UnstructuredGrid element", ErrMalformedVTU)
	}
	if len(vf.Grid.Pieces) == 0 {
		return nil, nil, fmt.Errorf("%w: missing Piece element", ErrMalformedVTU)
	}
	if len(vf.Grid.Pieces) > 1 {
		logger.Debug("only the first piece is read", slog.Int("pieces", len(vf.Grid.Pieces)))
	}
	piece := &vf.Grid.Pieces[0]

	dec, err := newArrayDecoder(vf.ByteOrder, vf.HeaderType, vf.Compressor)
	if err != nil {
		return nil, nil, err
	}
	dec.appended, dec.appendedBase64 = appended, isBase64
	dec.setOffsets(piece.allArrays())

	msh, err := readPoints(piece, dec)
	if err != nil {
		return nil, nil, err
	}
	if err = readCells(piece, dec, msh); err != nil {
		return nil, nil, err
	}

	flds := make([]*fields.Field, 0, len(piece.PointData.Arrays)+len(piece.CellData.Arrays))
	for i := range piece.PointData.Arrays {
		f, err := pointField(i, &piece.PointData.Arrays[i], dec, c, msh)
		if err != nil {
			return nil, nil, err
		}
		flds = append(flds, f)
	}
	for i := range piece.CellData.Arrays {
		f, err := cellField(i, &piece.CellData.Arrays[i], dec, c, msh, logger)
		if err != nil {
			return nil, nil, err
		}
		flds = append(flds, f)
	}
	msh.LogStatistics(logger)
	logger.Debug("parsed VTU", slog.Int("fields", len(flds)))
	return msh, flds, nil
}

func (p *vtkPiece) allArrays() (arrays []*vtkDataArray) {
	for _, g := range []*vtkArrayGroup{&p.Points, &p.Cells, &p.PointData, &p.CellData} {
		for i := range g.Arrays {
			arrays = append(arrays, &g.Arrays[i])
		}
	}
	return
}

func readPoints(piece *vtkPiece, dec *arrayDecoder) (*mesh.Mesh, error) {
	msh := mesh.NewMesh()
	if piece.NumberOfPoints < 0 {
		return nil, fmt.Errorf("%w: negative NumberOfPoints", ErrMalformedVTU)
	}
	var (
		coords []float64
		nc     = 3
	)
	if len(piece.Points.Arrays) > 0 {
		a := &piece.Points.Arrays[0]
		var err error
		if coords, err = dec.decode(a); err != nil {
			return nil, err
		}
		if a.NumberOfComponents > 0 {
			nc = a.NumberOfComponents
		}
	}
	for i, v := range coords {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite point coordinate at value %d", ErrMalformedVTU, i)
		}
	}
	at := func(i int) float64 {
		if i < len(coords) {
			return coords[i]
		}
		return 0
	}
	for i := 0; i < piece.NumberOfPoints; i++ {
		n := mesh.Node{ID: i + 1, X: at(i * nc)}
		if nc > 1 {
			n.Y = at(i*nc + 1)
		}
		if nc > 2 {
			n.Z = at(i*nc + 2)
		}
		msh.AddNode(n)
	}
	return msh, nil
}

func readCells(piece *vtkPiece, dec *arrayDecoder, msh *mesh.Mesh) error {
	if piece.NumberOfCells <= 0 {
		return nil
	}
	connArr, offArr := piece.Cells.byName("connectivity"), piece.Cells.byName("offsets")
	if connArr == nil || offArr == nil {
		return fmt.Errorf("%w: Cells needs connectivity and offsets arrays", ErrMalformedVTU)
	}
	conn, err := dec.decode(connArr)
	if err != nil {
		return err
	}
	offsets, err := dec.decode(offArr)
	if err != nil {
		return err
	}
	var types []float64
	if typeArr := piece.Cells.byName("types"); typeArr != nil {
		if types, err = dec.decode(typeArr); err != nil {
			return err
		}
	}
	if len(offsets) < piece.NumberOfCells {
		return fmt.Errorf("%w: %d offsets for %d cells", ErrMalformedVTU, len(offsets), piece.NumberOfCells)
	}

	prev := 0
	for i := 0; i < piece.NumberOfCells; i++ {
		end := int(offsets[i])
		if end < prev || end > len(conn) {
			return fmt.Errorf("%w: cell %d offset %d outside connectivity", ErrMalformedVTU, i, end)
		}
		el := mesh.Element{ID: i + 1, NodeIDs: make([]int, 0, end-prev)}
		for _, ref := range conn[prev:end] {
			el.NodeIDs = append(el.NodeIDs, int(ref)+1)
		}
		var code int
		if i < len(types) {
			code = int(types[i])
		}
		el.Type = strconv.Itoa(code)
		el.Shape = utils.FromVTKCellType(code)
		msh.Elements = append(msh.Elements, el)
		prev = end
	}
	return nil
}

func arrayName(a *vtkDataArray, prefix string, idx int) string {
	if a.Name != "" {
		return a.Name
	}
	return fmt.Sprintf("%s_%d", prefix, idx)
}

// tuple returns component group i, or nil when the array is short or the
// group holds a non-finite value
func tuple(vals []float64, i, nc int) []float64 {
	if (i+1)*nc > len(vals) {
		return nil
	}
	comps := vals[i*nc : (i+1)*nc]
	for _, v := range comps {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
	}
	return append([]float64(nil), comps...)
}

func pointField(idx int, a *vtkDataArray, dec *arrayDecoder, c *fields.Classifier, msh *mesh.Mesh) (*fields.Field, error) {
	vals, err := dec.decode(a)
	if err != nil {
		return nil, err
	}
	nc := a.components()
	f := fields.NewField(arrayName(a, "Field", idx), msh.NumNodes())
	f.Classification = c.ClassifyArray(f.Name, nc)
	f.Kind = f.Classification.Kind
	for i := range f.PerNodeValues {
		if comps := tuple(vals, i, nc); comps != nil {
			f.PerNodeValues[i] = &fields.NodeValue{Components: comps}
			f.Projection.NodeRows++
		}
	}
	fields.DeriveField(f)
	fields.FillElementValues(f, msh)
	return f, nil
}

func cellField(idx int, a *vtkDataArray, dec *arrayDecoder, c *fields.Classifier,
	msh *mesh.Mesh, logger *slog.Logger) (*fields.Field, error) {
	vals, err := dec.decode(a)
	if err != nil {
		return nil, err
	}
	nc := a.components()
	rows := make([]mesh.FieldRow, 0, len(msh.Elements))
	for i := range msh.Elements {
		if comps := tuple(vals, i, nc); comps != nil {
			rows = append(rows, mesh.FieldRow{ID: msh.Elements[i].ID, Components: comps})
		}
	}
	f := fields.NewField(arrayName(a, "CellField", idx), msh.NumNodes())
	f.Classification = c.ClassifyArray(f.Name, nc)
	f.Classification.ElementIndexed = true
	f.Kind = f.Classification.Kind

	p := fields.Project(rows, msh, f.Classification,
		c.Parameters().ElementIndexedFraction, logger)
	f.PerNodeValues, f.PerElementValues, f.Projection = p.Values, p.PerElementValues, p.Projection
	fields.DeriveField(f)
	return f, nil
}
