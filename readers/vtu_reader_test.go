package readers

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/feaingest/fields"
	"github.com/notargets/feaingest/utils"
)

// Unit tetrahedron plus one extra point on the x axis
var (
	tetPoints = []float64{
		0, 0, 0,
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
	tetConn    = []float64{0, 1, 2, 3}
	tetOffsets = []float64{4}
	tetTypes   = []float64{10}
)

func asciiArray(typ, name string, nComp int, vals []float64) string {
	var buf bytes.Buffer
	for i, v := range vals {
		if i > 0 {
			buf.WriteByte(' ')
		}
		fmt.Fprintf(&buf, "%g", v)
	}
	return fmt.Sprintf(`<DataArray type="%s" Name="%s" NumberOfComponents="%d" format="ascii">%s</DataArray>`,
		typ, name, nComp, buf.String())
}

func encodeTyped(typ string, order binary.ByteOrder, vals []float64) []byte {
	var buf bytes.Buffer
	for _, v := range vals {
		switch typ {
		case "Float32":
			_ = binary.Write(&buf, order, float32(v))
		case "Float64":
			_ = binary.Write(&buf, order, v)
		case "Int32":
			_ = binary.Write(&buf, order, int32(v))
		case "Int64":
			_ = binary.Write(&buf, order, int64(v))
		case "UInt8":
			buf.WriteByte(uint8(v))
		}
	}
	return buf.Bytes()
}

func headerBytes(order binary.ByteOrder, header64 bool, vals ...int) []byte {
	var buf bytes.Buffer
	for _, v := range vals {
		if header64 {
			_ = binary.Write(&buf, order, uint64(v))
		} else {
			_ = binary.Write(&buf, order, uint32(v))
		}
	}
	return buf.Bytes()
}

// compressBlocks returns header and zlib payload the way VTK lays them out
func compressBlocks(t *testing.T, payload []byte, blockSize int, header64 bool) (head, body []byte) {
	t.Helper()
	var (
		sizes  []int
		blocks bytes.Buffer
		last   int
	)
	for start := 0; start < len(payload); start += blockSize {
		end := start + blockSize
		if end > len(payload) {
			end = len(payload)
		}
		var zb bytes.Buffer
		w := zlib.NewWriter(&zb)
		_, err := w.Write(payload[start:end])
		require.NoError(t, err)
		require.NoError(t, w.Close())
		sizes = append(sizes, zb.Len())
		blocks.Write(zb.Bytes())
		last = end - start
	}
	head = headerBytes(binary.LittleEndian, header64, append([]int{len(sizes), blockSize, last}, sizes...)...)
	return head, blocks.Bytes()
}

func vtuDocument(fileAttrs, pieceBody string, nPoints, nCells int) string {
	return fmt.Sprintf(`<?xml version="1.0"?>
<VTKFile type="UnstructuredGrid" version="1.0" %s>
  <UnstructuredGrid>
    <Piece NumberOfPoints="%d" NumberOfCells="%d">
%s
    </Piece>
  </UnstructuredGrid>
</VTKFile>
`, fileAttrs, nPoints, nCells, pieceBody)
}

func TestParseVTUAscii(t *testing.T) {
	body := fmt.Sprintf(`<Points>%s</Points>
<Cells>%s%s%s</Cells>
<PointData>%s%s%s</PointData>`,
		asciiArray("Float32", "Points", 3, tetPoints),
		asciiArray("Int32", "connectivity", 1, tetConn),
		asciiArray("Int32", "offsets", 1, tetOffsets),
		asciiArray("UInt8", "types", 1, tetTypes),
		asciiArray("Float64", "Displacement", 3, []float64{0, 0, 0, 3, 4, 0, 0, 0, 0, 0, 0, 0}),
		asciiArray("Float64", "Stress", 6, []float64{
			100, 0, 0, 0, 0, 0,
			0, 0, 0, 0, 0, 0,
			0, 0, 0, 0, 0, 0,
			50, 50, 50, 0, 0, 0,
		}),
		asciiArray("Float64", "Temperature", 1, []float64{20, 21, 22, 23}),
	)
	msh, flds, err := ParseVTU([]byte(vtuDocument(`byte_order="LittleEndian"`, body, 4, 1)), nil, nil)
	require.NoError(t, err)

	require.Equal(t, 4, msh.NumNodes())
	assert.Equal(t, 1, msh.Nodes[0].ID)
	assert.Equal(t, 4, msh.Nodes[3].ID)
	assert.Equal(t, 1.0, msh.Nodes[3].Z)
	require.Len(t, msh.Elements, 1)
	assert.Equal(t, 1, msh.Elements[0].ID)
	assert.Equal(t, []int{1, 2, 3, 4}, msh.Elements[0].NodeIDs)
	assert.Equal(t, "10", msh.Elements[0].Type)
	assert.Equal(t, utils.Tet, msh.Elements[0].Shape)

	require.Len(t, flds, 3)
	disp := flds[0]
	assert.Equal(t, "Displacement", disp.Name)
	assert.Equal(t, fields.KindDisplacement, disp.Kind)
	assert.Equal(t, 5.0, *disp.ScalarValues[1])
	assert.Equal(t, 0.0, disp.Min)
	assert.Equal(t, 5.0, disp.Max)

	stress := flds[1]
	assert.Equal(t, fields.KindStress, stress.Kind)
	assert.Equal(t, 100.0, *stress.ScalarValues[0])
	assert.Equal(t, 0.0, *stress.ScalarValues[3], "hydrostatic")
	assert.Equal(t, []float64{50, 50, 50, 0, 0, 0}, stress.PerNodeValues[3].Components)

	temp := flds[2]
	assert.Equal(t, fields.KindScalar, temp.Kind)
	assert.Equal(t, fields.StageArrayShape, temp.Classification.Stage)
	assert.Equal(t, 20.0, temp.Min)
	assert.Equal(t, 23.0, temp.Max)
	for _, f := range flds {
		assert.Len(t, f.PerNodeValues, 4)
		assert.Len(t, f.ScalarValues, 4)
	}
}

func TestParseVTUBinarySegments(t *testing.T) {
	order := binary.BigEndian
	// Header and data are encoded as two padded base64 segments
	binaryArray := func(typ, name string, nComp int, vals []float64) string {
		data := encodeTyped(typ, order, vals)
		text := base64.StdEncoding.EncodeToString(headerBytes(order, false, len(data))) +
			"\n" + base64.StdEncoding.EncodeToString(data)
		return fmt.Sprintf(`<DataArray type="%s" Name="%s" NumberOfComponents="%d" format="binary">%s</DataArray>`,
			typ, name, nComp, text)
	}
	body := fmt.Sprintf(`<Points>%s</Points>
<Cells>%s%s%s</Cells>
<PointData>%s</PointData>`,
		binaryArray("Float32", "Points", 3, tetPoints),
		binaryArray("Int32", "connectivity", 1, tetConn),
		binaryArray("Int32", "offsets", 1, tetOffsets),
		binaryArray("UInt8", "types", 1, tetTypes),
		binaryArray("Float32", "U", 3, []float64{0, 0, 0, 0.5, 0, 0, 0, 0.25, 0, 0, 0, 0}),
	)
	msh, flds, err := ParseVTU([]byte(vtuDocument(`byte_order="BigEndian" header_type="UInt32"`, body, 4, 1)), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, msh.Nodes[1].X)
	assert.Equal(t, []int{1, 2, 3, 4}, msh.Elements[0].NodeIDs)
	require.Len(t, flds, 1)
	assert.Equal(t, fields.KindDisplacement, flds[0].Kind)
	assert.Equal(t, 0.5, flds[0].Max)
}

func TestParseVTUCompressed(t *testing.T) {
	order := binary.LittleEndian
	zlibArray := func(typ, name string, nComp int, vals []float64) string {
		head, blocks := compressBlocks(t, encodeTyped(typ, order, vals), 32, true)
		text := base64.StdEncoding.EncodeToString(head) + base64.StdEncoding.EncodeToString(blocks)
		return fmt.Sprintf(`<DataArray type="%s" Name="%s" NumberOfComponents="%d" format="binary">%s</DataArray>`,
			typ, name, nComp, text)
	}
	// 96 bytes of Float64 points split over three blocks
	body := fmt.Sprintf(`<Points>%s</Points>
<Cells>%s%s%s</Cells>
<PointData>%s</PointData>`,
		zlibArray("Float64", "Points", 3, tetPoints),
		zlibArray("Int64", "connectivity", 1, tetConn),
		zlibArray("Int64", "offsets", 1, tetOffsets),
		zlibArray("UInt8", "types", 1, tetTypes),
		zlibArray("Float64", "S", 6, []float64{
			100, 0, 0, 0, 0, 0,
			0, 100, 0, 0, 0, 0,
			0, 0, 0, 10, 0, 0,
			0, 0, 0, 0, 0, 0,
		}),
	)
	attrs := `byte_order="LittleEndian" header_type="UInt64" compressor="vtkZLibDataCompressor"`
	msh, flds, err := ParseVTU([]byte(vtuDocument(attrs, body, 4, 1)), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, msh.Nodes[2].Y)
	assert.Equal(t, utils.Tet, msh.Elements[0].Shape)
	require.Len(t, flds, 1)
	assert.Equal(t, fields.KindStress, flds[0].Kind)
	assert.Equal(t, 100.0, *flds[0].ScalarValues[1])
	assert.InDelta(t, math.Sqrt(3)*10, *flds[0].ScalarValues[2], 1e-12)
}

func TestParseVTUAppended(t *testing.T) {
	order := binary.LittleEndian
	arrays := []struct {
		typ, name, group string
		nComp            int
		vals             []float64
	}{
		{"Float32", "Points", "Points", 3, tetPoints},
		{"Int32", "connectivity", "Cells", 1, tetConn},
		{"Int32", "offsets", "Cells", 1, tetOffsets},
		{"UInt8", "types", "Cells", 1, tetTypes},
		// Raw bytes of this array contain '<' and '&'
		{"UInt8", "Marker", "PointData", 1, []float64{'<', '&', '>', 0}},
	}

	for _, encoding := range []string{"raw", "base64"} {
		t.Run(encoding, func(t *testing.T) {
			var (
				appended bytes.Buffer
				groups   = map[string]*bytes.Buffer{}
			)
			for _, a := range arrays {
				data := encodeTyped(a.typ, order, a.vals)
				chunk := append(headerBytes(order, false, len(data)), data...)
				if encoding == "base64" {
					chunk = []byte(base64.StdEncoding.EncodeToString(chunk))
				}
				if groups[a.group] == nil {
					groups[a.group] = &bytes.Buffer{}
				}
				fmt.Fprintf(groups[a.group],
					`<DataArray type="%s" Name="%s" NumberOfComponents="%d" format="appended" offset="%d"/>`,
					a.typ, a.name, a.nComp, appended.Len())
				appended.Write(chunk)
			}
			body := fmt.Sprintf("<Points>%s</Points><Cells>%s</Cells><PointData>%s</PointData>",
				groups["Points"], groups["Cells"], groups["PointData"])
			doc := vtuDocument(`byte_order="LittleEndian"`, body, 4, 1)
			doc = doc[:len(doc)-len("</VTKFile>\n")] +
				fmt.Sprintf("<AppendedData encoding=\"%s\">\n   _%s\n</AppendedData>\n</VTKFile>\n",
					encoding, appended.String())

			msh, flds, err := ParseVTU([]byte(doc), nil, nil)
			require.NoError(t, err)
			assert.Equal(t, 1.0, msh.Nodes[3].Z)
			assert.Equal(t, []int{1, 2, 3, 4}, msh.Elements[0].NodeIDs)
			require.Len(t, flds, 1)
			assert.Equal(t, []float64{'&'}, flds[0].PerNodeValues[1].Components)
		})
	}
}

func TestParseVTUCellData(t *testing.T) {
	// Two triangles sharing the edge 2-3
	points := []float64{0, 0, 0, 1, 0, 0, 0, 1, 0, 1, 1, 0, 5, 5, 0}
	body := fmt.Sprintf(`<Points>%s</Points>
<Cells>%s%s%s</Cells>
<CellData>%s</CellData>`,
		asciiArray("Float32", "Points", 3, points),
		asciiArray("Int32", "connectivity", 1, []float64{0, 1, 2, 1, 3, 2}),
		asciiArray("Int32", "offsets", 1, []float64{3, 6}),
		asciiArray("UInt8", "types", 1, []float64{5, 5}),
		asciiArray("Float64", "Pressure", 1, []float64{10, 20}),
	)
	msh, flds, err := ParseVTU([]byte(vtuDocument("", body, 5, 2)), nil, nil)
	require.NoError(t, err)
	require.Len(t, msh.Elements, 2)
	assert.Equal(t, utils.Triangle, msh.Elements[1].Shape)

	require.Len(t, flds, 1)
	f := flds[0]
	assert.Equal(t, fields.ModeElement, f.Projection.Mode)
	assert.Equal(t, fields.ConfidenceExact, f.Projection.Confidence)
	assert.Equal(t, map[int]float64{1: 10, 2: 20}, f.PerElementValues)
	assert.Equal(t, 10.0, *f.ScalarValues[0])
	assert.Equal(t, 15.0, *f.ScalarValues[1])
	assert.Equal(t, 15.0, *f.ScalarValues[2])
	assert.Equal(t, 20.0, *f.ScalarValues[3])
	assert.Nil(t, f.ScalarValues[4], "point used by no cell")
}

func TestParseVTUPointFieldElementValues(t *testing.T) {
	body := fmt.Sprintf(`<Points>%s</Points>
<Cells>%s%s%s</Cells>
<PointData>%s</PointData>`,
		asciiArray("Float32", "Points", 3, tetPoints),
		asciiArray("Int32", "connectivity", 1, tetConn),
		asciiArray("Int32", "offsets", 1, tetOffsets),
		asciiArray("UInt8", "types", 1, tetTypes),
		asciiArray("Float64", "Temperature", 1, []float64{1, 2, 3, 6}),
	)
	_, flds, err := ParseVTU([]byte(vtuDocument("", body, 4, 1)), nil, nil)
	require.NoError(t, err)
	require.Len(t, flds, 1)
	assert.Equal(t, fields.ModeNode, flds[0].Projection.Mode)
	assert.Equal(t, map[int]float64{1: 3}, flds[0].PerElementValues)
}

func TestParseVTUNonFinite(t *testing.T) {
	body := fmt.Sprintf(`<Points>%s</Points>
<Cells>%s%s%s</Cells>
<PointData>%s</PointData>
<CellData>%s</CellData>`,
		asciiArray("Float32", "Points", 3, tetPoints),
		asciiArray("Int32", "connectivity", 1, tetConn),
		asciiArray("Int32", "offsets", 1, tetOffsets),
		asciiArray("UInt8", "types", 1, tetTypes),
		asciiArray("Float64", "Velocity", 3, []float64{1, 0, 0, math.NaN(), 0, 0, 0, 2, 0, 0, 0, math.Inf(1)}),
		asciiArray("Float64", "Energy", 1, []float64{math.Inf(-1)}),
	)
	msh, flds, err := ParseVTU([]byte(vtuDocument("", body, 4, 1)), nil, nil)
	require.NoError(t, err)
	require.Len(t, flds, 2)
	vel := flds[0]
	assert.Equal(t, []float64{1, 0, 0}, vel.PerNodeValues[0].Components)
	assert.Nil(t, vel.PerNodeValues[1])
	assert.Nil(t, vel.PerNodeValues[3])
	assert.Equal(t, 2, vel.Projection.NodeRows)
	assert.Equal(t, 2.0, vel.Max)
	assert.Empty(t, flds[1].PerElementValues)
	assert.Equal(t, 0, flds[1].ScalarCount())

	_, err = json.Marshal(struct {
		Mesh   any
		Fields any
	}{msh, flds})
	assert.NoError(t, err)

	// Non-finite coordinates cannot be placed
	bad := fmt.Sprintf("<Points>%s</Points>", asciiArray("Float64", "Points", 3, []float64{0, math.NaN(), 0}))
	_, _, err = ParseVTU([]byte(vtuDocument("", bad, 1, 0)), nil, nil)
	assert.ErrorIs(t, err, ErrMalformedVTU)
}

func TestParseVTUErrors(t *testing.T) {
	points := fmt.Sprintf("<Points>%s</Points>", asciiArray("Float32", "Points", 3, []float64{0, 0, 0}))
	cases := map[string]string{
		"empty":      "",
		"not xml":    "this is not xml",
		"wrong root": `<Other type="UnstructuredGrid"><UnstructuredGrid><Piece/></UnstructuredGrid></Other>`,
		"wrong type": `<VTKFile type="PolyData"><UnstructuredGrid><Piece/></UnstructuredGrid></VTKFile>`,
		"no piece":   `<VTKFile type="UnstructuredGrid"><UnstructuredGrid></UnstructuredGrid></VTKFile>`,
		"compressor": vtuDocument(`compressor="vtkLZ4DataCompressor"`, points, 1, 0),
		"bad base64": vtuDocument("", `<Points><DataArray type="Float32" NumberOfComponents="3" format="binary">@@@@</DataArray></Points>`, 1, 0),
		"truncated": vtuDocument("", fmt.Sprintf(`<Points><DataArray type="Float32" NumberOfComponents="3" format="binary">%s</DataArray></Points>`,
			base64.StdEncoding.EncodeToString(headerBytes(binary.LittleEndian, false, 12))), 1, 0),
		"bad ascii":  vtuDocument("", `<Points><DataArray type="Float32" NumberOfComponents="3" format="ascii">0 x 0</DataArray></Points>`, 1, 0),
		"bad offset": vtuDocument("", fmt.Sprintf("%s<Cells>%s%s</Cells>", points, asciiArray("Int32", "connectivity", 1, []float64{0}), asciiArray("Int32", "offsets", 1, []float64{4})), 1, 1),
		"no offsets": vtuDocument("", fmt.Sprintf("%s<Cells>%s</Cells>", points, asciiArray("Int32", "connectivity", 1, []float64{0})), 1, 1),
	}
	for name, doc := range cases {
		_, _, err := ParseVTU([]byte(doc), nil, nil)
		assert.ErrorIs(t, err, ErrMalformedVTU, name)
	}
}

func TestParseVTUCorruptBlockHeader(t *testing.T) {
	zlibPoints := func(head, blocks []byte) string {
		text := base64.StdEncoding.EncodeToString(head) + base64.StdEncoding.EncodeToString(blocks)
		body := fmt.Sprintf(`<Points><DataArray type="Float64" NumberOfComponents="3" format="binary">%s</DataArray></Points>`, text)
		return vtuDocument(`compressor="vtkZLibDataCompressor"`, body, 4, 0)
	}
	order := binary.LittleEndian
	_, good := compressBlocks(t, encodeTyped("Float64", order, tetPoints), 96, false)

	cases := map[string]string{
		// Block count and size far beyond the bytes present
		"huge header": zlibPoints(headerBytes(order, false, 200000, math.MaxInt32, 0), make([]byte, 64)),
		"huge blocks": zlibPoints(headerBytes(order, false, 1, math.MaxInt32, math.MaxInt32, len(good)), good),
		"short sizes": zlibPoints(headerBytes(order, false, 3, 32, 32, 10), nil),
		"last larger": zlibPoints(headerBytes(order, false, 2, 8, 96, len(good), len(good)), append(good, good...)),
		// The block inflates to more than the header declares
		"oversized": zlibPoints(headerBytes(order, false, 1, 16, 16, len(good)), good),
	}
	for name, doc := range cases {
		assert.NotPanics(t, func() {
			_, _, err := ParseVTU([]byte(doc), nil, nil)
			assert.ErrorIs(t, err, ErrMalformedVTU, name)
		}, name)
	}

	// The same block with a truthful header decodes
	msh, _, err := ParseVTU([]byte(zlibPoints(headerBytes(order, false, 1, 96, 96, len(good)), good)), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, msh.Nodes[3].Z)
}

func TestReadVTU(t *testing.T) {
	body := fmt.Sprintf("<Points>%s</Points>", asciiArray("Float64", "Points", 3, tetPoints))
	fn := filepath.Join(t.TempDir(), "grid.vtu")
	require.NoError(t, os.WriteFile(fn, []byte(vtuDocument("", body, 4, 0)), 0644))

	msh, flds, err := ReadVTU(fn, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, msh.NumNodes())
	assert.False(t, msh.HasTopology())
	assert.Empty(t, flds)

	msh, err = ReadMeshFile(fn)
	require.NoError(t, err)
	assert.Equal(t, 4, msh.NumNodes())
}

func TestDecodeBase64Segments(t *testing.T) {
	a := base64.StdEncoding.EncodeToString([]byte{1})
	b := base64.StdEncoding.EncodeToString([]byte{2, 3})
	c := base64.StdEncoding.EncodeToString([]byte{4, 5, 6})
	out, err := decodeBase64Segments(a + " " + b + "\n" + c)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, out)
}
