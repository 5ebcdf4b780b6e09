package readers

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// ErrMalformedVTU is wrapped by every structural decoding failure of a VTU file
var ErrMalformedVTU = errors.New("malformed VTU")

const (
	zlibCompressor = "vtkZLibDataCompressor"
	// maxPrealloc caps the output buffer reserved from header sizes
	maxPrealloc = 64 << 20
)

// scalarSize is the byte width of each VTK scalar type
var scalarSize = map[string]int{
	"Int8": 1, "UInt8": 1,
	"Int16": 2, "UInt16": 2,
	"Int32": 4, "UInt32": 4,
	"Int64": 8, "UInt64": 8,
	"Float32": 4, "Float64": 8,
}

// arrayDecoder holds the file level encoding settings shared by all arrays
type arrayDecoder struct {
	order      binary.ByteOrder
	headerSize int // 4 for UInt32 headers, 8 for UInt64
	compressed bool

	appended       []byte // Bytes after the '_' of AppendedData
	appendedBase64 bool
	offsets        []int // Sorted distinct appended offsets, delimit base64 segments
}

func newArrayDecoder(byteOrder, headerType, compressor string) (*arrayDecoder, error) {
	d := &arrayDecoder{order: binary.LittleEndian, headerSize: 4}
	switch byteOrder {
	case "", "LittleEndian":
	case "BigEndian":
		d.order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: unknown byte_order %q", ErrMalformedVTU, byteOrder)
	}
	switch headerType {
	case "", "UInt32":
	case "UInt64":
		d.headerSize = 8
	default:
		return nil, fmt.Errorf("%w: unsupported header_type %q", ErrMalformedVTU, headerType)
	}
	switch compressor {
	case "":
	case zlibCompressor:
		d.compressed = true
	default:
		return nil, fmt.Errorf("%w: unsupported compressor %q", ErrMalformedVTU, compressor)
	}
	return d, nil
}

var (
	appendedOpenRe = regexp.MustCompile(`<AppendedData\b[^>]*>`)
	encodingAttrRe = regexp.MustCompile(`\bencoding\s*=\s*"([^"]*)"`)
)

// cutAppendedData removes the AppendedData section from the document, raw
// appended bytes are not valid XML. It returns the remaining document, the
// bytes after the leading '_' marker and whether they are base64 text.
func cutAppendedData(data []byte) (doc, appended []byte, isBase64 bool, err error) {
	loc := appendedOpenRe.FindIndex(data)
	if loc == nil {
		return data, nil, false, nil
	}
	if m := encodingAttrRe.FindSubmatch(data[loc[0]:loc[1]]); m != nil {
		isBase64 = string(m[1]) == "base64"
	}
	body := data[loc[1]:]
	end := bytes.LastIndex(body, []byte("</AppendedData>"))
	if end < 0 {
		return nil, nil, false, fmt.Errorf("%w: unterminated AppendedData", ErrMalformedVTU)
	}
	content := body[:end]
	us := bytes.IndexByte(content, '_')
	if us < 0 {
		return nil, nil, false, fmt.Errorf("%w: AppendedData without '_' marker", ErrMalformedVTU)
	}
	appended = content[us+1:]
	if isBase64 {
		appended = bytes.TrimRight(appended, " \t\r\n")
	}

	doc = make([]byte, 0, loc[0]+len(body)-end)
	doc = append(doc, data[:loc[0]]...)
	doc = append(doc, body[end+len("</AppendedData>"):]...)
	return doc, appended, isBase64, nil
}

// setOffsets records every appended offset so base64 segments can be cut at
// the start of the next array
func (d *arrayDecoder) setOffsets(arrays []*vtkDataArray) {
	seen := make(map[int]bool)
	for _, a := range arrays {
		if a.Format != "appended" {
			continue
		}
		if off, err := strconv.Atoi(strings.TrimSpace(a.Offset)); err == nil && !seen[off] {
			seen[off] = true
			d.offsets = append(d.offsets, off)
		}
	}
	sort.Ints(d.offsets)
}

// decode returns the array values converted to float64
func (d *arrayDecoder) decode(a *vtkDataArray) ([]float64, error) {
	switch a.Format {
	case "ascii":
		return decodeASCII(a.Text)
	case "binary":
		raw, err := decodeBase64Segments(a.Text)
		if err != nil {
			return nil, fmt.Errorf("array %q: %w", a.Name, err)
		}
		return d.decodeBinary(a, raw)
	case "appended":
		raw, err := d.appendedBytes(a)
		if err != nil {
			return nil, fmt.Errorf("array %q: %w", a.Name, err)
		}
		return d.decodeBinary(a, raw)
	}
	return nil, fmt.Errorf("%w: array %q has unknown format %q", ErrMalformedVTU, a.Name, a.Format)
}

func (d *arrayDecoder) decodeBinary(a *vtkDataArray, raw []byte) ([]float64, error) {
	payload, err := d.readBlock(raw)
	if err != nil {
		return nil, fmt.Errorf("array %q: %w", a.Name, err)
	}
	vals, err := decodeTyped(payload, a.Type, d.order)
	if err != nil {
		return nil, fmt.Errorf("array %q: %w", a.Name, err)
	}
	return vals, nil
}

func (d *arrayDecoder) appendedBytes(a *vtkDataArray) ([]byte, error) {
	off, err := strconv.Atoi(strings.TrimSpace(a.Offset))
	if err != nil || off < 0 || off > len(d.appended) {
		return nil, fmt.Errorf("%w: bad appended offset %q", ErrMalformedVTU, a.Offset)
	}
	if !d.appendedBase64 {
		return d.appended[off:], nil
	}
	end := len(d.appended)
	if i := sort.SearchInts(d.offsets, off+1); i < len(d.offsets) && d.offsets[i] < end {
		end = d.offsets[i]
	}
	return decodeBase64Segments(string(d.appended[off:end]))
}

func (d *arrayDecoder) readHeaderInt(buf []byte, pos int) (int, error) {
	if pos+d.headerSize > len(buf) {
		return 0, fmt.Errorf("%w: truncated block header", ErrMalformedVTU)
	}
	var v uint64
	if d.headerSize == 8 {
		v = d.order.Uint64(buf[pos:])
	} else {
		v = uint64(d.order.Uint32(buf[pos:]))
	}
	if v > uint64(math.MaxInt32) {
		return 0, fmt.Errorf("%w: block header value %d out of range", ErrMalformedVTU, v)
	}
	return int(v), nil
}

// readBlock strips the binary header and inflates compressed blocks.
// Uncompressed: [nbytes][data]. Compressed: [nblocks][blockSize][lastBlockSize]
// [csize_0 .. csize_n-1][zlib blocks].
func (d *arrayDecoder) readBlock(buf []byte) ([]byte, error) {
	hs := d.headerSize
	if !d.compressed {
		n, err := d.readHeaderInt(buf, 0)
		if err != nil {
			return nil, err
		}
		if hs+n > len(buf) {
			return nil, fmt.Errorf("%w: need %d data bytes, have %d", ErrMalformedVTU, n, len(buf)-hs)
		}
		return buf[hs : hs+n], nil
	}

	var head [3]int
	for i := range head {
		v, err := d.readHeaderInt(buf, i*hs)
		if err != nil {
			return nil, err
		}
		head[i] = v
	}
	nBlocks, blockSize, lastSize := head[0], head[1], head[2]
	if lastSize == 0 {
		lastSize = blockSize
	}
	if lastSize > blockSize && nBlocks > 1 {
		return nil, fmt.Errorf("%w: last block size %d exceeds block size %d", ErrMalformedVTU, lastSize, blockSize)
	}
	// Every block needs its size word and at least one compressed byte
	if (3+nBlocks)*hs+nBlocks > len(buf) {
		return nil, fmt.Errorf("%w: header declares %d blocks, have %d bytes", ErrMalformedVTU, nBlocks, len(buf))
	}
	sizes := make([]int, nBlocks)
	for i := range sizes {
		v, err := d.readHeaderInt(buf, (3+i)*hs)
		if err != nil {
			return nil, err
		}
		sizes[i] = v
	}

	pos := (3 + nBlocks) * hs
	var total int64
	if nBlocks > 0 {
		total = int64(nBlocks-1)*int64(blockSize) + int64(lastSize)
	}
	out := make([]byte, 0, min(total, maxPrealloc))
	for i, cs := range sizes {
		if pos+cs > len(buf) {
			return nil, fmt.Errorf("%w: compressed block %d truncated", ErrMalformedVTU, i)
		}
		want := blockSize
		if i == nBlocks-1 {
			want = lastSize
		}
		block, err := inflate(buf[pos:pos+cs], want)
		if err != nil {
			return nil, fmt.Errorf("%w: block %d: %v", ErrMalformedVTU, i, err)
		}
		if len(block) != want {
			return nil, fmt.Errorf("%w: block %d inflated to %d bytes, want %d", ErrMalformedVTU, i, len(block), want)
		}
		out = append(out, block...)
		pos += cs
	}
	return out, nil
}

// inflate decompresses one block, reading at most one byte past want so an
// oversized block is detected without inflating all of it
func inflate(b []byte, want int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(io.LimitReader(r, int64(want)+1))
}

// decodeBase64Segments decodes base64 text that may be several independently
// padded segments written back to back, VTK encodes header and data apart
func decodeBase64Segments(text string) ([]byte, error) {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, text)
	out := make([]byte, 0, base64.StdEncoding.DecodedLen(len(s)))
	for len(s) > 0 {
		end := strings.IndexByte(s, '=')
		if end < 0 {
			end = len(s)
		}
		for end < len(s) && s[end] == '=' {
			end++
		}
		chunk, err := base64.StdEncoding.DecodeString(s[:end])
		if err != nil {
			return nil, fmt.Errorf("%w: base64: %v", ErrMalformedVTU, err)
		}
		out = append(out, chunk...)
		s = s[end:]
	}
	return out, nil
}

func decodeASCII(text string) ([]float64, error) {
	tokens := strings.Fields(text)
	vals := make([]float64, len(tokens))
	for i, tok := range tokens {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: ascii value %q", ErrMalformedVTU, tok)
		}
		vals[i] = v
	}
	return vals, nil
}

func decodeTyped(payload []byte, typ string, order binary.ByteOrder) ([]float64, error) {
	size, ok := scalarSize[typ]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported type %q", ErrMalformedVTU, typ)
	}
	if len(payload)%size != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of %s", ErrMalformedVTU, len(payload), typ)
	}
	n := len(payload) / size
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		b := payload[i*size:]
		switch typ {
		case "Int8":
			vals[i] = float64(int8(b[0]))
		case "UInt8":
			vals[i] = float64(b[0])
		case "Int16":
			vals[i] = float64(int16(order.Uint16(b)))
		case "UInt16":
			vals[i] = float64(order.Uint16(b))
		case "Int32":
			vals[i] = float64(int32(order.Uint32(b)))
		case "UInt32":
			vals[i] = float64(order.Uint32(b))
		case "Int64":
			vals[i] = float64(int64(order.Uint64(b)))
		case "UInt64":
			vals[i] = float64(order.Uint64(b))
		case "Float32":
			vals[i] = float64(math.Float32frombits(order.Uint32(b)))
		case "Float64":
			vals[i] = math.Float64frombits(order.Uint64(b))
		}
	}
	return vals, nil
}
