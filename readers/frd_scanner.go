package readers

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/notargets/feaingest/InputParameters"
	"github.com/notargets/feaingest/mesh"
)

const (
	dataMarker      = "-1" // Data row: -1 id v1 v2 ...
	fieldMetaMarker = "-4" // Field metadata: -4 NAME NCOMP ...
	compMetaMarker  = "-5" // Component metadata: -5 NAME ...
	elemContMarker  = "-2" // Element connectivity continuation: -2 n1 n2 ...
	endMarker       = "-3"
	elementSection  = "3C" // Element definitions: -1 id type group material, then -2 rows
	maxLineLength   = 16 * 1024 * 1024
)

// numberRe finds numeric tokens, splitting fixed-width values that run together
// such as "1.00000E+00-5.00000E-01"
var numberRe = regexp.MustCompile(`[+-]?(?:\d+\.?\d*|\.\d+)(?:[Ee][+-]?\d+)?`)

type pendingMeta struct {
	name   string
	nComp  int
	names  []string
	isMeta bool
}

// blockScanner carries all scan state for one input; nothing is package level
type blockScanner struct {
	maxComponents   int
	minHeaderLength int

	blocks     []mesh.RowBlock
	current    *mesh.RowBlock
	lastHeader string
	pending    *pendingMeta
	malformed  int
	inElements bool
}

// ScanBlocks splits line oriented result text into contiguous row blocks
func ScanBlocks(data []byte, hp *InputParameters.HeuristicParameters) (blocks []mesh.RowBlock, err error) {
	blocks, _, err = scanBlocks(bytes.NewReader(data), hp)
	return
}

// ScanBlocksReader is ScanBlocks over a reader. The malformed count is the
// number of data rows that were skipped.
func ScanBlocksReader(r io.Reader, hp *InputParameters.HeuristicParameters) (blocks []mesh.RowBlock, malformed int, err error) {
	return scanBlocks(r, hp)
}

func scanBlocks(r io.Reader, hp *InputParameters.HeuristicParameters) ([]mesh.RowBlock, int, error) {
	if hp == nil {
		hp = InputParameters.Defaults()
	}
	bs := &blockScanner{
		maxComponents:   hp.MaxComponents,
		minHeaderLength: hp.MinHeaderLength,
		blocks:          []mesh.RowBlock{},
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	for scanner.Scan() {
		bs.processLine(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, bs.malformed, fmt.Errorf("error reading result text: %w", err)
	}
	bs.closeBlock()
	return bs.blocks, bs.malformed, nil
}

func (bs *blockScanner) processLine(raw string) {
	line := strings.TrimSpace(raw)

	if bs.inElements {
		switch {
		case hasMarker(line, dataMarker), hasMarker(line, elemContMarker):
			return
		case hasMarker(line, endMarker):
			bs.inElements = false
			return
		}
		bs.inElements = false
	}
	// Connectivity continuations belong to element records, never to a block
	if hasMarker(line, elemContMarker) {
		return
	}

	if hasMarker(line, dataMarker) {
		row, ok := parseDataRow(line, bs.maxComponents)
		if !ok {
			// Malformed rows neither close the block nor become headers
			bs.malformed++
			return
		}
		bs.appendRow(row)
		return
	}

	// Any non-data line ends the block being built
	bs.closeBlock()

	switch {
	case line == "":
		return
	case isElementSection(line):
		// Element records are topology, not result rows
		bs.pending = nil
		bs.lastHeader = ""
		bs.inElements = true
		return
	case hasMarker(line, fieldMetaMarker):
		parts := strings.Fields(line)
		meta := &pendingMeta{name: bs.lastHeader, isMeta: true}
		if len(parts) > 1 {
			meta.name = parts[1]
		}
		if len(parts) > 2 {
			meta.nComp, _ = strconv.Atoi(parts[2])
		}
		bs.pending = meta
		bs.lastHeader = meta.name
		return
	case hasMarker(line, compMetaMarker) && bs.pending != nil:
		parts := strings.Fields(line)
		if len(parts) > 1 {
			bs.pending.names = append(bs.pending.names, parts[1])
		}
		return
	}

	bs.pending = nil
	if len(line) >= bs.minHeaderLength {
		bs.lastHeader = line
	}
}

func (bs *blockScanner) appendRow(row mesh.FieldRow) {
	if bs.current == nil {
		blk := &mesh.RowBlock{Header: bs.lastHeader}
		if bs.pending != nil {
			blk.Header = bs.pending.name
			blk.Names = append([]string(nil), bs.pending.names...)
			blk.DeclaredComponents = bs.pending.nComp
			blk.FromMetadata = bs.pending.isMeta
		}
		bs.current = blk
	}
	bs.current.Rows = append(bs.current.Rows, row)
}

func (bs *blockScanner) closeBlock() {
	if bs.current != nil && len(bs.current.Rows) > 0 {
		bs.blocks = append(bs.blocks, *bs.current)
	}
	bs.current = nil
}

func isElementSection(line string) bool {
	f := strings.Fields(line)
	return len(f) > 0 && f[0] == elementSection
}

// hasMarker reports whether the trimmed line starts with the marker followed
// by whitespace or the end of the line
func hasMarker(line, marker string) bool {
	if !strings.HasPrefix(line, marker) {
		return false
	}
	if len(line) == len(marker) {
		return true
	}
	c := line[len(marker)]
	return c == ' ' || c == '\t'
}

// parseDataRow parses "-1 id v1 v2 ..." keeping at most maxComponents values.
// Rows with a non-integer id, no components or stray text are rejected.
func parseDataRow(line string, maxComponents int) (row mesh.FieldRow, ok bool) {
	rest := line[len(dataMarker):]
	locs := numberRe.FindAllStringIndex(rest, -1)
	if len(locs) < 2 {
		return
	}
	prev := 0
	for _, loc := range locs {
		if strings.TrimSpace(rest[prev:loc[0]]) != "" {
			return
		}
		prev = loc[1]
	}
	if strings.TrimSpace(rest[prev:]) != "" {
		return
	}
	id, err := strconv.Atoi(strings.TrimPrefix(rest[locs[0][0]:locs[0][1]], "+"))
	if err != nil {
		return
	}
	nv := len(locs) - 1
	if nv > maxComponents {
		nv = maxComponents
	}
	row.ID = id
	row.Components = make([]float64, nv)
	for i := 0; i < nv; i++ {
		loc := locs[i+1]
		if row.Components[i], err = strconv.ParseFloat(rest[loc[0]:loc[1]], 64); err != nil {
			return mesh.FieldRow{}, false
		}
	}
	return row, true
}
