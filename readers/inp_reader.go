package readers

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/notargets/feaingest/mesh"
	"github.com/notargets/feaingest/utils"
)

type inpSection uint8

const (
	sectionNone inpSection = iota
	sectionNode
	sectionElement
)

// ReadInp reads a comma delimited mesh definition file (.inp)
func ReadInp(filename string) (*mesh.Mesh, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseInpReader(file)
}

// ParseInp parses *NODE and *ELEMENT sections from mesh definition text
func ParseInp(data []byte) (*mesh.Mesh, error) {
	return ParseInpReader(bytes.NewReader(data))
}

// ParseInpReader parses mesh definition text from a reader. Rows that do not
// parse are skipped, generator output is often partially corrupt.
func ParseInpReader(r io.Reader) (*mesh.Mesh, error) {
	msh := mesh.NewMesh()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	var (
		section  = sectionNone
		elemType string
		carry    string // Element row continued on the next line
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "**") {
			continue
		}

		if strings.HasPrefix(line, "*") {
			if carry != "" {
				addElementRow(msh, carry, elemType)
				carry = ""
			}
			section, elemType = parseKeyword(line)
			continue
		}

		switch section {
		case sectionNode:
			addNodeRow(msh, line)
		case sectionElement:
			line = carry + line
			if strings.HasSuffix(line, ",") {
				carry = line
				continue
			}
			carry = ""
			addElementRow(msh, line, elemType)
		}
	}
	if carry != "" {
		addElementRow(msh, carry, elemType)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading mesh text: %w", err)
	}
	return msh, nil
}

// parseKeyword recognizes section markers case insensitively. Output request
// keywords like "*NODE FILE" or "*ELEMENT OUTPUT" open no section.
func parseKeyword(line string) (section inpSection, elemType string) {
	parts := strings.Split(line, ",")
	keyword := strings.ToUpper(strings.Join(strings.Fields(parts[0]), " "))
	switch keyword {
	case "*NODE":
		return sectionNode, ""
	case "*ELEMENT":
		for _, p := range parts[1:] {
			kv := strings.SplitN(p, "=", 2)
			if len(kv) == 2 && strings.EqualFold(strings.TrimSpace(kv[0]), "TYPE") {
				elemType = strings.TrimSpace(kv[1])
			}
		}
		return sectionElement, elemType
	}
	return sectionNone, ""
}

func splitRow(line string) []string {
	raw := strings.Split(line, ",")
	fields := make([]string, 0, len(raw))
	for _, f := range raw {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

func addNodeRow(msh *mesh.Mesh, line string) {
	fields := splitRow(line)
	if len(fields) < 4 {
		return
	}
	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return
	}
	var coords [3]float64
	for j := 0; j < 3; j++ {
		if coords[j], err = strconv.ParseFloat(fields[1+j], 64); err != nil ||
			math.IsNaN(coords[j]) || math.IsInf(coords[j], 0) {
			return
		}
	}
	msh.AddNode(mesh.Node{ID: id, X: coords[0], Y: coords[1], Z: coords[2]})
}

func addElementRow(msh *mesh.Mesh, line, elemType string) {
	fields := splitRow(line)
	if len(fields) < 2 {
		return
	}
	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return
	}
	nodes := make([]int, 0, len(fields)-1)
	for _, f := range fields[1:] {
		if nid, err := strconv.Atoi(f); err == nil {
			nodes = append(nodes, nid)
		}
	}
	if len(nodes) == 0 {
		return
	}
	msh.Elements = append(msh.Elements, mesh.Element{
		ID:      id,
		NodeIDs: nodes,
		Type:    elemType,
		Shape:   utils.FromCalculixType(elemType),
	})
}
