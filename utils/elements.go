package utils

import "strings"

// ElementType is the shape of a finite element, independent of the solver
// tag it was read from
type ElementType int

const (
	Unknown ElementType = iota
	Point
	Line
	Line3
	Triangle
	Quad
	Triangle6
	Quad8
	Tet
	Hex
	Prism
	Pyramid
	Tet10
	Hex20
	Prism15
	Pyramid13
)

type shapeInfo struct {
	name       string
	dim, nodes int
}

var shapeTable = [...]shapeInfo{
	Unknown:   {"Unknown", -1, 0},
	Point:     {"Point", 0, 1},
	Line:      {"Line", 1, 2},
	Line3:     {"Line3", 1, 3},
	Triangle:  {"Triangle", 2, 3},
	Quad:      {"Quad", 2, 4},
	Triangle6: {"Triangle6", 2, 6},
	Quad8:     {"Quad8", 2, 8},
	Tet:       {"Tet", 3, 4},
	Hex:       {"Hex", 3, 8},
	Prism:     {"Prism", 3, 6},
	Pyramid:   {"Pyramid", 3, 5},
	Tet10:     {"Tet10", 3, 10},
	Hex20:     {"Hex20", 3, 20},
	Prism15:   {"Prism15", 3, 15},
	Pyramid13: {"Pyramid13", 3, 13},
}

func (e ElementType) info() (shapeInfo, bool) {
	if e < 0 || int(e) >= len(shapeTable) {
		return shapeInfo{name: "Invalid", dim: -1}, false
	}
	return shapeTable[e], true
}

func (e ElementType) String() string {
	si, _ := e.info()
	return si.name
}

// MarshalText lets element shapes appear by name in JSON and YAML output.
func (e ElementType) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// Dimension is the topological dimension, -1 when the shape is not known
func (e ElementType) Dimension() int {
	si, _ := e.info()
	return si.dim
}

// NumNodes is the node count of the shape, 0 when the shape is not known
func (e ElementType) NumNodes() int {
	si, _ := e.info()
	return si.nodes
}

// Matches reports whether a connectivity list of n nodes fits the shape.
// Unknown shapes match any count.
func (e ElementType) Matches(n int) bool {
	nn := e.NumNodes()
	return nn == 0 || nn == n
}

// calculixPrefixes maps CalculiX/Abaqus element type prefixes to shapes. Longer
// prefixes are listed first so C3D20R does not resolve to C3D2.
var calculixPrefixes = []struct {
	prefix string
	etype  ElementType
}{
	{"C3D20", Hex20},
	{"C3D15", Prism15},
	{"C3D10", Tet10},
	{"C3D8", Hex},
	{"C3D6", Prism},
	{"C3D4", Tet},
	{"CPS8", Quad8}, {"CPE8", Quad8}, {"CAX8", Quad8}, {"S8", Quad8},
	{"CPS6", Triangle6}, {"CPE6", Triangle6}, {"CAX6", Triangle6}, {"S6", Triangle6},
	{"CPS4", Quad}, {"CPE4", Quad}, {"CAX4", Quad}, {"S4", Quad},
	{"CPS3", Triangle}, {"CPE3", Triangle}, {"CAX3", Triangle}, {"S3", Triangle},
	{"B32", Line3}, {"T3D3", Line3},
	{"B31", Line}, {"T3D2", Line}, {"SPRINGA", Line},
	{"MASS", Point},
}

// FromCalculixType maps an INP element TYPE= value (e.g. "C3D8R") onto a shape.
func FromCalculixType(tag string) ElementType {
	up := strings.ToUpper(strings.TrimSpace(tag))
	for _, p := range calculixPrefixes {
		if strings.HasPrefix(up, p.prefix) {
			return p.etype
		}
	}
	return Unknown
}

// vtkCellTypeMap maps VTK cell type identifiers to our ElementType
var vtkCellTypeMap = map[int]ElementType{
	1:  Point,     // VTK_VERTEX
	3:  Line,      // VTK_LINE
	5:  Triangle,  // VTK_TRIANGLE
	9:  Quad,      // VTK_QUAD
	10: Tet,       // VTK_TETRA
	12: Hex,       // VTK_HEXAHEDRON
	13: Prism,     // VTK_WEDGE
	14: Pyramid,   // VTK_PYRAMID
	21: Line3,     // VTK_QUADRATIC_EDGE
	22: Triangle6, // VTK_QUADRATIC_TRIANGLE
	23: Quad8,     // VTK_QUADRATIC_QUAD
	24: Tet10,     // VTK_QUADRATIC_TETRA
	25: Hex20,     // VTK_QUADRATIC_HEXAHEDRON
	26: Prism15,   // VTK_QUADRATIC_WEDGE
	27: Pyramid13, // VTK_QUADRATIC_PYRAMID
}

// FromVTKCellType maps a VTK cell type code onto a shape.
func FromVTKCellType(code int) ElementType {
	if etype, ok := vtkCellTypeMap[code]; ok {
		return etype
	}
	return Unknown
}
