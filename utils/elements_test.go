package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestElementType(t *testing.T) {
	{ // CalculiX tags
		assert.Equal(t, Hex, FromCalculixType("C3D8"))
		assert.Equal(t, Hex, FromCalculixType("c3d8r"))
		assert.Equal(t, Hex20, FromCalculixType("C3D20R"))
		assert.Equal(t, Tet10, FromCalculixType("C3D10"))
		assert.Equal(t, Tet, FromCalculixType(" C3D4 "))
		assert.Equal(t, Quad, FromCalculixType("S4R"))
		assert.Equal(t, Unknown, FromCalculixType("USER1"))
		assert.Equal(t, Unknown, FromCalculixType(""))
	}
	{ // VTK codes
		assert.Equal(t, Hex, FromVTKCellType(12))
		assert.Equal(t, Tet, FromVTKCellType(10))
		assert.Equal(t, Tet10, FromVTKCellType(24))
		assert.Equal(t, Unknown, FromVTKCellType(42))
	}
	{ // Shape metadata
		assert.Equal(t, 8, Hex.NumNodes())
		assert.Equal(t, 3, Tet10.Dimension())
		assert.Equal(t, 2, Quad8.Dimension())
		assert.Equal(t, "Prism15", Prism15.String())
		assert.Equal(t, "Invalid", ElementType(99).String())
		assert.Equal(t, -1, ElementType(-2).Dimension())
		assert.Equal(t, 0, Unknown.NumNodes())
		assert.True(t, Hex.Matches(8))
		assert.False(t, Hex.Matches(20))
		assert.True(t, Unknown.Matches(7))
		b, err := Hex.MarshalText()
		assert.NoError(t, err)
		assert.Equal(t, "Hex", string(b))
	}
}
