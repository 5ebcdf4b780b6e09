package readers

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/notargets/feaingest/mesh"
)

// ReadMeshFile reads an authoritative mesh file based on extension. For .vtu
// files only the geometry is returned.
func ReadMeshFile(filename string) (*mesh.Mesh, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".inp":
		return ReadInp(filename)
	case ".vtu":
		msh, _, err := ReadVTU(filename, nil, nil)
		return msh, err
	default:
		return nil, fmt.Errorf("unsupported mesh format: %s", ext)
	}
}
