package formats

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteMeshFile encodes f to path. The file is written to a temporary file
// next to path and renamed into place, so a failed write leaves no output.
func WriteMeshFile(path string, f *MeshFile) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := WriteMesh(tmp, f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming %s: %w", path, err)
	}
	return nil
}

// ReadMeshFile decodes a mesh file from disk.
func ReadMeshFile(path string) (*MeshFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening mesh file: %w", err)
	}
	defer file.Close()

	f, err := ReadMesh(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// VerifyMeshFile reads path back and verifies it against want.
func VerifyMeshFile(path string, want *MeshFile) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening mesh file: %w", err)
	}
	defer file.Close()

	d := NewDecoder(file)
	if _, err := d.Decode(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := d.Verify(want); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
