// ABOUTME: Persists the attribute table on the router's storage via file transfer
// ABOUTME: Keeps a single-generation .bak copy of the previous table
package restore

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/harperreed/card2box/models"
)

const (
	// DefaultDir is the router directory holding the attribute table.
	DefaultDir = "/FRITZ/mediabox"

	// FileName is the attribute table file name.
	FileName = "Attributes.csv"
)

// FileStore is the subset of file transfer operations the archive needs.
type FileStore interface {
	Size(name string) (int64, error)
	Delete(name string) error
	Rename(from, to string) error
	Put(name string, data []byte) error
	Get(name string) ([]byte, error)
}

// Archive stores attribute tables in a remote directory.
type Archive struct {
	Files FileStore
	Dir   string
}

// NewArchive creates an archive rooted at dir (DefaultDir when empty).
func NewArchive(files FileStore, dir string) *Archive {
	if dir == "" {
		dir = DefaultDir
	}
	return &Archive{Files: files, Dir: dir}
}

func (a *Archive) file() string {
	return path.Join(a.Dir, FileName)
}

func (a *Archive) backup() string {
	return a.file() + ".bak"
}

func (a *Archive) exists(name string) bool {
	_, err := a.Files.Size(name)
	return err == nil
}

// Save rotates the current table to the backup file and writes table.
func (a *Archive) Save(table models.AttributeTable) error {
	data, err := Marshal(table)
	if err != nil {
		return err
	}

	if a.exists(a.file()) {
		if a.exists(a.backup()) {
			if err := a.Files.Delete(a.backup()); err != nil {
				return fmt.Errorf("failed to delete attribute backup: %w", err)
			}
		}
		if err := a.Files.Rename(a.file(), a.backup()); err != nil {
			return fmt.Errorf("failed to rotate attribute table: %w", err)
		}
	}

	if err := a.Files.Put(a.file(), data); err != nil {
		return fmt.Errorf("failed to upload %s: %w", FileName, err)
	}
	return nil
}

// Load reads the stored table; a missing file yields an empty table.
func (a *Archive) Load() (models.AttributeTable, error) {
	data, err := a.Files.Get(a.file())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.AttributeTable{}, nil
		}
		return nil, fmt.Errorf("failed to download %s: %w", FileName, err)
	}
	return Decode(bytes.NewReader(data))
}
