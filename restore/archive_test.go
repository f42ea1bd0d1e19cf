package restore

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/harperreed/card2box/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	files   map[string][]byte
	calls   []string
	failPut bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{files: make(map[string][]byte)}
}

func (m *memoryStore) Size(name string) (int64, error) {
	data, ok := m.files[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", fs.ErrNotExist, name)
	}
	return int64(len(data)), nil
}

func (m *memoryStore) Delete(name string) error {
	m.calls = append(m.calls, "delete "+name)
	delete(m.files, name)
	return nil
}

func (m *memoryStore) Rename(from, to string) error {
	m.calls = append(m.calls, "rename "+from+" "+to)
	m.files[to] = m.files[from]
	delete(m.files, from)
	return nil
}

func (m *memoryStore) Put(name string, data []byte) error {
	m.calls = append(m.calls, "put "+name)
	if m.failPut {
		return errors.New("552 storage full")
	}
	m.files[name] = append([]byte(nil), data...)
	return nil
}

func (m *memoryStore) Get(name string) ([]byte, error) {
	data, ok := m.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", fs.ErrNotExist, name)
	}
	return data, nil
}

func TestArchiveLoadMissing(t *testing.T) {
	archive := NewArchive(newMemoryStore(), "")
	table, err := archive.Load()
	require.NoError(t, err)
	assert.Empty(t, table)
}

func TestArchiveSaveRotatesBackup(t *testing.T) {
	store := newMemoryStore()
	archive := NewArchive(store, "")

	first := models.AttributeTable{"u1": {{UID: "u1", Number: "1", Quickdial: "2"}}}
	second := models.AttributeTable{"u2": {{UID: "u2", Number: "3", Vanity: "V"}}}
	third := models.AttributeTable{"u3": {{UID: "u3", Number: "4", Quickdial: "9"}}}

	require.NoError(t, archive.Save(first))
	assert.Equal(t, []string{"put /FRITZ/mediabox/Attributes.csv"}, store.calls)

	require.NoError(t, archive.Save(second))
	require.NoError(t, archive.Save(third))
	assert.Equal(t, []string{
		"put /FRITZ/mediabox/Attributes.csv",
		"rename /FRITZ/mediabox/Attributes.csv /FRITZ/mediabox/Attributes.csv.bak",
		"put /FRITZ/mediabox/Attributes.csv",
		"delete /FRITZ/mediabox/Attributes.csv.bak",
		"rename /FRITZ/mediabox/Attributes.csv /FRITZ/mediabox/Attributes.csv.bak",
		"put /FRITZ/mediabox/Attributes.csv",
	}, store.calls)

	loaded, err := archive.Load()
	require.NoError(t, err)
	assert.Equal(t, third, loaded)

	backup, err := Decode(bytes.NewReader(store.files["/FRITZ/mediabox/Attributes.csv.bak"]))
	require.NoError(t, err)
	assert.Equal(t, second, backup)
}

func TestArchiveSavePutFailure(t *testing.T) {
	store := newMemoryStore()
	store.failPut = true
	err := NewArchive(store, "/data").Save(models.AttributeTable{})
	assert.ErrorContains(t, err, "failed to upload Attributes.csv")
}
