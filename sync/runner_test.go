package sync

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harperreed/card2box/convert"
	"github.com/harperreed/card2box/db"
	"github.com/harperreed/card2box/models"
	"github.com/harperreed/card2box/phonebook"
	"github.com/harperreed/card2box/restore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type staticSource struct {
	contacts []*models.Contact
	err      error
}

func (s *staticSource) FetchAll(context.Context) ([]*models.Contact, error) {
	return s.contacts, s.err
}

type fakeRouter struct {
	current   []byte
	uploadErr error
	uploaded  []byte
	keypads   int
}

func (f *fakeRouter) SID() string { return "0123456789abcdef" }

func (f *fakeRouter) PostBody(_ context.Context, _ string, _ []byte) (string, error) {
	f.keypads++
	return "SUCCEEDED", nil
}

func (f *fakeRouter) UploadPhonebook(_ context.Context, _ int, document []byte) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploaded = document
	return nil
}

func (f *fakeRouter) DownloadPhonebook(context.Context, int, string) ([]byte, error) {
	return f.current, nil
}

type memoryFiles struct {
	files  map[string][]byte
	closed bool
}

func newMemoryFiles() *memoryFiles {
	return &memoryFiles{files: make(map[string][]byte)}
}

func (m *memoryFiles) List(dir string) ([]string, error) {
	var names []string
	for name := range m.files {
		if path.Dir(name) == dir {
			names = append(names, path.Base(name))
		}
	}
	return names, nil
}

func (m *memoryFiles) Size(name string) (int64, error) {
	data, ok := m.files[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", fs.ErrNotExist, name)
	}
	return int64(len(data)), nil
}

func (m *memoryFiles) Delete(name string) error {
	delete(m.files, name)
	return nil
}

func (m *memoryFiles) Rename(from, to string) error {
	m.files[to] = m.files[from]
	delete(m.files, from)
	return nil
}

func (m *memoryFiles) Put(name string, data []byte) error {
	m.files[name] = data
	return nil
}

func (m *memoryFiles) Get(name string) ([]byte, error) {
	data, ok := m.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", fs.ErrNotExist, name)
	}
	return data, nil
}

func (m *memoryFiles) Close() error {
	m.closed = true
	return nil
}

type fakeRenderer struct {
	labels map[int]string
}

func (f *fakeRenderer) Render(labels map[int]string) ([]byte, error) {
	f.labels = labels
	return []byte("jpeg"), nil
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func testContacts() []*models.Contact {
	return []*models.Contact{
		{
			UID:    "u1",
			Fields: map[string]string{"LASTNAME": "Doe", "FIRSTNAME": "Jane"},
			Phones: []models.TypedValue{{Value: "030 123", Types: []string{"HOME"}}},
		},
		{
			UID:    "u2",
			Fields: map[string]string{"FULLNAME": "Nobody"},
		},
	}
}

func testConverter() *convert.Converter {
	return convert.NewConverter(convert.Rules{
		PhoneTypes: []convert.Rule{{Match: "HOME", Result: "home"}},
		RealName:   []string{"{LASTNAME}, {FIRSTNAME}", "{FULLNAME}"},
	}, nil)
}

func currentPhonebook(t *testing.T) []byte {
	t.Helper()
	doc := phonebook.Build("Telefonbuch", []models.Entry{{
		UID:      "u1",
		RealName: "Doe, Jane",
		Numbers: []models.Number{
			{ID: 0, Type: "home", Value: "030 123", Quickdial: "5"},
			{ID: 1, Type: "intern", Value: "**611"},
		},
	}})
	data, err := phonebook.Marshal(doc)
	require.NoError(t, err)
	return data
}

func uploadedDoc(t *testing.T, router *fakeRouter) models.Document {
	t.Helper()
	require.NotNil(t, router.uploaded)
	doc, err := phonebook.Parse(router.uploaded)
	require.NoError(t, err)
	return doc
}

func TestRunRestoresAttributesAndUploadsKeypad(t *testing.T) {
	database := setupTestDB(t)
	router := &fakeRouter{current: currentPhonebook(t)}
	files := newMemoryFiles()
	renderer := &fakeRenderer{}

	runner := &Runner{
		Source:    &staticSource{contacts: testContacts()},
		Converter: testConverter(),
		Router:    router,
		OpenFiles: func() (FileStore, error) { return files, nil },
		Keypad:    renderer,
		DB:        database,
		Options:   Options{PhonebookName: "Telefonbuch", Fritzfons: []int{610}},
	}

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Contacts)
	assert.Equal(t, 1, report.Entries)
	assert.Equal(t, AttributesFromPhonebook, report.AttributeSource)
	assert.Equal(t, 2, report.Attributes)

	doc := uploadedDoc(t, router)
	require.Len(t, doc.Entries, 1)
	numbers := doc.Entries[0].Numbers
	require.Len(t, numbers, 2)
	assert.Equal(t, "5", numbers[0].Quickdial)
	assert.Equal(t, "**611", numbers[1].Value)

	assert.Contains(t, files.files, "/FRITZ/mediabox/Attributes.csv")
	assert.True(t, files.closed)

	assert.Equal(t, map[int]string{5: "Jane"}, renderer.labels)
	require.Len(t, report.Keypad, 1)
	assert.True(t, report.Keypad[0].OK())
	assert.Equal(t, 1, router.keypads)

	backup, err := db.LoadAttributes(database, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, backup.Len())

	state, err := db.GetSyncState(database, PhonebookService)
	require.NoError(t, err)
	assert.Equal(t, db.StatusIdle, state.Status)
	require.NotNil(t, state.LastRunID)
	assert.Equal(t, report.RunID, *state.LastRunID)

	runs, err := db.RecentRuns(database, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "ok", runs[0].Status)
}

func TestRunFallsBackToArchive(t *testing.T) {
	router := &fakeRouter{}
	files := newMemoryFiles()
	stored := models.AttributeTable{"u1": {{UID: "u1", Number: "030 123", Quickdial: "3", Name: "Doe, Jane"}}}
	data, err := restore.Marshal(stored)
	require.NoError(t, err)
	files.files["/FRITZ/mediabox/Attributes.csv"] = data

	runner := &Runner{
		Source:    &staticSource{contacts: testContacts()},
		Converter: testConverter(),
		Router:    router,
		OpenFiles: func() (FileStore, error) { return files, nil },
		Options:   Options{PhonebookID: 1, Fritzfons: []int{610}, PhonebookName: "Familie"},
		Keypad:    &fakeRenderer{},
	}

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, AttributesFromArchive, report.AttributeSource)
	assert.Equal(t, "3", uploadedDoc(t, router).Entries[0].Numbers[0].Quickdial)
	assert.Nil(t, report.Keypad)
	assert.Equal(t, 0, router.keypads)
}

func TestRunFallsBackToLocalBackup(t *testing.T) {
	database := setupTestDB(t)
	require.NoError(t, db.SaveAttributes(database, 0, models.AttributeTable{
		"u1": {{UID: "u1", Number: "030 123", Vanity: "JANE", Name: "Doe, Jane"}},
	}))
	router := &fakeRouter{}

	runner := &Runner{
		Source:    &staticSource{contacts: testContacts()},
		Converter: testConverter(),
		Router:    router,
		DB:        database,
	}

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, AttributesFromBackup, report.AttributeSource)
	assert.Equal(t, "JANE", uploadedDoc(t, router).Entries[0].Numbers[0].Vanity)
	assert.Equal(t, models.ImageStats{}, report.Images)
}

func TestRunFileTransferFailureAborts(t *testing.T) {
	database := setupTestDB(t)
	router := &fakeRouter{}

	runner := &Runner{
		Source:    &staticSource{contacts: testContacts()},
		Converter: testConverter(),
		Router:    router,
		OpenFiles: func() (FileStore, error) { return nil, errors.New("530 login incorrect") },
		DB:        database,
	}

	_, err := runner.Run(context.Background())
	assert.ErrorContains(t, err, "530 login incorrect")
	assert.Nil(t, router.uploaded)

	state, err := db.GetSyncState(database, PhonebookService)
	require.NoError(t, err)
	assert.Equal(t, db.StatusError, state.Status)
}

func TestRunSyncsPhotos(t *testing.T) {
	router := &fakeRouter{}
	files := newMemoryFiles()
	contacts := testContacts()
	contacts[0].Photo = &models.Photo{Data: jpegFixture(t)}

	runner := &Runner{
		Source:    &staticSource{contacts: contacts},
		Converter: testConverter(),
		Router:    router,
		OpenFiles: func() (FileStore, error) { return files, nil },
		Options:   Options{},
	}
	runner.Options.Images.URLPrefix = "file:///var/media/ftp/FRITZ/fonpix/"

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Images.Uploaded)
	imageURL := uploadedDoc(t, router).Entries[0].ImageURL
	assert.True(t, strings.HasPrefix(imageURL, "file:///var/media/ftp/FRITZ/fonpix/u1_"), imageURL)
}

func TestRunSourceFailureRecordsError(t *testing.T) {
	database := setupTestDB(t)
	opened := false

	runner := &Runner{
		Source:    &staticSource{err: errors.New("401 unauthorized")},
		Converter: testConverter(),
		Router:    &fakeRouter{},
		OpenFiles: func() (FileStore, error) { opened = true; return newMemoryFiles(), nil },
		DB:        database,
	}

	_, err := runner.Run(context.Background())
	assert.ErrorContains(t, err, "failed to download contacts")
	assert.False(t, opened)

	state, err := db.GetSyncState(database, PhonebookService)
	require.NoError(t, err)
	assert.Equal(t, db.StatusError, state.Status)
	require.NotNil(t, state.ErrorMessage)
	assert.Contains(t, *state.ErrorMessage, "401 unauthorized")
}

func TestRunUploadFailureClosesFiles(t *testing.T) {
	files := newMemoryFiles()
	runner := &Runner{
		Source:    &staticSource{contacts: testContacts()},
		Converter: testConverter(),
		Router:    &fakeRouter{uploadErr: errors.New("phonebook upload failed")},
		OpenFiles: func() (FileStore, error) { return files, nil },
	}

	_, err := runner.Run(context.Background())
	assert.ErrorContains(t, err, "phonebook upload failed")
	assert.True(t, files.closed)
}

func TestRunTagsEachRunOnce(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)
	runner := &Runner{
		Source:    &staticSource{contacts: testContacts()},
		Converter: testConverter(),
		Router:    &fakeRouter{},
		Logger:    logger,
	}

	first, err := runner.Run(context.Background())
	require.NoError(t, err)
	second, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Same(t, logger, runner.Logger)

	entries := logs.FilterMessage("downloaded contacts").All()
	require.Len(t, entries, 2)
	for i, want := range []string{first.RunID, second.RunID} {
		var ids []string
		for _, field := range entries[i].Context {
			if field.Key == "run_id" {
				ids = append(ids, field.String)
			}
		}
		assert.Equal(t, []string{want}, ids)
	}
}

func jpegFixture(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}
