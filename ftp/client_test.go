package ftp

import (
	"errors"
	"io"
	"io/fs"
	"net/textproto"
	"testing"

	"github.com/jlaffaye/ftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	files  map[string][]byte
	quit   bool
	broken error
}

func missing() error {
	return &textproto.Error{Code: ftp.StatusFileUnavailable, Msg: "No such file or directory."}
}

func (f *fakeConn) NameList(dir string) ([]string, error) {
	if f.broken != nil {
		return nil, f.broken
	}
	var names []string
	for name := range f.files {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeConn) FileSize(name string) (int64, error) {
	data, ok := f.files[name]
	if !ok {
		return 0, missing()
	}
	return int64(len(data)), nil
}

func (f *fakeConn) Delete(name string) error {
	if _, ok := f.files[name]; !ok {
		return missing()
	}
	delete(f.files, name)
	return nil
}

func (f *fakeConn) Rename(from, to string) error {
	data, ok := f.files[from]
	if !ok {
		return missing()
	}
	f.files[to] = data
	delete(f.files, from)
	return nil
}

func (f *fakeConn) Stor(name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.files[name] = data
	return nil
}

func (f *fakeConn) Retr(name string) (*ftp.Response, error) {
	return nil, missing()
}

func (f *fakeConn) Quit() error {
	f.quit = true
	return nil
}

func TestClientOperations(t *testing.T) {
	conn := &fakeConn{files: map[string][]byte{}}
	client := NewClient(conn, nil)

	require.NoError(t, client.Put("/FRITZ/fonpix/u1.jpg", []byte("12345")))
	size, err := client.Size("/FRITZ/fonpix/u1.jpg")
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	require.NoError(t, client.Rename("/FRITZ/fonpix/u1.jpg", "/FRITZ/fonpix/u2.jpg"))
	names, err := client.List("/FRITZ/fonpix")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2.jpg"}, names)

	require.NoError(t, client.Delete("/FRITZ/fonpix/u2.jpg"))
	require.NoError(t, client.Close())
	assert.True(t, conn.quit)
}

func TestMissingFilesMapToNotExist(t *testing.T) {
	client := NewClient(&fakeConn{files: map[string][]byte{}}, nil)

	_, err := client.Size("/nope")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = client.Get("/FRITZ/mediabox/Attributes.csv")
	assert.ErrorIs(t, err, ErrNotExist)

	err = client.Delete("/nope")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestOtherErrorsAreNotNotExist(t *testing.T) {
	client := NewClient(&fakeConn{broken: errors.New("connection reset")}, nil)

	_, err := client.List("/FRITZ")
	require.Error(t, err)
	assert.False(t, errors.Is(err, fs.ErrNotExist))
	assert.ErrorContains(t, err, "failed to list /FRITZ")
}
