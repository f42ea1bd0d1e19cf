package keypad

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutPosition(t *testing.T) {
	tests := []struct {
		digit int
		x, y  float64
	}{
		{2, 178, 74},
		{3, 342, 74},
		{4, 19, 174},
		{5, 178, 174},
		{6, 342, 174},
		{7, 19, 274},
		{8, 178, 274},
		{9, 342, 274},
	}
	for _, tt := range tests {
		x, y, ok := DefaultLayout.Position(tt.digit)
		require.True(t, ok, "digit %d", tt.digit)
		assert.Equal(t, tt.x, x, "digit %d", tt.digit)
		assert.Equal(t, tt.y, y, "digit %d", tt.digit)
	}

	for _, digit := range []int{0, 1, 10} {
		_, _, ok := DefaultLayout.Position(digit)
		assert.False(t, ok, "digit %d", digit)
	}
}

func TestRenderProducesJPEG(t *testing.T) {
	r, err := NewRenderer("", "", DefaultLayout)
	require.NoError(t, err)

	blank, err := r.Render(nil)
	require.NoError(t, err)
	labelled, err := r.Render(map[int]string{0: "Ignored", 1: "Ignored", 5: "Anna", 10: "Ignored"})
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(labelled))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, image.Rect(0, 0, templateWidth, templateHeight), img.Bounds())
	assert.NotEqual(t, blank, labelled)
}

func TestRenderOnlyIgnoredDigitsMatchesBlank(t *testing.T) {
	r, err := NewRenderer("", "", DefaultLayout)
	require.NoError(t, err)

	blank, err := r.Render(nil)
	require.NoError(t, err)
	ignored, err := r.Render(map[int]string{0: "Zero", 1: "Voicemail", 10: "Ten"})
	require.NoError(t, err)
	assert.Equal(t, blank, ignored)

	_, err = jpeg.Decode(bytes.NewReader(blank))
	require.NoError(t, err)
}

func TestRenderCutsLongLabels(t *testing.T) {
	r, err := NewRenderer("", "", DefaultLayout)
	require.NoError(t, err)

	long, err := r.Render(map[int]string{2: "Bundesverfassungsgericht", 7: "Größenwahnsinn"})
	require.NoError(t, err)
	cut, err := r.Render(map[int]string{2: "Bundesverf", 7: "Größenwahn"})
	require.NoError(t, err)
	assert.Equal(t, cut, long)
}

func TestBodyFieldOrder(t *testing.T) {
	body := string(Body("abc", "0123456789abcdef", 611, []byte("JPEGDATA")))

	expected := strings.Join([]string{
		"--abc",
		`Content-Disposition: form-data; name="sid"`,
		"Content-Length: 16",
		"",
		"0123456789abcdef",
		"--abc",
		`Content-Disposition: form-data; name="PhonebookId"`,
		"Content-Length: 3",
		"",
		"255",
		"--abc",
		`Content-Disposition: form-data; name="PhonebookType"`,
		"Content-Length: 1",
		"",
		"1",
		"--abc",
		`Content-Disposition: form-data; name="PhonebookEntryId"`,
		"Content-Length: 3",
		"",
		"611",
		"--abc",
		`Content-Disposition: form-data; name="PhonebookPictureFile"; filename="dummy.jpg"`,
		"Content-Type: image/jpeg",
		"Content-Length: 8",
		"",
		"JPEGDATA",
		"--abc--",
	}, "\n")
	assert.Equal(t, expected, body)
}

type fakeSession struct {
	responses map[int]string
	failures  map[int]error
	posted    []int
}

func (f *fakeSession) SID() string { return "0123456789abcdef" }

func (f *fakeSession) PostBody(_ context.Context, contentType string, body []byte) (string, error) {
	boundary := strings.TrimPrefix(contentType, "multipart/form-data; boundary=")
	if !bytes.HasPrefix(body, []byte("--"+boundary+"\n")) {
		return "", errors.New("boundary mismatch")
	}
	var target int
	for _, candidate := range Whitelist {
		if bytes.Contains(body, []byte("\n\n"+strconv.Itoa(candidate)+"\n")) {
			target = candidate
		}
	}
	f.posted = append(f.posted, target)
	if err := f.failures[target]; err != nil {
		return "", err
	}
	return f.responses[target], nil
}

func TestUploadIndependentResults(t *testing.T) {
	session := &fakeSession{
		responses: map[int]string{610: "Upload SUCCEEDED", 612: "FAILED"},
		failures:  map[int]error{611: errors.New("connection reset")},
	}
	u := NewUploader(session, []int{610, 611, 612, 620}, nil)

	results := u.Upload(context.Background(), []byte("img"))
	require.Len(t, results, 4)

	assert.True(t, results[0].OK())
	assert.ErrorContains(t, results[1].Err, "connection reset")
	assert.ErrorContains(t, results[2].Err, "rejected")
	assert.True(t, results[3].Skipped)
	assert.Equal(t, []int{610, 611, 612}, session.posted)
}

func TestUploadCapsTargets(t *testing.T) {
	session := &fakeSession{responses: map[int]string{}}
	for _, n := range Whitelist {
		session.responses[n] = SuccessToken
	}
	targets := append(append([]int{}, Whitelist...), 610)
	results := NewUploader(session, targets, nil).Upload(context.Background(), []byte("img"))

	assert.Len(t, results, MaxTargets)
	assert.Len(t, session.posted, MaxTargets)
}
