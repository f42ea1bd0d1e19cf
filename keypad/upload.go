// ABOUTME: Uploads a rendered keypad image to FRITZ!Fon handsets
// ABOUTME: The multipart body is built by hand because the endpoint rejects generic encoders
package keypad

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// SuccessToken appears in the response of an accepted upload.
const SuccessToken = "SUCCEEDED"

// MaxTargets is the number of handsets a router can register.
const MaxTargets = 6

// Whitelist holds the internal numbers FRITZ!Fon handsets are assigned.
var Whitelist = []int{610, 611, 612, 613, 614, 615}

// Session posts raw bodies to the router's firmware configuration endpoint.
type Session interface {
	SID() string
	PostBody(ctx context.Context, contentType string, body []byte) (string, error)
}

// Result reports the upload outcome for a single handset.
type Result struct {
	Target  int
	Skipped bool
	Err     error
}

// OK reports whether the handset accepted the image.
func (r Result) OK() bool {
	return !r.Skipped && r.Err == nil
}

// Uploader sends keypad images to a set of handsets.
type Uploader struct {
	Session Session
	Targets []int
	logger  *zap.Logger
}

// NewUploader creates an uploader for the given handset numbers.
func NewUploader(session Session, targets []int, logger *zap.Logger) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{Session: session, Targets: targets, logger: logger}
}

// Upload posts img to every whitelisted target. Failures are independent.
func (u *Uploader) Upload(ctx context.Context, img []byte) []Result {
	targets := u.Targets
	if len(targets) > MaxTargets {
		targets = targets[:MaxTargets]
	}

	results := make([]Result, 0, len(targets))
	for _, target := range targets {
		if !slices.Contains(Whitelist, target) {
			u.logger.Warn("skipping handset outside the FRITZ!Fon range", zap.Int("target", target))
			results = append(results, Result{Target: target, Skipped: true})
			continue
		}

		u.logger.Info("uploading keypad image", zap.Int("target", target))
		boundary := newBoundary()
		body := Body(boundary, u.Session.SID(), target, img)
		resp, err := u.Session.PostBody(ctx, "multipart/form-data; boundary="+boundary, body)
		if err != nil {
			u.logger.Error("keypad upload failed", zap.Int("target", target), zap.Error(err))
			results = append(results, Result{Target: target, Err: err})
			continue
		}
		if !strings.Contains(resp, SuccessToken) {
			err := fmt.Errorf("handset %d rejected keypad image", target)
			u.logger.Error("keypad upload failed", zap.Int("target", target), zap.Error(err))
			results = append(results, Result{Target: target, Err: err})
			continue
		}
		u.logger.Info("keypad upload successful", zap.Int("target", target))
		results = append(results, Result{Target: target})
	}
	return results
}

// Body builds the multipart payload for one handset. Parts are separated by
// "--" + boundary and lines end in a bare line feed.
func Body(boundary, sid string, target int, img []byte) []byte {
	delim := "--" + boundary
	var buf bytes.Buffer

	field := func(name, value string) {
		fmt.Fprintf(&buf, "%s\nContent-Disposition: form-data; name=%q\nContent-Length: %d\n\n%s\n",
			delim, name, len(value), value)
	}
	field("sid", sid)
	field("PhonebookId", "255")
	field("PhonebookType", "1")
	field("PhonebookEntryId", strconv.Itoa(target))

	fmt.Fprintf(&buf, "%s\nContent-Disposition: form-data; name=\"PhonebookPictureFile\"; filename=\"dummy.jpg\"\nContent-Type: image/jpeg\nContent-Length: %d\n\n",
		delim, len(img))
	buf.Write(img)
	buf.WriteString("\n" + delim + "--")

	return buf.Bytes()
}

func newBoundary() string {
	var seed [16]byte
	_, _ = rand.Read(seed[:])
	sum := sha1.Sum(seed[:])
	return hex.EncodeToString(sum[:])
}
