// ABOUTME: HTTP session with a FRITZ!Box router
// ABOUTME: Logs in, posts forms to firmwarecfg and transfers phonebooks
package fritzbox

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	loginPath     = "/login_sid.lua"
	firmwarePath  = "/cgi-bin/firmwarecfg"
	phonebookFile = "updatepb.xml"
)

// restoredMarkers are the router's confirmation texts for a phonebook import.
var restoredMarkers = []string{
	"Das Telefonbuch der FRITZ!Box wurde wiederhergestellt",
	"FRITZ!Box telephone book restored",
}

// ErrUploadFailed is returned when the router does not confirm a phonebook import.
var ErrUploadFailed = errors.New("phonebook upload failed")

// Field is one ordered part of a multipart form post.
type Field struct {
	Name        string
	Value       []byte
	FileName    string
	ContentType string
}

// Options configures a Client.
type Options struct {
	URL      string
	User     string
	Password string
	Timeout  time.Duration
	// Insecure disables certificate verification for self-signed router certificates.
	Insecure bool
}

// Client is an authenticated session with a router.
type Client struct {
	http     *resty.Client
	user     string
	password string
	sid      string
	logger   *zap.Logger
}

// NewClient creates a client. Login must be called before posting.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	http := resty.New().
		SetBaseURL(strings.TrimRight(opts.URL, "/")).
		SetTimeout(opts.Timeout)
	if opts.Insecure {
		http.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec
	}

	return &Client{
		http:     http,
		user:     opts.User,
		password: opts.Password,
		sid:      InvalidSID,
		logger:   logger,
	}
}

// SID returns the current session id.
func (c *Client) SID() string {
	return c.sid
}

// Login performs the challenge-response handshake and stores the session id.
func (c *Client) Login(ctx context.Context) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("version", "2").
		Get(loginPath)
	if err != nil {
		return fmt.Errorf("failed to request login challenge: %w", err)
	}
	info, err := parseSessionInfo(resp.Body())
	if err != nil {
		return err
	}
	if info.SID != "" && info.SID != InvalidSID {
		c.sid = info.SID
		return nil
	}

	response, err := ChallengeResponse(info.Challenge, c.password)
	if err != nil {
		return err
	}

	resp, err = c.http.R().
		SetContext(ctx).
		SetQueryParam("version", "2").
		SetFormData(map[string]string{
			"username": c.user,
			"response": response,
		}).
		Post(loginPath)
	if err != nil {
		return fmt.Errorf("failed to send login response: %w", err)
	}
	info, err = parseSessionInfo(resp.Body())
	if err != nil {
		return err
	}
	if info.SID == "" || info.SID == InvalidSID {
		if info.BlockTime > 0 {
			return fmt.Errorf("%w: blocked for %ds", ErrLoginFailed, info.BlockTime)
		}
		return fmt.Errorf("%w: user %q", ErrLoginFailed, c.user)
	}

	c.sid = info.SID
	c.logger.Debug("logged in", zap.String("user", c.user))
	return nil
}

// PostForm posts fields in order as multipart/form-data to firmwarecfg.
func (c *Client) PostForm(ctx context.Context, fields []Field) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		header := make(textproto.MIMEHeader)
		disposition := fmt.Sprintf("form-data; name=%q", f.Name)
		if f.FileName != "" {
			disposition += fmt.Sprintf("; filename=%q", f.FileName)
		}
		header.Set("Content-Disposition", disposition)
		if f.ContentType != "" {
			header.Set("Content-Type", f.ContentType)
		}
		part, err := w.CreatePart(header)
		if err != nil {
			return "", fmt.Errorf("failed to create form part %s: %w", f.Name, err)
		}
		if _, err := part.Write(f.Value); err != nil {
			return "", fmt.Errorf("failed to write form part %s: %w", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close form: %w", err)
	}

	return c.PostBody(ctx, w.FormDataContentType(), buf.Bytes())
}

// PostBody posts a prepared body to firmwarecfg and returns the response text.
func (c *Client) PostBody(ctx context.Context, contentType string, body []byte) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(body).
		Post(firmwarePath)
	if err != nil {
		return "", fmt.Errorf("failed to post to router: %w", err)
	}
	if resp.IsError() {
		return resp.String(), fmt.Errorf("router returned status %d", resp.StatusCode())
	}
	return resp.String(), nil
}

// UploadPhonebook replaces phonebook id with the given document.
func (c *Client) UploadPhonebook(ctx context.Context, id int, document []byte) error {
	text, err := c.PostForm(ctx, []Field{
		{Name: "sid", Value: []byte(c.sid)},
		{Name: "PhonebookId", Value: []byte(strconv.Itoa(id))},
		{Name: "PhonebookImportFile", Value: document, FileName: phonebookFile, ContentType: "text/xml"},
	})
	if err != nil {
		return fmt.Errorf("failed to upload phonebook: %w", err)
	}
	for _, marker := range restoredMarkers {
		if strings.Contains(text, marker) {
			c.logger.Info("phonebook uploaded", zap.Int("phonebook", id))
			return nil
		}
	}
	return fmt.Errorf("%w: phonebook %d", ErrUploadFailed, id)
}

// DownloadPhonebook exports phonebook id. It returns nil without error when
// the router answers with something other than an XML document.
func (c *Client) DownloadPhonebook(ctx context.Context, id int, name string) ([]byte, error) {
	text, err := c.PostForm(ctx, []Field{
		{Name: "sid", Value: []byte(c.sid)},
		{Name: "PhonebookId", Value: []byte(strconv.Itoa(id))},
		{Name: "PhonebookExportName", Value: []byte(name)},
		{Name: "PhonebookExport", Value: []byte{}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download phonebook: %w", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(text), "<?xml") {
		c.logger.Warn("router did not return a phonebook", zap.Int("phonebook", id))
		return nil, nil
	}
	return []byte(text), nil
}
