// ABOUTME: File transfer client for the router's storage over FTP or explicit FTPS
// ABOUTME: Missing files are reported as fs.ErrNotExist
package ftp

import (
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/textproto"
	"path"
	"time"

	"github.com/jlaffaye/ftp"
	"go.uber.org/zap"
)

// ErrNotExist is wrapped by operations on missing remote files.
var ErrNotExist = fs.ErrNotExist

// Config describes how to reach the router's file server.
type Config struct {
	Host     string
	User     string
	Password string
	// Plain disables explicit TLS.
	Plain   bool
	Timeout time.Duration
}

// Conn is the subset of an FTP server connection used by Client.
type Conn interface {
	NameList(path string) ([]string, error)
	FileSize(path string) (int64, error)
	Delete(path string) error
	Rename(from, to string) error
	Stor(path string, r io.Reader) error
	Retr(path string) (*ftp.Response, error)
	Quit() error
}

// Client performs file operations on one FTP session.
type Client struct {
	conn   Conn
	logger *zap.Logger
}

// Dial connects and logs in.
func Dial(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	host := cfg.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "21")
	}

	opts := []ftp.DialOption{ftp.DialWithTimeout(cfg.Timeout)}
	if !cfg.Plain {
		serverName, _, _ := net.SplitHostPort(host)
		opts = append(opts, ftp.DialWithExplicitTLS(&tls.Config{
			ServerName:         serverName,
			InsecureSkipVerify: true, //nolint:gosec
		}))
	}

	conn, err := ftp.Dial(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", host, err)
	}
	if err := conn.Login(cfg.User, cfg.Password); err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("failed to log in to %s: %w", host, err)
	}

	logger.Debug("ftp session opened", zap.String("host", host), zap.Bool("tls", !cfg.Plain))
	return &Client{conn: conn, logger: logger}, nil
}

// NewClient wraps an established connection.
func NewClient(conn Conn, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{conn: conn, logger: logger}
}

// List returns the base names of the files in dir.
func (c *Client) List(dir string) ([]string, error) {
	names, err := c.conn.NameList(dir)
	if err != nil {
		return nil, wrap("list", dir, err)
	}
	for i, name := range names {
		names[i] = path.Base(name)
	}
	return names, nil
}

// Size returns the size of a remote file.
func (c *Client) Size(name string) (int64, error) {
	size, err := c.conn.FileSize(name)
	if err != nil {
		return 0, wrap("stat", name, err)
	}
	return size, nil
}

// Delete removes a remote file.
func (c *Client) Delete(name string) error {
	if err := c.conn.Delete(name); err != nil {
		return wrap("delete", name, err)
	}
	return nil
}

// Rename moves a remote file.
func (c *Client) Rename(from, to string) error {
	if err := c.conn.Rename(from, to); err != nil {
		return wrap("rename", from, err)
	}
	return nil
}

// Put uploads data to name.
func (c *Client) Put(name string, data []byte) error {
	if err := c.conn.Stor(name, bytes.NewReader(data)); err != nil {
		return wrap("upload", name, err)
	}
	c.logger.Debug("uploaded file", zap.String("file", name), zap.Int("bytes", len(data)))
	return nil
}

// Get downloads a remote file.
func (c *Client) Get(name string) ([]byte, error) {
	resp, err := c.conn.Retr(name)
	if err != nil {
		return nil, wrap("download", name, err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// Close ends the session.
func (c *Client) Close() error {
	if err := c.conn.Quit(); err != nil {
		return fmt.Errorf("failed to close ftp session: %w", err)
	}
	return nil
}

func wrap(op, name string, err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) && protoErr.Code == ftp.StatusFileUnavailable {
		return fmt.Errorf("failed to %s %s: %w: %v", op, name, ErrNotExist, err)
	}
	return fmt.Errorf("failed to %s %s: %w", op, name, err)
}
