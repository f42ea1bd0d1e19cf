// ABOUTME: Contact sources reading vCards from CardDAV servers and local files
// ABOUTME: Both sources return contact records ready for filtering and conversion
package carddav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-vcard"
	"github.com/emersion/go-webdav"
	davcard "github.com/emersion/go-webdav/carddav"
	"github.com/harperreed/card2box/models"
	"go.uber.org/zap"
)

// Config describes a CardDAV account.
type Config struct {
	URL      string `json:"url"`
	User     string `json:"user"`
	Password string `json:"password,omitempty"`
	// AddressBook is an address book path; empty discovers all books of the user.
	AddressBook string `json:"address_book,omitempty"`
}

// Backend queries address books on a CardDAV server.
type Backend struct {
	client      *davcard.Client
	addressBook string
	logger      *zap.Logger
}

// NewBackend creates a backend authenticating with basic auth.
func NewBackend(cfg Config, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := webdav.HTTPClientWithBasicAuth(&http.Client{Timeout: 60 * time.Second}, cfg.User, cfg.Password)
	client, err := davcard.NewClient(httpClient, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create CardDAV client: %w", err)
	}
	return &Backend{client: client, addressBook: cfg.AddressBook, logger: logger}, nil
}

// FetchAll downloads every card of the configured or discovered address books.
func (b *Backend) FetchAll(ctx context.Context) ([]*models.Contact, error) {
	books, err := b.addressBooks(ctx)
	if err != nil {
		return nil, err
	}

	query := &davcard.AddressBookQuery{
		DataRequest: davcard.AddressDataRequest{AllProp: true},
	}

	var contacts []*models.Contact
	for _, book := range books {
		objects, err := b.client.QueryAddressBook(ctx, book, query)
		if err != nil {
			return nil, fmt.Errorf("failed to query address book %s: %w", book, err)
		}
		b.logger.Info("downloaded address book", zap.String("book", book), zap.Int("cards", len(objects)))
		for _, obj := range objects {
			contact := FromCard(obj.Card)
			if contact.UID == "" {
				contact.UID = strings.TrimSuffix(path.Base(obj.Path), ".vcf")
			}
			contacts = append(contacts, contact)
		}
	}
	return contacts, nil
}

func (b *Backend) addressBooks(ctx context.Context) ([]string, error) {
	if b.addressBook != "" {
		return []string{b.addressBook}, nil
	}

	principal, err := b.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find user principal: %w", err)
	}
	home, err := b.client.FindAddressBookHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("failed to find address book home: %w", err)
	}
	found, err := b.client.FindAddressBooks(ctx, home)
	if err != nil {
		return nil, fmt.Errorf("failed to list address books: %w", err)
	}

	books := make([]string, 0, len(found))
	for _, ab := range found {
		books = append(books, ab.Path)
	}
	return books, nil
}

// FileSource reads cards from local .vcf files or directories of them.
type FileSource struct {
	Paths  []string
	logger *zap.Logger
}

// NewFileSource creates a source over the given files and directories.
func NewFileSource(paths []string, logger *zap.Logger) *FileSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSource{Paths: paths, logger: logger}
}

// FetchAll decodes every card found under the configured paths.
func (s *FileSource) FetchAll(ctx context.Context) ([]*models.Contact, error) {
	var contacts []*models.Contact
	for _, p := range s.Paths {
		files, err := vcfFiles(p)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			read, err := ReadFile(file)
			if err != nil {
				return nil, err
			}
			s.logger.Debug("read vcard file", zap.String("file", file), zap.Int("cards", len(read)))
			contacts = append(contacts, read...)
		}
	}
	return contacts, nil
}

func vcfFiles(p string) ([]string, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	if !info.IsDir() {
		return []string{p}, nil
	}
	matches, err := filepath.Glob(filepath.Join(p, "*.vcf"))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", p, err)
	}
	return matches, nil
}

// ReadFile decodes all cards in a single file.
func ReadFile(name string) ([]*models.Contact, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	contacts, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return contacts, nil
}

// Decode reads every card from r.
func Decode(r io.Reader) ([]*models.Contact, error) {
	dec := vcard.NewDecoder(r)
	var contacts []*models.Contact
	for {
		card, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return contacts, nil
		}
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, FromCard(card))
	}
}
