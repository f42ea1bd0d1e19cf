// ABOUTME: Synchronizes contact photos into the appliance picture directory
// ABOUTME: Transfers only when the photo size differs from the stored file
package images

import (
	"path"
	"strings"
	"time"

	"github.com/harperreed/card2box/models"
	"go.uber.org/zap"
)

const (
	// DefaultDir is the router directory holding contact photos.
	DefaultDir = "/FRITZ/fonpix"

	// DefaultCeiling is the photo count handsets are known to handle.
	DefaultCeiling = 150
)

// FileStore is the subset of file transfer operations used for photos.
type FileStore interface {
	List(dir string) ([]string, error)
	Size(name string) (int64, error)
	Delete(name string) error
	Put(name string, data []byte) error
}

// Config configures a Synchronizer.
type Config struct {
	// Dir is the remote photo directory.
	Dir string
	// URLPrefix is prepended to file names in phonebook image references.
	URLPrefix string
	// Ceiling triggers a warning when more photos are considered.
	Ceiling int
}

// Synchronizer uploads contact photos and resolves their phonebook URLs.
type Synchronizer struct {
	files  FileStore
	cfg    Config
	now    func() time.Time
	logger *zap.Logger
}

// NewSynchronizer creates a synchronizer using files for transfers.
func NewSynchronizer(files FileStore, cfg Config, logger *zap.Logger) *Synchronizer {
	if cfg.Dir == "" {
		cfg.Dir = DefaultDir
	}
	if cfg.Ceiling <= 0 {
		cfg.Ceiling = DefaultCeiling
	}
	if cfg.URLPrefix != "" && !strings.HasSuffix(cfg.URLPrefix, "/") {
		cfg.URLPrefix += "/"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{files: files, cfg: cfg, now: time.Now, logger: logger}
}

// SetClock overrides the generation timestamp source.
func (s *Synchronizer) SetClock(now func() time.Time) {
	s.now = now
}

// Sync uploads changed photos and sets ImageURL on each contact whose photo
// is available on the appliance. Contacts whose upload failed lose their
// photo so no broken reference reaches the phonebook.
func (s *Synchronizer) Sync(contacts []*models.Contact) models.ImageStats {
	var stats models.ImageStats
	generated := s.now()

	names, err := s.files.List(s.cfg.Dir)
	if err != nil {
		s.logger.Warn("failed to list remote photos, assuming none", zap.String("dir", s.cfg.Dir), zap.Error(err))
		names = nil
	}
	remote := RemoteIndex(names)

	for _, c := range contacts {
		if c.Photo == nil {
			continue
		}
		if c.Photo.IsLink() {
			s.logger.Warn("photo is an external link and cannot be transferred",
				zap.String("uid", c.UID),
				zap.String("url", c.Photo.URL),
			)
			stats.Skipped++
			continue
		}
		if len(c.Photo.Data) == 0 {
			continue
		}

		jpeg, err := ToJPEG(c.Photo.Data)
		if err != nil {
			s.logger.Warn("skipping photo", zap.String("uid", c.UID), zap.Error(err))
			stats.Skipped++
			continue
		}
		stats.Considered++

		if current, ok := remote[c.UID]; ok {
			size, err := s.files.Size(s.remotePath(current))
			if err == nil && size == int64(len(jpeg)) {
				c.ImageURL = s.cfg.URLPrefix + current
				continue
			}
			if err := s.files.Delete(s.remotePath(current)); err != nil {
				s.logger.Warn("failed to delete outdated photo, keeping it",
					zap.String("uid", c.UID),
					zap.String("file", current),
					zap.Error(err),
				)
				c.ImageURL = s.cfg.URLPrefix + current
				continue
			}
		}

		name := Filename(c.UID, generated)
		if err := s.files.Put(s.remotePath(name), jpeg); err != nil {
			s.logger.Error("failed to upload photo", zap.String("file", name), zap.Error(err))
			c.Photo = nil
			c.ImageURL = ""
			continue
		}

		stats.Uploaded++
		c.ImageURL = s.cfg.URLPrefix + name
	}

	if stats.Considered > s.cfg.Ceiling {
		s.logger.Warn("more contact photos than handsets can display reliably",
			zap.Int("photos", stats.Considered),
			zap.Int("ceiling", s.cfg.Ceiling),
		)
	}

	return stats
}

func (s *Synchronizer) remotePath(name string) string {
	return path.Join(s.cfg.Dir, name)
}
