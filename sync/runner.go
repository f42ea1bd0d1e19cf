// ABOUTME: Orchestrates one synchronization run from contact source to router
// ABOUTME: Photos, attribute restore and keypad upload degrade gracefully when unavailable
package sync

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/harperreed/card2box/convert"
	"github.com/harperreed/card2box/db"
	"github.com/harperreed/card2box/images"
	"github.com/harperreed/card2box/keypad"
	"github.com/harperreed/card2box/models"
	"github.com/harperreed/card2box/phonebook"
	"github.com/harperreed/card2box/restore"
	"go.uber.org/zap"
)

// PhonebookService is the sync_state key of the phonebook run.
const PhonebookService = "phonebook"

// Attribute sources reported for a run.
const (
	AttributesFromPhonebook = "phonebook"
	AttributesFromArchive   = "archive"
	AttributesFromBackup    = "backup"
)

// ContactSource delivers the address book records to synchronize.
type ContactSource interface {
	FetchAll(ctx context.Context) ([]*models.Contact, error)
}

// PhotoEmbedder downloads photos that records only link to.
type PhotoEmbedder interface {
	Embed(ctx context.Context, contacts []*models.Contact) int
}

// Router is an authenticated session with the appliance.
type Router interface {
	keypad.Session
	UploadPhonebook(ctx context.Context, id int, document []byte) error
	DownloadPhonebook(ctx context.Context, id int, name string) ([]byte, error)
}

// FileStore is one file transfer session on the appliance storage.
type FileStore interface {
	List(dir string) ([]string, error)
	Size(name string) (int64, error)
	Delete(name string) error
	Rename(from, to string) error
	Put(name string, data []byte) error
	Get(name string) ([]byte, error)
	Close() error
}

// KeypadRenderer draws quickdial labels into a keypad image.
type KeypadRenderer interface {
	Render(labels map[int]string) ([]byte, error)
}

// Options holds the per-run settings.
type Options struct {
	PhonebookID    int
	PhonebookName  string
	Filters        convert.Filters
	Images         images.Config
	ArchiveDir     string
	Fritzfons      []int
	QuickdialAlias bool
}

// Report summarizes a run.
type Report struct {
	RunID           string
	Contacts        int
	Entries         int
	Images          models.ImageStats
	Attributes      int
	AttributeSource string
	Keypad          []keypad.Result
}

// Runner wires the components of a run. Photos, OpenFiles, Keypad and DB are
// optional; a nil OpenFiles disables photo sync and the attribute archive.
// A file transfer session that cannot be opened aborts the run.
type Runner struct {
	Source    ContactSource
	Photos    PhotoEmbedder
	Converter *convert.Converter
	Router    Router
	OpenFiles func() (FileStore, error)
	Keypad    KeypadRenderer
	DB        *sql.DB
	Options   Options
	Logger    *zap.Logger

	log *zap.Logger
}

// Run performs a complete synchronization and records its outcome.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: db.NewRunID()}
	started := time.Now()

	r.log = r.Logger
	if r.log == nil {
		r.log = zap.NewNop()
	}
	r.log = r.log.With(zap.String("run_id", report.RunID))

	if r.DB != nil {
		if err := db.UpdateSyncStatus(r.DB, PhonebookService, db.StatusSyncing, nil); err != nil {
			r.log.Warn("failed to record sync status", zap.Error(err))
		}
	}

	err := r.run(ctx, report)
	r.finish(report, started, err)

	return report, err
}

func (r *Runner) run(ctx context.Context, report *Report) error {
	contacts, err := r.Source.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to download contacts: %w", err)
	}
	r.log.Info("downloaded contacts", zap.Int("contacts", len(contacts)))

	contacts = convert.DissolveGroups(contacts)
	contacts = convert.Filter(contacts, r.Options.Filters, r.log)
	report.Contacts = len(contacts)

	if r.Photos != nil {
		if n := r.Photos.Embed(ctx, contacts); n > 0 {
			r.log.Info("embedded linked photos", zap.Int("photos", n))
		}
	}

	var files FileStore
	if r.OpenFiles != nil {
		files, err = r.OpenFiles()
		if err != nil {
			return fmt.Errorf("failed to open file transfer session: %w", err)
		}
		defer func() {
			if err := files.Close(); err != nil {
				r.log.Warn("failed to close file transfer session", zap.Error(err))
			}
		}()
		report.Images = images.NewSynchronizer(files, r.Options.Images, r.log).Sync(contacts)
	}

	entries := r.Converter.ConvertAll(contacts)
	doc := phonebook.Build(r.Options.PhonebookName, entries)
	report.Entries = len(doc.Entries)

	table, source := r.attributes(ctx, files)
	report.Attributes = table.Len()
	report.AttributeSource = source

	doc = restore.Apply(doc, table)
	data, err := phonebook.Marshal(doc)
	if err != nil {
		return err
	}
	if err := r.Router.UploadPhonebook(ctx, r.Options.PhonebookID, data); err != nil {
		return err
	}

	report.Keypad = r.uploadKeypad(ctx, table)
	return nil
}

// attributes captures the special attributes of the phonebook about to be
// replaced, falling back to the router archive and then the local backup.
func (r *Runner) attributes(ctx context.Context, files FileStore) (models.AttributeTable, string) {
	var archive *restore.Archive
	if files != nil {
		archive = restore.NewArchive(files, r.Options.ArchiveDir)
	}

	table := r.currentAttributes(ctx)
	if table.Len() > 0 {
		if archive != nil {
			if err := archive.Save(table); err != nil {
				r.log.Warn("failed to archive attributes", zap.Error(err))
			}
		}
		if r.DB != nil {
			if err := db.SaveAttributes(r.DB, r.Options.PhonebookID, table); err != nil {
				r.log.Warn("failed to back up attributes", zap.Error(err))
			}
		}
		return table, AttributesFromPhonebook
	}

	if archive != nil {
		stored, err := archive.Load()
		if err != nil {
			r.log.Warn("failed to load archived attributes", zap.Error(err))
		} else if stored.Len() > 0 {
			r.log.Info("restoring attributes from router archive", zap.Int("attributes", stored.Len()))
			return stored, AttributesFromArchive
		}
	}

	if r.DB != nil {
		stored, err := db.LoadAttributes(r.DB, r.Options.PhonebookID)
		if err != nil {
			r.log.Warn("failed to load attribute backup", zap.Error(err))
		} else if stored.Len() > 0 {
			r.log.Info("restoring attributes from local backup", zap.Int("attributes", stored.Len()))
			return stored, AttributesFromBackup
		}
	}

	r.log.Debug("no special attributes to restore")
	return models.AttributeTable{}, ""
}

func (r *Runner) currentAttributes(ctx context.Context) models.AttributeTable {
	data, err := r.Router.DownloadPhonebook(ctx, r.Options.PhonebookID, r.Options.PhonebookName)
	if err != nil {
		r.log.Warn("failed to download current phonebook", zap.Error(err))
		return models.AttributeTable{}
	}
	if data == nil {
		return models.AttributeTable{}
	}

	current, err := phonebook.Parse(data)
	if err != nil {
		r.log.Warn("failed to parse current phonebook", zap.Error(err))
		return models.AttributeTable{}
	}
	return restore.Extract(current)
}

func (r *Runner) uploadKeypad(ctx context.Context, table models.AttributeTable) []keypad.Result {
	if r.Options.PhonebookID != 0 || len(r.Options.Fritzfons) == 0 || r.Keypad == nil {
		return nil
	}

	labels := restore.Quickdials(table, r.Options.QuickdialAlias)
	drawable := 0
	for digit := range labels {
		if digit >= 2 && digit <= 9 {
			drawable++
		}
	}
	if drawable == 0 {
		r.log.Info("no quickdial numbers in range for a keypad image")
		return nil
	}

	img, err := r.Keypad.Render(labels)
	if err != nil {
		r.log.Warn("failed to render keypad image", zap.Error(err))
		return nil
	}
	return keypad.NewUploader(r.Router, r.Options.Fritzfons, r.log).Upload(ctx, img)
}

func (r *Runner) finish(report *Report, started time.Time, runErr error) {
	if r.DB == nil {
		return
	}

	rec := &db.RunRecord{
		RunID:            report.RunID,
		Service:          PhonebookService,
		Contacts:         report.Contacts,
		Entries:          report.Entries,
		ImagesUploaded:   report.Images.Uploaded,
		ImagesConsidered: report.Images.Considered,
		Attributes:       report.Attributes,
		AttributeSource:  report.AttributeSource,
		Status:           "ok",
		StartedAt:        started,
		FinishedAt:       time.Now(),
	}

	if runErr != nil {
		msg := runErr.Error()
		rec.Status = "error"
		rec.Message = msg
		if err := db.UpdateSyncStatus(r.DB, PhonebookService, db.StatusError, &msg); err != nil {
			r.log.Warn("failed to record sync status", zap.Error(err))
		}
	} else if err := db.MarkSynced(r.DB, PhonebookService, report.RunID); err != nil {
		r.log.Warn("failed to record sync status", zap.Error(err))
	}

	if err := db.RecordRun(r.DB, rec); err != nil {
		r.log.Warn("failed to record run", zap.Error(err))
	}
}
