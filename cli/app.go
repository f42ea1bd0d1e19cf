// ABOUTME: Shared command context built from configuration
// ABOUTME: Constructs the logger, state database, contact source and router sessions
package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/harperreed/card2box/carddav"
	"github.com/harperreed/card2box/config"
	"github.com/harperreed/card2box/convert"
	"github.com/harperreed/card2box/db"
	"github.com/harperreed/card2box/fritzbox"
	"github.com/harperreed/card2box/ftp"
	"github.com/harperreed/card2box/images"
	"github.com/harperreed/card2box/keypad"
	"github.com/harperreed/card2box/logging"
	"github.com/harperreed/card2box/sync"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// App carries what every command needs.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	database *sql.DB
}

// NewApp loads the configuration at configPath and builds the logger.
func NewApp(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &App{Config: cfg, Logger: logger}, nil
}

// Close releases the database and flushes the logger.
func (a *App) Close() {
	if a.database != nil {
		_ = a.database.Close()
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}

// DB opens the state database on first use.
func (a *App) DB() (*sql.DB, error) {
	if a.database != nil {
		return a.database, nil
	}
	database, err := db.OpenDatabase(a.Config.DatabasePath(db.DefaultPath()))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.database = database
	return database, nil
}

// Source returns the configured contact source.
func (a *App) Source(ctx context.Context) (sync.ContactSource, error) {
	src := a.Config.Source
	switch src.Type {
	case config.SourceCardDAV:
		backend, err := carddav.NewBackend(src.CardDAV, a.Logger)
		if err != nil {
			return nil, err
		}
		return backend, nil
	case config.SourceFiles:
		return carddav.NewFileSource(src.Files, a.Logger), nil
	case config.SourceGoogle:
		token, err := sync.LoadToken()
		if err != nil {
			return nil, fmt.Errorf("no Google token found, run 'card2box google-init' first: %w", err)
		}
		service, err := sync.NewPeopleClient(ctx, token, a.Logger)
		if err != nil {
			return nil, err
		}
		return sync.NewGoogleSource(service, a.Logger), nil
	}
	return nil, fmt.Errorf("unknown source type %q", src.Type)
}

// Photos returns the linked-photo fetcher, or nil when embedding is disabled.
func (a *App) Photos() sync.PhotoEmbedder {
	if !a.Config.Source.EmbedPhotos {
		return nil
	}
	dav := a.Config.Source.CardDAV
	return carddav.NewPhotoFetcher(dav.User, dav.Password, a.Logger)
}

// Converter returns a converter for the configured rules.
func (a *App) Converter() *convert.Converter {
	return convert.NewConverter(a.Config.Rules, a.Logger)
}

// Router logs in to the router, prompting for a missing password.
func (a *App) Router(ctx context.Context) (*fritzbox.Client, error) {
	if a.Config.FritzBox.Password == "" {
		password, err := promptPassword(fmt.Sprintf("Password for %s: ", a.Config.FritzBox.URL))
		if err != nil {
			return nil, err
		}
		a.Config.FritzBox.Password = password
	}

	client := fritzbox.NewClient(fritzbox.Options{
		URL:      a.Config.FritzBox.URL,
		User:     a.Config.FritzBox.User,
		Password: a.Config.FritzBox.Password,
		Timeout:  time.Duration(a.Config.FritzBox.TimeoutSeconds) * time.Second,
		Insecure: a.Config.FritzBox.Insecure,
	}, a.Logger)

	if err := client.Login(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// OpenFiles connects to the router's file server.
func (a *App) OpenFiles() (sync.FileStore, error) {
	if a.Config.FritzBox.FTP.Disabled {
		return nil, errors.New("file transfer disabled in configuration")
	}
	client, err := ftp.Dial(ftp.Config{
		Host:     a.Config.FTPHost(),
		User:     a.Config.FritzBox.User,
		Password: a.Config.FritzBox.Password,
		Plain:    a.Config.FritzBox.FTP.Plain,
		Timeout:  time.Duration(a.Config.FritzBox.TimeoutSeconds) * time.Second,
	}, a.Logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Renderer builds the keypad renderer from the configured assets.
func (a *App) Renderer() (*keypad.Renderer, error) {
	return keypad.NewRenderer(a.Config.Keypad.Template, a.Config.Keypad.Font, keypad.DefaultLayout)
}

// NewRunner wires a run. File transfer is attached only when withImages is set
// and the configuration does not disable it; without it the run skips photos
// and the router archive and still uploads the phonebook.
func (a *App) NewRunner(source sync.ContactSource, router sync.Router, database *sql.DB, id int, withImages, withKeypad bool) (*sync.Runner, error) {
	runner := &sync.Runner{
		Source:    source,
		Photos:    a.Photos(),
		Converter: a.Converter(),
		Router:    router,
		DB:        database,
		Options:   a.RunOptions(id),
		Logger:    a.Logger,
	}
	if withImages && !a.Config.FritzBox.FTP.Disabled {
		runner.OpenFiles = a.OpenFiles
	}
	if withKeypad {
		renderer, err := a.Renderer()
		if err != nil {
			return nil, err
		}
		runner.Keypad = renderer
	}
	return runner, nil
}

// ImageConfig returns the photo synchronizer settings.
func (a *App) ImageConfig() images.Config {
	return images.Config{
		Dir:       a.Config.Phonebook.ImageDir,
		URLPrefix: a.Config.Phonebook.ImagePath,
		Ceiling:   a.Config.Phonebook.Ceiling,
	}
}

// RunOptions returns the run settings for phonebook id.
func (a *App) RunOptions(id int) sync.Options {
	return sync.Options{
		PhonebookID:    id,
		PhonebookName:  a.Config.Phonebook.Name,
		Filters:        a.Config.Filters,
		Images:         a.ImageConfig(),
		Fritzfons:      a.Config.FritzBox.Fritzfons,
		QuickdialAlias: a.Config.FritzBox.QuickdialAlias,
	}
}

func promptPassword(prompt string) (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", errors.New("router password not configured and stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, prompt)
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(passwordBytes), nil
}
