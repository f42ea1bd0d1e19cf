// ABOUTME: Phonebook commands: full run, download, dry-run conversion and photo sync
// ABOUTME: Each command loads its components from the shared App
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/harperreed/card2box/convert"
	"github.com/harperreed/card2box/images"
	"github.com/harperreed/card2box/models"
	"github.com/harperreed/card2box/phonebook"
	"github.com/harperreed/card2box/sync"
)

// RunCommand performs a complete synchronization.
func RunCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	id := fs.Int("phonebook", app.Config.Phonebook.ID, "Target phonebook id")
	noImages := fs.Bool("no-images", false, "Skip photo upload and the attribute archive")
	noKeypad := fs.Bool("no-keypad", false, "Skip the keypad image upload")
	_ = fs.Parse(args)

	if err := app.Config.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	source, err := app.Source(ctx)
	if err != nil {
		return err
	}
	router, err := app.Router(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Logged in to %s\n", app.Config.FritzBox.URL)

	database, err := app.DB()
	if err != nil {
		return err
	}

	runner, err := app.NewRunner(source, router, database, *id, !*noImages, !*noKeypad)
	if err != nil {
		return err
	}
	if !*noImages && runner.OpenFiles == nil {
		fmt.Println(mutedStyle.Render("File transfer disabled; skipping photos and the attribute archive"))
	}

	report, err := runner.Run(ctx)
	if err != nil {
		fmt.Printf("✗ Run %s failed\n", report.RunID)
		return err
	}

	printReport(report)
	return nil
}

func printReport(report *sync.Report) {
	fmt.Printf("✓ Downloaded %d contacts\n", report.Contacts)
	fmt.Printf("✓ Uploaded phonebook with %d entries\n", report.Entries)
	if report.Images.Considered > 0 || report.Images.Skipped > 0 {
		fmt.Printf("✓ Photos: %d uploaded, %d considered, %d skipped\n",
			report.Images.Uploaded, report.Images.Considered, report.Images.Skipped)
	}
	if report.AttributeSource != "" {
		fmt.Printf("✓ Restored %d special attributes from %s\n", report.Attributes, report.AttributeSource)
	}
	for _, r := range report.Keypad {
		switch {
		case r.Skipped:
			fmt.Printf("  - Keypad for handset %d skipped\n", r.Target)
		case r.Err != nil:
			fmt.Printf("✗ Keypad for handset %d: %v\n", r.Target, r.Err)
		default:
			fmt.Printf("✓ Keypad uploaded to handset %d\n", r.Target)
		}
	}
	fmt.Println(mutedStyle.Render("run " + report.RunID))
}

// DownloadCommand saves a phonebook export of the router.
func DownloadCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	id := fs.Int("phonebook", app.Config.Phonebook.ID, "Phonebook id")
	name := fs.String("name", app.Config.Phonebook.Name, "Phonebook name")
	output := fs.String("output", "", "Output file (default: stdout)")
	_ = fs.Parse(args)

	ctx := context.Background()
	router, err := app.Router(ctx)
	if err != nil {
		return err
	}

	data, err := router.DownloadPhonebook(ctx, *id, *name)
	if err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("router returned no phonebook %d", *id)
	}

	return writeOutput(*output, data)
}

// ConvertCommand writes the phonebook a run would upload, without contacting the router.
func ConvertCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	output := fs.String("output", "phonebook.xml", "Output file (- for stdout)")
	_ = fs.Parse(args)

	ctx := context.Background()
	contacts, err := fetchContacts(ctx, app)
	if err != nil {
		return err
	}

	entries := app.Converter().ConvertAll(contacts)
	doc := phonebook.Build(app.Config.Phonebook.Name, entries)
	data, err := phonebook.Marshal(doc)
	if err != nil {
		return err
	}

	target := *output
	if target == "-" {
		target = ""
	}
	if err := writeOutput(target, data); err != nil {
		return err
	}
	if target != "" {
		fmt.Printf("✓ Converted %d contacts into %d entries\n", len(contacts), len(doc.Entries))
		fmt.Printf("✓ Phonebook written to %s\n", target)
	}
	return nil
}

// ImagesCommand uploads contact photos without replacing the phonebook.
func ImagesCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("images", flag.ExitOnError)
	_ = fs.Parse(args)

	if app.Config.FritzBox.FTP.Disabled {
		return errors.New("photo upload needs file transfer, which is disabled in configuration (fritzbox.ftp.disabled)")
	}

	ctx := context.Background()
	contacts, err := fetchContacts(ctx, app)
	if err != nil {
		return err
	}
	if photos := app.Photos(); photos != nil {
		photos.Embed(ctx, contacts)
	}

	if app.Config.FritzBox.Password == "" {
		password, err := promptPassword(fmt.Sprintf("Password for %s: ", app.Config.FritzBox.URL))
		if err != nil {
			return err
		}
		app.Config.FritzBox.Password = password
	}

	files, err := app.OpenFiles()
	if err != nil {
		return err
	}
	defer func() { _ = files.Close() }()

	stats := images.NewSynchronizer(files, app.ImageConfig(), app.Logger).Sync(contacts)
	fmt.Printf("✓ Photos: %d uploaded, %d considered, %d skipped\n", stats.Uploaded, stats.Considered, stats.Skipped)
	return nil
}

// fetchContacts downloads, dissolves groups and filters the source records.
func fetchContacts(ctx context.Context, app *App) ([]*models.Contact, error) {
	if err := app.Config.Validate(); err != nil {
		return nil, err
	}
	source, err := app.Source(ctx)
	if err != nil {
		return nil, err
	}

	contacts, err := source.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to download contacts: %w", err)
	}
	contacts = convert.DissolveGroups(contacts)
	return convert.Filter(contacts, app.Config.Filters, app.Logger), nil
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
