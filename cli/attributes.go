// ABOUTME: Commands for router-local attributes and the keypad image
// ABOUTME: Captures quickdial/vanity/internal numbers and renders keypad labels from them
package cli

import (
	"bytes"
	"context"
	"flag"
	"fmt"

	"github.com/harperreed/card2box/db"
	"github.com/harperreed/card2box/fritzbox"
	"github.com/harperreed/card2box/keypad"
	"github.com/harperreed/card2box/models"
	"github.com/harperreed/card2box/phonebook"
	"github.com/harperreed/card2box/restore"
	"go.uber.org/zap"
)

// AttributesCommand prints the special attributes of a router phonebook and
// optionally stores them in the router archive and the local backup.
func AttributesCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("attributes", flag.ExitOnError)
	id := fs.Int("phonebook", app.Config.Phonebook.ID, "Phonebook id")
	output := fs.String("output", "", "CSV output file (default: stdout)")
	save := fs.Bool("save", false, "Store the table on the router and in the local backup")
	_ = fs.Parse(args)

	ctx := context.Background()
	router, err := app.Router(ctx)
	if err != nil {
		return err
	}

	table, err := currentAttributes(ctx, router, *id, app.Config.Phonebook.Name)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := restore.Encode(&buf, table); err != nil {
		return err
	}
	if err := writeOutput(*output, buf.Bytes()); err != nil {
		return err
	}

	if !*save {
		return nil
	}

	database, err := app.DB()
	if err != nil {
		return err
	}
	if err := db.SaveAttributes(database, *id, table); err != nil {
		return err
	}
	fmt.Printf("✓ Backed up %d attributes locally\n", table.Len())

	files, err := app.OpenFiles()
	if err != nil {
		return err
	}
	defer func() { _ = files.Close() }()

	if err := restore.NewArchive(files, "").Save(table); err != nil {
		return err
	}
	fmt.Printf("✓ Archived %d attributes on the router\n", table.Len())
	return nil
}

// KeypadCommand renders the quickdial keypad and uploads it to the handsets.
func KeypadCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("keypad", flag.ExitOnError)
	output := fs.String("output", "", "Write the image to a file instead of uploading")
	_ = fs.Parse(args)

	ctx := context.Background()
	router, err := app.Router(ctx)
	if err != nil {
		return err
	}

	table, err := currentAttributes(ctx, router, 0, app.Config.Phonebook.Name)
	if err != nil {
		app.Logger.Warn("failed to read quickdials from router", zap.Error(err))
		table = models.AttributeTable{}
	}
	if table.Len() == 0 {
		database, err := app.DB()
		if err != nil {
			return err
		}
		if table, err = db.LoadAttributes(database, 0); err != nil {
			return err
		}
	}

	labels := restore.Quickdials(table, app.Config.FritzBox.QuickdialAlias)
	if len(labels) == 0 {
		fmt.Println(mutedStyle.Render("No quickdial numbers assigned"))
		return nil
	}

	renderer, err := app.Renderer()
	if err != nil {
		return err
	}
	img, err := renderer.Render(labels)
	if err != nil {
		return err
	}

	if *output != "" {
		if err := writeOutput(*output, img); err != nil {
			return err
		}
		fmt.Printf("✓ Keypad image written to %s\n", *output)
		return nil
	}

	if len(app.Config.FritzBox.Fritzfons) == 0 {
		return fmt.Errorf("no handsets configured in fritzbox.fritzfons")
	}

	failed := 0
	for _, r := range keypad.NewUploader(router, app.Config.FritzBox.Fritzfons, app.Logger).Upload(ctx, img) {
		switch {
		case r.Skipped:
			fmt.Printf("  - Handset %d skipped\n", r.Target)
		case r.Err != nil:
			failed++
			fmt.Printf("✗ Handset %d: %v\n", r.Target, r.Err)
		default:
			fmt.Printf("✓ Keypad uploaded to handset %d\n", r.Target)
		}
	}
	if failed > 0 {
		return fmt.Errorf("keypad upload failed for %d handsets", failed)
	}
	return nil
}

func currentAttributes(ctx context.Context, router *fritzbox.Client, id int, name string) (models.AttributeTable, error) {
	data, err := router.DownloadPhonebook(ctx, id, name)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return models.AttributeTable{}, nil
	}

	doc, err := phonebook.Parse(data)
	if err != nil {
		return nil, err
	}
	return restore.Extract(doc), nil
}
