// ABOUTME: Entry point for the card2box phonebook synchronizer
// ABOUTME: Routes global flags and subcommands to the cli package
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/harperreed/card2box/cli"
	"github.com/harperreed/card2box/config"
)

const version = "0.1.0"

func main() {
	// Global flags
	showVersion := flag.Bool("version", false, "Show version and exit")
	configPath := flag.String("config", "", "Config file (default: ~/.config/card2box/config.json)")

	// Parse global flags but don't fail on unknown (for subcommands)
	_ = flag.CommandLine.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("card2box version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(0)
	}

	command := args[0]
	commandArgs := args[1:]

	commands := map[string]func(*cli.App, []string) error{
		"run":         cli.RunCommand,
		"download":    cli.DownloadCommand,
		"convert":     cli.ConvertCommand,
		"images":      cli.ImagesCommand,
		"keypad":      cli.KeypadCommand,
		"attributes":  cli.AttributesCommand,
		"status":      cli.StatusCommand,
		"google-init": cli.GoogleInitCommand,
	}

	if command == "init" {
		if err := config.Save(config.Default(), *configPath); err != nil {
			log.Fatalf("Error: %v", err)
		}
		path := *configPath
		if path == "" {
			path = config.ConfigPath()
		}
		fmt.Printf("✓ Wrote default configuration to %s\n", path)
		return
	}

	run, ok := commands[command]
	if !ok {
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	app, err := cli.NewApp(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	err = run(app, commandArgs)
	app.Close()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func printUsage() {
	fmt.Printf(`card2box v%s - address book to FRITZ!Box phonebook sync

USAGE:
  card2box [global flags] <command> [flags]

GLOBAL FLAGS:
  --version              Show version and exit
  --config <path>        Config file (default: ~/.config/card2box/config.json)

COMMANDS:
  init                   Write a default configuration file
  run                    Synchronize contacts, photos, attributes and keypad
    --phonebook <id>       Target phonebook id (default: from config)
    --no-images            Skip photo upload and the attribute archive
    --no-keypad            Skip the keypad image upload

  download               Save a phonebook export of the router
    --phonebook <id>       Phonebook id
    --name <name>          Phonebook name
    --output <file>        Output file (default: stdout)

  convert                Write the phonebook a run would upload (no router access)
    --output <file>        Output file (default: phonebook.xml, - for stdout)

  images                 Upload contact photos only

  attributes             Show quickdial, vanity and internal numbers of a phonebook
    --phonebook <id>       Phonebook id
    --output <file>        CSV output file (default: stdout)
    --save                 Store the table on the router and in the local backup

  keypad                 Render quickdial labels and upload them to handsets
    --output <file>        Write the image to a file instead of uploading

  status                 Show sync state and recent runs
    --limit <n>            Number of runs to show (default: 10)

  google-init            Authorize access to Google contacts
    --listen <addr>        Callback listen address (default: :8080)

ENVIRONMENT:
  CARD2BOX_FRITZBOX_URL, CARD2BOX_FRITZBOX_USER, CARD2BOX_FRITZBOX_PASSWORD
  CARD2BOX_CARDDAV_URL, CARD2BOX_CARDDAV_USER, CARD2BOX_CARDDAV_PASSWORD
  CARD2BOX_PHONEBOOK_ID, CARD2BOX_LOG_LEVEL
  GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET (google-init)

EXAMPLES:
  # Preview the generated phonebook
  card2box convert --output phonebook.xml

  # Synchronize into the second phonebook without keypad images
  card2box run --phonebook 1 --no-keypad

`, version)
}
