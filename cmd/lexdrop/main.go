// Command lexdrop is the vocabulary-deck ingest tool. It runs the
// local-network upload server and provides standalone archive commands
// built on the same codec.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/lexdrop/lexdrop/core/zipfile"
	"github.com/lexdrop/lexdrop/internal/catalog"
	"github.com/lexdrop/lexdrop/internal/deck"
	"github.com/lexdrop/lexdrop/internal/ingest"
	"github.com/lexdrop/lexdrop/internal/logging"
)

const version = "0.2.0"

// CLI defines the command-line interface for lexdrop.
var CLI struct {
	// Global flags
	LogLevel  string `name:"log-level" default:"info" enum:"debug,info,warn,error" help:"Log level"`
	LogFormat string `name:"log-format" default:"text" enum:"json,text" help:"Log output format"`

	Serve   ServeCmd   `cmd:"" help:"Start the upload server"`
	Zip     ZipCmd     `cmd:"" help:"Create a deck archive from files"`
	Unzip   UnzipCmd   `cmd:"" help:"Extract a deck archive"`
	List    ListCmd    `cmd:"" help:"List the entries of a deck archive"`
	History HistoryCmd `cmd:"" help:"Show recently received files"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

func initLogging() {
	format := logging.FormatText
	if CLI.LogFormat == "json" {
		format = logging.FormatJSON
	}
	logging.InitLogger(logging.ParseLevel(CLI.LogLevel), format)
}

// ServeCmd starts the ingest server and processes received files.
type ServeCmd struct {
	Port      int    `short:"p" default:"8080" help:"TCP port to listen on"`
	Dest      string `short:"d" default:"decks" help:"Directory to extract received decks into" type:"path"`
	Catalog   string `default:"lexdrop.db" help:"Path of the ingest history database" type:"path"`
	MaxUpload int    `default:"524288000" help:"Maximum accepted upload size in bytes"`
}

func (c *ServeCmd) Run() error {
	initLogging()

	if err := os.MkdirAll(c.Dest, 0755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}
	cat, err := catalog.Open(c.Catalog)
	if err != nil {
		return err
	}
	defer cat.Close()

	srv := ingest.NewServer(ingest.Config{
		Port:         c.Port,
		MaxBodyBytes: c.MaxUpload,
	}, func(tempPath, originalName string) {
		if err := processUpload(cat, c.Dest, tempPath, originalName); err != nil {
			logging.Error("processing upload failed", "filename", originalName, "error", err)
		}
	})
	if err := srv.Start(); err != nil {
		return fmt.Errorf("starting ingest server: %w", err)
	}
	defer srv.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	logging.Info("shutting down")
	return nil
}

// processUpload moves a received file from its temp location into the
// destination: archives are extracted into a per-deck directory, plain
// word lists are parsed and copied as-is.
func processUpload(cat *catalog.Catalog, dest, tempPath, originalName string) error {
	data, err := os.ReadFile(tempPath)
	if err != nil {
		return fmt.Errorf("reading received file: %w", err)
	}
	defer os.Remove(tempPath)

	deckName := strings.TrimSuffix(originalName, filepath.Ext(originalName))

	switch strings.ToLower(filepath.Ext(originalName)) {
	case ".zip":
		deckDir := filepath.Join(dest, deckName)
		result, err := zipfile.Unzip(data, deckDir)
		if err != nil {
			return err
		}
		for _, entryErr := range result.EntryErrors {
			logging.Warn("archive entry skipped", "error", entryErr)
		}
		logging.IngestEvent("extracted", originalName, len(data),
			"deck", deckName, "files", len(result.Extracted))
		if _, err := cat.Record(originalName, "zip", data); err != nil {
			return err
		}
	case ".txt":
		entries, err := deck.Parse(strings.NewReader(string(data)))
		if err != nil {
			logging.Warn("received word list does not parse as a deck", "error", err)
		} else {
			logging.IngestEvent("parsed", originalName, len(data), "entries", len(entries))
		}
		if err := os.WriteFile(filepath.Join(dest, originalName), data, 0644); err != nil {
			return fmt.Errorf("storing word list: %w", err)
		}
		if _, err := cat.Record(originalName, "txt", data); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unexpected upload extension: %s", originalName)
	}
	return nil
}

// ZipCmd creates an archive from files and directories.
type ZipCmd struct {
	Output string   `short:"o" default:"deck.zip" help:"Output archive path" type:"path"`
	Paths  []string `arg:"" help:"Files and directories to archive" type:"path"`
}

func (c *ZipCmd) Run() error {
	initLogging()

	var files []zipfile.FileEntry
	for _, path := range c.Paths {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			files = append(files, zipfile.FileEntry{Name: filepath.Base(path) + "/"})
			dirEntries, err := os.ReadDir(path)
			if err != nil {
				return err
			}
			for _, de := range dirEntries {
				if de.IsDir() {
					continue
				}
				data, err := os.ReadFile(filepath.Join(path, de.Name()))
				if err != nil {
					return err
				}
				files = append(files, zipfile.FileEntry{
					Name: filepath.Base(path) + "/" + de.Name(),
					Data: data,
				})
			}
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, zipfile.FileEntry{Name: filepath.Base(path), Data: data})
	}

	archive, err := zipfile.CreateArchive(files)
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.Output, archive, 0644); err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}
	fmt.Printf("wrote %s (%d entries, %d bytes)\n", c.Output, len(files), len(archive))
	return nil
}

// UnzipCmd extracts an archive into a directory.
type UnzipCmd struct {
	Archive string `arg:"" help:"Archive to extract" type:"existingfile"`
	Dest    string `short:"d" default:"." help:"Destination directory" type:"path"`
}

func (c *UnzipCmd) Run() error {
	initLogging()

	data, err := os.ReadFile(c.Archive)
	if err != nil {
		return err
	}
	result, err := zipfile.Unzip(data, c.Dest)
	if err != nil {
		return err
	}
	for _, entryErr := range result.EntryErrors {
		logging.Warn("archive entry skipped", "error", entryErr)
	}
	for _, path := range result.Extracted {
		fmt.Println(path)
	}
	return nil
}

// ListCmd prints an archive's central directory.
type ListCmd struct {
	Archive string `arg:"" help:"Archive to list" type:"existingfile"`
}

func (c *ListCmd) Run() error {
	data, err := os.ReadFile(c.Archive)
	if err != nil {
		return err
	}
	entries, err := zipfile.Index(data)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%10d  %10d  %s\n", e.CompressedSize, e.UncompressedSize, e.Name)
	}
	return nil
}

// HistoryCmd shows recent ingest records.
type HistoryCmd struct {
	Catalog string `default:"lexdrop.db" help:"Path of the ingest history database" type:"path"`
	Limit   int    `short:"n" default:"20" help:"Number of entries to show"`
}

func (c *HistoryCmd) Run() error {
	cat, err := catalog.Open(c.Catalog)
	if err != nil {
		return err
	}
	defer cat.Close()

	entries, err := cat.Recent(c.Limit)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s  %-4s  %10d  %s  %s\n",
			e.ReceivedAt.Format("2006-01-02 15:04:05"), e.Kind, e.SizeBytes, e.Digest[:12], e.Filename)
	}
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("lexdrop %s\n", version)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("lexdrop"),
		kong.Description("Local-network vocabulary deck ingest"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
