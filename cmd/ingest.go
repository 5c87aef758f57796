package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/xhad/docchat/pkg/extract"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Store files or directories of .pdf, .txt and .md documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	supported := extract.New(a.config.Upload.AllowedExtensions)
	files, err := collectFiles(args, supported)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		color.Yellow("No supported files found")
		return nil
	}

	var total int64
	for _, path := range files {
		if info, err := os.Stat(path); err == nil {
			total += info.Size()
		}
	}

	color.Blue("\nIngesting %d file(s)\n", len(files))
	bar := newIngestBar(total)

	var failed []string
	chunks := 0
	for _, path := range files {
		bar.Describe(color.BlueString("%-24s", truncateName(filepath.Base(path), 24)))
		result, err := ingestPath(cmd, a, path)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", path, err))
		} else {
			chunks += result
		}
		if info, err := os.Stat(path); err == nil {
			_ = bar.Add64(info.Size())
		}
	}
	_ = bar.Finish()

	color.Green("\n✓ Stored %d document(s) in %d chunk(s)\n", len(files)-len(failed), chunks)
	for _, f := range failed {
		color.Red("✗ %s\n", f)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d file(s) failed", len(failed))
	}
	return nil
}

func ingestPath(cmd *cobra.Command, a *app, path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.Size() > a.config.Upload.MaxFileSize {
		return 0, fmt.Errorf("file exceeds the %d byte limit", a.config.Upload.MaxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	result, err := a.ingester.Ingest(cmd.Context(), filepath.Base(path), data)
	if err != nil {
		return 0, err
	}
	return result.ChunksCount, nil
}

// collectFiles expands directories into the supported files they contain.
func collectFiles(args []string, supported *extract.Extractor) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && supported.Supports(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", arg, err)
		}
	}
	return files, nil
}

// newIngestBar tracks ingestion by bytes read, so one large PDF does not
// look like the same work as a short note.
func newIngestBar(total int64) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func truncateName(name string, n int) string {
	r := []rune(name)
	if len(r) <= n {
		return name
	}
	return string(r[:n-1]) + "…"
}
