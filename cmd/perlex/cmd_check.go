package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dhamidi/perlex/format"
	"github.com/dhamidi/perlex/perl/document"
)

var perlExtensions = map[string]bool{
	".pl":   true,
	".pm":   true,
	".t":    true,
	".cgi":  true,
	".psgi": true,
}

func newCheckCmd() *cobra.Command {
	var flags analysisFlags

	cmd := &cobra.Command{
		Use:   "check <path>...",
		Short: "Report heredoc problems in Perl files and directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := collectPerlFiles(args)
			if err != nil {
				return err
			}

			failed := 0
			for _, file := range files {
				source, err := readSource(file)
				if err != nil {
					return err
				}
				opts, err := flags.options(file)
				if err != nil {
					return err
				}
				report := document.Analyze(source, opts...)
				if len(report.Diagnostics) == 0 {
					continue
				}
				// Only diagnostics are printed.
				report.Declarations = nil
				report.Recoveries = nil
				if err := format.NewTextEncoder(os.Stdout).Encode(report); err != nil {
					return fmt.Errorf("write diagnostics: %w", err)
				}
				if report.HasErrors() {
					failed++
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d files have heredoc errors", failed, len(files))
			}
			return nil
		},
	}

	flags.register(cmd)

	return cmd
}

// collectPerlFiles expands directories to the Perl files below them.
func collectPerlFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		if path == "-" {
			files = append(files, path)
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && perlExtensions[filepath.Ext(p)] {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", path, err)
		}
	}
	return files, nil
}
