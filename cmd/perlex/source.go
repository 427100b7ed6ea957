package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dhamidi/perlex/perl/document"
)

// readSource reads a file, or standard input for "-".
func readSource(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// analysisFlags are the flags shared by commands that analyze documents.
type analysisFlags struct {
	timeout   time.Duration
	maxDepth  int
	hints     []string
	noDynamic bool
}

func (f *analysisFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "heredoc processing timeout (default from PERLEX_HEREDOC_TIMEOUT_MS)")
	cmd.Flags().IntVar(&f.maxDepth, "max-depth", 0, "maximum heredocs per file (default from PERLEX_MAX_HEREDOC_DEPTH)")
	cmd.Flags().StringArrayVar(&f.hints, "hint", nil, "delimiter hint as name=DELIMITER, repeatable")
	cmd.Flags().BoolVar(&f.noDynamic, "no-dynamic", false, "treat <<$expr as ordinary text")
}

func (f *analysisFlags) options(file string) ([]document.Option, error) {
	opts := cfg.DocumentOptions()
	if file != "" && file != "-" {
		opts = append(opts, document.WithFile(file))
	}
	if f.timeout > 0 {
		opts = append(opts, document.WithTimeout(f.timeout))
	}
	if f.maxDepth > 0 {
		opts = append(opts, document.WithMaxDepth(f.maxDepth))
	}
	for _, h := range f.hints {
		name, delimiter, ok := strings.Cut(h, "=")
		if !ok || name == "" || delimiter == "" {
			return nil, fmt.Errorf("invalid hint %q: want name=DELIMITER", h)
		}
		opts = append(opts, document.WithHint(strings.TrimPrefix(name, "$"), delimiter))
	}
	if f.noDynamic {
		opts = append(opts, document.WithoutDynamicDelimiters())
	}
	return opts, nil
}
