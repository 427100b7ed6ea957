package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dhamidi/perlex/perl/lexer"
	"github.com/dhamidi/perlex/perl/recovery"
	"github.com/dhamidi/perlex/perl/scorer"
)

func newRecoverCmd() *cobra.Command {
	var sourceFile string
	var outputFormat string
	var hints []string

	cmd := &cobra.Command{
		Use:   "recover <expr>",
		Short: "Resolve a dynamic heredoc delimiter expression such as '$marker'",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var prelude string
			if sourceFile != "" {
				var err error
				prelude, err = readSource(sourceFile)
				if err != nil {
					return err
				}
				if !strings.HasSuffix(prelude, "\n") {
					prelude += "\n"
				}
			}

			sc := scorer.New(cfg.ScorerMode)
			sc.ScanAssignments(prelude)
			recoveryCfg := cfg.Recovery
			if sourceFile != "" {
				recoveryCfg.FileType = recovery.FileTypeFromPath(sourceFile)
			}
			engine := recovery.New(recoveryCfg, recovery.WithScorer(sc))
			for _, h := range hints {
				name, delimiter, ok := strings.Cut(h, "=")
				if !ok || name == "" || delimiter == "" {
					return fmt.Errorf("invalid hint %q: want name=DELIMITER", h)
				}
				name = strings.TrimPrefix(name, "$")
				engine.AddHint(name, delimiter)
				sc.AddHint(name, delimiter)
			}

			expr := strings.TrimPrefix(args[0], "<<")
			start := len(prelude)
			input := prelude + "<<" + expr + ";\n"
			res := engine.Recover(input, start, lexer.Tokenize(prelude))

			switch outputFormat {
			case "json":
				data, err := json.MarshalIndent(res, "", "  ")
				if err != nil {
					return fmt.Errorf("encode json: %w", err)
				}
				fmt.Println(string(data))
			case "text":
				fmt.Println(res.Node().DiagnosticMessage())
				if len(res.Alternatives) > 0 {
					fmt.Printf("alternatives: %s\n", strings.Join(res.Alternatives, ", "))
				}
				for _, d := range res.Diagnostics {
					fmt.Printf("note: %s\n", d)
				}
			default:
				return fmt.Errorf("unknown format: %s", outputFormat)
			}

			if res.ErrorNode {
				return fmt.Errorf("delimiter for <<%s not resolved", expr)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourceFile, "source", "s", "", "Perl code that precedes the heredoc")
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "output format (json, text)")
	cmd.Flags().StringArrayVar(&hints, "hint", nil, "delimiter hint as name=DELIMITER, repeatable")

	return cmd
}
