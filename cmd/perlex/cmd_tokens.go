package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dhamidi/perlex/format"
	"github.com/dhamidi/perlex/perl/document"
	"github.com/dhamidi/perlex/perl/lexer"
)

func newTokensCmd() *cobra.Command {
	var trivia bool
	var flags analysisFlags

	cmd := &cobra.Command{
		Use:   "tokens <file|->",
		Short: "List the tokens of a Perl file with heredocs resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]
			source, err := readSource(filename)
			if err != nil {
				return err
			}
			opts, err := flags.options(filename)
			if err != nil {
				return err
			}
			report := document.Analyze(source, opts...)

			tokens := report.Tokens
			if trivia {
				tokens = lexer.Tokenize(report.Text,
					lexer.WithFile(report.File),
					lexer.WithHeredocs(report.Declarations),
					lexer.WithTrivia())
			}
			if err := format.EncodeTokens(os.Stdout, tokens); err != nil {
				return fmt.Errorf("write tokens: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&trivia, "trivia", false, "include whitespace, comments and POD")
	flags.register(cmd)

	return cmd
}
