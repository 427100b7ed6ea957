package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dhamidi/perlex/format"
	"github.com/dhamidi/perlex/perl/document"
)

func newScanCmd() *cobra.Command {
	var outputFormat string
	var includeTokens bool
	var flags analysisFlags

	cmd := &cobra.Command{
		Use:   "scan <file|->",
		Short: "Extract the heredocs of a Perl file and print the report",
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

			var encoder format.Encoder
			switch outputFormat {
			case "json":
				enc := format.NewJSONEncoder(os.Stdout)
				if includeTokens {
					enc.IncludeTokens()
				}
				encoder = enc
			default:
				encoder, err = format.NewEncoder(outputFormat, os.Stdout)
				if err != nil {
					return err
				}
			}

			if err := encoder.Encode(report); err != nil {
				return fmt.Errorf("encode: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "output format (json, text)")
	cmd.Flags().BoolVar(&includeTokens, "tokens", false, "include the token stream in json output")
	flags.register(cmd)

	return cmd
}
