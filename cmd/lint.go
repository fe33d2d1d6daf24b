package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/storylint/internal/lint"
	"github.com/JakeFAU/storylint/internal/page"
)

type lintOptions struct {
	format  string
	headers []string
	baseURL string
	noColor bool
}

func newLintCmd() *cobra.Command {
	opts := &lintOptions{}
	cmd := &cobra.Command{
		Use:   "lint <url|->",
		Short: "Lint one AMP story",
		Long: `Fetches the story at <url> and prints the report. With "-" the markup is
read from stdin and --base-url supplies the address it is served from.
The exit status is 1 when any check fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLint(cmd, opts, args[0])
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.format, "format", formatJSON, "output format: json, yaml or summary")
	flags.StringArrayVarP(&opts.headers, "header", "H", nil, "request header 'Name: value', repeatable")
	flags.StringVar(&opts.baseURL, "base-url", "", "URL the stdin document is served from")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable coloured summary output")
	return cmd
}

func runLint(cmd *cobra.Command, opts *lintOptions, target string) error {
	render, err := rendererFor(opts.format, opts.noColor)
	if err != nil {
		return err
	}
	headers, err := page.ParseHeaders(opts.headers)
	if err != nil {
		return err
	}
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	defer appInstance.Close(context.Background())

	var report *lint.Report
	if target == "-" {
		if opts.baseURL == "" {
			return fmt.Errorf("--base-url is required when reading from stdin")
		}
		in := cmd.InOrStdin()
		if in == nil {
			in = os.Stdin
		}
		report, err = appInstance.LintReader(cmd.Context(), opts.baseURL, in, headers)
	} else {
		report, err = appInstance.Lint(cmd.Context(), target, headers)
	}
	if err != nil {
		return err
	}

	if err := render(cmd.OutOrStdout(), report); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if report.Worst() == lint.StatusFail {
		return errFailures
	}
	return nil
}
