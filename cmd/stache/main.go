package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/oarkflow/stache"
	"github.com/oarkflow/stache/internal/dataload"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type renderFlags struct {
	data           string
	schema         string
	partials       string
	output         string
	delims         string
	trimStandalone bool
	lenientFilters bool
	maxDepth       int
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var debug bool

	rootCmd := &cobra.Command{
		Use:           "stache",
		Short:         "Render mustache-style templates with filters",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", os.Getenv("STACHE_DEBUG") != "", "Enable debug output")

	logger := func() *slog.Logger { return newLogger(stderr, debug) }
	rootCmd.AddCommand(
		newRenderCmd(logger),
		newCheckCmd(),
		newTokensCmd(),
	)
	return rootCmd
}

// newLogger writes plain key=value lines without time or level noise.
func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func newRenderCmd(logger func() *slog.Logger) *cobra.Command {
	var f renderFlags

	cmd := &cobra.Command{
		Use:   "render TEMPLATE",
		Short: "Render a template file against a data file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args[0], f, logger())
		},
	}
	cmd.Flags().StringVarP(&f.data, "data", "d", "", "Data file (.json, .yaml, .yml or .cbor)")
	cmd.Flags().StringVar(&f.schema, "schema", "", "JSON Schema the data must satisfy")
	cmd.Flags().StringVar(&f.partials, "partials", "", "Directory of partial templates")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Write output to file instead of stdout")
	cmd.Flags().StringVar(&f.delims, "delims", "", `Custom delimiters, e.g. "<% %>"`)
	cmd.Flags().BoolVar(&f.trimStandalone, "trim-standalone", false, "Remove lines holding only a section or comment tag")
	cmd.Flags().BoolVar(&f.lenientFilters, "lenient-filters", false, "Pass values through unknown filters instead of failing")
	cmd.Flags().IntVar(&f.maxDepth, "max-depth", stache.DefaultMaxDepth, "Maximum nested partial/lambda depth")
	return cmd
}

func runRender(cmd *cobra.Command, path string, f renderFlags, logger *slog.Logger) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading template: %w", err)
	}

	var data any
	if f.data != "" {
		data, err = dataload.Load(f.data)
		if err != nil {
			return err
		}
		logger.Debug("data loaded", "file", f.data)
	}
	if f.schema != "" {
		if err := dataload.Validate(data, f.schema); err != nil {
			return err
		}
	}

	opts := []stache.Option{
		stache.WithLogger(logger),
		stache.WithStandaloneTrim(f.trimStandalone),
		stache.WithLenientFilters(f.lenientFilters),
		stache.WithMaxDepth(f.maxDepth),
	}
	if f.delims != "" {
		left, right, err := parseDelims(f.delims)
		if err != nil {
			return err
		}
		opts = append(opts, stache.WithDelims(left, right))
	}
	if f.partials != "" {
		p, err := stache.NewDirPartials(f.partials)
		if err != nil {
			return err
		}
		p.SetLogger(logger)
		opts = append(opts, stache.WithPartials(p))
	}

	out, err := stache.New(opts...).Render(string(src), data)
	if err != nil {
		return fmt.Errorf("rendering %s: %w", path, err)
	}

	if f.output == "" {
		_, err = io.WriteString(cmd.OutOrStdout(), out)
		return err
	}
	if err := os.WriteFile(f.output, []byte(out), 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	logger.Debug("output written", "file", f.output, "bytes", len(out))
	return nil
}

func parseDelims(s string) (string, string, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return "", "", fmt.Errorf("delims must be two space-separated strings, got %q", s)
	}
	return fields[0], fields[1], nil
}

var errCheckFailed = errors.New("one or more templates failed to parse")

func newCheckCmd() *cobra.Command {
	var trim bool
	cmd := &cobra.Command{
		Use:   "check TEMPLATE...",
		Short: "Parse templates and report syntax and structure errors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := false
			for _, path := range args {
				src, err := os.ReadFile(path)
				if err == nil {
					_, err = stache.Compile(string(src), stache.WithStandaloneTrim(trim))
				}
				if err != nil {
					failed = true
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", path)
			}
			if failed {
				return errCheckFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&trim, "trim-standalone", false, "Parse with standalone line trimming")
	return cmd
}

func newTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens TEMPLATE",
		Short: "Print the token stream of a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading template: %w", err)
			}
			w := cmd.OutOrStdout()
			for tok, err := range stache.Tokens(string(src), stache.DefaultDelims) {
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%4d:%-4d %-14s %q\n", tok.Pos, tok.End, tok.Kind, tok.Text)
			}
			return nil
		},
	}
}
