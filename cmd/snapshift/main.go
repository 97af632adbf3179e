package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mwaldron/snapshift/internal/archive"
	"github.com/mwaldron/snapshift/internal/config"
	"github.com/mwaldron/snapshift/internal/ownership"
	"github.com/mwaldron/snapshift/internal/platform"
	"github.com/mwaldron/snapshift/internal/replicate"
	"github.com/mwaldron/snapshift/internal/stats"
	"github.com/mwaldron/snapshift/internal/ui"
)

var version = "dev"

const iouringQueueDepth = 64

func main() {
	os.Exit(run())
}

// hostFlag is a custom pflag.Value collecting repeated --host
// selections in CLI order.
type hostFlag struct {
	hosts *[]string
}

var _ pflag.Value = (*hostFlag)(nil)

func (*hostFlag) String() string { return "" }
func (*hostFlag) Type() string   { return "string" }

func (f *hostFlag) Set(val string) error {
	if val == "" {
		return errors.New("host name must not be empty")
	}
	*f.hosts = append(*f.hosts, val)
	return nil
}

func run() int {
	var (
		verbose     bool
		quiet       bool
		dryRun      bool
		noChown     bool
		dirLinks    bool
		useIOURing  bool
		showVersion bool
		logFile     string
		hosts       []string
	)

	rootCmd := &cobra.Command{
		Use:   "snapshift [flags] <source> <destination>",
		Short: "Migrate a Time Machine backup archive between volumes, preserving hard-link dedup",
		Args: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				return nil
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintf(os.Stdout, "snapshift %s\n", version)
				return nil
			}

			srcRoot := args[0]
			dstRoot := args[1]

			for _, root := range []string{srcRoot, dstRoot} {
				info, err := os.Stat(root)
				if err != nil || !info.IsDir() {
					fmt.Fprintf(os.Stderr, "Error: %s is not an accessible directory\n", root)
					return &exitError{code: 1}
				}
			}

			// Load optional config file.
			cfg, err := config.Load()
			if err != nil {
				slog.Warn("failed to load config", "error", err)
			}
			applyConfigDefaults(cmd, cfg.Defaults, &verbose, &noChown, &dirLinks, &useIOURing)

			// Configure logging.
			logLevel := slog.LevelWarn
			if verbose {
				logLevel = slog.LevelDebug
			} else if !quiet {
				logLevel = slog.LevelInfo
			}
			textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: logLevel,
			})
			var logHandler slog.Handler = textHandler
			if logFile != "" {
				lf, lfErr := os.Create(logFile)
				if lfErr != nil {
					return fmt.Errorf("open log file: %w", lfErr)
				}
				defer lf.Close()
				jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{
					Level: slog.LevelDebug,
				})
				logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
			}
			slog.SetDefault(slog.New(logHandler))

			if dryRun {
				slog.Info("dry run mode")
			}

			var iouringCopier *platform.IOURingCopier
			if useIOURing {
				iouringCopier, err = platform.NewIOURingCopier(iouringQueueDepth)
				if err != nil {
					slog.Warn("io_uring unavailable, using default copy path", "error", err)
				} else if iouringCopier == nil {
					slog.Warn("io_uring not supported on this system, using default copy path")
				} else {
					defer iouringCopier.Close()
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			collector := stats.NewCollector()
			report := ui.NewReporter(ui.ReporterConfig{
				Writer:    os.Stdout,
				ErrWriter: os.Stderr,
				Verbose:   verbose,
				Quiet:     quiet,
			})

			slog.Debug("starting migration",
				"src", srcRoot,
				"dst", dstRoot,
				"hosts", hosts,
				"dirlinks", dirLinks,
				"dry_run", dryRun,
				"iouring", iouringCopier != nil,
			)

			err = archive.Run(ctx, archive.Config{
				SrcRoot:  srcRoot,
				DstRoot:  dstRoot,
				Hosts:    hosts,
				DryRun:   dryRun,
				DirLinks: dirLinks,
				Report:   report,
				Owner:    ownership.New(!noChown),
				Stats:    collector,
				IOURing:  iouringCopier,
			})
			stop()

			if ctx.Err() != nil {
				fmt.Fprintln(os.Stderr, "Exiting...")
				return &exitError{code: 1}
			}
			if err != nil {
				slog.Error("migration failed", "error", err)
				return &exitError{code: 2}
			}

			if !quiet {
				fmt.Fprintln(os.Stderr, collector.Snapshot().Summary())
			}
			return nil
		},
	}

	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version and exit")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print each decision (mkdir/cp/ln) as it is made")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "show what would be done without writing")
	rootCmd.Flags().BoolVar(&noChown, "no-chown", false, "don't restore file ownership on the destination")
	rootCmd.Flags().
		BoolVar(&dirLinks, "dir-links", replicate.DefaultDirLinks, "hard-link unchanged directories (requires filesystem support)")
	rootCmd.Flags().BoolVar(&useIOURing, "iouring", false, "use io_uring for file copy (Linux only)")
	rootCmd.Flags().StringVar(&logFile, "log", "", "write structured JSON log to FILE")
	rootCmd.Flags().Var(&hostFlag{hosts: &hosts}, "host", "migrate only this host (repeatable)")

	if err := rootCmd.Execute(); err != nil {
		if exitErr, ok := err.(*exitError); ok {
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	return 0
}

// applyConfigDefaults applies config file defaults for flags not explicitly set on the CLI.
func applyConfigDefaults(
	cmd *cobra.Command,
	defaults config.DefaultsConfig,
	verbose *bool,
	noChown *bool,
	dirLinks *bool,
	useIOURing *bool,
) {
	if !cmd.Flags().Changed("verbose") && defaults.Verbose != nil {
		*verbose = *defaults.Verbose
	}
	if !cmd.Flags().Changed("no-chown") && defaults.NoChown != nil {
		*noChown = *defaults.NoChown
	}
	if !cmd.Flags().Changed("dir-links") && defaults.DirLinks != nil {
		*dirLinks = *defaults.DirLinks
	}
	if !cmd.Flags().Changed("iouring") && defaults.IOURing != nil {
		*useIOURing = *defaults.IOURing
	}
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
