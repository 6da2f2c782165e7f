package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mirrorlake/catapult/internal/inspect"
	"github.com/mirrorlake/catapult/internal/logging"
	"github.com/mirrorlake/catapult/internal/runlock"
	"github.com/mirrorlake/catapult/pkg/catalog"
	"github.com/mirrorlake/catapult/pkg/catalog/irods"
	"github.com/mirrorlake/catapult/pkg/catalog/s3"
	"github.com/mirrorlake/catapult/pkg/sync"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

var (
	green  = color.New(color.FgHiGreen).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
	red    = color.New(color.FgHiRed, color.Bold).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:   "catapult <source> <target>",
	Short: "Checksum-verified one-way push into a storage catalog",
	Long: `catapult pushes a local directory, file or glob into a remote storage
catalog, transferring only files whose content provably differs and
verifying every transfer against the catalog's own record.

The target is either an absolute collection path (catalog CLI backend)
or an s3://bucket/prefix URI.`,
	Version: fmt.Sprintf("%s (commit: %s, built at: %s by %s)", version, commit, date, builtBy),
	Args:    cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: run,
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().Bool("dry-run", false, "Log intended operations without touching the catalog")
	rootCmd.Flags().StringSlice("exclude", nil, "Exclude patterns (shell-style, repeatable)")
	rootCmd.Flags().String("log-file", "", "Debug log location (default: a timestamped file under the system temp directory)")
	rootCmd.Flags().String("state-dir", "", "Directory for resumable transfer state (default: <temp>/catapult)")
	rootCmd.Flags().Bool("quiet", false, "Suppress per-file console output; failures still print")
	rootCmd.Flags().String("region", "", "AWS region (S3 targets)")
	rootCmd.Flags().String("profile", "", "AWS profile (S3 targets)")
	rootCmd.Flags().String("bin-dir", "", "Directory holding the catalog CLI tools (imkdir, iquest, iput, irm)")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	home, _ := os.UserHomeDir()
	viper.AddConfigPath(filepath.Join(home, ".config", "catapult"))
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	for key, flag := range map[string]string{
		"dry_run":   "dry-run",
		"exclude":   "exclude",
		"log_file":  "log-file",
		"state_dir": "state-dir",
		"quiet":     "quiet",
		"region":    "region",
		"profile":   "profile",
		"bin_dir":   "bin-dir",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}

	viper.SetEnvPrefix("CATAPULT")
	viper.AutomaticEnv()
	return nil
}

func run(cmd *cobra.Command, args []string) error {
	// Arguments parsed; anything failing from here on is a runtime
	// problem, not a usage problem.
	cmd.SilenceUsage = true

	quiet := viper.GetBool("quiet")
	dryRun := viper.GetBool("dry_run")

	logPath := viper.GetString("log_file")
	if logPath == "" {
		logPath = filepath.Join(os.TempDir(),
			fmt.Sprintf("catapult-%s.log", time.Now().Format("20060102-150405")))
	}
	logFile, err := logging.Setup(logPath, quiet)
	if err != nil {
		return err
	}
	defer logFile.Close()

	runID := uuid.NewString()[:8]
	slog.SetDefault(slog.Default().With("run", runID))

	spec, err := sync.ResolveSource(args[0], args[1], viper.GetStringSlice("exclude"))
	if err != nil {
		return err
	}

	stateDir := viper.GetString("state_dir")
	if stateDir == "" {
		stateDir = filepath.Join(os.TempDir(), "catapult")
	}
	lock, err := runlock.Acquire(stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	client, err := newCatalogClient(cmd.Context(), spec.TargetRoot, stateDir)
	if err != nil {
		return err
	}

	inspector := inspect.Inspector(inspect.FS{})
	if dryRun {
		client = catalog.DryRun(client)
		inspector = inspect.Simulated{}
		slog.Info("dry run: catalog mutations are simulated")
	}

	report := sync.NewReport(logPath)
	runErr := sync.New(client, inspector).Run(cmd.Context(), spec, report)

	report.Log()
	printSummary(report, dryRun, quiet)

	// Per-file failures are in the summary; only a whole-run abort is an
	// error exit.
	return runErr
}

func newCatalogClient(ctx context.Context, targetRoot, stateDir string) (catalog.Client, error) {
	if strings.HasPrefix(targetRoot, "s3://") {
		var configOpts []func(*config.LoadOptions) error
		if profile := viper.GetString("profile"); profile != "" {
			configOpts = append(configOpts, config.WithSharedConfigProfile(profile))
		}
		if region := viper.GetString("region"); region != "" {
			configOpts = append(configOpts, config.WithRegion(region))
		}

		cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		return s3.New(cfg), nil
	}

	if !strings.HasPrefix(targetRoot, "/") {
		return nil, fmt.Errorf("target must be an s3:// URI or an absolute collection path: %s", targetRoot)
	}

	return irods.New(irods.Config{
		BinDir:   viper.GetString("bin_dir"),
		StateDir: stateDir,
	}), nil
}

func printSummary(report *sync.Report, dryRun, quiet bool) {
	if quiet && len(report.Failed) == 0 {
		return
	}

	fmt.Println()
	if dryRun {
		fmt.Println("Dry run: the catalog was not modified.")
	}
	for _, o := range report.Failed {
		fmt.Printf("%s %s: %s\n", red("failed"), o.RelPath, o.Reason)
	}
	fmt.Printf("%s %d  %s %d  %s %d  (%d files, %d dirs)\n",
		green("ok"), len(report.OK),
		yellow("skipped"), len(report.Skipped),
		red("failed"), len(report.Failed),
		report.TotalFiles(), report.TotalDirs)
	fmt.Printf("Sent %s in %s\n",
		humanize.IBytes(uint64(report.BytesSent)),
		report.Elapsed().Round(time.Millisecond))
	fmt.Printf("Full log: %s\n", report.LogPath)
}
