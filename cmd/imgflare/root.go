package main

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/lewtec/imgflare/internal/cloudflare"
	"github.com/lewtec/imgflare/internal/config"
	"github.com/lewtec/imgflare/internal/database"
	"github.com/lewtec/imgflare/internal/logger"
	"github.com/lewtec/imgflare/internal/repository"
	"github.com/lewtec/imgflare/internal/workflow"
)

// app carries the handles opened for one invocation
type app struct {
	log      *zap.Logger
	dataDir  string
	db       *sql.DB
	env      *config.Env
	settings *config.Settings
	images   *repository.ImageRepository
	remote   workflow.RemoteFactory
}

func (a *app) open(cmd *cobra.Command) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	a.log = logger.NewWithWriter(cmd.ErrOrStderr(), verbose)

	env, err := config.LoadEnv(a.log, ".env")
	if err != nil {
		return err
	}
	dataDir, _ := cmd.Flags().GetString("data-dir")
	if dataDir == "" {
		dataDir = env.DataDir
	}
	if dataDir == "" {
		if dataDir, err = config.DefaultDataDir(); err != nil {
			return &storeError{err: err}
		}
	}
	a.dataDir = dataDir
	if a.env, err = config.LoadEnv(a.log, filepath.Join(dataDir, ".env")); err != nil {
		return err
	}

	dbPath := filepath.Join(dataDir, database.FileName)
	a.log.Debug("opening database", zap.String("path", dbPath))
	a.db, err = database.OpenAndMigrate(cmd.Context(), dbPath)
	if err != nil {
		return &storeError{err: fmt.Errorf("failed to open database: %w", err)}
	}
	a.images = repository.NewImageRepository(a.db)
	a.settings = config.NewSettings(repository.NewConfigRepository(a.db), a.env)

	var opts []cloudflare.Option
	if a.env.APIBaseURL != "" {
		opts = append(opts, cloudflare.WithBaseURL(a.env.APIBaseURL))
	}
	a.remote = workflow.NewRemote(a.log, opts...)
	return nil
}

func (a *app) close() {
	if a.log != nil {
		_ = a.log.Sync()
	}
	if a.db != nil {
		a.db.Close()
	}
}

func (a *app) uploader() *workflow.Uploader {
	return workflow.NewUploader(a.images, a.settings, a.remote, a.log)
}

func (a *app) catalog() *workflow.Catalog {
	return workflow.NewCatalog(a.images, a.settings, a.remote, a.log)
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "imgflare",
		Short: "Migrate and manage images on Cloudflare Images",
		Long: strings.TrimSpace(`
Upload images to Cloudflare Images from URLs or local files and keep a local
catalog of what was uploaded, with its delivery URLs and variants.
    `),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd)
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	rootCmd.PersistentFlags().String("data-dir", "", "Directory holding the local database (default ~/.imgflare)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug details to stderr")

	rootCmd.AddCommand(
		newSetupCmd(a),
		newUploadCmd(a),
		newUploadLocalCmd(a),
		newBatchCmd(a),
		newStatusCmd(a),
		newStatsCmd(a),
		newListCmd(a),
		newSearchCmd(a),
		newOpenCmd(a),
		newExportCmd(a),
		newDeleteCmd(a),
		newVariantsCmd(a),
		newConfigCmd(a),
	)
	return rootCmd
}

// exactArgs is cobra.ExactArgs reporting a usage error
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usageErrorf("%s accepts %d arg(s), received %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}

// maxArgs is cobra.MaximumNArgs reporting a usage error
func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) > n {
			return usageErrorf("%s accepts at most %d arg(s), received %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}

// addUploadFlags registers the flags shared by the upload commands
func addUploadFlags(flags *pflag.FlagSet, inspect bool) {
	flags.BoolP("force", "f", false, "Upload even if the source has no image extension")
	if inspect {
		flags.Bool("no-inspect", false, "Do not fetch the source to read its size and dimensions")
	}
}

func uploadOptions(cmd *cobra.Command) workflow.UploadOptions {
	force, _ := cmd.Flags().GetBool("force")
	noInspect, _ := cmd.Flags().GetBool("no-inspect")
	return workflow.UploadOptions{Force: force, SkipInspect: noInspect}
}
