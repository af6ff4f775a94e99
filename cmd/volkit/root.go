package main

import (
	"context"
	"io"

	"github.com/Faultbox/volkit/internal/config"
	"github.com/Faultbox/volkit/internal/convert"
	"github.com/Faultbox/volkit/internal/logger"
	"github.com/Faultbox/volkit/pkg/media"
	"github.com/Faultbox/volkit/pkg/texture"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

// app carries the configuration and logger shared by subcommands.
type app struct {
	flags config.Flags
	cfg   *config.Config
	log   *zap.Logger
	ready bool
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "volkit",
		Short:         "Convert, trim and inspect VOLS volumetric video containers",
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			logger.Sync()
		},
	}
	cmd.SetVersionTemplate("volkit {{.Version}}\n")
	a.flags.Register(cmd.PersistentFlags())

	cmd.AddCommand(newConvertCmd(a))
	cmd.AddCommand(newInfoCmd(a))
	cmd.AddCommand(newVerifyCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(&a.flags)
	if err != nil {
		return err
	}
	opts := logger.Options{
		Level:   cfg.Logging.Level,
		Console: true,
		NoColor: cfg.Logging.NoColor,
		Stdout:  cmd.OutOrStdout(),
		Stderr:  cmd.ErrOrStderr(),
	}
	if cfg.Logging.LogFile != "" {
		opts.File = logger.DefaultFileConfig(cfg.Logging.LogFile)
	}
	if err := logger.Init(opts); err != nil {
		return err
	}
	a.cfg, a.log, a.ready = cfg, logger.Log, true
	a.log.Debug("configuration loaded", zap.String("level", cfg.Logging.Level))
	return nil
}

// converter wires the external tools from the configuration.
func (a *app) converter() *convert.Converter {
	codec := texture.NewBasisu(a.cfg.Tools.Basisu, a.log)
	codec.SetTimeout(a.cfg.Tools.Timeout)
	codec.SetUASTCLevel(a.cfg.Texture.UASTCQuality)

	ffmpeg := media.NewFFmpeg(a.cfg.Tools.FFmpeg, a.log)
	ffmpeg.SetTimeout(a.cfg.Tools.Timeout)

	return convert.New(a.log, codec, ffmpeg)
}

// fail reports err with its failure class. Errors raised before the logger
// was configured go to a plain console logger on stderr.
func (a *app) fail(stderr io.Writer, err error) {
	if !a.ready {
		_ = logger.Init(logger.Options{
			Level:   "info",
			Console: true,
			NoColor: a.flags.NoColor,
			Stdout:  stderr,
			Stderr:  stderr,
		})
	}
	logger.Error(err.Error(), zap.String("class", convert.Classify(err)))
	logger.Sync()
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		a.fail(stderr, err)
		return 1
	}
	return 0
}
