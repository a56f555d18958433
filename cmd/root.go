package cmd

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Demr1on/batmap-app/cmd/file"
	"github.com/Demr1on/batmap-app/cmd/serve"
	"github.com/Demr1on/batmap-app/internal/buildinfo"
	"github.com/Demr1on/batmap-app/internal/conf"
	"github.com/Demr1on/batmap-app/internal/logger"
	"github.com/Demr1on/batmap-app/internal/observability"
)

// RootCommand creates and returns the root command. settings is filled in
// before any subcommand runs.
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var (
		configFile  string
		flushSentry func()
		centralLog  *logger.CentralLogger
	)

	rootCmd := &cobra.Command{
		Use:          "batmap",
		Short:        "Bat echolocation call classifier",
		Long:         "Extract acoustic features from bat recordings and classify the species, from the command line or as an HTTP job service.",
		Version:      build.GetVersion(),
		SilenceUsage: true,
	}

	if err := setupFlags(rootCmd, &configFile); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		file.Command(settings),
		serve.Command(settings),
		versionCommand(build),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		var err error
		centralLog, flushSentry, err = initialize(settings, configFile, build)
		return err
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if flushSentry != nil {
			flushSentry()
		}
		if centralLog != nil {
			_ = centralLog.Close()
		}
	}

	return rootCmd
}

// initialize loads .env and the configuration, then sets up logging and
// error telemetry.
func initialize(settings *conf.Settings, configFile string, build *buildinfo.Context) (*logger.CentralLogger, func(), error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("error loading .env file: %w", err)
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	}
	loaded, err := conf.Load()
	if err != nil {
		return nil, nil, err
	}
	*settings = *loaded

	logConfig := settings.Log
	if settings.Debug {
		logConfig.DefaultLevel = "debug"
		if logConfig.Console != nil {
			console := *logConfig.Console
			console.Level = "debug"
			logConfig.Console = &console
		}
	}
	centralLog, err := logger.NewCentralLogger(&logConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing logger: %w", err)
	}
	logger.SetGlobal(centralLog)

	flush, err := observability.InitSentry(&settings.Sentry, build.GetVersion())
	if err != nil {
		centralLog.Module("main").Warn("error telemetry disabled", logger.Error(err))
	}

	centralLog.Module("main").Debug("configuration loaded",
		logger.String("version", build.GetVersion()),
		logger.String("config_file", viper.ConfigFileUsed()))
	return centralLog, flush, nil
}

// setupFlags defines flags that are global to the command line interface.
func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(configFile, "config", "c", "", "Path to config.yaml (default: ./config.yaml, ~/.config/batmap, /etc/batmap)")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("transform", conf.TransformDFT, "Spectrum engine: dft or fft")
	flags.Bool("noise-gate", false, "Zero samples below the signal threshold before extraction")
	flags.String("model-type", conf.ModelLinear, "Model format: linear or tflite")
	flags.String("model-path", "", "Path to the classification model")
	flags.String("model-url", "", "URL of the classification model, used when --model-path is empty")
	flags.Int("threads", 0, "Inference threads for tflite models, 0 = auto")

	for key, name := range map[string]string{
		"debug":              "debug",
		"pipeline.transform": "transform",
		"pipeline.noisegate": "noise-gate",
		"model.type":         "model-type",
		"model.path":         "model-path",
		"model.url":          "model-url",
		"model.threads":      "threads",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}

func versionCommand(build *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(build.String())
		},
	}
}
