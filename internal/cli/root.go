// Package cli implements the recite terminal commands.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/escalopa/quran-recite-feedback/internal/adapter/ffmpeg"
	"github.com/escalopa/quran-recite-feedback/internal/app"
	"github.com/escalopa/quran-recite-feedback/internal/config"
	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"github.com/escalopa/quran-recite-feedback/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const localUser = "local"

var (
	configPath string
	langFlag   string
	formatFlag string
	verbose    bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:           "recite",
	Short:         "Practise Quran recitation with word-by-word feedback",
	Long:          "Browse surahs and juz, listen to a reciter, record yourself on the microphone and get word-by-word feedback on your recitation.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $CONFIG_PATH or ./config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&langFlag, "lang", "l", "", "Interface and feedback language: en, ar, ru or bn")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "text", "Output format: text or json")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at the configured level instead of warnings only")
}

func loadConfig() (*config.Config, error) {
	path, explicit := configPath, configPath != ""
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		explicit = path != ""
	}
	if path == "" {
		path = "config.yaml"
	}

	cfg, err := config.Load(path, explicit)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateCLI(); err != nil {
		return nil, err
	}
	if !verbose {
		cfg.Log.Level = "warn"
	}
	if cfg.Log.Format == "" || cfg.Log.Format == "json" {
		cfg.Log.Format = "console"
	}
	return cfg, nil
}

// openApp wires the core with the local microphone and speaker.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	mic := ffmpeg.NewMicrophone(cfg.Capture, logger)
	player := ffmpeg.NewPlayer(cfg.Playback.FFplayPath, logger)

	a, err := app.New(ctx, cfg, logger, app.Options{
		ServiceName: "quran-recite-cli",
		Devices: func(string) (domain.CaptureDevice, domain.AudioOutput) {
			return mic, player
		},
	})
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

func closeApp(a *app.App) {
	if err := a.Close(context.Background()); err != nil {
		a.Log.Debug("close", zap.Error(err))
	}
	_ = a.Log.Sync()
}

// language resolves the --lang flag against the configured default.
func language(a *app.App) (domain.Language, error) {
	if langFlag == "" {
		return a.Config.DefaultLanguage(), nil
	}
	lang, ok := domain.ParseLanguage(langFlag)
	if !ok {
		return "", fmt.Errorf("unsupported language %q", langFlag)
	}
	return lang, nil
}
