package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const version = "0.1.0"

// app carries the state shared by all subcommands: global flag values, the
// configured logger, and the viper instance the config surface binds to.
type app struct {
	cfgFile  string
	logLevel string
	logFile  string

	logger *zap.Logger
	viper  *viper.Viper
}

func newRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "goinsight",
		Short: "Anomaly detection, decomposition, and forecasting for business metrics",
		Long: "goinsight analyzes business-metric time series: an ensemble of anomaly\n" +
			"detectors votes per point, a trend engine decomposes and forecasts, and\n" +
			"the merged report is written as CSV or JSON.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "minimum log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&a.logFile, "log-file", "", "write JSON logs to this file with rotation instead of stderr")

	cmd.PersistentPreRunE = func(*cobra.Command, []string) error {
		if err := a.initLogger(); err != nil {
			return err
		}
		return a.initViper()
	}
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if a.logger != nil {
			_ = a.logger.Sync()
		}
	}

	cmd.AddCommand(newAnalyzeCommand(a))
	cmd.SetErrPrefix("goinsight: ")
	return cmd
}

// initLogger builds the process logger: a console encoder on stderr by
// default, or a rotated JSON file when --log-file is set.
func (a *app) initLogger() error {
	level, err := zapcore.ParseLevel(a.logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", a.logLevel, err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var core zapcore.Core
	if a.logFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   a.logFile,
			MaxSize:    100, // megabytes
			MaxBackups: 10,
			MaxAge:     30, // days
			Compress:   true,
		}
		core = zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), level)
	} else {
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stderr), level)
	}

	a.logger = zap.New(core)
	return nil
}

// initViper wires the config sources: explicit file or ./goinsight.yaml,
// GOINSIGHT_* environment variables, and later the analyze flags. A missing
// file is only an error when it was named explicitly.
func (a *app) initViper() error {
	v := viper.New()
	v.SetEnvPrefix("GOINSIGHT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else {
		v.SetConfigName("goinsight")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if a.cfgFile != "" {
			return fmt.Errorf("read config: %w", err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}

	a.viper = v
	return nil
}
