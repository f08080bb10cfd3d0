package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/voluzi/memwatch/internal/environ"
	"github.com/voluzi/memwatch/pkg/config"
	"github.com/voluzi/memwatch/pkg/logparser"
)

const (
	DefaultProcessLog = "check.log"
	DefaultSystemLog  = "server_memory.log"
)

var (
	logLevel   string
	configFile string
	modeName   string
	logFile    string
	timezone   string

	mode     logparser.Mode
	location *time.Location
)

var rootCmd = &cobra.Command{
	Use:   "memwatch",
	Short: "Samples memory usage and charts it",
	Long: `memwatch samples per-process or whole-system memory usage into a text log
and renders the recorded history as PNG line charts.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			values, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if err := values.Apply(cmd); err != nil {
				return err
			}
		}

		logLvl, err := log.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		log.SetLevel(logLvl)

		mode = logparser.Mode(modeName)
		if !mode.Valid() {
			return fmt.Errorf("invalid mode %q: expected %s or %s", modeName, logparser.ModeProcess, logparser.ModeSystem)
		}

		location, err = loadLocation(timezone)
		if err != nil {
			return err
		}

		if logFile == "" {
			logFile = defaultLogFile(mode)
		}
		log.WithFields(map[string]interface{}{
			"mode":     mode,
			"log-file": logFile,
			"timezone": location.String(),
		}).Debug("configuration loaded")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel,
		"log-level",
		environ.GetString("LOG_LEVEL", "info"),
		"Log level. One of debug, info, warn, error, fatal, panic.",
	)
	rootCmd.PersistentFlags().StringVar(&configFile,
		"config",
		environ.GetString("CONFIG", ""),
		"YAML or TOML file with flag defaults",
	)
	rootCmd.PersistentFlags().StringVar(&modeName,
		"mode",
		environ.GetString("MODE", string(logparser.ModeProcess)),
		"What to monitor: process or system",
	)
	rootCmd.PersistentFlags().StringVar(&logFile,
		"log-file",
		environ.GetString("LOG_FILE", ""),
		fmt.Sprintf("Memory log path (default %s in process mode, %s in system mode)", DefaultProcessLog, DefaultSystemLog),
	)
	rootCmd.PersistentFlags().StringVar(&timezone,
		"timezone",
		environ.GetString("TIMEZONE", "Local"),
		"Time zone of the log timestamps, e.g. UTC or Asia/Shanghai",
	)
}

func defaultLogFile(m logparser.Mode) string {
	if m == logparser.ModeSystem {
		return DefaultSystemLog
	}
	return DefaultProcessLog
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
