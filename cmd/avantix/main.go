// Avantix CLI — локальный запуск и проверка flow, управление
// хранилищем flow и удалённым avantix-runner.
//
// Использование:
//
//	avantix [--flows-dir DIR] [--json] <command> [flags]
//
// Команды:
//
//	run       Выполнить flow локально
//	validate  Проверить flow без выполнения
//	actions   Список встроенных action
//	flow      Файлы flow и Postgres хранилище
//	remote    Управление avantix-runner через HTTP API
//	queue     Команды avantix-runner через RabbitMQ
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/avantix/internal/cli"
	"github.com/shaiso/avantix/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var (
		apiURL     string
		jsonOutput bool
		flowsDir   string
		dbURL      string
		logLevel   string
	)

	rootCmd := &cobra.Command{
		Use:           "avantix",
		Short:         "Avantix — RPA flow runner",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&apiURL, "api-url", envOr("AVANTIX_API_URL", "http://localhost:8090"), "avantix-runner API URL")
	flags.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	flags.StringVar(&flowsDir, "flows-dir", envOr("FLOWS_DIR", "./flows"), "Directory with flow files")
	flags.StringVar(&dbURL, "db-url", os.Getenv("DB_URL"), "Postgres URL of the flow store")
	flags.StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "WARN"), "Log level: DEBUG, INFO, WARN, ERROR")

	var logger *slog.Logger
	settingsFn := func() *cli.Settings {
		if logger == nil {
			// Логи идут в stderr, stdout остаётся для вывода print и данных
			cfg := telemetry.LogConfigFromEnv()
			cfg.Level = logLevel
			cfg.Format = envOr("LOG_FORMAT", "text")
			cfg.Out = os.Stderr
			l, _, err := telemetry.NewLogger(cfg)
			if err != nil {
				cfg.File = ""
				l, _, _ = telemetry.NewLogger(cfg)
			}
			logger = l
		}
		return &cli.Settings{FlowsDir: flowsDir, DBURL: dbURL, Logger: logger}
	}
	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewRunCmd(settingsFn, outputFn),
		cli.NewValidateCmd(settingsFn, outputFn),
		cli.NewActionsCmd(outputFn),
		cli.NewFlowCmd(settingsFn, outputFn),
		cli.NewRemoteCmd(clientFn, outputFn),
		cli.NewQueueCmd(settingsFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Message != "" {
				fmt.Fprintln(os.Stderr, exitErr.Message)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
