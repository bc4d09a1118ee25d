// initctl — инструмент командной строки init daemon.
//
// Использование:
//
//	initctl [--api-url URL] [--json] <command> [args] [flags]
//
// Команды:
//
//	can-start  Проверка предшествующих шагов
//	boot       Шаг запускается
//	execute    Шаг выполняется
//	ready      Шаг готов для зависимых
//	done       Шаг завершён
//	fail       Шаг завершился ошибкой
//	status     Статус шага
//	pipeline   Управление пайплайнами
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/initdaemon/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "initctl",
		Short:         "initctl — init daemon step control",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := os.Getenv("INIT_DAEMON_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:80"
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "Init daemon URL (env INIT_DAEMON_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(cli.NewStepCmds(clientFn, outputFn)...)
	rootCmd.AddCommand(cli.NewPipelineCmd(clientFn, outputFn))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
