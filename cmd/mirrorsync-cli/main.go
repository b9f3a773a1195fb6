// Mirrorsync CLI — инструмент командной строки для admin API планировщика.
//
// Использование:
//
//	mirrorsync [--api-url URL] [--json] <command> [subcommand] [args]
//
// Команды:
//
//	capacity  Состояние слотов синхронизации
//	pass      Внеочередной проход планирования
//	mirror    Просмотр и force sync зеркал
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/mirrorsync/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "mirrorsync",
		Short:         "Mirrorsync CLI — pull mirror sync scheduler",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := "http://localhost:8081"
	if v := os.Getenv("MIRRORSYNC_API_URL"); v != "" {
		defaultURL = v
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "Scheduler API URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewCapacityCmd(clientFn, outputFn),
		cli.NewPassCmd(clientFn, outputFn),
		cli.NewMirrorCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
