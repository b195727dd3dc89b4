package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	evalCmd "github.com/zxia545/sample-book-questions-gen-and-eval/cmd/bookeval/eval"
	genCmd "github.com/zxia545/sample-book-questions-gen-and-eval/cmd/bookeval/gen"
	reportCmd "github.com/zxia545/sample-book-questions-gen-and-eval/cmd/bookeval/report"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/config"
)

const envPrefix = "BOOKEVAL"

var Cmd = &cobra.Command{
	Use:   "bookeval",
	Short: "Batch generation and evaluation of book-question datasets",
	Long:  "Runs book-question datasets against pools of hosted language-model backends: generates answers, grades them with a judge model, and aggregates scores per file and question type",

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		viper.SetEnvPrefix(envPrefix)
		viper.SetEnvKeyReplacer(strings.NewReplacer(
			`-`, `_`,
			`.`, `_`,
		))
		viper.AutomaticEnv()

		config.BindFlags(cmd.Flags())
		config.BindFlags(cmd.PersistentFlags())

		return config.LoadEnvAndConfigFiles()
	},
}

func Execute() {
	if err := Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pflags := Cmd.PersistentFlags()
	pflags.String("config-file", "", "Path to the config file")
	pflags.String("env-file", "", "Path to the env file")

	viper.BindPFlag("config_file", pflags.Lookup("config-file"))
	viper.BindPFlag("env_file", pflags.Lookup("env-file"))

	Cmd.AddCommand(genCmd.Cmd, evalCmd.Cmd, reportCmd.Cmd)
	Cmd.CompletionOptions.HiddenDefaultCmd = true
}
