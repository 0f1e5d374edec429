package main

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type rootCmdConfig struct {
	verbose bool
}

func main() {
	if err := cliParser().Execute(); err != nil {
		os.Exit(1)
	}
}

func cliParser() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "random_forest",
		Short: "random_forest trains and applies random forest models",
		Long:  `A tool to train random forests over npy feature/label matrices, estimate out-of-bag error and feature importances, and use the trained forests to make predictions`,
	}
	config := &rootCmdConfig{}
	rootCmd.PersistentFlags().BoolVarP(&(config.verbose), "verbose", "v", false, "")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if config.verbose {
			log.SetLevel(log.DebugLevel)
		}
	}
	rootCmd.AddCommand(trainCmd(), predictCmd(), graphCmd(), importanceCmd())
	return rootCmd
}

//decodeConfig reads a JSON run config into out.
func decodeConfig(srcConfig string, out interface{}) error {
	file, err := os.Open(srcConfig)
	if err != nil {
		return errors.Wrapf(err, "open config %s", srcConfig)
	}
	defer file.Close()
	if err := json.NewDecoder(file).Decode(out); err != nil {
		return errors.Wrapf(err, "decode config %s", srcConfig)
	}
	return nil
}
