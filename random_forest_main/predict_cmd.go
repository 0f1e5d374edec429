package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sbinet/npyio"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/syegres/Shark/rfl"
)

type predictConfig struct {
	FileNameFeatures   string `json:"filename_features"`
	FileNameModel      string `json:"filename_model"`
	FileNamePrediction string `json:"filename_prediction"`
}

func predictCmd() *cobra.Command {
	var srcConfig string
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict labels for an npy feature matrix with a trained forest",
		Run: func(cmd *cobra.Command, args []string) {
			if err := predict(srcConfig); err != nil {
				log.Fatal(err)
			}
		},
	}
	cmd.Flags().StringVarP(&srcConfig, "config", "c", "random_forest_config.json", "a JSON config file for the prediction run")
	return cmd
}

func predict(srcConfig string) error {
	var config predictConfig
	if err := decodeConfig(srcConfig, &config); err != nil {
		return err
	}

	features, err := rfl.ReadNpy(config.FileNameFeatures)
	if err != nil {
		return err
	}

	forest, err := rfl.LoadForest(config.FileNameModel)
	if err != nil {
		return err
	}

	prediction := forest.PredictValue(features)

	dst, err := os.Create(config.FileNamePrediction)
	if err != nil {
		return errors.Wrapf(err, "create %s", config.FileNamePrediction)
	}
	defer dst.Close()
	return npyio.Write(dst, prediction)
}
