package main

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/syegres/Shark/rfl"
)

type trainConfig struct {
	FileNameTrainFeatures     string  `json:"filename_train_features"`
	FileNameTrainLabels       string  `json:"filename_train_labels"`
	Classification            bool    `json:"classification"`
	FileNameModel             string  `json:"filename_model"`
	NumberOfTrees             int     `json:"number_of_trees"`
	Mtry                      int     `json:"mtry"`
	NodeSize                  int     `json:"node_size"`
	OOBRatio                  float64 `json:"oob_ratio"`
	BootstrapWithReplacement  *bool   `json:"bootstrap_with_replacement"`
	Impurity                  string  `json:"impurity"`
	ComputeFeatureImportances bool    `json:"compute_feature_importances"`
	ComputeOOBError           bool    `json:"compute_oob_error"`
	ThreadsNum                int     `json:"threads_num"`
	Seed                      int64   `json:"seed"`
}

func trainCmd() *cobra.Command {
	var srcConfig string
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a random forest from npy feature/label files",
		Run: func(cmd *cobra.Command, args []string) {
			if err := train(srcConfig); err != nil {
				log.Fatal(err)
			}
		},
	}
	cmd.Flags().StringVarP(&srcConfig, "config", "c", "random_forest_config.json", "a JSON config file for the training run")
	return cmd
}

func train(srcConfig string) error {
	var config trainConfig
	if err := decodeConfig(srcConfig, &config); err != nil {
		return err
	}

	log.Println("load train")
	ds, err := rfl.ReadDataset(config.FileNameTrainFeatures, config.FileNameTrainLabels, config.Classification)
	if err != nil {
		return err
	}

	impurity, err := rfl.ParseImpurityMeasure(config.Impurity)
	if err != nil {
		return err
	}

	trainerConfig := rfl.DefaultTrainerConfig()
	if config.NumberOfTrees != 0 {
		trainerConfig.NumberOfTrees = config.NumberOfTrees
	}
	if config.NodeSize != 0 {
		trainerConfig.NodeSize = config.NodeSize
	}
	if config.OOBRatio != 0 {
		trainerConfig.OOBRatio = config.OOBRatio
	}
	trainerConfig.Mtry = config.Mtry
	if config.BootstrapWithReplacement != nil {
		trainerConfig.BootstrapWithReplacement = *config.BootstrapWithReplacement
	}
	trainerConfig.Impurity = impurity
	trainerConfig.ComputeFeatureImportances = config.ComputeFeatureImportances
	trainerConfig.ComputeOOBError = config.ComputeOOBError
	trainerConfig.Threads = config.ThreadsNum
	trainerConfig.Seed = config.Seed

	forest, err := rfl.NewTrainer(trainerConfig).Train(context.Background(), ds)
	if err != nil {
		return err
	}

	if est, ok := forest.OOBError(); ok {
		log.Print("out-of-bag error = ", est)
	}
	if imp := forest.FeatureImportances(); imp != nil {
		for q, v := range imp {
			log.Printf("importance of f_%d = %g", q, v)
		}
	}

	return forest.Save(config.FileNameModel)
}
