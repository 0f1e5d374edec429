package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/syegres/Shark/rfl"
)

type graphConfig struct {
	FileNameModel     string `json:"filename_model"`
	FigureType        string `json:"figure_type"`
	PicturesDirectory string `json:"pictures_directory"`
	DumpPrefix        string `json:"dump_prefix"`
}

func graphCmd() *cobra.Command {
	var srcConfig string
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the trees of a trained forest as pictures",
		Run: func(cmd *cobra.Command, args []string) {
			if err := graph(srcConfig); err != nil {
				log.Fatal(err)
			}
		},
	}
	cmd.Flags().StringVarP(&srcConfig, "config", "c", "random_forest_config.json", "a JSON config file for the rendering run")
	return cmd
}

func graph(srcConfig string) error {
	var config graphConfig
	if err := decodeConfig(srcConfig, &config); err != nil {
		return err
	}

	forest, err := rfl.LoadForest(config.FileNameModel)
	if err != nil {
		return err
	}
	return forest.RenderTrees(config.DumpPrefix, config.FigureType, config.PicturesDirectory)
}
