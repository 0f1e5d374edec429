package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/syegres/Shark/rfl"
)

func importanceCmd() *cobra.Command {
	var modelFileName string
	cmd := &cobra.Command{
		Use:   "importance",
		Short: "Print the feature importances stored in a trained forest",
		Run: func(cmd *cobra.Command, args []string) {
			forest, err := rfl.LoadForest(modelFileName)
			if err != nil {
				log.Fatal(err)
			}
			imp := forest.FeatureImportances()
			if imp == nil {
				log.Fatal("the model was trained without feature importances")
			}
			for q, v := range imp {
				fmt.Printf("f_%d\t%g\n", q, v)
			}
		},
	}
	cmd.Flags().StringVarP(&modelFileName, "model", "m", "", "path to a trained forest model (required)")
	return cmd
}
