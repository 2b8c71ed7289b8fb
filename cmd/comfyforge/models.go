package main

import (
	"fmt"
	"os"
	"time"

	"github.com/hako/durafmt"
	"github.com/spf13/cobra"

	"github.com/sandmoen/comfyforge/graphapi"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage the local model index",
}

var modelsScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the configured model directories into the index",
	Run: func(cmd *cobra.Command, args []string) {
		ix, err := openIndex()
		if err != nil {
			fmt.Printf("Error opening model index: %v\n", err)
			os.Exit(1)
		}
		defer ix.Close()

		fmt.Println("Scanning model directories...")
		start := time.Now()
		count, err := ix.Scan()
		if err != nil {
			fmt.Printf("Error scanning models: %v\n", err)
			os.Exit(1)
		}
		elapsed := durafmt.Parse(time.Since(start).Round(time.Millisecond)).String()
		fmt.Printf("Indexed %d model(s) in %s\n", count, elapsed)
	},
}

var modelsListType string

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed models",
	Run: func(cmd *cobra.Command, args []string) {
		ix, err := openIndex()
		if err != nil {
			fmt.Printf("Error opening model index: %v\n", err)
			os.Exit(1)
		}
		defer ix.Close()

		types := []graphapi.ModelType{
			graphapi.ModelCheckpoint,
			graphapi.ModelLora,
			graphapi.ModelLyCORIS,
			graphapi.ModelEmbedding,
			graphapi.ModelVAE,
			graphapi.ModelUpscaler,
		}
		if modelsListType != "" {
			types = []graphapi.ModelType{graphapi.ModelType(modelsListType)}
		}

		total := 0
		for _, modelType := range types {
			records, err := ix.Search(modelType, "")
			if err != nil {
				fmt.Printf("Error listing %s models: %v\n", modelType, err)
				os.Exit(1)
			}
			if len(records) == 0 {
				continue
			}
			fmt.Printf("%s:\n", modelType)
			for _, record := range records {
				fmt.Printf("  %-42s %9.1f MB  %s\n", record.Name, float64(record.Size)/1024/1024, record.File)
			}
			total += len(records)
		}
		fmt.Printf("%d model(s) indexed\n", total)
	},
}

func init() {
	modelsListCmd.Flags().StringVar(&modelsListType, "type", "", "Only list one model type (checkpoint, lora, lycoris, embedding, vae, upscaler)")
	modelsCmd.AddCommand(modelsScanCmd)
	modelsCmd.AddCommand(modelsListCmd)
	rootCmd.AddCommand(modelsCmd)
}
