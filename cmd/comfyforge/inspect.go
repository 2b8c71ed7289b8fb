package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/sandmoen/comfyforge/client"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [image.png]",
	Short: "Print the generation parameters embedded in a PNG",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		params, err := client.ParametersFromPNGFile(args[0])
		if err != nil {
			fmt.Printf("Error reading %s: %v\n", args[0], err)
			os.Exit(1)
		}
		if err := toml.NewEncoder(os.Stdout).Encode(params); err != nil {
			fmt.Printf("Error encoding parameters: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
