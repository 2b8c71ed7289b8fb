package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var freeCmd = &cobra.Command{
	Use:   "free",
	Short: "Ask the backend to unload models and release cached VRAM",
	Run: func(cmd *cobra.Command, args []string) {
		c, err := connect()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer c.Close()

		if err := c.FreeMemory(cmd.Context()); err != nil {
			fmt.Printf("Error freeing backend memory: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Backend memory freed")
	},
}

var interruptCmd = &cobra.Command{
	Use:   "interrupt",
	Short: "Interrupt the prompt the backend is executing",
	Run: func(cmd *cobra.Command, args []string) {
		c, err := connect()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer c.Close()

		if err := c.Interrupt(cmd.Context()); err != nil {
			fmt.Printf("Error interrupting execution: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Execution interrupted")
	},
}

func init() {
	rootCmd.AddCommand(freeCmd)
	rootCmd.AddCommand(interruptCmd)
}
