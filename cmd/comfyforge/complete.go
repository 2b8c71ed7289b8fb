package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sandmoen/comfyforge/completion"
	"github.com/sandmoen/comfyforge/graphapi"
)

var (
	completeCaret     int
	completeLineStart int
)

var completeCmd = &cobra.Command{
	Use:   "complete [line]",
	Short: "Show the completion request for a caret position in prompt text",
	Long: `Tokenizes one line of prompt text and prints the completion request at the
caret: the replace span, whether it completes a tag or an extra network
reference, and matching indexed models when the index has any.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		line := args[0]
		caret := completeCaret
		if !cmd.Flags().Changed("caret") {
			caret = len(line)
		}

		req := completion.Locate(line, completeLineStart, caret)
		if req == nil {
			fmt.Println("No completion at this position")
			return
		}

		fmt.Printf("Kind:    %s\n", req.Kind)
		if req.Network != nil {
			fmt.Printf("Network: %s\n", req.Network)
		}
		fmt.Printf("Replace: [%d, %d)\n", req.ReplaceStart, req.ReplaceEnd)
		fmt.Printf("Text:    %q\n", req.Text)

		if req.Kind != completion.KindExtraNetwork || req.Network == nil {
			return
		}
		ix, err := openIndex()
		if err != nil {
			return
		}
		defer ix.Close()

		records, err := ix.Search(modelTypeFor(*req.Network), strings.ToLower(req.Text))
		if err != nil || len(records) == 0 {
			return
		}
		fmt.Println("Candidates:")
		for _, record := range records {
			fmt.Printf("  %s\n", record.Name)
		}
	},
}

func modelTypeFor(n completion.NetworkType) graphapi.ModelType {
	switch n {
	case completion.NetworkLyCORIS:
		return graphapi.ModelLyCORIS
	case completion.NetworkEmbedding:
		return graphapi.ModelEmbedding
	}
	return graphapi.ModelLora
}

func init() {
	completeCmd.Flags().IntVar(&completeCaret, "caret", 0, "Caret position in the line (default end of line)")
	completeCmd.Flags().IntVar(&completeLineStart, "line-start", 0, "Offset of the line in the document")
	rootCmd.AddCommand(completeCmd)
}
