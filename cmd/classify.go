package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/customs-ai/hs-classify/internal/pipeline"
)

var classifyJSON bool

var classifyCmd = &cobra.Command{
	Use:   "classify <description>",
	Short: "Classify one product description from the command line",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		description := strings.Join(args, " ")

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var written int
		outcome, err := env.Orchestrator.Run(ctx, description, func(ev pipeline.Event) error {
			if classifyJSON {
				return nil
			}
			// Stream raw model output as it arrives.
			if len(ev.FullText) > written {
				fmt.Fprint(os.Stderr, ev.FullText[written:])
				written = len(ev.FullText)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if !classifyJSON {
			fmt.Fprintln(os.Stderr)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(outcome.Result); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "strategy: %s, tokens: %d in / %d out\n",
			outcome.Strategy, outcome.Usage.InputTokens, outcome.Usage.OutputTokens)
		return nil
	},
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "suppress streaming output, print final JSON only")
	rootCmd.AddCommand(classifyCmd)
}
