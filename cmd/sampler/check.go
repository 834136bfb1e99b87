package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

const checkPrompt = "Hello! Please respond with 'Connection successful!'"

func newCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Send a probe prompt and verify the server answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := buildClient(cmd, opts, false)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Sending test query: %s\n", checkPrompt)
			res, err := client.RequestCompletions(cmd.Context(), checkPrompt, 1)
			if err != nil {
				return fmt.Errorf("connection check failed: %w", err)
			}
			texts := client.ExtractTexts(res)
			if len(texts) == 0 {
				return errors.New("connection check failed: empty response")
			}
			fmt.Fprintf(out, "Response: %s\n", texts[0])
			fmt.Fprintln(out, "Connection check passed")
			printUsage(out, client)
			return printMetrics(out, opts)
		},
	}
}
