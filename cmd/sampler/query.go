package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oraraka-deko/sampler/sampler"
)

func newQueryCmd(opts *options) *cobra.Command {
	var (
		count  int
		cache  bool
		repeat int
	)
	cmd := &cobra.Command{
		Use:     "query <prompt>",
		Short:   "Request N completions for a prompt and print them",
		Example: "  sampler query --config models.json --model vllm -n 5 \"Sort [3, 1, 2]\"",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("-n must be at least 1")
			}
			if repeat < 1 {
				repeat = 1
			}
			client, err := buildClient(cmd, opts, cache)
			if err != nil {
				return err
			}
			prompt := strings.Join(args, " ")
			out := cmd.OutOrStdout()
			for i := range repeat {
				res, err := client.RequestCompletions(cmd.Context(), prompt, count)
				if err != nil {
					return err
				}
				if repeat > 1 {
					fmt.Fprintf(out, "== run %d\n", i+1)
				}
				printResult(out, client, res)
			}
			printUsage(out, client)
			return printMetrics(out, opts)
		},
	}
	cmd.Flags().IntVarP(&count, "num", "n", 1, "Number of completions to request")
	cmd.Flags().BoolVar(&cache, "cache", false, "Enable the response cache")
	cmd.Flags().IntVar(&repeat, "repeat", 1, "Send the same prompt this many times")
	return cmd
}

func printResult(w io.Writer, client *sampler.Client, res *sampler.Result) {
	for i, text := range client.ExtractTexts(res) {
		fmt.Fprintf(w, "[%d] %s\n", i+1, text)
	}
	if res.Degraded() {
		fmt.Fprintf(w, "warning: got %d of %d requested completions\n", res.Len(), res.Requested)
	}
}

func printUsage(w io.Writer, client *sampler.Client) {
	u := client.Usage()
	fmt.Fprintf(w, "calls=%d prompt_tokens=%d completion_tokens=%d cost=%.6f\n",
		u.Calls, u.PromptTokens, u.CompletionTokens, u.Cost)
	if s := client.CacheStats(); s.Hits+s.Misses > 0 {
		fmt.Fprintf(w, "cache entries=%d hits=%d misses=%d\n", s.Entries, s.Hits, s.Misses)
	}
}
