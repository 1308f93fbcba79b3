package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"adreact/internal/config"
	"adreact/internal/preflight"
)

func runPreflight(cmd *cobra.Command, cfg *config.Config) error {
	results := preflight.RunAll(cmd.Context(), cfg)

	rows := make([][]string, 0, len(results))
	for _, result := range results {
		state := "FAIL"
		if result.Passed {
			state = "OK"
		}
		rows = append(rows, []string{result.Name, state, result.Detail})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]column{{name: "Check"}, {name: "Result"}, {name: "Detail"}},
		rows,
	))

	if !preflight.AllPassed(results) {
		return errors.New("preflight checks failed")
	}
	return nil
}
