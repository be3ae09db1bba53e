package main

import (
	"fmt"

	"github.com/newthinker/ladder/internal/backtest"
	"github.com/newthinker/ladder/internal/storage/archive"
	"github.com/spf13/cobra"
)

var runsSymbol string

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect archived backtest runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived run IDs for a symbol",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Print the summary of an archived run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func init() {
	runsCmd.PersistentFlags().StringVar(&runsSymbol, "symbol", "", "symbol the runs were archived under (defaults to config)")
	runsCmd.AddCommand(runsListCmd, runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

func openResultStore() (*archive.ResultStore, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	symbol := cfg.Backtest.Symbol
	if runsSymbol != "" {
		symbol = runsSymbol
	}

	store, err := archive.New(cfg.ArchiveConfig())
	if err != nil {
		return nil, "", fmt.Errorf("opening archive: %w", err)
	}
	return archive.NewResultStore(store), symbol, nil
}

func runRunsList(cmd *cobra.Command, args []string) error {
	rs, symbol, err := openResultStore()
	if err != nil {
		return err
	}

	ids, err := rs.List(cmd.Context(), symbol)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No archived runs for %s\n", symbol)
		return nil
	}
	for _, id := range ids {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	rs, symbol, err := openResultStore()
	if err != nil {
		return err
	}

	var result backtest.Result
	if err := rs.Load(cmd.Context(), symbol, args[0], &result); err != nil {
		return err
	}
	printResult(cmd.OutOrStdout(), &result)
	return nil
}
