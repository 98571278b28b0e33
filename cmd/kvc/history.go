package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and manage recorded commands",
	}

	listCmd := &cobra.Command{
		Use:           "list",
		Short:         "Show recorded commands, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          historyList,
	}
	listCmd.Flags().Int("limit", 0, "Show at most this many entries (0 shows all)")

	clearCmd := &cobra.Command{
		Use:           "clear",
		Short:         "Forget all recorded commands",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          historyClear,
	}

	maxCmd := &cobra.Command{
		Use:           "max [size]",
		Short:         "Show or change how many commands are kept",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          historyMax,
	}

	historyCmd.AddCommand(listCmd, clearCmd, maxCmd)
	return historyCmd
}

func historyList(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	limit, _ := cmd.Flags().GetInt("limit")

	a, err := openApp(cmd)
	if err != nil {
		return out.Error("Failed to open configuration", err)
	}
	defer a.Close()

	entries := a.journal.List()
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	if out.jsonMode {
		return out.Print(map[string]any{
			"commands": entries,
			"max_size": a.journal.MaxSize(),
		})
	}
	if len(entries) == 0 {
		fmt.Fprintln(out.out, "History is empty")
		return nil
	}
	for i, entry := range entries {
		fmt.Fprintf(out.out, "%3d  %s\n", i+1, entry)
	}
	return nil
}

func historyClear(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)

	a, err := openApp(cmd)
	if err != nil {
		return out.Error("Failed to open configuration", err)
	}
	defer a.Close()

	if err := a.journal.Clear(commandContext(cmd)); err != nil {
		return out.Error("Failed to clear history", err)
	}
	return out.Success("History cleared", nil)
}

func historyMax(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)

	var size int
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return out.Error("Invalid size", err)
		}
		size = n
	}

	a, err := openApp(cmd)
	if err != nil {
		return out.Error("Failed to open configuration", err)
	}
	defer a.Close()

	if len(args) == 1 {
		if err := a.journal.SetMaxSize(commandContext(cmd), size); err != nil {
			return out.Error("Failed to change history size", err)
		}
	}
	maxSize := a.journal.MaxSize()
	return out.Success(fmt.Sprintf("History keeps %d commands", maxSize), map[string]any{
		"max_size": maxSize,
	})
}
