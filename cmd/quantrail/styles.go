package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/quantrail-lab/quantrail/internal/replay"
)

// Style definitions for the gate table.
var (
	titleStyle = lipgloss.NewStyle().Bold(true)

	headerStyle = lipgloss.NewStyle().Bold(true).Faint(true)

	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	failStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))

	suggestionStyle = lipgloss.NewStyle().Faint(true)
)

func printGateTable(results []replay.GateResult) {
	fmt.Println(titleStyle.Render("Deploy gate"))
	fmt.Println(headerStyle.Render(fmt.Sprintf("%-20s %-12s %8s %12s %10s", "STRATEGY", "STATUS", "TRADES", "TRADES/DAY", "QUALITY")))

	for _, result := range results {
		// Pad before styling so the ANSI escape bytes do not count toward
		// the column width.
		padded := fmt.Sprintf("%-12s", result.Status)

		status := passStyle.Render(padded)
		if !result.Passed() {
			status = failStyle.Render(padded)
		}

		fmt.Printf("%-20s %s %8d %12.2f %10.1f\n",
			result.StrategyName, status, result.Trades, result.TradesPerDay, result.AvgQuality)

		if result.Suggestion != "" {
			fmt.Println(suggestionStyle.Render("  " + result.Suggestion))
		}
	}
}
