package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/lox/fairbox/internal/display"
	"github.com/lox/fairbox/internal/strategy"
)

// StrategiesCmd lists the built-in removal strategies.
type StrategiesCmd struct{}

func (c *StrategiesCmd) Run(g *Globals) error {
	a, err := g.setup(false)
	if err != nil {
		return err
	}
	defer a.Close()

	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return display.TitleStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers("Name", "Aliases", "Description")
	for _, info := range strategy.DefaultRegistry().List() {
		t.Row(info.Name, strings.Join(info.Aliases, ", "), info.Description)
	}
	fmt.Println(t.Render())
	fmt.Printf("\nLoad a plugin with: fairbox play <boxes> path/to/strategy%s <name>\n", strategy.PluginExt)
	return nil
}
