package statistics

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/lox/fairbox/internal/strategy"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// RenderTable formats the tally next to the strategy's exact odds.
func RenderTable(t Tally, odds strategy.Odds) string {
	switchRate, stayRate := t.Estimates()
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("Game results", "Rick switched", "Rick stayed").
		Row("Rounds", strconv.Itoa(t.SwitchRounds), strconv.Itoa(t.StayRounds)).
		Row("Wins", strconv.Itoa(t.SwitchWins), strconv.Itoa(t.StayWins)).
		Row("P (estimate)", prob(switchRate), prob(stayRate)).
		Row("P (exact)", prob(odds.Switch), prob(odds.Stay))
	return tbl.String()
}

func prob(p float64) string {
	return fmt.Sprintf("%.3f", p)
}
