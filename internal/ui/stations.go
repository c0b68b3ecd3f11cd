package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/radioplayer/internal/engine"
	"github.com/rivo/tview"
)

func (ui *UI) createStationListTable() *tview.Table {
	table := tview.NewTable().
		SetBorders(false).
		SetSeparator(' ').
		SetSelectable(true, false).
		SetFixed(1, 0)

	table.SetBorder(true).
		SetTitle(fmt.Sprintf("Stations (%d)", len(ui.stations))).
		SetBorderColor(ui.colors.borders).
		SetTitleColor(ui.colors.foreground).
		SetBackgroundColor(ui.colors.background).
		SetBorderPadding(1, 0, 1, 1)

	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(ui.colors.background).
		Background(ui.colors.highlight))

	headers := []string{" ", "Name", "Genre", "Description"}
	for col, title := range headers {
		cell := tview.NewTableCell(title).
			SetTextColor(ui.colors.foreground).
			SetBackgroundColor(ui.colors.headerBackground).
			SetSelectable(false)
		if col == 0 {
			cell.SetMaxWidth(2)
		} else {
			cell.SetExpansion(1)
		}
		table.SetCell(0, col, cell)
	}

	for i := range ui.stations {
		ui.setStationRow(table, i+1, i, "")
	}

	table.SetSelectedFunc(func(row, _ int) {
		ui.playIndex(row - 1)
	})

	return table
}

func (ui *UI) setStationRow(table *tview.Table, row int, stationIndex int, icon string) {
	if stationIndex < 0 || stationIndex >= len(ui.stations) {
		return
	}
	s := ui.stations[stationIndex]

	table.SetCell(row, 0, tview.NewTableCell(icon).
		SetTextColor(ui.colors.highlight).
		SetMaxWidth(2))

	table.SetCell(row, 1, tview.NewTableCell(s.Name).
		SetTextColor(ui.colors.foreground).
		SetMaxWidth(35).
		SetExpansion(2))

	table.SetCell(row, 2, tview.NewTableCell(strings.Join(s.Categories, ", ")).
		SetTextColor(ui.colors.foreground).
		SetMaxWidth(27).
		SetExpansion(1))

	table.SetCell(row, 3, tview.NewTableCell(s.Subtitle).
		SetTextColor(ui.colors.foreground).
		SetMaxWidth(40).
		SetExpansion(2))
}

// stationIcon is the marker drawn next to the station the engine currently holds.
func stationIcon(state engine.State, frame string) string {
	switch state.Phase {
	case engine.PhaseLoading, engine.PhaseBuffering:
		return frame
	case engine.PhasePlaying:
		return "➤"
	case engine.PhasePaused:
		return PauseIcon
	case engine.PhaseFailed:
		return "✗"
	default:
		return " "
	}
}

func (ui *UI) findIndexByID(id string) int {
	if id == "" {
		return -1
	}
	for i, s := range ui.stations {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (ui *UI) refreshStationIndicators() {
	if ui.stationList == nil {
		return
	}

	ui.mu.Lock()
	state := ui.state
	frame := ui.spinner.Frame(ui.animationFrame)
	ui.mu.Unlock()

	active := -1
	if state.Station != nil {
		active = ui.findIndexByID(state.Station.ID)
	}

	for i := range ui.stations {
		icon := " "
		if i == active {
			icon = stationIcon(state, frame)
		}
		ui.stationList.GetCell(i+1, 0).SetText(icon)
	}
}
