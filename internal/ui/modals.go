package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/radioplayer/internal/config"
	"github.com/rivo/tview"
)

func (ui *UI) showHelpModal() {
	keyColor := ui.colors.highlight.String()

	configPath, _ := config.GetConfigPath()

	helpText := fmt.Sprintf(`[::b]KEYBOARD SHORTCUTS[::-]

[%s]PLAYBACK[-]
  [%s]Enter[-]      Play selected station
  [%s]Space[-]      Pause / Resume
  [%s]s[-]          Stop
  [%s]t[-]          Sleep timer (off, %s)

[%s]VOLUME[-]
  [%s]+[-] / [%s]-[-]      Volume up / down
  [%s]m[-]          Mute / Unmute

[%s]APPLICATION[-]
  [%s]?[-]          Show this help
  [%s]q[-] / [%s]Esc[-]    Quit

[%s]CONFIG[-]: %s`,
		keyColor,
		keyColor, keyColor, keyColor, keyColor, sleepPresetList(),
		keyColor,
		keyColor, keyColor, keyColor,
		keyColor,
		keyColor, keyColor, keyColor,
		keyColor, configPath)

	ui.showInfoModal("Help", helpText)
}

func (ui *UI) showInfoModal(title, message string) {
	doDismiss := func() {
		ui.pages.RemovePage("modal")
		ui.app.SetFocus(ui.stationList)
	}

	messageView := tview.NewTextView().
		SetTextAlign(tview.AlignLeft).
		SetDynamicColors(true).
		SetWordWrap(true).
		SetText("\n" + message)
	messageView.SetTextColor(ui.colors.foreground)
	messageView.SetBackgroundColor(ui.colors.headerBackground)

	hintView := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetText("[::d]Press any key to close[::-]")
	hintView.SetTextColor(tcell.ColorDarkGray)
	hintView.SetBackgroundColor(ui.colors.headerBackground)

	content := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(messageView, 0, 1, false).
		AddItem(nil, 2, 0, false).
		AddItem(hintView, 1, 0, false).
		AddItem(nil, 1, 0, false)
	content.SetBackgroundColor(ui.colors.headerBackground)

	frame := tview.NewFrame(content).
		SetBorders(1, 0, 1, 1, 2, 2)
	frame.SetBorder(true).
		SetBorderColor(ui.colors.borders).
		SetBackgroundColor(ui.colors.headerBackground).
		SetTitle(" " + title + " ").
		SetTitleColor(ui.colors.highlight).
		SetTitleAlign(tview.AlignCenter)

	lines := strings.Count(message, "\n") + 1
	modalWidth := 50
	modalHeight := lines + 10
	if modalHeight > 38 {
		modalHeight = 38
	}

	modal := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(frame, modalHeight, 0, true).
			AddItem(nil, 0, 1, false),
			modalWidth, 0, true).
		AddItem(nil, 0, 1, false)
	modal.SetBackgroundColor(ui.colors.background)

	modal.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		doDismiss()
		return nil
	})

	ui.pages.AddPage("modal", modal, true, true)
	ui.app.SetFocus(modal)
}
