package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/radioplayer/internal/engine"
	"github.com/glebovdev/radioplayer/internal/nowplaying"
	"github.com/rivo/tview"
)

// SleepPresets are the durations the sleep key cycles through. Zero means off.
var SleepPresets = []time.Duration{0, 15 * time.Minute, 30 * time.Minute, 60 * time.Minute, 90 * time.Minute}

// nextSleepIndex returns the preset after i. An expired timer starts the cycle over.
func nextSleepIndex(i int, active bool) int {
	if !active {
		return 1
	}
	return (i + 1) % len(SleepPresets)
}

func sleepPresetList() string {
	parts := make([]string, 0, len(SleepPresets)-1)
	for _, d := range SleepPresets[1:] {
		parts = append(parts, fmt.Sprintf("%dm", int(d.Minutes())))
	}
	return strings.Join(parts, "/")
}

// formatRemaining renders a countdown as m:ss, or h:mm:ss past the hour.
func formatRemaining(d time.Duration) string {
	if d <= 0 {
		return "off"
	}
	total := int(d.Round(time.Second).Seconds())
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

type PlayingSpinner struct {
	Frames []string
	FPS    time.Duration
}

func NewPlayingSpinner() *PlayingSpinner {
	return &PlayingSpinner{
		Frames: []string{"⣾ ", "⣽ ", "⣻ ", "⢿ ", "⡿ ", "⣟ ", "⣯ ", "⣷ "},
		FPS:    time.Second / 10,
	}
}

func (p *PlayingSpinner) Frame(n int) string {
	return p.Frames[n%len(p.Frames)]
}

// StatusRenderer turns an engine snapshot into the one-line status shown in the footer.
type StatusRenderer struct {
	isMuted       bool
	animFrame     int
	maxAnimFrame  int
	tickCount     int
	ticksPerFrame int
	primaryColor  string
}

func NewStatusRenderer(primaryColor string) *StatusRenderer {
	return &StatusRenderer{
		maxAnimFrame:  4,
		ticksPerFrame: 8,
		primaryColor:  primaryColor,
	}
}

func (s *StatusRenderer) SetMuted(muted bool) {
	s.isMuted = muted
}

func (s *StatusRenderer) AdvanceAnimation() {
	s.tickCount++
	if s.tickCount >= s.ticksPerFrame {
		s.tickCount = 0
		s.animFrame = (s.animFrame + 1) % s.maxAnimFrame
	}
}

func (s *StatusRenderer) Render(state engine.State) string {
	var parts []string

	switch state.Phase {
	case engine.PhaseLoading:
		parts = append(parts, "↻ CONNECTING")
	case engine.PhaseBuffering:
		circles := []string{"◐", "◓", "◑", "◒"}
		parts = append(parts, circles[s.animFrame]+" BUFFERING")
	case engine.PhasePlaying:
		dots := []string{"●", "◉", "○", "◉"}
		dot := dots[s.animFrame]
		if s.primaryColor != "" {
			dot = fmt.Sprintf("[%s]%s[-]", s.primaryColor, dot)
		}
		parts = append(parts, dot+" LIVE")
	case engine.PhasePaused:
		parts = append(parts, PauseIcon+" PAUSED")
	case engine.PhaseFailed:
		parts = append(parts, "✗ UNAVAILABLE")
	default:
		parts = append(parts, "○ IDLE")
	}

	if s.isMuted {
		parts = append(parts, "[red]MUTED[-]")
	}
	if state.SleepRemaining > 0 {
		parts = append(parts, "☾ "+formatRemaining(state.SleepRemaining))
	}
	if state.Phase == engine.PhaseIdle {
		parts = append(parts, "Select a station")
	}

	return joinParts(parts)
}

func joinParts(parts []string) string {
	return strings.Join(parts, " │ ")
}

// trackLine renders the now-playing title, falling back to the engine's track.
func trackLine(state engine.State, info *nowplaying.Info) string {
	title, artist := "", ""
	switch {
	case info != nil:
		title, artist = info.Title, info.Artist
	case state.Track != nil:
		title, artist = state.Track.Title, state.Track.Artist
	}

	switch {
	case title != "" && artist != "":
		return artist + " - " + title
	case title != "":
		return title
	default:
		return artist
	}
}

func (ui *UI) createPlayerPanel() *tview.Flex {
	ui.artworkPanel = tview.NewImage()
	ui.artworkPanel.SetBackgroundColor(ui.colors.background)
	ui.artworkPanel.SetAlign(tview.AlignLeft, tview.AlignTop)

	newLabel := func(text string) *tview.TextView {
		label := tview.NewTextView()
		label.SetText(text)
		label.SetTextColor(ui.colors.foreground)
		label.SetBackgroundColor(ui.colors.background)
		label.SetWrap(false)
		return label
	}

	newValue := func(wrap bool) *tview.TextView {
		value := tview.NewTextView()
		value.SetDynamicColors(true)
		value.SetTextColor(ui.colors.highlight)
		value.SetBackgroundColor(ui.colors.background)
		value.SetWrap(wrap)
		value.SetTextStyle(tcell.StyleDefault.Background(ui.colors.background).Attributes(tcell.AttrBold))
		return value
	}

	ui.stationView = newValue(false)
	ui.trackView = newValue(true)
	ui.sleepView = newValue(false)

	infoContent := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(newLabel(" Station:"), 1, 0, false).
		AddItem(ui.stationView, 1, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(newLabel(" Playing:"), 1, 0, false).
		AddItem(ui.trackView, 2, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(newLabel(" Sleep timer:"), 1, 0, false).
		AddItem(ui.sleepView, 1, 0, false).
		AddItem(nil, 0, 1, false)
	infoContent.SetBackgroundColor(ui.colors.background)

	ui.volumeView = ui.createGraphicalVolumeBar()

	artworkWrapper := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ui.artworkPanel, CoverHeight, 0, false).
		AddItem(nil, 0, 1, false)
	artworkWrapper.SetBackgroundColor(ui.colors.background)

	contentFlex := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(artworkWrapper, CoverWidth, 0, false).
		AddItem(infoContent, 0, 1, false).
		AddItem(ui.volumeView, 7, 0, false)
	contentFlex.SetBackgroundColor(ui.colors.background)

	panel := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(nil, 4, 0, false).
		AddItem(contentFlex, 0, 1, false).
		AddItem(nil, 4, 0, false)
	panel.SetBackgroundColor(ui.colors.background)

	ui.updateNowPlayingPanel(engine.State{}, nil)

	return panel
}

func (ui *UI) updateNowPlayingPanel(state engine.State, info *nowplaying.Info) {
	if ui.stationView == nil {
		return
	}

	stationName := "-"
	if state.Station != nil {
		stationName = state.Station.Name
	}
	ui.stationView.SetText(fmt.Sprintf(" [%s]%s[-]", ui.colors.highlight.String(), tview.Escape(stationName)))

	track := trackLine(state, info)
	if track == "" {
		track = "-"
	}
	ui.trackView.SetText(fmt.Sprintf(" [%s]%s[-]", ui.colors.highlight.String(), tview.Escape(track)))

	ui.sleepView.SetText(fmt.Sprintf(" [%s]%s[-]", ui.colors.highlight.String(), formatRemaining(state.SleepRemaining)))

	switch {
	case info != nil && info.Artwork != nil:
		ui.artworkPanel.SetImage(info.Artwork)
	case state.Artwork != nil:
		ui.artworkPanel.SetImage(state.Artwork)
	case state.Station == nil:
		ui.artworkPanel.SetImage(nowplaying.DefaultArtwork())
	}
}

func (ui *UI) getHelpText() string {
	keyColor := ui.colors.highlight.String()

	ui.mu.Lock()
	phase := ui.state.Phase
	muted := ui.isMuted
	ui.mu.Unlock()

	playbackHint := fmt.Sprintf("[%s]Enter[-] play  [%s]Space[-] pause", keyColor, keyColor)
	if phase == engine.PhasePaused || phase == engine.PhaseIdle || phase == engine.PhaseFailed {
		playbackHint = fmt.Sprintf("[%s]Enter[-] play  [%s]Space[-] resume", keyColor, keyColor)
	}

	muteText := "mute"
	if muted {
		muteText = "unmute"
	}

	return fmt.Sprintf(" %s  [%s]s[-] stop  [%s]t[-] sleep  [%s]+/-[-] vol  [%s]m[-] %s  [%s]?[-] help  [%s]q[-] quit ",
		playbackHint, keyColor, keyColor, keyColor, keyColor, muteText, keyColor, keyColor)
}

func (ui *UI) createFooter() *tview.Box {
	box := tview.NewBox().SetBackgroundColor(ui.colors.background)

	box.SetDrawFunc(func(screen tcell.Screen, x, y, width, height int) (int, int, int, int) {
		ui.mu.Lock()
		state := ui.state
		ui.mu.Unlock()

		helpText := ui.getHelpText()
		statusText := " " + ui.status.Render(state) + " "

		for row := y; row < y+height; row++ {
			for col := x; col < x+width; col++ {
				screen.SetContent(col, row, ' ', nil, tcell.StyleDefault.Background(ui.colors.headerBackground))
			}
		}

		centerY := y + height/2
		helpWidth := width * 2 / 3
		tview.Print(screen, helpText, x, centerY, helpWidth, tview.AlignLeft, ui.colors.foreground)
		tview.Print(screen, statusText, x+helpWidth, centerY, width-helpWidth-1, tview.AlignRight, ui.colors.foreground)

		return x, y, width, height
	})

	return box
}
