package ui

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/radioplayer/internal/catalog"
	"github.com/glebovdev/radioplayer/internal/config"
	"github.com/glebovdev/radioplayer/internal/engine"
	"github.com/glebovdev/radioplayer/internal/nowplaying"
	"github.com/glebovdev/radioplayer/internal/station"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const (
	VolumeStep          = 5
	HeaderHeight        = 3
	FooterHeight        = 3
	CoverWidth          = 26
	CoverHeight         = 12
	PlayerPanelHeight   = 12
	StationFetchTimeout = 20 * time.Second
)

// PauseIcon uses platform-specific character (Windows renders ⏸ as emoji)
var PauseIcon = func() string {
	if runtime.GOOS == "windows" {
		return "❚❚"
	}
	return "⏸"
}()

// Controller is the part of the playback engine the UI drives.
type Controller interface {
	Play(st station.Station)
	TogglePlayPause()
	Stop()
	SetSleepTimer(d time.Duration)
	CancelSleepTimer()
	SetVolume(percent int)
	State() engine.State
	OnChange(fn func(engine.State))
}

type UI struct {
	app      *tview.Application
	engine   Controller
	center   *nowplaying.Center
	provider catalog.Provider
	config   *config.Config

	stations     []station.Station
	startStation string

	stationList  *tview.Table
	artworkPanel *tview.Image
	stationView  *tview.TextView
	trackView    *tview.TextView
	sleepView    *tview.TextView
	volumeView   *tview.Flex
	footer       *tview.Box
	loadingText  *tview.TextView
	pages        *tview.Pages

	mu             sync.Mutex
	state          engine.State
	info           *nowplaying.Info
	currentVolume  int
	isMuted        bool
	sleepIndex     int
	animationFrame int
	spinner        *PlayingSpinner
	status         *StatusRenderer

	redraw      chan struct{}
	stopUpdates chan struct{}
	stopOnce    sync.Once
	unsubscribe func()

	colors struct {
		background       tcell.Color
		foreground       tcell.Color
		borders          tcell.Color
		highlight        tcell.Color
		headerBackground tcell.Color
		mutedVolume      tcell.Color
		errorForeground  tcell.Color
	}
}

// New builds the front end. startStation, when set, overrides the remembered station.
func New(ctrl Controller, center *nowplaying.Center, provider catalog.Provider, cfg *config.Config, startStation string) *UI {
	ui := &UI{
		app:           tview.NewApplication(),
		engine:        ctrl,
		center:        center,
		provider:      provider,
		config:        cfg,
		startStation:  startStation,
		currentVolume: config.ClampVolume(cfg.Volume),
		spinner:       NewPlayingSpinner(),
		redraw:        make(chan struct{}, 1),
		stopUpdates:   make(chan struct{}),
	}

	ui.colors.background = config.GetColor(cfg.Theme.Background)
	ui.colors.foreground = config.GetColor(cfg.Theme.Foreground)
	ui.colors.borders = config.GetColor(cfg.Theme.Borders)
	ui.colors.highlight = config.GetColor(cfg.Theme.Highlight)
	ui.colors.headerBackground = config.GetColor(cfg.Theme.HeaderBackground)
	ui.colors.mutedVolume = config.GetColor(cfg.Theme.MutedVolume)
	ui.colors.errorForeground = config.GetColor(cfg.Theme.ErrorForeground)

	ui.status = NewStatusRenderer(ui.colors.highlight.String())

	ctrl.OnChange(ui.onEngineChange)
	ui.unsubscribe = center.Subscribe(ui.onNowPlaying)

	return ui
}

// onEngineChange runs on the engine's goroutine and must not block.
func (ui *UI) onEngineChange(s engine.State) {
	ui.mu.Lock()
	ui.state = s
	ui.mu.Unlock()
	ui.requestRedraw()
}

func (ui *UI) onNowPlaying(info *nowplaying.Info) {
	ui.mu.Lock()
	ui.info = info
	ui.mu.Unlock()
	ui.requestRedraw()
}

func (ui *UI) requestRedraw() {
	select {
	case ui.redraw <- struct{}{}:
	default:
	}
}

func (ui *UI) SaveConfig() {
	ui.mu.Lock()
	if !ui.isMuted {
		ui.config.Volume = ui.currentVolume
	}
	if ui.state.Station != nil {
		ui.config.LastStation = ui.state.Station.ID
	}
	ui.mu.Unlock()

	if err := ui.config.Save(); err != nil {
		log.Error().Err(err).Msg("Failed to save config")
	}
}

func (ui *UI) stop() {
	ui.stopOnce.Do(func() {
		ui.SaveConfig()
		ui.unsubscribe()
		close(ui.stopUpdates)
		ui.app.Stop()
	})
}

// Shutdown stops the UI gracefully from external callers (e.g., signal handlers).
func (ui *UI) Shutdown() {
	ui.app.QueueUpdateDraw(func() {
		ui.stop()
	})
}

func (ui *UI) Run() error {
	ui.setupLoadingScreen()
	ui.configureScreen()

	go ui.initAsync()

	return ui.app.Run()
}

func (ui *UI) configureScreen() {
	bgStyle := tcell.StyleDefault.Background(ui.colors.background)
	ui.app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		screen.SetStyle(bgStyle)
		screen.Clear()
		return false
	})

	var titleSet sync.Once
	ui.app.SetAfterDrawFunc(func(screen tcell.Screen) {
		titleSet.Do(func() { screen.SetTitle(config.AppName) })
	})
}

func (ui *UI) setupLoadingScreen() {
	ui.loadingText = tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetText("Loading stations...")
	ui.loadingText.SetTextColor(ui.colors.foreground).
		SetBackgroundColor(ui.colors.background)

	screen := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(ui.loadingText, 3, 0, false).
		AddItem(nil, 0, 1, false)
	screen.SetBackgroundColor(ui.colors.background)

	ui.app.SetRoot(screen, true)
	ui.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || (event.Key() == tcell.KeyRune && event.Rune() == 'q') {
			ui.stop()
			return nil
		}
		return event
	})
}

func (ui *UI) initAsync() {
	ctx, cancel := context.WithTimeout(context.Background(), StationFetchTimeout)
	defer cancel()

	startTime := time.Now()
	stations, err := ui.provider.Stations(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load stations")
		ui.app.QueueUpdateDraw(func() {
			ui.loadingText.SetText(fmt.Sprintf("[%s]%s[-]\n\nPress q to quit",
				ui.colors.errorForeground.String(), friendlyErrorMessage(err.Error())))
		})
		return
	}
	log.Debug().Msgf("Loaded %d stations in %v", len(stations), time.Since(startTime))

	ui.app.QueueUpdateDraw(func() {
		ui.stations = stations
		ui.setupUI()
		ui.app.SetRoot(ui.pages, true).EnableMouse(true)
		ui.app.SetFocus(ui.stationList)
		ui.restoreSelection()
	})

	go ui.renderLoop()
}

func (ui *UI) restoreSelection() {
	wanted := ui.startStation
	autostart := wanted != ""
	if wanted == "" {
		wanted = ui.config.LastStation
		autostart = ui.config.Autostart
	}

	index := ui.findIndexByID(wanted)
	if index < 0 {
		if wanted != "" {
			log.Debug().Msgf("Station '%s' not found, showing first station", wanted)
		}
		ui.stationList.Select(1, 0)
		return
	}

	ui.stationList.Select(index+1, 0)
	if autostart {
		log.Debug().Msgf("Autostart, playing station: %s", wanted)
		ui.playIndex(index)
	}
}

// renderLoop applies engine and now-playing changes on the tview goroutine.
func (ui *UI) renderLoop() {
	ticker := time.NewTicker(ui.spinner.FPS)
	defer ticker.Stop()

	for {
		select {
		case <-ui.stopUpdates:
			return
		case <-ui.redraw:
			ui.app.QueueUpdateDraw(ui.refresh)
		case <-ticker.C:
			ui.mu.Lock()
			ui.animationFrame++
			animating := ui.state.Phase == engine.PhaseLoading || ui.state.Phase == engine.PhaseBuffering || ui.state.IsPlaying
			ui.mu.Unlock()

			ui.app.QueueUpdateDraw(func() {
				ui.status.AdvanceAnimation()
				if animating {
					ui.refreshStationIndicators()
				}
			})
		}
	}
}

func (ui *UI) refresh() {
	ui.mu.Lock()
	state := ui.state
	var info *nowplaying.Info
	if ui.info != nil {
		cp := *ui.info
		info = &cp
	}
	ui.mu.Unlock()

	ui.updateNowPlayingPanel(state, info)
	ui.refreshStationIndicators()
}

func (ui *UI) setupUI() {
	header := ui.createHeader()
	playerPanel := ui.createPlayerPanel()
	ui.stationList = ui.createStationListTable()
	ui.footer = ui.createFooter()

	contentLayout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(header, HeaderHeight, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(playerPanel, PlayerPanelHeight, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(ui.stationList, 0, 1, true).
		AddItem(ui.footer, FooterHeight, 0, false)
	contentLayout.SetBackgroundColor(ui.colors.background)

	wrapper := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(nil, 3, 0, false).
		AddItem(contentLayout, 0, 1, true).
		AddItem(nil, 3, 0, false)
	wrapper.SetBackgroundColor(ui.colors.background)

	mainLayout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 1, 0, false).
		AddItem(wrapper, 0, 1, true).
		AddItem(nil, 1, 0, false)
	mainLayout.SetBackgroundColor(ui.colors.background)

	ui.pages = tview.NewPages().
		AddPage("main", mainLayout, true, true)
	ui.pages.SetBackgroundColor(ui.colors.background)

	ui.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if ui.pages.HasPage("modal") {
			return event
		}
		return ui.globalInputHandler(event)
	})
}

func (ui *UI) createHeader() tview.Primitive {
	titleView := tview.NewTextView()
	titleView.SetText(" " + config.AppName)
	titleView.SetTextAlign(tview.AlignLeft)
	titleView.SetTextColor(ui.colors.foreground)
	titleView.SetBackgroundColor(ui.colors.headerBackground)

	versionView := tview.NewTextView()
	versionView.SetText("v" + config.AppVersion + " ")
	versionView.SetTextAlign(tview.AlignRight)
	versionView.SetTextColor(ui.colors.foreground)
	versionView.SetBackgroundColor(ui.colors.headerBackground)

	textFlex := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(nil, 1, 0, false).
		AddItem(titleView, 0, 1, false).
		AddItem(versionView, 10, 0, false).
		AddItem(nil, 1, 0, false)
	textFlex.SetBackgroundColor(ui.colors.headerBackground)

	headerFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(tview.NewBox().SetBackgroundColor(ui.colors.headerBackground), 1, 0, false).
		AddItem(textFlex, 1, 0, false).
		AddItem(tview.NewBox().SetBackgroundColor(ui.colors.headerBackground), 1, 0, false)
	headerFlex.SetBackgroundColor(ui.colors.headerBackground)

	return headerFlex
}

func (ui *UI) selectedIndex() int {
	row, _ := ui.stationList.GetSelection()
	if row <= 0 || row > len(ui.stations) {
		return -1
	}
	return row - 1
}

func (ui *UI) playIndex(index int) {
	if index < 0 || index >= len(ui.stations) {
		return
	}
	st := ui.stations[index]
	log.Info().Msgf("Starting playback for station: %s", st.Name)
	ui.engine.Play(st)
	ui.SaveConfig()
}

func (ui *UI) cycleSleepTimer() {
	ui.mu.Lock()
	active := ui.state.SleepRemaining > 0
	ui.sleepIndex = nextSleepIndex(ui.sleepIndex, active)
	d := SleepPresets[ui.sleepIndex]
	ui.mu.Unlock()

	if d == 0 {
		ui.engine.CancelSleepTimer()
		return
	}
	ui.engine.SetSleepTimer(d)
}

func (ui *UI) globalInputHandler(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q', 'Q':
			ui.stop()
			return nil
		case ' ':
			if ui.engine.State().Station == nil {
				ui.playIndex(ui.selectedIndex())
				return nil
			}
			ui.center.Send(nowplaying.CommandTogglePlayPause)
			return nil
		case 's', 'S':
			ui.center.Send(nowplaying.CommandStop)
			return nil
		case 't', 'T':
			ui.cycleSleepTimer()
			return nil
		case '+', '=':
			ui.adjustVolume(VolumeStep)
			return nil
		case '-', '_':
			ui.adjustVolume(-VolumeStep)
			return nil
		case 'm', 'M':
			ui.toggleMute()
			return nil
		case '?':
			ui.showHelpModal()
			return nil
		}
	case tcell.KeyEnter:
		ui.playIndex(ui.selectedIndex())
		return nil
	case tcell.KeyEscape:
		ui.stop()
		return nil
	case tcell.KeyRight:
		ui.adjustVolume(VolumeStep)
		return nil
	case tcell.KeyLeft:
		ui.adjustVolume(-VolumeStep)
		return nil
	}
	return event
}

func friendlyErrorMessage(errStr string) string {
	if strings.Contains(errStr, "no such host") {
		return "Unable to connect to server.\nPlease check your internet connection."
	}
	if strings.Contains(errStr, "connection refused") {
		return "Connection refused by server.\nThe service may be temporarily unavailable."
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "Connection timed out.\nPlease check your internet connection."
	}
	if strings.Contains(errStr, "no stations") {
		return "No stations available.\nAdd stations to the config file or enable the SomaFM catalog."
	}
	if idx := strings.Index(errStr, ": dial"); idx > 0 {
		return errStr[:idx]
	}
	if len(errStr) > 100 {
		return errStr[:100] + "..."
	}
	return errStr
}
