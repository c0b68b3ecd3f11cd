package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/glebovdev/radioplayer/internal/artwork"
	"github.com/glebovdev/radioplayer/internal/audio"
	"github.com/glebovdev/radioplayer/internal/background"
	"github.com/glebovdev/radioplayer/internal/cache"
	"github.com/glebovdev/radioplayer/internal/catalog"
	"github.com/glebovdev/radioplayer/internal/config"
	"github.com/glebovdev/radioplayer/internal/engine"
	"github.com/glebovdev/radioplayer/internal/nowplaying"
	"github.com/glebovdev/radioplayer/internal/player"
	"github.com/glebovdev/radioplayer/internal/sleeptimer"
	"github.com/glebovdev/radioplayer/internal/ui"
	"github.com/gopxl/beep/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	versionFlag = flag.Bool("version", false, "Show version information")
	debugFlag   = flag.Bool("debug", false, "Enable debug logging")
	stationFlag = flag.String("station", "", "Start playing the station with this ID")
	metricsFlag = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s v%s - %s\n\n", config.AppName, config.AppVersion, config.AppDescription)
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()

		configPath, err := config.GetConfigPath()
		if err == nil {
			if _, statErr := os.Stat(configPath); statErr == nil {
				fmt.Fprintf(os.Stderr, "\nConfig file: %s\n", configPath)
			} else {
				fmt.Fprintf(os.Stderr, "\nConfig file will be created on first use.\n")
			}
		}
		fmt.Fprintf(os.Stderr, "Set %s (or put it in a %s file) to use another config file.\n", config.ConfigPathEnv, config.EnvFileName)
	}
}

func setupLogging(debug bool) {
	if !debug {
		// Avoid TUI corruption by only logging errors to /dev/null
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
		logFile, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0644)
		if err == nil {
			log.Logger = log.Output(logFile)
		}
		return
	}

	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	cacheDir, err := cache.Dir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not get cache dir: %v\n", err)
		cacheDir = os.TempDir()
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log dir: %v\n", err)
	}
	logPath := filepath.Join(cacheDir, "debug.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log file: %v\n", err)
		logFile = os.Stderr
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: logFile, TimeFormat: "15:04:05"})
	fmt.Printf("Debug log: %s\n", logPath)
	log.Info().Msgf("Starting %s v%s (debug mode)", config.AppName, config.AppVersion)
}

func stationProvider(cfg *config.Config) catalog.Provider {
	providers := []catalog.Provider{catalog.NewStatic(cfg.Stations)}
	if cfg.Catalog.SomaFM {
		providers = append(providers, catalog.NewSomaFM())
	}
	return catalog.NewMerged(providers...)
}

func startMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server stopped")
		}
	}()
	return srv
}

func registerRemoteCommands(center *nowplaying.Center, eng *engine.Engine) {
	center.RegisterCommand(nowplaying.CommandPlay, func() {
		if eng.CurrentStation() != nil && !eng.IsPlaying() {
			eng.TogglePlayPause()
		}
	})
	center.RegisterCommand(nowplaying.CommandPause, func() {
		if eng.IsPlaying() {
			eng.TogglePlayPause()
		}
	})
	center.RegisterCommand(nowplaying.CommandTogglePlayPause, eng.TogglePlayPause)
	center.RegisterCommand(nowplaying.CommandStop, eng.Stop)
}

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Printf("%s v%s\n", config.AppName, config.AppVersion)
		fmt.Println(config.AppDescription)
		os.Exit(0)
	}

	setupLogging(*debugFlag)

	if err := config.LoadEnv(); err != nil {
		log.Warn().Err(err).Msg("Failed to load .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.DefaultConfig()
	}

	if *debugFlag {
		if configPath, err := config.GetConfigPath(); err == nil {
			log.Debug().Msgf("Config: %s", configPath)
		}
		if cacheDir, err := cache.Dir(); err == nil {
			log.Debug().Msgf("Cache: %s", cacheDir)
		}
	}

	artCache, err := cache.NewDefault()
	if err != nil {
		log.Warn().Err(err).Msg("Artwork cache unavailable")
	} else {
		go func() {
			if n, err := artCache.Prune(); err != nil {
				log.Debug().Err(err).Msg("Failed to prune artwork cache")
			} else if n > 0 {
				log.Debug().Msgf("Pruned %d expired artwork files", n)
			}
		}()
	}

	artworkClient := artwork.NewClient(cfg.Artwork.SearchURL, artCache)
	var searcher nowplaying.ArtworkSearcher
	if cfg.Artwork.Enabled {
		searcher = artworkClient
	}

	center := nowplaying.NewCenter()
	publisher := nowplaying.NewPublisher(center, searcher, artworkClient)

	sessionCfg := audio.DefaultSessionConfig()
	sessionCfg.SampleRate = beep.SampleRate(cfg.Audio.SampleRate)
	sessionCfg.IOBufferDuration = cfg.Audio.IOBufferDuration

	backend := audio.NewSpeakerBackend()
	session := audio.NewController(backend, sessionCfg)

	eng := engine.New(engine.ConfigFromSettings(cfg), engine.Deps{
		Loader:     player.NewHTTPLoader(backend),
		Session:    session,
		Tasks:      background.NewSupervisor(background.NewProcessGranter(cfg.Background.Budget)),
		NowPlaying: publisher,
		Timer:      sleeptimer.New(),
		Registerer: prometheus.DefaultRegisterer,
	})
	session.SetObserver(eng)
	registerRemoteCommands(center, eng)

	var metricsServer *http.Server
	if *metricsFlag != "" {
		metricsServer = startMetricsServer(*metricsFlag)
	}

	front := ui.New(eng, center, stationProvider(cfg), cfg, *stationFlag)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	lifecycle := make(chan os.Signal, 1)
	watchLifecycle(lifecycle)

	uiDone := make(chan error, 1)

	go func() {
		for {
			select {
			case <-sigChan:
				log.Info().Msg("Received shutdown signal, cleaning up...")
				front.Shutdown()
				return
			case sig := <-lifecycle:
				handleLifecycle(eng, session, sig)
			}
		}
	}()

	log.Debug().Msg("Starting UI...")

	// Run UI in a goroutine so we can handle signals properly
	go func() {
		uiDone <- front.Run()
	}()

	runErr := <-uiDone

	eng.Close()
	publisher.Wait()
	backend.Close()
	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = metricsServer.Shutdown(ctx)
		cancel()
	}

	if runErr != nil {
		log.Error().Err(runErr).Msg("Error running UI")
		os.Exit(1)
	}
	log.Info().Msgf("%s stopped", config.AppName)
}
