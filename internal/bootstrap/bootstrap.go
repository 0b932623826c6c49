package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	hclog "github.com/hashicorp/go-hclog"

	libraryinadapter "readingroom/internal/modules/library/adapter/in"
	libraryoutadapter "readingroom/internal/modules/library/adapter/out"
	libraryservice "readingroom/internal/modules/library/service"
	libraryusecase "readingroom/internal/modules/library/usecase"
	readerinadapter "readingroom/internal/modules/reader/adapter/in"
	readeroutadapter "readingroom/internal/modules/reader/adapter/out"
	readerin "readingroom/internal/modules/reader/port/in"
	readerout "readingroom/internal/modules/reader/port/out"
	readerservice "readingroom/internal/modules/reader/service"
	readerusecase "readingroom/internal/modules/reader/usecase"
	"readingroom/internal/platform/clock"
	"readingroom/internal/platform/config"
	"readingroom/internal/platform/events"
	"readingroom/internal/platform/id"
	"readingroom/internal/platform/logging"
	uiapp "readingroom/internal/ui/app"
)

const downloadTimeout = 60 * time.Second

type App struct {
	Config   config.Config
	Settings *config.Manager
	Logger   hclog.Logger

	LibraryCLI  libraryinadapter.CLIHandler
	ReaderCLI   readerinadapter.CLIHandler
	Reader      readerin.Usecase
	Relay       *readerinadapter.RelayServer
	RelayClient *readerinadapter.RelayClient
	// Plugin is nil when no viewer plugin is configured.
	Plugin *readeroutadapter.PluginViewer

	bus     *events.Bus
	closers []io.Closer
}

func New(settings *config.Manager) (*App, error) {
	cfg := settings.Get()
	logger, logCloser, err := logging.New(logging.Options{Level: cfg.LogLevel, Path: cfg.LogPath})
	if err != nil {
		return nil, fmt.Errorf("new logger: %w", err)
	}
	app := &App{Config: cfg, Settings: settings, Logger: logger, bus: events.NewBus(), closers: []io.Closer{logCloser}}

	clk := clock.SystemClock{}

	libraryStore := libraryoutadapter.NewVaultDocumentStore(cfg.DataDir)
	libraryProjector, err := libraryoutadapter.NewSQLiteDocumentProjector(cfg.DBPath)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("new document projector: %w", err)
	}
	libraryUC := libraryusecase.NewInteractor(libraryservice.NewDocumentService(clk, id.RandomHex{}, libraryStore, libraryProjector))

	positions, err := readeroutadapter.NewSQLitePositionStore(cfg.DBPath)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("new position store: %w", err)
	}
	app.closers = append(app.closers, positions)

	var viewer readerout.Viewer = readeroutadapter.NewLauncherViewer()
	if cfg.ViewerPlugin != "" {
		app.Plugin = readeroutadapter.NewPluginViewer(cfg.ViewerPlugin, logger)
		viewer = app.Plugin
	}

	progress := readeroutadapter.NewLibraryProgressAdapter(libraryUC)
	readerUC := readerusecase.NewInteractor(readerservice.NewReaderService(readerservice.Dependencies{
		Source:       readeroutadapter.NewPDFSource(&http.Client{Timeout: downloadTimeout}, logger),
		Store:        positions,
		Writer:       progress,
		Progress:     progress,
		Catalog:      readeroutadapter.NewLibraryCatalogAdapter(libraryUC),
		Publisher:    readeroutadapter.NewBusPublisher(app.bus),
		Viewer:       viewer,
		Clock:        clk,
		IDs:          id.UUID{},
		Logger:       logger.Named("reader"),
		SyncDelay:    cfg.SyncDelay,
		PollInterval: cfg.PollInterval,
	}))

	app.LibraryCLI = libraryinadapter.NewCLIHandler(libraryUC)
	app.ReaderCLI = readerinadapter.NewCLIHandler(readerUC)
	app.Reader = readerUC
	app.Relay = readerinadapter.NewRelayServer(readerUC, logger)
	app.RelayClient = readerinadapter.NewRelayClient()
	return app, nil
}

// Close releases stores and the log file, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// RunTUI serves the telemetry relay and watches reader settings for as long as
// the terminal UI runs.
func RunTUI(app *App) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relayDone := make(chan error, 1)
	go func() {
		relayDone <- app.Relay.Serve(ctx, app.Config.SocketPath)
	}()

	app.Settings.WatchSettings(app.Logger.Named("config"))
	model := uiapp.NewModel(app.LibraryCLI, app.Reader, app.bus, app.Settings, app.Config.Reader)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	final, err := program.Run()
	if m, ok := final.(uiapp.Model); ok {
		m.Close()
	} else {
		model.Close()
	}

	cancel()
	if relayErr := <-relayDone; relayErr != nil {
		app.Logger.Warn("relay stopped", "error", relayErr)
	}
	return err
}
