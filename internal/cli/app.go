package cli

import (
	"bufio"
	"context"
	"log/slog"
	"os"

	"github.com/oaktrail/treetrack/internal/app"
	"github.com/oaktrail/treetrack/internal/config"
	"github.com/oaktrail/treetrack/internal/logging"

	_ "modernc.org/sqlite"
)

// App is the interactive console front end over the sync core. It exists
// for field testing and diagnostics; the observables the core publishes for
// a UI are consumed here by simply printing them after each command.
type App struct {
	core   *app.App
	reader *bufio.Reader
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logging.NewFileLogger(cfg.LogPath, slog.LevelInfo)

	core, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	return &App{core: core, reader: bufio.NewReader(os.Stdin)}, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.core.Close()
	a.core.Start(ctx)
	runREPL(ctx, a, bufio.NewScanner(os.Stdin))
}
