package cli

import (
	"errors"
	"sync"

	"github.com/felixgeelhaar/taskboard/internal/app"
	"github.com/felixgeelhaar/taskboard/pkg/config"
)

// ErrNotInitialized is returned by commands that need the board when the
// container could not be built.
var ErrNotInitialized = errors.New("application not initialized - database connection required")

// App holds the CLI application dependencies. Container is nil in limited
// mode, where only commands that need nothing but configuration work.
type App struct {
	Config    *config.Config
	Container *app.Container
}

var (
	appMu      sync.RWMutex
	currentApp *App
)

// SetApp sets the CLI application instance.
func SetApp(a *App) {
	appMu.Lock()
	defer appMu.Unlock()
	currentApp = a
}

// GetApp returns the CLI application instance.
func GetApp() *App {
	appMu.RLock()
	defer appMu.RUnlock()
	return currentApp
}

func requireContainer() (*app.Container, error) {
	a := GetApp()
	if a == nil || a.Container == nil {
		return nil, ErrNotInitialized
	}
	return a.Container, nil
}

func requireConfig() (*config.Config, error) {
	a := GetApp()
	if a == nil || a.Config == nil {
		return nil, errors.New("configuration not loaded")
	}
	return a.Config, nil
}
