// Package bootstrap performs process-start wiring of the backend task-queue
// application: it picks the settings module, binds the app to its broker and
// result backend and discovers the tasks of the installed apps.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/dyluth/backend/internal/settings"
	"github.com/dyluth/backend/pkg/taskqueue"
)

const (
	// SettingsModuleEnv names the settings file to load.
	SettingsModuleEnv = "BACKEND_SETTINGS_MODULE"

	// DefaultSettingsModule is used when SettingsModuleEnv is unset.
	DefaultSettingsModule = "backend/settings.yml"

	// AppName is the application name; it also namespaces every Redis key.
	AppName = "backend"

	// BrokerURL is the message broker: database 0 of the redis service.
	BrokerURL = "redis://redis:6379/0"

	// ResultBackendURL is the result store: database 1 of the same service.
	ResultBackendURL = "redis://redis:6379/1"
)

// DiscoverFunc registers the tasks of the installed apps with an app.
type DiscoverFunc func(app *taskqueue.App, installedApps []string) error

// Options tunes Init. The zero value is ready to use.
type Options struct {
	Logger   *slog.Logger // nil = slog.Default()
	Discover DiscoverFunc // nil = (*taskqueue.App).AutodiscoverTasks
}

// Init builds the application handle. Connections are not opened here; the
// first command that needs Redis calls Connect.
func Init(opts Options) (*taskqueue.App, *settings.Settings, error) {
	path, err := settings.SetDefault(SettingsModuleEnv, DefaultSettingsModule)
	if err != nil {
		return nil, nil, err
	}

	s, err := settings.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("settings module %s: %w", path, err)
	}

	app := taskqueue.NewApp(AppName)
	if opts.Logger != nil {
		app.Logger = opts.Logger
	}
	taskqueue.SetLogger(app.Logger)
	app.Conf.BrokerURL = BrokerURL
	app.Conf.ResultBackend = ResultBackendURL
	app.Conf.DefaultQueue = s.DefaultQueue
	app.Conf.ResultExpires = s.ResultExpires

	discover := opts.Discover
	if discover == nil {
		discover = (*taskqueue.App).AutodiscoverTasks
	}
	if err := discover(app, s.InstalledApps); err != nil {
		return nil, nil, fmt.Errorf("task autodiscovery failed: %w", err)
	}

	return app, s, nil
}
