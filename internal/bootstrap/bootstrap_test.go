package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dyluth/backend/pkg/taskqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const testSettings = `version: "1.0"
installed_apps: [auth, core, notifications]
default_queue: tasks
`

func TestInit_BindsLiteralURLs(t *testing.T) {
	t.Setenv(SettingsModuleEnv, writeSettings(t, testSettings))

	app, s, err := Init(Options{Discover: func(*taskqueue.App, []string) error { return nil }})
	require.NoError(t, err)

	assert.Equal(t, "backend", app.Name)
	assert.Equal(t, "redis://redis:6379/0", app.Conf.BrokerURL)
	assert.Equal(t, "redis://redis:6379/1", app.Conf.ResultBackend)
	assert.Equal(t, "tasks", app.Conf.DefaultQueue)
	assert.Equal(t, []string{"auth", "core", "notifications"}, s.InstalledApps)
	assert.Nil(t, app.Broker(), "Init must not open connections")
}

func TestInit_DiscoversExactlyOnce(t *testing.T) {
	t.Setenv(SettingsModuleEnv, writeSettings(t, testSettings))

	calls := 0
	var gotApps []string
	var gotApp *taskqueue.App

	app, _, err := Init(Options{Discover: func(a *taskqueue.App, installed []string) error {
		calls++
		gotApp = a
		gotApps = installed
		return nil
	}})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Same(t, app, gotApp)
	assert.Equal(t, []string{"auth", "core", "notifications"}, gotApps)
}

func TestInit_SettingsModuleDefault(t *testing.T) {
	t.Run("sets default when absent", func(t *testing.T) {
		t.Setenv(SettingsModuleEnv, "")
		os.Unsetenv(SettingsModuleEnv)

		_, _, err := Init(Options{})
		assert.Equal(t, DefaultSettingsModule, os.Getenv(SettingsModuleEnv))

		// No backend/settings.yml relative to the test's working directory
		require.Error(t, err)
		assert.Contains(t, err.Error(), DefaultSettingsModule)
	})

	t.Run("preserves existing value", func(t *testing.T) {
		path := writeSettings(t, testSettings)
		t.Setenv(SettingsModuleEnv, path)

		_, _, err := Init(Options{Discover: func(*taskqueue.App, []string) error { return nil }})
		require.NoError(t, err)
		assert.Equal(t, path, os.Getenv(SettingsModuleEnv))
	})
}

func TestInit_Errors(t *testing.T) {
	t.Run("missing settings file", func(t *testing.T) {
		t.Setenv(SettingsModuleEnv, "/nonexistent/settings.yml")
		calls := 0

		_, _, err := Init(Options{Discover: func(*taskqueue.App, []string) error { calls++; return nil }})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "/nonexistent/settings.yml")
		assert.Zero(t, calls)
	})

	t.Run("discovery failure", func(t *testing.T) {
		t.Setenv(SettingsModuleEnv, writeSettings(t, testSettings))

		app, _, err := Init(Options{Discover: func(*taskqueue.App, []string) error { return errors.New("bad app") }})
		require.Error(t, err)
		assert.Nil(t, app)
		assert.Contains(t, err.Error(), "task autodiscovery failed")
	})
}

func init() {
	taskqueue.RegisterApp("bootstrap-test-app", func(r *taskqueue.Registry) error {
		return r.Register(taskqueue.Task{
			Name: "bootstrap.noop",
			Handler: taskqueue.HandlerFunc(func(ctx context.Context, args json.RawMessage) (any, error) {
				return nil, nil
			}),
		})
	})
}

func TestInit_DefaultDiscoveryRegistersInstalledApps(t *testing.T) {
	t.Setenv(SettingsModuleEnv, writeSettings(t, `version: "1.0"
installed_apps: [bootstrap-test-app]
`))

	app, _, err := Init(Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"bootstrap.noop"}, app.Registry.Names())
}
