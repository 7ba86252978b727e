package taskqueue

import (
	"fmt"
	"sort"
	"sync"
)

// AppTasksFunc adds an installed app's tasks to a registry.
type AppTasksFunc func(r *Registry) error

var (
	catalogueMu sync.RWMutex
	catalogue   = make(map[string]AppTasksFunc)
)

// RegisterApp makes an app's tasks discoverable under label.
// It is meant to be called from the init function of the package that
// defines the tasks. Panics if fn is nil or label is registered twice.
func RegisterApp(label string, fn AppTasksFunc) {
	catalogueMu.Lock()
	defer catalogueMu.Unlock()

	if fn == nil {
		panic("taskqueue: RegisterApp tasks func is nil")
	}
	if _, dup := catalogue[label]; dup {
		panic("taskqueue: RegisterApp called twice for app " + label)
	}
	catalogue[label] = fn
}

// RegisteredApps returns the labels of all discoverable apps, sorted.
func RegisteredApps() []string {
	catalogueMu.RLock()
	defer catalogueMu.RUnlock()

	labels := make([]string, 0, len(catalogue))
	for label := range catalogue {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func lookupApp(label string) (AppTasksFunc, bool) {
	catalogueMu.RLock()
	defer catalogueMu.RUnlock()

	fn, ok := catalogue[label]
	return fn, ok
}

// AutodiscoverTasks registers the tasks of every installed app with the App.
// Apps are visited in the given order. Labels that have no tasks are skipped.
//
// Discovery happens once per App; later calls return the first call's error.
func (a *App) AutodiscoverTasks(installedApps []string) error {
	a.discoverOnce.Do(func() {
		a.discoverErr = a.discover(installedApps)
	})
	return a.discoverErr
}

func (a *App) discover(installedApps []string) error {
	for _, label := range installedApps {
		fn, ok := lookupApp(label)
		if !ok {
			a.Logger.Debug("installed app has no tasks", "app", label)
			continue
		}

		before := len(a.Registry.Names())
		if err := fn(a.Registry); err != nil {
			return fmt.Errorf("failed to register tasks for app %s: %w", label, err)
		}

		a.Logger.Debug("discovered tasks", "app", label, "count", len(a.Registry.Names())-before)
	}

	a.Logger.Info("task autodiscovery complete", "app", a.Name, "tasks", len(a.Registry.Names()))
	return nil
}
