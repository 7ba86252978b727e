// Package taskqueue binds an application to a Redis message broker and a
// Redis result backend, and holds the registry of task handlers that the
// worker executes.
//
// # Overview
//
// An App is a named handle with two connection strings: the broker URL the
// producer pushes task messages to, and the result-backend URL the worker
// writes task outcomes to. Both are conventionally the same Redis server
// distinguished by logical database index:
//
//	app := taskqueue.NewApp("backend")
//	app.Conf.BrokerURL = "redis://redis:6379/0"
//	app.Conf.ResultBackend = "redis://redis:6379/1"
//	if err := app.AutodiscoverTasks([]string{"core", "notifications"}); err != nil {
//		log.Fatal(err)
//	}
//
// # Autodiscovery
//
// Task packages register their handlers from init() with RegisterApp, keyed
// by an installed-app label. AutodiscoverTasks walks the installed-apps list
// and lets each registered app add its tasks to the App's Registry. Labels
// without tasks are skipped.
//
// # Execution
//
// Sending, delayed delivery, retries and result states are handled by
// machinery's Redis broker and Redis result backend. Each registered task is
// exposed to machinery as a function taking and returning one JSON string,
// so handlers only deal in json.RawMessage. Retries use the task's
// MaxRetries. Each retry waits the next Fibonacci number of seconds above the
// previous wait, starting from RetryDelay.
//
// # Redis Schema
//
// Broker keys are namespaced by application name:
//
// Queues: {app}:queue:{queue} (list of task signatures)
// Delayed tasks: {app}:delayed-tasks (sorted set scored by ETA)
//
// Results live in the result-backend database under the task id, and expire
// after Conf.ResultExpires.
package taskqueue
