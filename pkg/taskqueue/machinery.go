package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/RichardKnop/machinery/v2"
	redisbroker "github.com/RichardKnop/machinery/v2/brokers/redis"
	"github.com/RichardKnop/machinery/v2/config"
	eagerlock "github.com/RichardKnop/machinery/v2/locks/eager"
	machinerylog "github.com/RichardKnop/machinery/v2/log"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultPollTimeout is how long a worker blocks on an empty queue.
	DefaultPollTimeout = time.Second

	// delayedTasksPollPeriod is how often workers move due tasks from the
	// delayed set onto their queues.
	delayedTasksPollPeriod = 200 * time.Millisecond
)

// machineryConfig builds the machinery configuration for this app.
func (a *App) machineryConfig(pollTimeout time.Duration) *config.Config {
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}

	expires := a.Conf.ResultExpires
	if expires <= 0 {
		expires = DefaultResultExpires
	}

	return &config.Config{
		DefaultQueue:    QueueKey(a.Name, a.defaultQueue()),
		ResultsExpireIn: int(expires / time.Second),
		NoUnixSignals:   true,
		Redis: &config.RedisConfig{
			NormalTasksPollPeriod:  int(pollTimeout / time.Millisecond),
			DelayedTasksPollPeriod: int(delayedTasksPollPeriod / time.Millisecond),
			DelayedTasksKey:        DelayedTasksKey(a.Name),
		},
	}
}

// machineryAddr renders parsed Redis options as a machinery address,
// which carries the password as "password@host:port".
func machineryAddr(opts *redis.Options) []string {
	if opts.Password != "" {
		return []string{opts.Password + "@" + opts.Addr}
	}
	return []string{opts.Addr}
}

// newServer creates a machinery server with its own broker connection.
// Every server shares the app's result backend.
func (a *App) newServer(cnf *config.Config) *machinery.Server {
	broker := redisbroker.NewGR(cnf, machineryAddr(a.brokerOpts), a.brokerOpts.DB)
	return machinery.NewServer(cnf, broker, a.backend.results, eagerlock.New())
}

// taskFuncs returns a machinery task function for every registered task.
func (a *App) taskFuncs() map[string]interface{} {
	funcs := make(map[string]interface{})
	for _, name := range a.Registry.Names() {
		t, err := a.Registry.Lookup(name)
		if err != nil {
			continue
		}
		funcs[name] = taskFunc(t)
	}
	return funcs
}

// taskFunc adapts a task to the function shape machinery invokes: JSON
// arguments in, JSON result out. Panics in the handler are recovered by
// machinery and recorded as failures.
func taskFunc(t *Task) func(ctx context.Context, args string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		if limiter := t.Limiter(); limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		value, err := t.Handler.Run(ctx, json.RawMessage(args))
		if err != nil {
			return "", err
		}

		out, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("result is not JSON-serializable: %w", err)
		}
		return string(out), nil
	}
}

// SetLogger routes machinery's internal logging through logger.
// Machinery's info output is per-message chatter and is logged at debug.
func SetLogger(logger *slog.Logger) {
	logger = logger.With("component", "machinery")
	machinerylog.SetDebug(slogPrinter{logger, slog.LevelDebug})
	machinerylog.SetInfo(slogPrinter{logger, slog.LevelDebug})
	machinerylog.SetWarning(slogPrinter{logger, slog.LevelWarn})
	machinerylog.SetError(slogPrinter{logger, slog.LevelError})
	machinerylog.SetFatal(slogPrinter{logger, slog.LevelError})
}

// slogPrinter implements machinery's Print/Fatal/Panic logger interface
// on top of slog at a fixed level.
type slogPrinter struct {
	logger *slog.Logger
	level  slog.Level
}

func (p slogPrinter) log(msg string) {
	p.logger.Log(context.Background(), p.level, strings.TrimSpace(msg))
}

func (p slogPrinter) Print(v ...interface{})                 { p.log(fmt.Sprint(v...)) }
func (p slogPrinter) Printf(format string, v ...interface{}) { p.log(fmt.Sprintf(format, v...)) }
func (p slogPrinter) Println(v ...interface{})               { p.log(fmt.Sprintln(v...)) }

func (p slogPrinter) Fatal(v ...interface{}) {
	p.log(fmt.Sprint(v...))
	os.Exit(1)
}

func (p slogPrinter) Fatalf(format string, v ...interface{}) {
	p.log(fmt.Sprintf(format, v...))
	os.Exit(1)
}

func (p slogPrinter) Fatalln(v ...interface{}) {
	p.log(fmt.Sprintln(v...))
	os.Exit(1)
}

func (p slogPrinter) Panic(v ...interface{}) {
	msg := fmt.Sprint(v...)
	p.log(msg)
	panic(msg)
}

func (p slogPrinter) Panicf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	p.log(msg)
	panic(msg)
}

func (p slogPrinter) Panicln(v ...interface{}) {
	msg := fmt.Sprintln(v...)
	p.log(msg)
	panic(msg)
}
