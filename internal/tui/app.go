package tui

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/playground/internal/event"
)

// forwardQueueSize bounds the events buffered ahead of a busy program.
const forwardQueueSize = 256

// Topics returns the bus topics the dashboard renders.
func Topics() []string {
	return []string{
		event.TopicSourceLoaded,
		event.TopicValidationRequested,
		event.TopicValidationApplied,
		event.TopicValidationDiscarded,
		event.TopicRuntimeChanged,
		event.TopicTitleChanged,
		event.TopicCSPUpdated,
		event.TopicFormatCompleted,
		event.TopicAffordanceChanged,
		event.TopicNotification,
		event.TopicLoadingStarted,
		event.TopicLoadingFinished,
	}
}

// Forwarder relays bus events to a program in publish order. Publishers only
// wait on a full queue, never on the program itself, so events published
// before the program runs are delivered once it does.
type Forwarder struct {
	bus   *event.Bus
	ids   []string
	queue chan tea.Msg
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

// Forward subscribes to the dashboard topics on bus and delivers each event
// to send as an EventMsg. Call Stop to unsubscribe.
func Forward(bus *event.Bus, send func(tea.Msg)) *Forwarder {
	f := &Forwarder{
		bus:   bus,
		queue: make(chan tea.Msg, forwardQueueSize),
		done:  make(chan struct{}),
	}
	f.ids = bus.SubscribeMany(Topics(), func(e event.Event) {
		select {
		case f.queue <- EventMsg{Event: e}:
		case <-f.done:
		}
	})

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for {
			select {
			case msg := <-f.queue:
				send(msg)
			case <-f.done:
				return
			}
		}
	}()
	return f
}

// Stop unsubscribes and discards undelivered events. Safe to call twice.
func (f *Forwarder) Stop() {
	f.once.Do(func() {
		for _, id := range f.ids {
			f.bus.Unsubscribe(id)
		}
		close(f.done)
	})
	f.wg.Wait()
}

// App wraps the Bubbletea program
type App struct {
	program   *tea.Program
	forwarder *Forwarder
}

// NewApp creates the dashboard program and starts forwarding bus events to
// it. Subscribe before the orchestrator starts so no event is missed.
func NewApp(bus *event.Bus, model Model) *App {
	program := tea.NewProgram(model, tea.WithAltScreen())
	return &App{
		program:   program,
		forwarder: Forward(bus, program.Send),
	}
}

// Run shows the dashboard until the user quits or the process is signaled.
func (a *App) Run() error {
	defer a.forwarder.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		if _, ok := <-sigChan; ok {
			a.program.Quit()
		}
	}()

	_, err := a.program.Run()

	signal.Stop(sigChan)
	close(sigChan)
	return err
}
