package progress

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/dispatch"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/domain"
)

// taskBuffer holds every checkpoint plus the terminal event, so a task
// stream never drops events.
const taskBuffer = 16

// Runner executes one conversion. *dispatch.Dispatcher implements it.
type Runner interface {
	Run(ctx context.Context, id string, req domain.ConversionRequest, progress domain.ProgressSink, token dispatch.Token) *domain.ConversionResult
}

// Task is one submitted conversion: a stream of progress events closed
// after the terminal event, then exactly one result.
type Task struct {
	ID       string
	Request  domain.ConversionRequest
	events   chan domain.ProgressEvent
	done     chan struct{}
	result   *domain.ConversionResult
	lastSent int
}

// Events streams the checkpoint events of this task, ending with the
// terminal event at 100 percent. The channel is closed afterwards.
func (t *Task) Events() <-chan domain.ProgressEvent { return t.events }

// Done is closed once the result is available.
func (t *Task) Done() <-chan struct{} { return t.done }

// Result blocks until the conversion finished and returns its result.
func (t *Task) Result() *domain.ConversionResult {
	<-t.done
	return t.result
}

// Wait is Result bounded by ctx.
func (t *Task) Wait(ctx context.Context) (*domain.ConversionResult, error) {
	select {
	case <-t.done:
		return t.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ErrShuttingDown is returned by Submit after Shutdown started.
var ErrShuttingDown = errors.New("coordinator is shutting down")

// Coordinator submits conversions to a Runner, publishes their progress
// and routes cancellation requests to them.
type Coordinator struct {
	runner Runner
	bus    *Broadcaster
	reg    *Registry
	log    zerolog.Logger

	base     context.Context
	stopBase context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.Mutex
	closing bool
}

// NewCoordinator wires runner to bus. A nil bus gets a private one.
func NewCoordinator(runner Runner, bus *Broadcaster, log zerolog.Logger) *Coordinator {
	if bus == nil {
		bus = NewBroadcaster(0, log)
	}
	base, stop := context.WithCancel(context.Background())
	return &Coordinator{
		runner:   runner,
		bus:      bus,
		reg:      NewRegistry(),
		log:      log.With().Str("component", "coordinator").Logger(),
		base:     base,
		stopBase: stop,
	}
}

// Broadcaster returns the event bus shared by all tasks.
func (c *Coordinator) Broadcaster() *Broadcaster { return c.bus }

// Registry returns the cancellation registry.
func (c *Coordinator) Registry() *Registry { return c.reg }

// Submit starts req in the background. The id is minted and registered
// before any I/O happens. The task outlives ctx: a finished request
// context does not stop it, Cancel and Shutdown do.
func (c *Coordinator) Submit(ctx context.Context, req domain.ConversionRequest) (*Task, error) {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil, ErrShuttingDown
	}
	c.wg.Add(1)
	c.mu.Unlock()

	if req.Ext == "" {
		req.Ext = domain.DetectExt(req.Input)
	}
	task := &Task{
		ID:      uuid.NewString(),
		Request: req,
		events:  make(chan domain.ProgressEvent, taskBuffer),
		done:    make(chan struct{}),
	}

	runCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	unlink := context.AfterFunc(c.base, stop)
	token := c.reg.Register(task.ID, stop)

	c.log.Info().Str("conversion_id", task.ID).Str("input", req.Input).
		Bool("ai_mode", req.Flags.UseAIMode).Msg("conversion submitted")

	go func() {
		defer c.wg.Done()
		defer unlink()
		c.execute(runCtx, task, token)
	}()
	return task, nil
}

func (c *Coordinator) execute(ctx context.Context, task *Task, token *Token) {
	fileName := task.Request.FileName()
	sink := domain.ProgressFunc(func(stage domain.Stage, msg string) {
		c.emit(task, domain.ProgressEvent{
			ConversionID: task.ID,
			Percent:      stage.Percent(),
			Stage:        stage,
			Status:       domain.StatusProcessing,
			FileName:     fileName,
			Message:      msg,
			At:           time.Now(),
		})
	})

	res := c.runner.Run(ctx, task.ID, task.Request, sink, token)
	c.reg.Finish(task.ID)

	c.emit(task, domain.ProgressEvent{
		ConversionID: task.ID,
		Percent:      100,
		Stage:        TerminalStage(res.Status),
		Status:       res.Status,
		FileName:     fileName,
		Message:      res.Error,
		At:           time.Now(),
	})
	c.bus.Forget(task.ID)

	task.result = res
	close(task.events)
	close(task.done)
}

// emit publishes evt and appends it to the task stream.
func (c *Coordinator) emit(task *Task, evt domain.ProgressEvent) {
	if evt.Percent < task.lastSent {
		evt.Percent = task.lastSent
	}
	evt = c.bus.Publish(evt)
	task.lastSent = evt.Percent
	select {
	case task.events <- evt:
	default:
		c.log.Warn().Str("conversion_id", task.ID).Str("stage", string(evt.Stage)).Msg("task stream full, event dropped")
	}
}

// Cancel requests cooperative cancellation of id. It reports true iff id
// is a running conversion; calls after the terminal result report false.
func (c *Coordinator) Cancel(id string) bool {
	ok := c.reg.Cancel(id)
	c.log.Info().Str("conversion_id", id).Bool("running", ok).Msg("cancellation requested")
	return ok
}

// Active lists the running conversion ids.
func (c *Coordinator) Active() []string { return c.reg.Active() }

// Shutdown rejects new submissions, cancels running conversions including
// their in-flight calls, and waits for them until ctx ends.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()

	if n := c.reg.CancelAll(); n > 0 {
		c.log.Info().Int("running", n).Msg("cancelling running conversions")
	}
	c.stopBase()

	finished := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		c.bus.Close()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TerminalStage maps a terminal status to its stage label.
func TerminalStage(s domain.Status) domain.Stage {
	switch s {
	case domain.StatusCompleted:
		return domain.StageCompleted
	case domain.StatusCancelled:
		return domain.StageCancelled
	default:
		return domain.StageFailed
	}
}
