package workflow_sync

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"quoteflow/common"
	"quoteflow/domain"

	"github.com/benbjohnson/clock"
	"github.com/segmentio/ksuid"
)

// TempIdPrefix marks ids of steps that only exist locally until the remote
// create returns. Server ids never carry it.
const TempIdPrefix = "temp_"

const defaultQueueSize = 64

func IsTempId(id string) bool {
	return strings.HasPrefix(id, TempIdPrefix)
}

func newTempId() string {
	return TempIdPrefix + ksuid.New().String()
}

// Session holds the workflow and steps of one quote and keeps them in sync
// with a RemoteStore. Mutations are applied locally first, then sent, then
// reconciled with the server's record or rolled back.
type Session struct {
	remote    RemoteStore
	user      domain.UserSession
	notifier  Notifier
	clock     clock.Clock
	queue     *TaskQueue
	debouncer *Debouncer
	debounce  time.Duration

	mu       sync.Mutex
	quoteId  int64
	workflow *domain.Workflow
	// steps is never mutated in place; every change installs a new slice so
	// captured snapshots stay valid.
	steps         []domain.WorkflowStep
	err           error
	currentStepId *string
	loading       bool
	// generation changes with the quote; reconciles from an older generation
	// are dropped.
	generation uint64
	edits      map[string]*pendingEdit
}

type Option func(*Session)

func WithNotifier(notifier Notifier) Option {
	return func(s *Session) { s.notifier = notifier }
}

func WithClock(clk clock.Clock) Option {
	return func(s *Session) { s.clock = clk }
}

func WithEditDebounce(delay time.Duration) Option {
	return func(s *Session) { s.debounce = delay }
}

func NewSession(remote RemoteStore, user domain.UserSession, opts ...Option) *Session {
	s := &Session{
		remote:   remote,
		user:     user,
		notifier: LogNotifier{},
		clock:    clock.New(),
		debounce: common.DefaultEditDebounce,
		steps:    []domain.WorkflowStep{},
		edits:    make(map[string]*pendingEdit),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.queue = NewTaskQueue(defaultQueueSize)
	s.debouncer = NewDebouncer(s.clock, s.debounce)
	return s
}

// SetQuote switches the session to another quote, clearing everything held
// for the previous one. Pending edits of the previous quote are still sent.
func (s *Session) SetQuote(quoteId int64) {
	s.mu.Lock()
	same := quoteId == s.quoteId
	s.mu.Unlock()
	if same {
		return
	}

	s.debouncer.Flush()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.quoteId = quoteId
	s.workflow = nil
	s.steps = []domain.WorkflowStep{}
	s.err = nil
	s.currentStepId = nil
	s.loading = false
	s.edits = make(map[string]*pendingEdit)
}

// Load fetches the quote's workflow, creating it when missing, and its steps.
// It returns nil without doing anything while another load is in flight.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return nil
	}
	if s.quoteId == 0 {
		s.mu.Unlock()
		return common.NewValidationError("quoteId", "no quote selected")
	}
	gen := s.generation
	quoteId := s.quoteId
	if !s.user.IsAuthenticated() {
		s.mu.Unlock()
		return s.fail(gen, "load workflow", common.ErrNotAuthenticated)
	}
	s.loading = true
	s.err = nil
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if gen == s.generation {
			s.loading = false
		}
		s.mu.Unlock()
	}()

	workflow, err := s.remote.GetWorkflowByQuoteId(ctx, s.user, quoteId)
	if err != nil {
		return s.fail(gen, "load workflow", err)
	}
	if workflow == nil {
		created, err := s.remote.CreateWorkflow(ctx, s.user, quoteId, domain.DefaultWorkflowName)
		if err != nil {
			return s.fail(gen, "create workflow", fmt.Errorf("%w for quote %d: %w", common.ErrWorkflowMissing, quoteId, err))
		}
		workflow = &created
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil
	}
	s.workflow = workflow
	s.mu.Unlock()

	steps, err := s.remote.GetWorkflowSteps(ctx, s.user, workflow.Id)
	if err != nil {
		return s.fail(gen, "load steps", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.generation {
		s.steps = SortSteps(steps)
	}
	return nil
}

func (s *Session) Open(ctx context.Context, quoteId int64) error {
	s.SetQuote(quoteId)
	return s.Load(ctx)
}

// fail records err as the session error and notifies, unless the session has
// moved on to another quote since gen. err is returned either way.
func (s *Session) fail(gen uint64, op string, err error) error {
	s.mu.Lock()
	current := gen == s.generation
	if current {
		s.err = err
	}
	s.mu.Unlock()

	if current {
		s.notifier.NotifyError(op, err)
	}
	return err
}

// Flush sends pending debounced edits now and waits for all background calls
// to finish.
func (s *Session) Flush(ctx context.Context) error {
	s.debouncer.Flush()
	return s.queue.Drain(ctx)
}

// Close flushes and stops the background queue. The session must not be
// mutated afterwards.
func (s *Session) Close(ctx context.Context) error {
	s.debouncer.Flush()
	return s.queue.Stop(ctx)
}

func (s *Session) QuoteId() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quoteId
}

func (s *Session) Workflow() *domain.Workflow {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workflow == nil {
		return nil
	}
	workflow := *s.workflow
	return &workflow
}

func (s *Session) Steps() []domain.WorkflowStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.steps)
}

func (s *Session) Step(id string) (domain.WorkflowStep, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOfStep(s.steps, id)
	if idx < 0 {
		return domain.WorkflowStep{}, false
	}
	return s.steps[idx], true
}

// Layers is recomputed from the current steps on every call.
func (s *Session) Layers() []Layer {
	return GroupByLayer(s.Steps())
}

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Session) CurrentStepId() *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneString(s.currentStepId)
}

func indexOfStep(steps []domain.WorkflowStep, id string) int {
	return slices.IndexFunc(steps, func(step domain.WorkflowStep) bool { return step.Id == id })
}

// replaceStep returns a copy of steps with the step id swapped for
// replacement. steps is returned as is when id is absent.
func replaceStep(steps []domain.WorkflowStep, id string, replacement domain.WorkflowStep) []domain.WorkflowStep {
	idx := indexOfStep(steps, id)
	if idx < 0 {
		return steps
	}
	updated := slices.Clone(steps)
	updated[idx] = replacement
	return updated
}

func removeStep(steps []domain.WorkflowStep, id string) []domain.WorkflowStep {
	return slices.DeleteFunc(slices.Clone(steps), func(step domain.WorkflowStep) bool { return step.Id == id })
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
