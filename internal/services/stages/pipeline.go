// Package stages runs multi-transaction user flows as an ordered list of
// named stages with observable per-stage and aggregate status.
package stages

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/archon-research/stl-market/internal/domain/entity"
	"github.com/archon-research/stl-market/internal/ports/outbound"
)

// tracerName is the instrumentation name for flow spans.
const tracerName = "github.com/archon-research/stl-market/internal/services/stages"

// Status of a stage or of a whole pipeline.
type Status string

const (
	StatusDefault Status = "default"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Stage is one named step. Action usually wraps a single market operation.
type Stage struct {
	Title       string
	Description string
	Action      func(ctx context.Context) error
}

// StageState is the observable state of a stage.
type StageState struct {
	Title       string
	Description string
	Status      Status
	Err         error
}

// Config holds configuration for a pipeline.
type Config struct {
	// Name labels the flow in logs and events ("sell", "buy", ...).
	Name string

	// Sink receives every transition (optional). Publish failures are logged
	// and do not affect the flow.
	Sink outbound.EventSink

	// OnChange is called synchronously on every transition (optional).
	OnChange func(event outbound.StageEvent)

	// Logger is the structured logger.
	Logger *slog.Logger
}

// Pipeline executes its stages strictly in order and halts on the first
// error. Stages after a failed one stay in StatusDefault. Every Initiate
// starts again from the first stage; a second Initiate while one is in
// progress fails with entity.ErrPipelineRunning.
type Pipeline struct {
	mu      sync.Mutex
	id      string
	config  Config
	stages  []Stage
	states  []StageState
	status  Status
	err     error
	running bool
	logger  *slog.Logger
}

// New creates a pipeline over stages.
func New(config Config, stages []Stage) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("at least one stage is required")
	}
	for i, s := range stages {
		if s.Action == nil {
			return nil, fmt.Errorf("stage %d (%s) has no action", i, s.Title)
		}
	}
	if config.Name == "" {
		config.Name = "flow"
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	id := uuid.NewString()
	p := &Pipeline{
		id:     id,
		config: config,
		stages: append([]Stage(nil), stages...),
		status: StatusDefault,
		logger: config.Logger.With("component", "stages", "flow", config.Name, "flow_id", id),
	}
	p.states = p.initialStates()
	return p, nil
}

// ID identifies this pipeline instance in events.
func (p *Pipeline) ID() string { return p.id }

// Name returns the flow name.
func (p *Pipeline) Name() string { return p.config.Name }

// Stages returns a snapshot of every stage's state.
func (p *Pipeline) Stages() []StageState {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]StageState, len(p.states))
	copy(out, p.states)
	return out
}

// Status returns the aggregate status.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Err returns the first error of the last run, or nil.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Initiate runs every stage from the first one. It returns the failing
// stage's error, which is also available from Err.
func (p *Pipeline) Initiate(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return entity.ErrPipelineRunning
	}
	p.running = true
	p.states = p.initialStates()
	p.status = StatusLoading
	p.err = nil
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "stages."+p.config.Name,
		trace.WithAttributes(
			attribute.String("flow.id", p.id),
			attribute.Int("flow.stages", len(p.stages)),
		),
	)
	defer span.End()

	p.logger.Info("flow started", "stages", len(p.stages))
	p.emit(ctx, -1, p.config.Name, StatusLoading, nil)

	for i, stage := range p.stages {
		p.transition(ctx, i, StatusLoading, nil)

		if err := p.runStage(ctx, i, stage); err != nil {
			p.transition(ctx, i, StatusError, err)
			p.finish(ctx, StatusError, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "stage "+stage.Title+" failed")
			p.logger.Warn("flow halted", "stage", stage.Title, "error", err)
			return err
		}

		p.transition(ctx, i, StatusSuccess, nil)
	}

	p.finish(ctx, StatusSuccess, nil)
	p.logger.Info("flow completed")
	return nil
}

func (p *Pipeline) runStage(ctx context.Context, index int, stage Stage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "stages.stage",
		trace.WithAttributes(
			attribute.Int("stage.index", index),
			attribute.String("stage.title", stage.Title),
		),
	)
	defer span.End()

	err := stage.Action(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *Pipeline) initialStates() []StageState {
	states := make([]StageState, len(p.stages))
	for i, s := range p.stages {
		states[i] = StageState{Title: s.Title, Description: s.Description, Status: StatusDefault}
	}
	return states
}

func (p *Pipeline) transition(ctx context.Context, index int, status Status, err error) {
	p.mu.Lock()
	p.states[index].Status = status
	p.states[index].Err = err
	title := p.states[index].Title
	p.mu.Unlock()

	p.logger.Debug("stage transition", "stage", title, "status", status)
	p.emit(ctx, index, title, status, err)
}

func (p *Pipeline) finish(ctx context.Context, status Status, err error) {
	p.mu.Lock()
	p.status = status
	p.err = err
	p.mu.Unlock()

	p.emit(ctx, -1, p.config.Name, status, err)
}

func (p *Pipeline) emit(ctx context.Context, index int, title string, status Status, err error) {
	if p.config.Sink == nil && p.config.OnChange == nil {
		return
	}
	event := outbound.StageEvent{
		FlowID: p.id,
		Flow:   p.config.Name,
		Index:  index,
		Title:  title,
		Status: string(status),
		At:     time.Now().UTC(),
	}
	if err != nil {
		event.Error = err.Error()
	}

	if p.config.OnChange != nil {
		p.config.OnChange(event)
	}
	if p.config.Sink != nil {
		// A cancelled flow still reports how it ended.
		if pubErr := p.config.Sink.Publish(context.WithoutCancel(ctx), event); pubErr != nil {
			p.logger.Warn("failed to publish stage event", "error", pubErr, "stage", title)
		}
	}
}
