package trace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/runtrace/internal/ir"
)

// errorMarker is the output port a nested step uses to report failure.
const errorMarker = "$error"

// Observer rebuilds the Trace Log of one run from its event stream.
//
// All state is owned by the Observer; callers read it through Current().
// Every structural change to the log replaces the log slice and every
// completed entry is replaced by a copy, so snapshots returned earlier are
// never affected by later events.
type Observer struct {
	// replay is set only by FromRun.
	replay  bool
	started bool
	aborted bool

	graph  *ir.GraphDescriptor
	status Status
	log    []Entry
	cached *Snapshot

	currentStep *StepEntry

	// currentInput is the Seq of the pending input edge, tracked apart from
	// the current step because bubbled inputs surface from inside a step.
	currentInput int64

	// errorPath is the deepest nested path whose outputs carried an error.
	errorPath ir.Path

	edgeValues *EdgeValueStore
	activity   *NodeActivityTracker
	canRun     map[string]bool
	details    *RunDetails

	// lastTimestamp is the latest timestamp carried by an accepted event.
	// Signals recorded without one are stamped with it.
	lastTimestamp int64

	clock   Clock
	seq     sequence
	metrics Metrics
}

// Option configures an Observer.
type Option func(*Observer)

// WithClock sets the clock read by Abort. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(o *Observer) {
		o.clock = c
	}
}

// WithRunDetails seeds user steps with the inputs of a prior run.
func WithRunDetails(d *RunDetails) Option {
	return func(o *Observer) {
		o.details = d
	}
}

// WithMetrics sets the metrics sink. Default: no metrics.
func WithMetrics(m Metrics) Option {
	return func(o *Observer) {
		o.metrics = m
	}
}

// New creates an observer in the stopped state with no graph started.
func New(opts ...Option) *Observer {
	o := &Observer{
		status:     StatusStopped,
		edgeValues: NewEdgeValueStore(),
		activity:   NewNodeActivityTracker(),
		canRun:     map[string]bool{},
		clock:      SystemClock{},
		metrics:    noopMetrics{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetGraph records the static graph description. A replaying observer
// captures it from the top-level graphstart instead.
func (o *Observer) SetGraph(g *ir.GraphDescriptor) {
	o.graph = g
	o.invalidate()
}

// Current returns the current snapshot, or nil until a graph has started.
// The snapshot is cached until the next state change.
func (o *Observer) Current() *Snapshot {
	if !o.started {
		return nil
	}
	if o.cached == nil {
		o.cached = &Snapshot{
			Log:             o.log,
			CurrentStep:     o.currentStep,
			EdgeValues:      o.edgeValues,
			NodeInformation: NewNodeInformation(o.activity.items, o.canRun),
			Graph:           o.graph,
			Status:          o.status,
		}
	}
	return o.cached
}

// Status returns the current run status.
func (o *Observer) Status() Status {
	return o.status
}

// Handle applies one event. It returns an *IntegrationError when the event
// stream is wired incorrectly; run failures reported by the stream are
// recorded and never returned.
func (o *Observer) Handle(e ir.Event) error {
	if err := e.Validate(); err != nil {
		return o.reject(e, newInvalidEventError(e, err))
	}

	var err error
	switch e.Kind {
	case ir.KindGraphStart:
		err = o.graphStart(e)
	case ir.KindGraphEnd:
		o.graphEnd(e)
	case ir.KindNodeStart:
		err = o.nodeStart(e)
	case ir.KindNodeEnd:
		err = o.nodeEnd(e)
	case ir.KindInput:
		err = o.input(e)
	case ir.KindOutput:
		err = o.output(e)
	case ir.KindEdge:
		o.edge(e)
	case ir.KindError:
		o.runError(e)
	case ir.KindStart:
		o.setStatus(StatusRunning)
	case ir.KindPause:
		o.setStatus(StatusPaused)
	case ir.KindEnd:
		o.setStatus(StatusStopped)
	case ir.KindResume:
		o.resume(e)
	case ir.KindAbort:
		o.abortAt(o.timestamp(e))
	}
	if err != nil {
		return o.reject(e, err)
	}

	o.lastTimestamp = max(o.lastTimestamp, e.Timestamp)
	o.metrics.EventHandled(e.Kind)
	return nil
}

func (o *Observer) reject(e ir.Event, err error) error {
	var ie *IntegrationError
	if errors.As(err, &ie) {
		o.metrics.EventRejected(e.Kind, ie.Code)
	}
	slog.Warn("event rejected",
		"kind", e.Kind,
		"path", e.Path.ID(),
		"error", err,
	)
	return err
}

// Run consumes events until the stream closes, an event is rejected, or ctx
// is cancelled. Cancellation aborts the run.
func (o *Observer) Run(ctx context.Context, events <-chan ir.Event) error {
	for {
		select {
		case <-ctx.Done():
			slog.Info("observer stopping: context cancelled")
			o.Abort()
			return ctx.Err()

		case e, ok := <-events:
			if !ok {
				slog.Debug("observer stopping: stream closed")
				return nil
			}
			if err := o.Handle(e); err != nil {
				return err
			}
		}
	}
}

// StartWith applies a recorded prefix of a run, e.g. to continue a run that
// was interrupted.
func (o *Observer) StartWith(events []ir.Event) error {
	for i, e := range events {
		if err := o.Handle(e); err != nil {
			return fmt.Errorf("start with event %d: %w", i, err)
		}
	}
	return nil
}

// Abort stops the run at the current clock time. Any pending input is
// finalized with an empty payload, the open step is closed, and a
// zero-duration "Activity stopped" step is appended.
//
// Abort is idempotent and a no-op before a graph has started.
func (o *Observer) Abort() {
	o.abortAt(o.clock.Now())
}

func (o *Observer) abortAt(ts int64) {
	if !o.started || o.aborted {
		return
	}
	o.aborted = true
	o.status = StatusStopped
	o.metrics.RunStopped("abort")
	slog.Debug("run aborted", "at", ts)

	o.cleanUpPendingInput(ir.Object{}, ts)
	if o.currentStep == nil {
		o.invalidate()
		return
	}
	o.updateStep(o.currentStep.withEnd(ts))
	o.currentStep = nil

	end := ts
	stopped := &StepEntry{
		seq: o.seq.next(),
		ID:  StepTypeEnd,
		Descriptor: ir.NodeDescriptor{
			ID:       StepTypeEnd,
			Type:     StepTypeEnd,
			Metadata: &ir.NodeMetadata{Title: ActivityStoppedTitle},
		},
		Start:    ts,
		End:      &end,
		Activity: []ActivityItem{},
	}
	o.setLog(appendEntries(o.log, stopped))
}

// UpdateAffected prepares the trace for re-running the given steps. From
// the first affected step in the log onward, edge values leaving each step
// and its nested activity are dropped; steps after it also lose their
// can-run state. The first affected step becomes the current step.
func (o *Observer) UpdateAffected(stepIDs []string) {
	if !o.started || len(stepIDs) == 0 {
		return
	}
	affected := make(map[string]bool, len(stepIDs))
	for _, id := range stepIDs {
		affected[id] = true
	}

	var stop *StepEntry
	for _, e := range o.log {
		step, ok := e.(*StepEntry)
		if !ok || step.Hidden {
			continue
		}
		switch step.Descriptor.Type {
		case StepTypeUser, StepTypeEnd:
			continue
		}
		id := step.Descriptor.ID
		if stop == nil {
			if affected[id] {
				stop = step
				o.edgeValues = o.edgeValues.without(id)
				o.activity = o.activity.Without(id)
			}
			continue
		}
		o.edgeValues = o.edgeValues.without(id)
		o.activity = o.activity.Without(id)
		delete(o.canRun, id)
	}

	if stop != nil {
		slog.Debug("trace rewound", "step", stop.Descriptor.ID)
		o.currentStep = stop
		o.invalidate()
	}
}

func (o *Observer) graphStart(e ir.Event) error {
	if n := len(e.Path); n > 0 {
		// Only a graph invoked directly from a top-level step's child is
		// folded; the graph run by the top-level step itself (n == 1) and
		// anything deeper leave no trace.
		if n == 2 {
			o.foldGraph(e)
		}
		return nil
	}
	if o.started {
		return newGraphAlreadyStartedError(e)
	}
	if o.replay {
		o.graph = e.Graph
	}
	o.started = true
	o.setLog([]Entry{})
	return nil
}

// foldGraph replaces the current step's most recent activity item with one
// "graph" item carrying the nested run path.
func (o *Observer) foldGraph(e ir.Event) {
	if o.currentStep == nil {
		return
	}
	step := o.currentStep.clone()
	item := ActivityItem{
		Kind:        ActivityGraph,
		Path:        e.Path.Clone(),
		Description: "Graph started",
		RunPath:     e.Path.Clone(),
	}
	if n := len(step.Activity); n > 0 {
		last := step.Activity[n-1]
		step.Activity = step.Activity[:n-1]
		if last.Description != "" {
			item.Description = last.Description
		}
		item.Path = last.Path
	}
	step.Activity = append(step.Activity, item)
	o.updateActivity(step)
}

func (o *Observer) graphEnd(e ir.Event) {
	if len(e.Path) > 0 {
		return
	}
	o.currentStep = nil
	o.invalidate()
}

func (o *Observer) nodeStart(e ir.Event) error {
	if n := len(e.Path); n > 1 {
		if n == 2 && o.currentStep != nil {
			step := o.currentStep.clone()
			step.Activity = append(step.Activity, ActivityItem{
				Kind:        activityKindOf(e.Node.Type),
				Path:        e.Path.Clone(),
				Description: e.Node.Title(),
			})
			o.updateActivity(step)
		}
		return nil
	}
	if !o.started {
		return newNoGraphError(e)
	}

	o.canRun[e.Node.ID] = true

	switch e.Node.Type {
	case "input":
		// The input event that follows opens the user step.
		o.invalidate()
	case "output":
		o.setLog(PlaceOutput(o.log, o.newEdge()))
	default:
		step := o.newStep(e)
		o.currentStep = step
		o.setLog(appendEntries(o.log, step, o.newEdge()))
	}
	return nil
}

func (o *Observer) nodeEnd(e ir.Event) error {
	if len(e.Path) > 1 {
		if e.Outputs.Has(errorMarker) {
			o.storeErrorPath(e.Path)
		}
		return nil
	}
	if !o.started {
		return newNoGraphError(e)
	}

	if len(e.Opportunities) > 0 {
		o.edgeValues = o.edgeValues.RecordAll(e.Opportunities, e.Outputs)
		o.invalidate()
	}
	if e.Node.Type == "output" {
		return nil
	}

	if o.currentStep != nil {
		o.updateStep(o.currentStep.withEnd(e.Timestamp))
	}
	o.currentStep = nil
	o.invalidate()
	return nil
}

func (o *Observer) input(e ir.Event) error {
	if !o.started {
		return newNoGraphError(e)
	}
	schema, _ := e.Inputs.Get("schema").(ir.Object)
	edge := &EdgeEntry{
		seq:     o.seq.next(),
		ID:      e.Path.ID(),
		Schema:  schema,
		Bubbled: e.Bubbled,
	}
	o.currentInput = edge.seq

	if e.Bubbled {
		o.setLog(PlaceInput(o.log, edge))
		return nil
	}

	user := o.newStep(e)
	user.Descriptor.Type = StepTypeUser
	if prev, ok := o.details.LastInput(e.Node.ID); ok {
		user.Previous = prev
	}
	o.currentStep = user
	o.setLog(PlaceInput(appendEntries(o.log, user), edge))
	return nil
}

func (o *Observer) output(e ir.Event) error {
	if !o.started {
		return newNoGraphError(e)
	}
	schema := e.Node.Schema()

	if e.Bubbled {
		edge := (&EdgeEntry{seq: o.seq.next(), Bubbled: true}).completed(e.Timestamp, schema, e.Outputs)
		o.setLog(PlaceOutput(o.log, edge))
		return nil
	}

	i := findLast(o.log, EntryEdge)
	if i < 0 || !isEmptyEdge(o.log[i]) {
		slog.Debug("ignoring output without placeholder", "path", e.Path.ID())
		return nil
	}
	edge := o.log[i].(*EdgeEntry)
	o.setLog(replaceAt(o.log, i, edge.completed(e.Timestamp, schema, e.Outputs)))
	step := o.newStep(e)
	o.currentStep = step
	o.setLog(appendEntries(o.log, step))
	return nil
}

func (o *Observer) edge(e ir.Event) {
	if len(e.To) > 1 {
		slog.Debug("ignoring nested edge", "to", e.To.ID())
		return
	}
	o.edgeValues = o.edgeValues.Record(*e.Edge, e.Value)
	o.invalidate()
}

func (o *Observer) runError(e ir.Event) {
	o.status = StatusStopped
	o.metrics.RunStopped("error")
	if !o.started {
		o.invalidate()
		return
	}

	path := ir.Path{}
	if len(o.errorPath) > 1 {
		path = o.errorPath.Clone()
		if i := o.lastVisibleStep(); i >= 0 {
			step := o.log[i].(*StepEntry).clone()
			step.Activity = append(step.Activity, ActivityItem{
				Kind:        ActivityError,
				Path:        path.Clone(),
				Description: FormatError(*e.Error),
			})
			o.updateActivity(step)
		}
	}

	slog.Debug("run error recorded", "message", e.Error.Message, "path", path.ID())
	o.currentStep = nil
	o.setLog(appendEntries(o.log, &ErrorEntry{
		seq:   o.seq.next(),
		Error: *e.Error,
		Path:  path,
	}))
}

func (o *Observer) resume(e ir.Event) {
	o.setStatus(StatusRunning)
	inputs := e.Inputs
	if inputs == nil {
		inputs = ir.Object{}
	}
	o.cleanUpPendingInput(inputs, o.timestamp(e))
}

// cleanUpPendingInput completes the pending input edge, if any, with inputs.
func (o *Observer) cleanUpPendingInput(inputs ir.Object, ts int64) {
	seq := o.currentInput
	o.currentInput = 0
	i := indexOf(o.log, seq)
	if i < 0 {
		return
	}
	if edge, ok := o.log[i].(*EdgeEntry); ok {
		o.setLog(replaceAt(o.log, i, edge.completed(ts, nil, inputs)))
	}
}

// storeErrorPath keeps the deepest failing path seen so far.
func (o *Observer) storeErrorPath(path ir.Path) {
	if len(o.errorPath) > len(path) {
		return
	}
	o.errorPath = path.Clone()
}

func (o *Observer) newStep(e ir.Event) *StepEntry {
	step := &StepEntry{
		seq:        o.seq.next(),
		ID:         e.Path.ID(),
		Descriptor: e.Node.Clone(),
		Start:      e.Timestamp,
		Activity:   []ActivityItem{},
	}
	switch e.Node.Type {
	case "input":
		step.Inputs = e.Inputs
		step.Bubbled = e.Bubbled
	case "output":
		step.Inputs = e.Outputs
		end := e.Timestamp
		step.End = &end
		step.Bubbled = e.Bubbled
	}
	return step
}

func (o *Observer) newEdge() *EdgeEntry {
	return &EdgeEntry{seq: o.seq.next()}
}

func (o *Observer) lastVisibleStep() int {
	for i := len(o.log) - 1; i >= 0; i-- {
		if step, ok := o.log[i].(*StepEntry); ok && !step.Hidden {
			return i
		}
	}
	return -1
}

// updateStep swaps step into the log (matched by Seq) and into the current
// step pointer.
func (o *Observer) updateStep(step *StepEntry) {
	if o.currentStep != nil && o.currentStep.seq == step.seq {
		o.currentStep = step
	}
	if i := indexOf(o.log, step.seq); i >= 0 {
		o.setLog(replaceAt(o.log, i, step))
		return
	}
	o.invalidate()
}

func (o *Observer) updateActivity(step *StepEntry) {
	o.updateStep(step)
	o.activity = o.activity.With(step.Descriptor.ID, step.Activity)
	o.invalidate()
}

func (o *Observer) setLog(log []Entry) {
	o.log = log
	o.metrics.LogChanged(len(log))
	o.invalidate()
}

func (o *Observer) setStatus(s Status) {
	o.status = s
	o.invalidate()
}

func (o *Observer) invalidate() {
	o.cached = nil
}

// timestamp returns the event's timestamp, or the latest timestamp seen
// when the event carries none. The clock is never read here, so replaying
// a recording always yields the same trace.
func (o *Observer) timestamp(e ir.Event) int64 {
	if e.Timestamp != 0 {
		return e.Timestamp
	}
	return o.lastTimestamp
}
