package course

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/pot-code/enlingo/internal/infrastructure/driver"
	"github.com/pot-code/enlingo/internal/infrastructure/logging"
	"github.com/pot-code/enlingo/internal/infrastructure/uuid"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// errSuperseded a newer flow owns the tracker state
var errSuperseded = errors.New("flow superseded")

// Snapshot point in time view of the tracker
type Snapshot struct {
	CourseID    CourseID          `json:"course_id,omitempty"`
	Progression CourseProgression `json:"progression"`
	Status      Status            `json:"status"`
	FlowID      string            `json:"flow_id,omitempty"`
}

// Tracker owns the progression of the active course.
//
// Each course selection starts a flow, identified by a generation number.
// Results of a flow are dropped once a newer flow has started.
type Tracker struct {
	kv            KeyValueStore
	content       ContentRepository
	ids           uuid.Generator
	logger        *zap.Logger
	defaultCourse CourseID

	mu          sync.Mutex
	courseID    CourseID
	progression CourseProgression
	tree        *Curriculum
	status      Status
	generation  uint64
	flowID      string
	cancel      context.CancelFunc
	subscribers map[int]func(Snapshot)
	nextSub     int

	// serializes storage writes, held together with a generation check
	writeMu sync.Mutex
}

var _ ProgressionTracker = &Tracker{}

// NewTracker create an uninitialized tracker, defaultCourse is used by Restore
// when no course was ever saved, leave it empty to stay uninitialized
func NewTracker(
	kv KeyValueStore,
	content ContentRepository,
	ids uuid.Generator,
	logger *zap.Logger,
	defaultCourse CourseID,
) *Tracker {
	return &Tracker{
		kv:            kv,
		content:       content,
		ids:           ids,
		logger:        logger,
		defaultCourse: defaultCourse,
		status:        StatusNoCourse,
		subscribers:   make(map[int]func(Snapshot)),
	}
}

// flow one course selection, superseded once a newer flow begins
type flow struct {
	gen    uint64
	id     CourseID
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

// Initialize select course id and load its progression.
//
// It returns once the flow finished or was superseded. Storage and parse failures fall back to
// DefaultProgression, a failed curriculum fetch leaves the tracker in StatusLoadFailed.
func (t *Tracker) Initialize(ctx context.Context, id CourseID) error {
	apmSpan, ctx := apm.StartSpan(ctx, "Tracker.Initialize", "service")
	defer apmSpan.End()

	if !id.Supported() {
		return fmt.Errorf("initialize %q: %w", id, ErrUnsupportedCourse)
	}
	f := t.start(ctx, id)
	defer f.cancel()
	t.load(f)
	return nil
}

func (t *Tracker) start(ctx context.Context, id CourseID) *flow {
	gen, flowCtx, cancel, flowID := t.begin(ctx, id, StatusPending)
	logger := t.logger.With(zap.String("course.id", string(id)), zap.String("flow.id", flowID))
	return &flow{
		gen:    gen,
		id:     id,
		ctx:    logging.SetLoggerInContext(flowCtx, logger),
		cancel: cancel,
		logger: logger,
	}
}

func (t *Tracker) load(f *flow) {
	ctx, logger := f.ctx, f.logger

	if err := t.persistActiveCourse(ctx, f.gen); err != nil && !errors.Is(err, errSuperseded) {
		logger.Warn("failed to save active course", zap.Error(err))
	}
	tree, err := t.content.CurriculumTree(ctx, f.id)
	if err != nil {
		if t.fail(f.gen) {
			logger.Error("failed to load curriculum", zap.Error(err))
		} else {
			logger.Debug("discard stale curriculum failure", zap.Error(err))
		}
		return
	}

	p, reset := t.loadProgression(ctx, f.id, tree, logger)
	if !t.apply(f.gen, tree, p) {
		logger.Debug("discard stale initialize result")
		return
	}
	logger.Info("course initialized", zap.String("progression", EncodeProgression(p)))

	if reset {
		if err := t.persistProgression(ctx, f.gen); err != nil && !errors.Is(err, errSuperseded) {
			logger.Warn("failed to save default progression", zap.Error(err))
		}
	}
}

// loadProgression read the stored progression of id, reset tells whether the default should be saved
func (t *Tracker) loadProgression(ctx context.Context, id CourseID, tree *Curriculum, logger *zap.Logger) (p CourseProgression, reset bool) {
	raw, err := t.kv.Get(ctx, ProgressionKey(id))
	if errors.Is(err, driver.ErrKeyNotFound) {
		return DefaultProgression, true
	}
	if err != nil {
		// keep whatever is stored, the store may come back
		logger.Warn("failed to read progression, using default", zap.Error(err))
		return DefaultProgression, false
	}

	result := ParseProgression(raw, tree)
	switch result.Tag {
	case ParseOK:
		return result.Progression, false
	case ParseMalformed:
		logger.Warn("malformed progression, using default", zap.String("progression", raw), zap.Error(result.Err))
	default:
		logger.Warn("progression out of bounds, using default", zap.String("progression", raw))
	}
	return DefaultProgression, true
}

// begin start a new flow for id, the previous flow is cancelled
func (t *Tracker) begin(ctx context.Context, id CourseID, status Status) (uint64, context.Context, context.CancelFunc, string) {
	flowCtx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	t.generation++
	gen := t.generation
	flowID, err := t.ids.Generate()
	if err != nil {
		flowID = strconv.FormatUint(gen, 10)
	}
	t.cancel = cancel
	t.courseID = id
	t.flowID = flowID
	t.tree = nil
	t.progression = DefaultProgression
	t.status = status
	// switched while holding mu so the content cache follows the latest flow only
	if sw, ok := t.content.(CourseSwitcher); ok && id != "" {
		sw.SwitchCourse(id)
	}
	snap, subs := t.snapshotLocked(), t.subscribersLocked()
	t.mu.Unlock()

	t.notify(subs, snap)
	return gen, flowCtx, cancel, flowID
}

func (t *Tracker) apply(gen uint64, tree *Curriculum, p CourseProgression) bool {
	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return false
	}
	t.tree = tree
	t.progression = p
	t.status = StatusOK
	snap, subs := t.snapshotLocked(), t.subscribersLocked()
	t.mu.Unlock()

	t.notify(subs, snap)
	return true
}

func (t *Tracker) fail(gen uint64) bool {
	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return false
	}
	t.tree = nil
	t.status = StatusLoadFailed
	snap, subs := t.snapshotLocked(), t.subscribersLocked()
	t.mu.Unlock()

	t.notify(subs, snap)
	return true
}

func (t *Tracker) persistActiveCourse(ctx context.Context, gen uint64) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return errSuperseded
	}
	id := t.courseID
	t.mu.Unlock()

	return t.kv.Set(ctx, ActiveCourseKey, string(id))
}

// persistProgression save the current progression, as long as flow gen still owns it
func (t *Tracker) persistProgression(ctx context.Context, gen uint64) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return errSuperseded
	}
	id, p := t.courseID, t.progression
	t.mu.Unlock()

	if id == "" {
		return ErrNoActiveCourse
	}
	return t.kv.Set(ctx, ProgressionKey(id), EncodeProgression(p))
}

// Commit set and save p for the active course without validating it
func (t *Tracker) Commit(ctx context.Context, p CourseProgression) error {
	apmSpan, ctx := apm.StartSpan(ctx, "Tracker.Commit", "service")
	defer apmSpan.End()

	t.mu.Lock()
	if t.courseID == "" {
		t.mu.Unlock()
		return ErrNoActiveCourse
	}
	gen := t.generation
	t.progression = p
	snap, subs := t.snapshotLocked(), t.subscribersLocked()
	t.mu.Unlock()

	t.notify(subs, snap)
	return t.savedOrSuperseded(t.persistProgression(ctx, gen))
}

func (t *Tracker) savedOrSuperseded(err error) error {
	if errors.Is(err, errSuperseded) {
		return nil
	}
	return err
}

// Snapshot current course, progression and status
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	return Snapshot{
		CourseID:    t.courseID,
		Progression: t.progression,
		Status:      t.status,
		FlowID:      t.flowID,
	}
}

// SetActiveCourse switch to id and load it in the background, the returned snapshot is pending.
// Selecting the course that is already loaded changes nothing.
func (t *Tracker) SetActiveCourse(ctx context.Context, id CourseID) (Snapshot, error) {
	if !id.Supported() {
		return t.Snapshot(), fmt.Errorf("set active course %q: %w", id, ErrUnsupportedCourse)
	}

	t.mu.Lock()
	if t.courseID == id && t.status == StatusOK {
		snap := t.snapshotLocked()
		t.mu.Unlock()
		return snap, nil
	}
	t.mu.Unlock()

	// the flow outlives the request
	f := t.start(context.Background(), id)
	snap := t.Snapshot()
	go func() {
		defer f.cancel()
		t.load(f)
	}()
	return snap, nil
}

// ClearCourse drop the course selection, pending flows are cancelled
func (t *Tracker) ClearCourse(ctx context.Context) error {
	apmSpan, ctx := apm.StartSpan(ctx, "Tracker.ClearCourse", "service")
	defer apmSpan.End()

	gen, flowCtx, cancel, _ := t.begin(ctx, "", StatusNoCourse)
	defer cancel()
	return t.savedOrSuperseded(t.persistActiveCourse(flowCtx, gen))
}

// Reload run Initialize again for the active course
func (t *Tracker) Reload(ctx context.Context) error {
	t.mu.Lock()
	id := t.courseID
	t.mu.Unlock()

	if id == "" {
		return ErrNoActiveCourse
	}
	return t.Initialize(ctx, id)
}

// Restore select the saved course at startup.
//
// When nothing was saved the default course is used, an explicitly cleared selection is kept.
// A failed read leaves the tracker uninitialized so the saved selection is not overwritten.
func (t *Tracker) Restore(ctx context.Context) error {
	apmSpan, ctx := apm.StartSpan(ctx, "Tracker.Restore", "service")
	defer apmSpan.End()

	raw, err := t.kv.Get(ctx, ActiveCourseKey)
	switch {
	case errors.Is(err, driver.ErrKeyNotFound):
		raw = string(t.defaultCourse)
	case err != nil:
		t.logger.Warn("failed to read active course", zap.Error(err))
		return nil
	}
	if raw == "" {
		return nil
	}

	id, err := ParseCourseID(raw)
	if err != nil {
		t.logger.Warn("ignore saved course", zap.String("course.id", raw), zap.Error(err))
		return nil
	}
	return t.Initialize(ctx, id)
}

// treeLocked returns the loaded curriculum, or the status explaining why there is none
func (t *Tracker) treeLocked() (*Curriculum, Status) {
	switch {
	case t.courseID == "":
		return nil, StatusNoCourse
	case t.status == StatusLoadFailed:
		return nil, StatusLoadFailed
	case t.tree == nil:
		return nil, StatusPending
	}
	return t.tree, StatusOK
}

// ValidateProgression check p against the loaded curriculum
func (t *Tracker) ValidateProgression(p CourseProgression) Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	tree, status := t.treeLocked()
	if status != StatusOK {
		return status
	}
	return Validate(p, tree)
}

// AdvanceProgression move to the next exercise and save it.
//
// Nothing changes unless the returned status is StatusOK, the error reports a failed save.
func (t *Tracker) AdvanceProgression(ctx context.Context) (CourseProgression, Status, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "Tracker.AdvanceProgression", "service")
	defer apmSpan.End()

	t.mu.Lock()
	tree, status := t.treeLocked()
	if status != StatusOK {
		p := t.progression
		t.mu.Unlock()
		return p, status, nil
	}
	next, status := Advance(t.progression, tree)
	if status != StatusOK {
		t.mu.Unlock()
		return next, status, nil
	}
	gen := t.generation
	t.progression = next
	snap, subs := t.snapshotLocked(), t.subscribersLocked()
	t.mu.Unlock()

	t.notify(subs, snap)
	return next, StatusOK, t.savedOrSuperseded(t.persistProgression(ctx, gen))
}

// Navigate jump to p, which must exist in the loaded curriculum
func (t *Tracker) Navigate(ctx context.Context, p CourseProgression) (Status, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "Tracker.Navigate", "service")
	defer apmSpan.End()

	t.mu.Lock()
	tree, status := t.treeLocked()
	if status == StatusOK {
		status = Validate(p, tree)
	}
	if status != StatusOK {
		t.mu.Unlock()
		return status, nil
	}
	gen := t.generation
	t.progression = p
	snap, subs := t.snapshotLocked(), t.subscribersLocked()
	t.mu.Unlock()

	t.notify(subs, snap)
	return StatusOK, t.savedOrSuperseded(t.persistProgression(ctx, gen))
}

// ResolveCurrentExerciseID exercise id at the current progression
func (t *Tracker) ResolveCurrentExerciseID() (ExerciseID, Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tree, status := t.treeLocked()
	if status != StatusOK {
		return 0, status
	}
	return ResolveExerciseID(t.progression, tree)
}

// IsCompleted reports whether p comes before the current progression
func (t *Tracker) IsCompleted(p CourseProgression) (bool, Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, status := t.treeLocked(); status != StatusOK {
		return false, status
	}
	return Compare(p, t.progression) == Before, StatusOK
}

// Subscribe call fn after every state change until cancel is called.
// fn runs outside the tracker lock and must not block.
func (t *Tracker) Subscribe(fn func(Snapshot)) (cancel func()) {
	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subscribers[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.subscribers, id)
		t.mu.Unlock()
	}
}

func (t *Tracker) subscribersLocked() []func(Snapshot) {
	subs := make([]func(Snapshot), 0, len(t.subscribers))
	for _, fn := range t.subscribers {
		subs = append(subs, fn)
	}
	return subs
}

func (t *Tracker) notify(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}
