package content

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pot-code/enlingo/internal/course"
	"github.com/pot-code/enlingo/internal/infrastructure/validate"
)

// countingOrigin counts origin calls, release blocks every call until closed
type countingOrigin struct {
	treeCalls int32
	setCalls  int32
	release   chan struct{}
	started   chan struct{}

	mu      sync.Mutex
	treeErr error
	sets    map[course.ExerciseID]*course.ExerciseSet
}

func newCountingOrigin() *countingOrigin {
	return &countingOrigin{
		started: make(chan struct{}, 16),
		sets: map[course.ExerciseID]*course.ExerciseSet{
			1: {ID: 1, XP: 5, Difficulty: course.DifficultyEasy},
			2: {ID: 2, XP: 5, Difficulty: course.DifficultyHard},
			3: {ID: 3, XP: 5, Difficulty: "impossible"},
		},
	}
}

func (o *countingOrigin) CurriculumTree(ctx context.Context, id course.CourseID) (*course.Curriculum, error) {
	atomic.AddInt32(&o.treeCalls, 1)
	o.started <- struct{}{}
	if o.release != nil {
		<-o.release
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.treeErr != nil {
		return nil, o.treeErr
	}
	return &course.Curriculum{
		CourseID: id,
		Sections: []course.Section{{ID: 1, Chapters: []course.Chapter{{ID: 1, Lessons: []course.Lesson{
			{ID: 1, Exercises: []course.ExerciseID{1, 2}},
			{ID: 2, Exercises: []course.ExerciseID{2}},
		}}}}},
	}, nil
}

func (o *countingOrigin) ExerciseSet(ctx context.Context, id course.ExerciseID) (*course.ExerciseSet, error) {
	atomic.AddInt32(&o.setCalls, 1)
	o.mu.Lock()
	defer o.mu.Unlock()
	set, ok := o.sets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return set, nil
}

func newTestCache(origin course.ContentRepository, ttl time.Duration) *Cache {
	return NewCache(origin, ttl, validate.NewValidator())
}

func TestCacheServesTreeFromMemory(t *testing.T) {
	origin := newCountingOrigin()
	cache := newTestCache(origin, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := cache.CurriculumTree(ctx, course.English); err != nil {
			t.Fatalf("CurriculumTree: %v", err)
		}
	}
	if got := atomic.LoadInt32(&origin.treeCalls); got != 1 {
		t.Fatalf("origin calls: want=1 got=%d", got)
	}
}

func TestCacheSharesConcurrentFetch(t *testing.T) {
	origin := newCountingOrigin()
	origin.release = make(chan struct{})
	cache := newTestCache(origin, 0)

	var wg sync.WaitGroup
	trees := make([]*course.Curriculum, 5)
	for i := range trees {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tree, err := cache.CurriculumTree(context.Background(), course.English)
			if err != nil {
				t.Errorf("CurriculumTree: %v", err)
			}
			trees[i] = tree
		}(i)
	}
	<-origin.started
	time.Sleep(50 * time.Millisecond)
	close(origin.release)
	wg.Wait()

	if got := atomic.LoadInt32(&origin.treeCalls); got != 1 {
		t.Fatalf("origin calls: want=1 got=%d", got)
	}
	for i := range trees {
		if trees[i] != trees[0] {
			t.Fatalf("caller %d got a different tree", i)
		}
	}
}

func TestCacheDoesNotKeepFailures(t *testing.T) {
	origin := newCountingOrigin()
	origin.treeErr = errors.New("boom")
	cache := newTestCache(origin, 0)
	ctx := context.Background()

	if _, err := cache.CurriculumTree(ctx, course.English); err == nil {
		t.Fatal("expected origin error")
	}
	origin.mu.Lock()
	origin.treeErr = nil
	origin.mu.Unlock()

	if _, err := cache.CurriculumTree(ctx, course.English); err != nil {
		t.Fatalf("CurriculumTree after recovery: %v", err)
	}
	if got := atomic.LoadInt32(&origin.treeCalls); got != 2 {
		t.Fatalf("origin calls: want=2 got=%d", got)
	}
}

func TestCacheSwitchCourseEvictsOtherCourses(t *testing.T) {
	origin := newCountingOrigin()
	cache := newTestCache(origin, 0)
	ctx := context.Background()

	cache.SwitchCourse(course.English)
	cache.CurriculumTree(ctx, course.English)
	cache.SwitchCourse(course.Japanese)
	cache.CurriculumTree(ctx, course.Japanese)
	cache.CurriculumTree(ctx, course.Japanese)

	cache.mu.Lock()
	_, hasEN := cache.trees[course.English]
	_, hasJA := cache.trees[course.Japanese]
	cache.mu.Unlock()
	if hasEN || !hasJA {
		t.Fatalf("cached trees: want only ja got en=%v ja=%v", hasEN, hasJA)
	}
	if got := atomic.LoadInt32(&origin.treeCalls); got != 2 {
		t.Fatalf("origin calls: want=2 got=%d", got)
	}
}

func TestCacheDropsLateTreeOfPreviousCourse(t *testing.T) {
	origin := newCountingOrigin()
	origin.release = make(chan struct{})
	cache := newTestCache(origin, 0)
	cache.SwitchCourse(course.English)

	done := make(chan struct{})
	go func() {
		defer close(done)
		cache.CurriculumTree(context.Background(), course.English)
	}()
	<-origin.started
	cache.SwitchCourse(course.Japanese)
	close(origin.release)
	<-done

	cache.mu.Lock()
	defer cache.mu.Unlock()
	if _, ok := cache.trees[course.English]; ok {
		t.Fatal("late en tree was cached after switching to ja")
	}
}

func TestCacheCallerCancelDoesNotAbortFetch(t *testing.T) {
	origin := newCountingOrigin()
	origin.release = make(chan struct{})
	cache := newTestCache(origin, 0)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := cache.CurriculumTree(ctx, course.English)
		errc <- err
	}()
	<-origin.started
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("CurriculumTree: want=%v got=%v", context.Canceled, err)
	}

	close(origin.release)
	deadline := time.Now().Add(2 * time.Second)
	for {
		cache.mu.Lock()
		_, ok := cache.trees[course.English]
		cache.mu.Unlock()
		if ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("abandoned fetch was never stored")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCacheExerciseSetTTL(t *testing.T) {
	origin := newCountingOrigin()
	cache := newTestCache(origin, 5*time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	cache.ExerciseSet(ctx, 1)
	now = now.Add(4 * time.Minute)
	cache.ExerciseSet(ctx, 1)
	if got := atomic.LoadInt32(&origin.setCalls); got != 1 {
		t.Fatalf("origin calls before expiry: want=1 got=%d", got)
	}

	now = now.Add(2 * time.Minute)
	if _, err := cache.ExerciseSet(ctx, 1); err != nil {
		t.Fatalf("ExerciseSet: %v", err)
	}
	if got := atomic.LoadInt32(&origin.setCalls); got != 2 {
		t.Fatalf("origin calls after expiry: want=2 got=%d", got)
	}
}

func TestCacheRejectsInvalidExerciseSet(t *testing.T) {
	origin := newCountingOrigin()
	cache := newTestCache(origin, 0)
	ctx := context.Background()

	if _, err := cache.ExerciseSet(ctx, 3); !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("ExerciseSet(3): want=%v got=%v", ErrInvalidContent, err)
	}
	if _, err := cache.ExerciseSet(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ExerciseSet(42): want=%v got=%v", ErrNotFound, err)
	}
	cache.mu.Lock()
	defer cache.mu.Unlock()
	if len(cache.sets) != 0 {
		t.Fatalf("cached sets: want=0 got=%d", len(cache.sets))
	}
}

func TestCacheInvalidate(t *testing.T) {
	origin := newCountingOrigin()
	cache := newTestCache(origin, 0)
	ctx := context.Background()

	cache.CurriculumTree(ctx, course.English)
	cache.ExerciseSet(ctx, 1)
	cache.Invalidate()
	cache.CurriculumTree(ctx, course.English)
	cache.ExerciseSet(ctx, 1)

	if got := atomic.LoadInt32(&origin.treeCalls); got != 2 {
		t.Fatalf("tree calls: want=2 got=%d", got)
	}
	if got := atomic.LoadInt32(&origin.setCalls); got != 2 {
		t.Fatalf("set calls: want=2 got=%d", got)
	}
}

func TestCachePrefetch(t *testing.T) {
	origin := newCountingOrigin()
	cache := newTestCache(origin, 0)
	ctx := context.Background()

	if err := cache.Prefetch(ctx, course.English, 2); err != nil {
		t.Fatalf("Prefetch: %v", err)
	}
	cache.mu.Lock()
	n := len(cache.sets)
	cache.mu.Unlock()
	if n != 2 {
		t.Fatalf("cached sets: want=2 got=%d", n)
	}
	if got := atomic.LoadInt32(&origin.setCalls); got > 3 {
		t.Fatalf("set calls: want<=3 got=%d", got)
	}
}
