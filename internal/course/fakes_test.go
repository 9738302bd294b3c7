package course

import (
	"context"
	"fmt"
	"sync"

	"github.com/pot-code/enlingo/internal/infrastructure/driver"
)

// memoryKV in memory KeyValueStore recording every write
type memoryKV struct {
	mu     sync.Mutex
	data   map[string]string
	writes []string
	getErr error
	setErr error
	// per key read failures
	getErrs map[string]error
	// a write of "key=value" blocks until its gate is closed
	setGates map[string]chan struct{}
	blocked  chan string
}

func newMemoryKV() *memoryKV {
	return &memoryKV{
		data:     make(map[string]string),
		getErrs:  make(map[string]error),
		setGates: make(map[string]chan struct{}),
		blocked:  make(chan string, 8),
	}
}

func (m *memoryKV) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	if err := m.getErrs[key]; err != nil {
		return "", err
	}
	v, ok := m.data[key]
	if !ok {
		return "", driver.ErrKeyNotFound
	}
	return v, nil
}

func (m *memoryKV) Set(ctx context.Context, key string, value string) error {
	m.mu.Lock()
	gate := m.setGates[key+"="+value]
	m.mu.Unlock()
	if gate != nil {
		m.blocked <- key + "=" + value
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.writes = append(m.writes, key+"="+value)
	return nil
}

func (m *memoryKV) gateSet(key, value string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan struct{})
	m.setGates[key+"="+value] = ch
	return ch
}

func (m *memoryKV) value(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *memoryKV) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

// fakeContent serves fixed trees, a gated course blocks until its gate is closed
type fakeContent struct {
	mu       sync.Mutex
	trees    map[CourseID]*Curriculum
	errs     map[CourseID]error
	gates    map[CourseID]chan struct{}
	started  chan CourseID
	switched []CourseID
}

func newFakeContent() *fakeContent {
	return &fakeContent{
		trees:   make(map[CourseID]*Curriculum),
		errs:    make(map[CourseID]error),
		gates:   make(map[CourseID]chan struct{}),
		started: make(chan CourseID, 8),
	}
}

func (f *fakeContent) gate(id CourseID) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[id] = ch
	return ch
}

func (f *fakeContent) setTree(id CourseID, tree *Curriculum) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trees[id] = tree
	delete(f.errs, id)
}

func (f *fakeContent) setErr(id CourseID, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[id] = err
}

func (f *fakeContent) CurriculumTree(ctx context.Context, id CourseID) (*Curriculum, error) {
	f.mu.Lock()
	gate := f.gates[id]
	f.mu.Unlock()

	select {
	case f.started <- id:
	default:
	}
	if gate != nil {
		// late responses arrive regardless of cancellation
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	tree, ok := f.trees[id]
	if !ok {
		return nil, fmt.Errorf("no curriculum for %s", id)
	}
	return tree, nil
}

func (f *fakeContent) ExerciseSet(ctx context.Context, id ExerciseID) (*ExerciseSet, error) {
	return &ExerciseSet{ID: id, XP: 10, Difficulty: DifficultyEasy}, nil
}

func (f *fakeContent) SwitchCourse(id CourseID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switched = append(f.switched, id)
}

// sequentialIDs predictable flow ids
type sequentialIDs struct {
	mu sync.Mutex
	n  int
}

func (s *sequentialIDs) Generate() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("flow-%d", s.n), nil
}

// newTree build a curriculum from exercise counts, shape[s][c][l] is the number of exercises
// of lesson l in chapter c of section s. Exercise ids start at 100 and follow traversal order.
func newTree(id CourseID, shape ...[][]int) *Curriculum {
	tree := &Curriculum{CourseID: id}
	next := ExerciseID(100)
	for si, chapters := range shape {
		section := Section{ID: si + 1, Title: Translations{English: fmt.Sprintf("section %d", si)}}
		for ci, lessons := range chapters {
			chapter := Chapter{ID: (si+1)*10 + ci, Title: Translations{English: fmt.Sprintf("chapter %d.%d", si, ci)}}
			for li, count := range lessons {
				lesson := Lesson{ID: (si+1)*100 + ci*10 + li, Exercises: []ExerciseID{}}
				for i := 0; i < count; i++ {
					lesson.Exercises = append(lesson.Exercises, next)
					next++
				}
				chapter.Lessons = append(chapter.Lessons, lesson)
			}
			section.Chapters = append(section.Chapters, chapter)
		}
		tree.Sections = append(tree.Sections, section)
	}
	return tree
}

func pos(s, c, l, e int) CourseProgression {
	return CourseProgression{SectionIdx: s, ChapterIdx: c, LessonIdx: l, ExerciseIdx: e}
}
