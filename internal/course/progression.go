package course

// CourseProgression position of the learner, every index is zero based
type CourseProgression struct {
	SectionIdx  int `json:"sectionIdx" validate:"min=0"`
	ChapterIdx  int `json:"chapterIdx" validate:"min=0"`
	LessonIdx   int `json:"lessonIdx" validate:"min=0"`
	ExerciseIdx int `json:"exerciseIdx" validate:"min=0"`
}

// DefaultProgression where every course starts
var DefaultProgression = CourseProgression{}

// IsDefault reports whether p is (0,0,0,0)
func (p CourseProgression) IsDefault() bool {
	return p == DefaultProgression
}

// Status outcome of a tree dependent operation
type Status string

const (
	StatusOK              Status = "ok"
	StatusPending         Status = "pending"           // curriculum still loading
	StatusLoadFailed      Status = "load_failed"       // curriculum fetch failed, retry with Reload
	StatusOutOfBounds     Status = "out_of_bounds"     // progression does not fit the curriculum
	StatusNotFound        Status = "not_found"         // no exercise at the progression
	StatusEndOfCurriculum Status = "end_of_curriculum" // nothing after the last exercise
	StatusNoCourse        Status = "no_course"         // tracker is uninitialized
)

// Order result of Compare
type Order int

const (
	Before Order = iota - 1
	Same
	After
)

func (o Order) String() string {
	switch o {
	case Before:
		return "before"
	case After:
		return "after"
	default:
		return "same"
	}
}

func lessonAt(p CourseProgression, tree *Curriculum) *Lesson {
	if p.SectionIdx < 0 || p.SectionIdx >= len(tree.Sections) {
		return nil
	}
	section := &tree.Sections[p.SectionIdx]
	if p.ChapterIdx < 0 || p.ChapterIdx >= len(section.Chapters) {
		return nil
	}
	chapter := &section.Chapters[p.ChapterIdx]
	if p.LessonIdx < 0 || p.LessonIdx >= len(chapter.Lessons) {
		return nil
	}
	return &chapter.Lessons[p.LessonIdx]
}

// Validate check that p points at an existing exercise of tree, a nil tree is still loading
func Validate(p CourseProgression, tree *Curriculum) Status {
	if tree == nil {
		return StatusPending
	}
	lesson := lessonAt(p, tree)
	if lesson == nil || p.ExerciseIdx < 0 || p.ExerciseIdx >= len(lesson.Exercises) {
		return StatusOutOfBounds
	}
	return StatusOK
}

// ResolveExerciseID returns the exercise id at p
func ResolveExerciseID(p CourseProgression, tree *Curriculum) (ExerciseID, Status) {
	switch Validate(p, tree) {
	case StatusPending:
		return 0, StatusPending
	case StatusOK:
		return lessonAt(p, tree).Exercises[p.ExerciseIdx], StatusOK
	default:
		return 0, StatusNotFound
	}
}

// First returns the first position of tree that holds an exercise
func First(tree *Curriculum) (CourseProgression, Status) {
	if tree == nil {
		return DefaultProgression, StatusPending
	}
	if Validate(DefaultProgression, tree) == StatusOK {
		return DefaultProgression, StatusOK
	}
	return successor(DefaultProgression, tree)
}

// Advance returns the position right after p.
//
// Bounds are read from tree on every call, lessons, chapters and sections without
// exercises are skipped. At the last exercise p is returned with StatusEndOfCurriculum.
// The default position of a tree whose first lesson is empty advances to First.
func Advance(p CourseProgression, tree *Curriculum) (CourseProgression, Status) {
	switch Validate(p, tree) {
	case StatusPending:
		return p, StatusPending
	case StatusOutOfBounds:
		if p.IsDefault() {
			if first, status := First(tree); status == StatusOK {
				return first, StatusOK
			}
			return p, StatusEndOfCurriculum
		}
		return p, StatusOutOfBounds
	}
	next, status := successor(p, tree)
	if status != StatusOK {
		return p, status
	}
	return next, StatusOK
}

// successor walks forward from p, which need not be valid itself
func successor(p CourseProgression, tree *Curriculum) (CourseProgression, Status) {
	next := p
	next.ExerciseIdx++
	for next.SectionIdx < len(tree.Sections) {
		section := tree.Sections[next.SectionIdx]
		if next.ChapterIdx >= len(section.Chapters) {
			next = CourseProgression{SectionIdx: next.SectionIdx + 1}
			continue
		}
		chapter := section.Chapters[next.ChapterIdx]
		if next.LessonIdx >= len(chapter.Lessons) {
			next = CourseProgression{SectionIdx: next.SectionIdx, ChapterIdx: next.ChapterIdx + 1}
			continue
		}
		if next.ExerciseIdx >= len(chapter.Lessons[next.LessonIdx].Exercises) {
			next = CourseProgression{SectionIdx: next.SectionIdx, ChapterIdx: next.ChapterIdx, LessonIdx: next.LessonIdx + 1}
			continue
		}
		return next, StatusOK
	}
	return p, StatusEndOfCurriculum
}

// Compare order a and b by section, chapter, lesson then exercise
func Compare(a, b CourseProgression) Order {
	pairs := [4][2]int{
		{a.SectionIdx, b.SectionIdx},
		{a.ChapterIdx, b.ChapterIdx},
		{a.LessonIdx, b.LessonIdx},
		{a.ExerciseIdx, b.ExerciseIdx},
	}
	for _, pair := range pairs {
		switch {
		case pair[0] < pair[1]:
			return Before
		case pair[0] > pair[1]:
			return After
		}
	}
	return Same
}
