package course

import (
	"context"

	"go.elastic.co/apm"
)

// LessonState how a lesson relates to the current progression
type LessonState string

const (
	LessonCompleted LessonState = "completed"
	LessonCurrent   LessonState = "current"
	LessonLocked    LessonState = "locked"
)

type LessonOutline struct {
	ID          int               `json:"id"`
	Position    CourseProgression `json:"position"` // exercise index is always zero
	Description Translations      `json:"description"`
	Exercises   int               `json:"exercises"`
	State       LessonState       `json:"state"`
}

type ChapterOutline struct {
	ID          int             `json:"id"`
	Title       Translations    `json:"title"`
	Description Translations    `json:"description"`
	Lessons     []LessonOutline `json:"lessons"`
}

type SectionOutline struct {
	ID       int              `json:"id"`
	Title    Translations     `json:"title"`
	Chapters []ChapterOutline `json:"chapters"`
}

// Outline learn screen view of a curriculum
type Outline struct {
	CourseID           CourseID          `json:"course_id"`
	Progression        CourseProgression `json:"progression"`
	Sections           []SectionOutline  `json:"sections"`
	CompletedExercises int               `json:"completed_exercises"`
	TotalExercises     int               `json:"total_exercises"`
	Ratio              float64           `json:"ratio"`
}

// BuildOutline mark every lesson of tree against the current progression p
func BuildOutline(id CourseID, tree *Curriculum, p CourseProgression) *Outline {
	current := p
	current.ExerciseIdx = 0

	outline := &Outline{
		CourseID:    id,
		Progression: p,
		Sections:    make([]SectionOutline, 0, len(tree.Sections)),
	}
	for si, section := range tree.Sections {
		so := SectionOutline{ID: section.ID, Title: section.Title, Chapters: make([]ChapterOutline, 0, len(section.Chapters))}
		for ci, chapter := range section.Chapters {
			co := ChapterOutline{
				ID:          chapter.ID,
				Title:       chapter.Title,
				Description: chapter.Description,
				Lessons:     make([]LessonOutline, 0, len(chapter.Lessons)),
			}
			for li, lesson := range chapter.Lessons {
				pos := CourseProgression{SectionIdx: si, ChapterIdx: ci, LessonIdx: li}
				lo := LessonOutline{
					ID:          lesson.ID,
					Position:    pos,
					Description: lesson.Description,
					Exercises:   len(lesson.Exercises),
				}
				switch Compare(pos, current) {
				case Before:
					lo.State = LessonCompleted
					outline.CompletedExercises += len(lesson.Exercises)
				case Same:
					lo.State = LessonCurrent
					done := p.ExerciseIdx
					if done > len(lesson.Exercises) {
						done = len(lesson.Exercises)
					}
					outline.CompletedExercises += done
				default:
					lo.State = LessonLocked
				}
				outline.TotalExercises += len(lesson.Exercises)
				co.Lessons = append(co.Lessons, lo)
			}
			so.Chapters = append(so.Chapters, co)
		}
		outline.Sections = append(outline.Sections, so)
	}
	if outline.TotalExercises > 0 {
		outline.Ratio = float64(outline.CompletedExercises) / float64(outline.TotalExercises)
	}
	return outline
}

// Outline of the active course, nil unless the status is StatusOK
func (t *Tracker) Outline(ctx context.Context) (*Outline, Status) {
	apmSpan, _ := apm.StartSpan(ctx, "Tracker.Outline", "service")
	defer apmSpan.End()

	t.mu.Lock()
	tree, status := t.treeLocked()
	id, p := t.courseID, t.progression
	t.mu.Unlock()

	if status != StatusOK {
		return nil, status
	}
	return BuildOutline(id, tree, p), StatusOK
}
