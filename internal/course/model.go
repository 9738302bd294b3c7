package course

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedCourse course id is not one of SupportedCourses
	ErrUnsupportedCourse = errors.New("unsupported course")
	// ErrNoActiveCourse operation needs an active course
	ErrNoActiveCourse = errors.New("no active course")
)

// CourseID language code of a course
type CourseID string

// supported courses
const (
	English  CourseID = "en"
	Japanese CourseID = "ja"
	Chinese  CourseID = "zh"
)

// DefaultCourseID course picked when nothing was ever selected
const DefaultCourseID = English

var supportedCourses = []CourseID{English, Japanese, Chinese}

// SupportedCourses returns all course ids in display order
func SupportedCourses() []CourseID {
	ids := make([]CourseID, len(supportedCourses))
	copy(ids, supportedCourses)
	return ids
}

// Supported reports whether id is a known course
func (id CourseID) Supported() bool {
	for _, c := range supportedCourses {
		if c == id {
			return true
		}
	}
	return false
}

// ParseCourseID convert raw into a supported CourseID
func ParseCourseID(raw string) (CourseID, error) {
	id := CourseID(raw)
	if !id.Supported() {
		return "", fmt.Errorf("parse course id %q: %w", raw, ErrUnsupportedCourse)
	}
	return id, nil
}

// Translations localized text keyed by UI language
type Translations map[CourseID]string

// ExerciseID opaque id of an exercise set
type ExerciseID int

type Lesson struct {
	ID          int          `json:"id"`
	Description Translations `json:"description"`
	Exercises   []ExerciseID `json:"exercises"`
}

type Chapter struct {
	ID          int          `json:"id"`
	Title       Translations `json:"title"`
	Description Translations `json:"description"`
	Lessons     []Lesson     `json:"lessons"`
}

type Section struct {
	ID       int          `json:"id"`
	Title    Translations `json:"title"`
	Chapters []Chapter    `json:"chapters"`
}

// Curriculum section tree of one course, read only once loaded
type Curriculum struct {
	CourseID CourseID  `json:"course_id"`
	Sections []Section `json:"sections"`
}

// Difficulty of an exercise set
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ItemType decides how Body of an ExerciseItem is interpreted
type ItemType string

const (
	ItemFlashCard ItemType = "flashCard"
	ItemTranslate ItemType = "translate"
	ItemVideo     ItemType = "video"
	ItemRetelling ItemType = "retelling"
)

type ExerciseItem struct {
	ID       int             `json:"id"`
	Type     ItemType        `json:"type" validate:"oneof=flashCard translate video retelling"`
	Question Translations    `json:"question,omitempty"`
	Body     json.RawMessage `json:"body,omitempty"`
}

// ExerciseSet content fetched for one ExerciseID
type ExerciseSet struct {
	ID         ExerciseID     `json:"id" validate:"min=1"`
	XP         int            `json:"xp" validate:"min=0"`
	Difficulty Difficulty     `json:"difficulty" validate:"oneof=easy medium hard"`
	Items      []ExerciseItem `json:"items" validate:"dive"`
}

// ContentRepository source of curriculum trees and exercise sets
type ContentRepository interface {
	CurriculumTree(ctx context.Context, id CourseID) (*Curriculum, error)
	ExerciseSet(ctx context.Context, id ExerciseID) (*ExerciseSet, error)
}

// CourseSwitcher implemented by repositories that keep per-course state
type CourseSwitcher interface {
	SwitchCourse(id CourseID)
}

// KeyValueStore durable string storage, Get fails with driver.ErrKeyNotFound for unknown keys
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
}

// ProgressionTracker what the UI layer can do with the learner position
type ProgressionTracker interface {
	Snapshot() Snapshot
	SetActiveCourse(ctx context.Context, id CourseID) (Snapshot, error)
	ClearCourse(ctx context.Context) error
	Reload(ctx context.Context) error
	AdvanceProgression(ctx context.Context) (CourseProgression, Status, error)
	Navigate(ctx context.Context, p CourseProgression) (Status, error)
	ResolveCurrentExerciseID() (ExerciseID, Status)
	IsCompleted(p CourseProgression) (bool, Status)
	Outline(ctx context.Context) (*Outline, Status)
	Subscribe(fn func(Snapshot)) (cancel func())
}
