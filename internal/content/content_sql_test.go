package content

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pot-code/enlingo/internal/course"
	"github.com/pot-code/enlingo/internal/infrastructure/driver"
)

var contentSchema = []string{
	`CREATE TABLE section (id INTEGER PRIMARY KEY, course_id TEXT NOT NULL, seq INTEGER NOT NULL, title TEXT NOT NULL)`,
	`CREATE TABLE chapter (id INTEGER PRIMARY KEY, section_id INTEGER NOT NULL, seq INTEGER NOT NULL, title TEXT NOT NULL, description TEXT NOT NULL)`,
	`CREATE TABLE lesson (id INTEGER PRIMARY KEY, chapter_id INTEGER NOT NULL, seq INTEGER NOT NULL, description TEXT NOT NULL)`,
	`CREATE TABLE lesson_exercise (lesson_id INTEGER NOT NULL, seq INTEGER NOT NULL, exercise_set_id INTEGER NOT NULL)`,
	`CREATE TABLE exercise_set (id INTEGER PRIMARY KEY, xp INTEGER NOT NULL, difficulty TEXT NOT NULL, items TEXT NOT NULL)`,
}

func openContentDB(t *testing.T) driver.ITransactionalDB {
	t.Helper()
	ctx := context.Background()

	conn, err := driver.NewSQLiteConn(filepath.Join(t.TempDir(), "content.db"), &driver.DBConfig{})
	if err != nil {
		t.Fatalf("open content db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(ctx) })

	for _, stmt := range contentSchema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	seed := []struct {
		query string
		args  []interface{}
	}{
		// sections are inserted out of order on purpose
		{`INSERT INTO section (id, course_id, seq, title) VALUES ($1, $2, $3, $4)`, []interface{}{2, "en", 2, `{"en":"Travel"}`}},
		{`INSERT INTO section (id, course_id, seq, title) VALUES ($1, $2, $3, $4)`, []interface{}{1, "en", 1, `{"en":"Basics","zh":"基础"}`}},
		{`INSERT INTO section (id, course_id, seq, title) VALUES ($1, $2, $3, $4)`, []interface{}{3, "ja", 1, `{"en":"Kana"}`}},
		{`INSERT INTO chapter (id, section_id, seq, title, description) VALUES ($1, $2, $3, $4, $5)`, []interface{}{11, 1, 1, `{"en":"Greetings"}`, `{"en":"Say hello"}`}},
		{`INSERT INTO chapter (id, section_id, seq, title, description) VALUES ($1, $2, $3, $4, $5)`, []interface{}{21, 2, 1, `{"en":"Airport"}`, ``}},
		{`INSERT INTO lesson (id, chapter_id, seq, description) VALUES ($1, $2, $3, $4)`, []interface{}{112, 11, 2, `{"en":"Goodbye"}`}},
		{`INSERT INTO lesson (id, chapter_id, seq, description) VALUES ($1, $2, $3, $4)`, []interface{}{111, 11, 1, `{"en":"Hello"}`}},
		{`INSERT INTO lesson (id, chapter_id, seq, description) VALUES ($1, $2, $3, $4)`, []interface{}{211, 21, 1, `{"en":"Check in"}`}},
		{`INSERT INTO lesson_exercise (lesson_id, seq, exercise_set_id) VALUES ($1, $2, $3)`, []interface{}{111, 2, 502}},
		{`INSERT INTO lesson_exercise (lesson_id, seq, exercise_set_id) VALUES ($1, $2, $3)`, []interface{}{111, 1, 501}},
		{`INSERT INTO lesson_exercise (lesson_id, seq, exercise_set_id) VALUES ($1, $2, $3)`, []interface{}{211, 1, 601}},
		{`INSERT INTO exercise_set (id, xp, difficulty, items) VALUES ($1, $2, $3, $4)`, []interface{}{501, 10, "easy", `[{"id":1,"type":"flashCard","question":{"en":"hello?"}}]`}},
	}
	for _, s := range seed {
		if _, err := conn.ExecContext(ctx, s.query, s.args...); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return conn
}

func TestSQLRepositoryCurriculumTree(t *testing.T) {
	repo := NewSQLRepository(openContentDB(t))

	tree, err := repo.CurriculumTree(context.Background(), course.English)
	if err != nil {
		t.Fatalf("CurriculumTree: %v", err)
	}
	if len(tree.Sections) != 2 {
		t.Fatalf("sections: want=2 got=%d", len(tree.Sections))
	}
	if tree.Sections[0].ID != 1 || tree.Sections[0].Title[course.Chinese] != "基础" {
		t.Fatalf("first section: got=%+v", tree.Sections[0])
	}

	lessons := tree.Sections[0].Chapters[0].Lessons
	if len(lessons) != 2 || lessons[0].ID != 111 || lessons[1].ID != 112 {
		t.Fatalf("lessons: want=[111 112] got=%+v", lessons)
	}
	if got := lessons[0].Exercises; len(got) != 2 || got[0] != 501 || got[1] != 502 {
		t.Fatalf("exercises: want=[501 502] got=%v", got)
	}
	if got := lessons[1].Exercises; got == nil || len(got) != 0 {
		t.Fatalf("empty lesson: want=[] got=%v", got)
	}
	if desc := tree.Sections[1].Chapters[0].Description; len(desc) != 0 {
		t.Fatalf("empty description: got=%v", desc)
	}

	id, status := course.ResolveExerciseID(course.CourseProgression{SectionIdx: 1}, tree)
	if status != course.StatusOK || id != 601 {
		t.Fatalf("ResolveExerciseID: want=601 got=%d %s", id, status)
	}
}

func TestSQLRepositoryUnknownCourse(t *testing.T) {
	repo := NewSQLRepository(openContentDB(t))

	_, err := repo.CurriculumTree(context.Background(), course.Chinese)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("CurriculumTree(zh): want=%v got=%v", ErrNotFound, err)
	}
}

func TestSQLRepositoryExerciseSet(t *testing.T) {
	repo := NewSQLRepository(openContentDB(t))
	ctx := context.Background()

	set, err := repo.ExerciseSet(ctx, 501)
	if err != nil {
		t.Fatalf("ExerciseSet: %v", err)
	}
	if set.XP != 10 || set.Difficulty != course.DifficultyEasy || len(set.Items) != 1 || set.Items[0].Type != course.ItemFlashCard {
		t.Fatalf("ExerciseSet: got=%+v", set)
	}

	if _, err := repo.ExerciseSet(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ExerciseSet(999): want=%v got=%v", ErrNotFound, err)
	}
}
