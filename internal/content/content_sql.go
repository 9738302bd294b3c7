package content

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pot-code/enlingo/internal/course"
	"github.com/pot-code/enlingo/internal/infrastructure/driver"
	"go.elastic.co/apm"
)

// SQLRepository reads curriculum from the content database
type SQLRepository struct {
	Conn driver.ITransactionalDB
}

var _ course.ContentRepository = &SQLRepository{}

func NewSQLRepository(conn driver.ITransactionalDB) *SQLRepository {
	return &SQLRepository{
		Conn: conn,
	}
}

// CurriculumTree assemble the section tree of course id, ordered by seq at every level
func (repo *SQLRepository) CurriculumTree(ctx context.Context, id course.CourseID) (*course.Curriculum, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "SQLRepository.CurriculumTree", "db")
	defer apmSpan.End()

	tree := &course.Curriculum{CourseID: id}
	sectionIdx := make(map[int]int)
	err := repo.query(ctx, `
SELECT
    s.id, s.title
FROM
    section s
WHERE
    s.course_id = $1
ORDER BY s.seq`, []interface{}{string(id)}, func(rows driver.ISQLRows) error {
		var (
			section course.Section
			title   string
		)
		if err := rows.Scan(&section.ID, &title); err != nil {
			return err
		}
		if err := decodeText(title, &section.Title); err != nil {
			return fmt.Errorf("section %d title: %w", section.ID, err)
		}
		sectionIdx[section.ID] = len(tree.Sections)
		tree.Sections = append(tree.Sections, section)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(tree.Sections) == 0 {
		return nil, fmt.Errorf("course %s: %w", id, ErrNotFound)
	}

	type chapterRef struct{ section, chapter int }
	chapterIdx := make(map[int]chapterRef)
	err = repo.query(ctx, `
SELECT
    c.id, c.section_id, c.title, c.description
FROM
    chapter c
        INNER JOIN
    section s ON (s.id = c.section_id)
WHERE
    s.course_id = $1
ORDER BY s.seq, c.seq`, []interface{}{string(id)}, func(rows driver.ISQLRows) error {
		var (
			chapter            course.Chapter
			sectionID          int
			title, description string
		)
		if err := rows.Scan(&chapter.ID, &sectionID, &title, &description); err != nil {
			return err
		}
		if err := decodeText(title, &chapter.Title); err != nil {
			return fmt.Errorf("chapter %d title: %w", chapter.ID, err)
		}
		if err := decodeText(description, &chapter.Description); err != nil {
			return fmt.Errorf("chapter %d description: %w", chapter.ID, err)
		}
		si := sectionIdx[sectionID]
		chapterIdx[chapter.ID] = chapterRef{si, len(tree.Sections[si].Chapters)}
		tree.Sections[si].Chapters = append(tree.Sections[si].Chapters, chapter)
		return nil
	})
	if err != nil {
		return nil, err
	}

	type lessonRef struct{ section, chapter, lesson int }
	lessonIdx := make(map[int]lessonRef)
	err = repo.query(ctx, `
SELECT
    l.id, l.chapter_id, l.description
FROM
    lesson l
        INNER JOIN
    chapter c ON (c.id = l.chapter_id)
        INNER JOIN
    section s ON (s.id = c.section_id)
WHERE
    s.course_id = $1
ORDER BY s.seq, c.seq, l.seq`, []interface{}{string(id)}, func(rows driver.ISQLRows) error {
		var (
			lesson      course.Lesson
			chapterID   int
			description string
		)
		if err := rows.Scan(&lesson.ID, &chapterID, &description); err != nil {
			return err
		}
		if err := decodeText(description, &lesson.Description); err != nil {
			return fmt.Errorf("lesson %d description: %w", lesson.ID, err)
		}
		lesson.Exercises = []course.ExerciseID{}
		ref := chapterIdx[chapterID]
		chapter := &tree.Sections[ref.section].Chapters[ref.chapter]
		lessonIdx[lesson.ID] = lessonRef{ref.section, ref.chapter, len(chapter.Lessons)}
		chapter.Lessons = append(chapter.Lessons, lesson)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = repo.query(ctx, `
SELECT
    le.lesson_id, le.exercise_set_id
FROM
    lesson_exercise le
        INNER JOIN
    lesson l ON (l.id = le.lesson_id)
        INNER JOIN
    chapter c ON (c.id = l.chapter_id)
        INNER JOIN
    section s ON (s.id = c.section_id)
WHERE
    s.course_id = $1
ORDER BY le.lesson_id, le.seq`, []interface{}{string(id)}, func(rows driver.ISQLRows) error {
		var lessonID, exerciseID int
		if err := rows.Scan(&lessonID, &exerciseID); err != nil {
			return err
		}
		ref := lessonIdx[lessonID]
		lesson := &tree.Sections[ref.section].Chapters[ref.chapter].Lessons[ref.lesson]
		lesson.Exercises = append(lesson.Exercises, course.ExerciseID(exerciseID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// ExerciseSet read one exercise set, items are stored as a JSON array
func (repo *SQLRepository) ExerciseSet(ctx context.Context, id course.ExerciseID) (*course.ExerciseSet, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "SQLRepository.ExerciseSet", "db")
	defer apmSpan.End()

	var set *course.ExerciseSet
	err := repo.query(ctx, `
SELECT
    e.id, e.xp, e.difficulty, e.items
FROM
    exercise_set e
WHERE
    e.id = $1`, []interface{}{int(id)}, func(rows driver.ISQLRows) error {
		var (
			item       course.ExerciseSet
			difficulty string
			items      string
			setID      int
		)
		if err := rows.Scan(&setID, &item.XP, &difficulty, &items); err != nil {
			return err
		}
		item.ID = course.ExerciseID(setID)
		item.Difficulty = course.Difficulty(difficulty)
		if err := decodeText(items, &item.Items); err != nil {
			return fmt.Errorf("exercise set %d items: %w", setID, err)
		}
		set = &item
		return nil
	})
	if err != nil {
		return nil, err
	}
	if set == nil {
		return nil, fmt.Errorf("exercise set %d: %w", id, ErrNotFound)
	}
	return set, nil
}

func (repo *SQLRepository) query(ctx context.Context, query string, args []interface{}, scan func(driver.ISQLRows) error) error {
	rows, err := repo.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// decodeText unmarshal a JSON text column, empty columns are left alone
func decodeText(raw string, out interface{}) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	return nil
}
