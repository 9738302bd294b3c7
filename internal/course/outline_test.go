package course

import (
	"context"
	"testing"
)

func TestBuildOutline(t *testing.T) {
	tree := newTree(English, [][]int{{2, 3}, {1}}, [][]int{{4}})

	outline := BuildOutline(English, tree, pos(0, 0, 1, 1))

	want := [][][]LessonState{
		{{LessonCompleted, LessonCurrent}, {LessonLocked}},
		{{LessonLocked}},
	}
	for si, section := range outline.Sections {
		for ci, chapter := range section.Chapters {
			for li, lesson := range chapter.Lessons {
				if lesson.State != want[si][ci][li] {
					t.Fatalf("lesson %d.%d.%d: want=%s got=%s", si, ci, li, want[si][ci][li], lesson.State)
				}
				if lesson.Position != pos(si, ci, li, 0) {
					t.Fatalf("lesson %d.%d.%d: position %+v", si, ci, li, lesson.Position)
				}
			}
		}
	}
	if outline.TotalExercises != 10 {
		t.Fatalf("total: want=10 got=%d", outline.TotalExercises)
	}
	if outline.CompletedExercises != 3 {
		t.Fatalf("completed: want=3 got=%d", outline.CompletedExercises)
	}
	if outline.Ratio != 0.3 {
		t.Fatalf("ratio: want=0.3 got=%v", outline.Ratio)
	}
}

func TestBuildOutlineEmptyTree(t *testing.T) {
	outline := BuildOutline(English, &Curriculum{}, DefaultProgression)
	if outline.TotalExercises != 0 || outline.Ratio != 0 || len(outline.Sections) != 0 {
		t.Fatalf("outline: want empty got=%+v", outline)
	}
}

func TestTrackerOutline(t *testing.T) {
	content := newFakeContent()
	content.setTree(Japanese, newTree(Japanese, [][]int{{1, 1}}))
	tracker := newTestTracker(newMemoryKV(), content)
	ctx := context.Background()

	if err := tracker.Initialize(ctx, Japanese); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, _, err := tracker.AdvanceProgression(ctx); err != nil {
		t.Fatalf("AdvanceProgression: %v", err)
	}

	outline, status := tracker.Outline(ctx)
	if status != StatusOK {
		t.Fatalf("Outline: want=%s got=%s", StatusOK, status)
	}
	if outline.CourseID != Japanese || outline.Progression != pos(0, 0, 1, 0) {
		t.Fatalf("outline: want=ja (0,0,1,0) got=%s %+v", outline.CourseID, outline.Progression)
	}
	if outline.Ratio != 0.5 {
		t.Fatalf("ratio: want=0.5 got=%v", outline.Ratio)
	}
}
