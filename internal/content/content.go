package content

import (
	"errors"
	"fmt"

	"github.com/pot-code/enlingo/internal/course"
	"github.com/pot-code/enlingo/internal/infrastructure/validate"
)

var (
	// ErrNotFound the origin has no such course or exercise set
	ErrNotFound = errors.New("content not found")
	// ErrInvalidContent the origin returned data the app cannot use
	ErrInvalidContent = errors.New("invalid content")
)

// checkExerciseSet reject exercise sets with unknown difficulty or item types
func checkExerciseSet(v validate.Validator, set *course.ExerciseSet) error {
	if errs := v.Struct(set); len(errs) > 0 {
		return fmt.Errorf("exercise set %d: %w: %s", set.ID, ErrInvalidContent, errs[0].Error())
	}
	return nil
}
