package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/enlingo/internal/content"
	"github.com/pot-code/enlingo/internal/course"
	"github.com/pot-code/enlingo/internal/infrastructure/validate"
)

// ExerciseHandler serves exercise set bodies
type ExerciseHandler struct {
	repo course.ContentRepository
}

func NewExerciseHandler(Repo course.ContentRepository) *ExerciseHandler {
	handler := &ExerciseHandler{Repo}
	return handler
}

// HandleGetExerciseSet ...
func (eh *ExerciseHandler) HandleGetExerciseSet(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		return replyInvalid(c, "Failed to validate params", []*validate.FieldError{
			validate.NewFieldError("id", "id must be a positive integer"),
		})
	}

	set, err := eh.repo.ExerciseSet(c.Request().Context(), course.ExerciseID(id))
	switch {
	case errors.Is(err, content.ErrNotFound):
		return c.JSON(http.StatusNotFound,
			NewRESTStandardError(http.StatusNotFound, err.Error()).SetTraceID(traceID(c)))
	case errors.Is(err, content.ErrInvalidContent):
		return c.JSON(http.StatusBadGateway,
			NewRESTStandardError(http.StatusBadGateway, err.Error()).SetTraceID(traceID(c)))
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, set)
}
