package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/enlingo/internal/course"
	"github.com/pot-code/enlingo/internal/infrastructure/logging"
	"github.com/pot-code/enlingo/internal/infrastructure/validate"
	"go.uber.org/zap"
)

var statusDetails = map[course.Status]string{
	course.StatusPending:         "curriculum is still loading",
	course.StatusLoadFailed:      "curriculum could not be loaded, reload the course",
	course.StatusOutOfBounds:     "progression does not fit the curriculum",
	course.StatusNotFound:        "no exercise at the current progression",
	course.StatusEndOfCurriculum: "curriculum finished",
	course.StatusNoCourse:        "no active course",
}

// statusCode http status of a tracker status
func statusCode(s course.Status) int {
	switch s {
	case course.StatusOK, course.StatusEndOfCurriculum:
		return http.StatusOK
	case course.StatusPending:
		return http.StatusAccepted
	case course.StatusLoadFailed:
		return http.StatusServiceUnavailable
	case course.StatusOutOfBounds, course.StatusNotFound:
		return http.StatusNotFound
	case course.StatusNoCourse:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func traceID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

func replyStatus(c echo.Context, s course.Status) error {
	code := statusCode(s)
	return c.JSON(code, NewRESTStandardError(code, statusDetails[s]).SetType(string(s)).SetTraceID(traceID(c)))
}

func replyInvalid(c echo.Context, detail string, fields []*validate.FieldError) error {
	return c.JSON(http.StatusBadRequest,
		NewRESTValidationError(http.StatusBadRequest, detail, fields).SetTraceID(traceID(c)))
}

type courseSelection struct {
	CourseID string `json:"course_id" validate:"required"`
}

type courseResponse struct {
	course.Snapshot
	Supported []course.CourseID `json:"supported"`
}

type progressionResponse struct {
	Status      course.Status            `json:"status"`
	Progression course.CourseProgression `json:"progression"`
}

type exerciseResponse struct {
	Status     course.Status     `json:"status"`
	ExerciseID course.ExerciseID `json:"exercise_id"`
}

type completedResponse struct {
	Status    course.Status `json:"status"`
	Completed bool          `json:"completed"`
}

// CourseHandler course selection and progression endpoints
type CourseHandler struct {
	tracker   course.ProgressionTracker
	validator validate.Validator
}

func NewCourseHandler(Tracker course.ProgressionTracker, Validator validate.Validator) *CourseHandler {
	handler := &CourseHandler{Tracker, Validator}
	return handler
}

// HandleGetCourse ...
func (ch *CourseHandler) HandleGetCourse(c echo.Context) error {
	return c.JSON(http.StatusOK, &courseResponse{
		Snapshot:  ch.tracker.Snapshot(),
		Supported: course.SupportedCourses(),
	})
}

// HandleSetCourse select the active course, the course loads in background
func (ch *CourseHandler) HandleSetCourse(c echo.Context) (err error) {
	post := new(courseSelection)
	if err = c.Bind(post); err != nil {
		return replyInvalid(c, "Failed to bind course selection", []*validate.FieldError{
			validate.NewFieldError("body", err.Error()),
		})
	}
	if fields := ch.validator.Struct(post); fields != nil {
		return replyInvalid(c, "Failed to validate fields", fields)
	}

	snap, err := ch.tracker.SetActiveCourse(c.Request().Context(), course.CourseID(post.CourseID))
	if errors.Is(err, course.ErrUnsupportedCourse) {
		return replyInvalid(c, "Failed to validate fields", []*validate.FieldError{
			validate.NewFieldError("course_id", fmt.Sprintf("course_id must be one of %v", course.SupportedCourses())),
		})
	}
	if err != nil {
		return err
	}
	return c.JSON(statusCode(snap.Status), snap)
}

// HandleClearCourse ...
func (ch *CourseHandler) HandleClearCourse(c echo.Context) error {
	if err := ch.tracker.ClearCourse(c.Request().Context()); err != nil {
		logging.ExtractLoggerFromContext(c.Request().Context()).Warn("failed to save cleared course", zap.Error(err))
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleReload load the active course again, e.g. after a failed curriculum fetch
func (ch *CourseHandler) HandleReload(c echo.Context) error {
	err := ch.tracker.Reload(c.Request().Context())
	if errors.Is(err, course.ErrNoActiveCourse) {
		return replyStatus(c, course.StatusNoCourse)
	}
	if err != nil {
		return err
	}
	snap := ch.tracker.Snapshot()
	if snap.Status != course.StatusOK {
		return replyStatus(c, snap.Status)
	}
	return c.JSON(http.StatusOK, snap)
}

// HandleGetOutline ...
func (ch *CourseHandler) HandleGetOutline(c echo.Context) error {
	outline, status := ch.tracker.Outline(c.Request().Context())
	if status != course.StatusOK {
		return replyStatus(c, status)
	}
	return c.JSON(http.StatusOK, outline)
}

// HandleAdvance move to the next exercise
func (ch *CourseHandler) HandleAdvance(c echo.Context) error {
	ctx := c.Request().Context()
	p, status, err := ch.tracker.AdvanceProgression(ctx)
	if err != nil {
		logging.ExtractLoggerFromContext(ctx).Warn("failed to save progression", zap.Error(err))
	}
	switch status {
	case course.StatusOK, course.StatusEndOfCurriculum:
		return c.JSON(http.StatusOK, &progressionResponse{status, p})
	default:
		return replyStatus(c, status)
	}
}

// HandleNavigate jump to the progression in request body, oversized bodies are rejected by BodyLimit
func (ch *CourseHandler) HandleNavigate(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	p, err := course.DecodeProgression(body)
	if err != nil {
		return replyInvalid(c, "Failed to decode progression", []*validate.FieldError{
			validate.NewFieldError("progression", err.Error()),
		})
	}

	ctx := c.Request().Context()
	status, err := ch.tracker.Navigate(ctx, p)
	if err != nil {
		logging.ExtractLoggerFromContext(ctx).Warn("failed to save progression", zap.Error(err))
	}
	if status != course.StatusOK {
		return replyStatus(c, status)
	}
	return c.JSON(http.StatusOK, &progressionResponse{status, p})
}

// HandleCurrentExercise ...
func (ch *CourseHandler) HandleCurrentExercise(c echo.Context) error {
	id, status := ch.tracker.ResolveCurrentExerciseID()
	if status != course.StatusOK {
		return replyStatus(c, status)
	}
	return c.JSON(http.StatusOK, &exerciseResponse{status, id})
}

// HandleCompleted reports whether the progression given in query comes before the current one
func (ch *CourseHandler) HandleCompleted(c echo.Context) error {
	var (
		p      course.CourseProgression
		fields []*validate.FieldError
	)
	for _, param := range []struct {
		name string
		dst  *int
	}{
		{"sectionIdx", &p.SectionIdx},
		{"chapterIdx", &p.ChapterIdx},
		{"lessonIdx", &p.LessonIdx},
		{"exerciseIdx", &p.ExerciseIdx},
	} {
		raw := c.QueryParam(param.name)
		if fe := ch.validator.Var(param.name, raw, "required,numeric"); fe != nil {
			fields = append(fields, fe)
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			fields = append(fields, validate.NewFieldError(param.name, param.name+" must be a non-negative integer"))
			continue
		}
		*param.dst = v
	}
	if fields != nil {
		return replyInvalid(c, "Failed to validate params", fields)
	}

	completed, status := ch.tracker.IsCompleted(p)
	if status != course.StatusOK {
		return replyStatus(c, status)
	}
	return c.JSON(http.StatusOK, &completedResponse{status, completed})
}
