package http

import (
	"github.com/labstack/echo/v4"
	echo_middleware "github.com/labstack/echo/v4/middleware"
	infra "github.com/pot-code/enlingo/internal/infrastructure"
)

// request bodies are a course id or a progression
const maxBodySize = "1K"

func v1Endpoint(
	CourseHandler *CourseHandler,
	ExerciseHandler *ExerciseHandler,
	traceLoggerMiddleware echo.MiddlewareFunc,
) *endpoint {
	return &endpoint{
		apiVersion:  "api/v1",
		middlewares: []echo.MiddlewareFunc{traceLoggerMiddleware},
		groups: []*apiGroup{
			{
				prefix: "/course",
				routes: []*route{
					{"GET", "", CourseHandler.HandleGetCourse, nil},
					{"PUT", "", CourseHandler.HandleSetCourse, []echo.MiddlewareFunc{echo_middleware.BodyLimit(maxBodySize)}},
					{"DELETE", "", CourseHandler.HandleClearCourse, nil},
					{"POST", "/reload", CourseHandler.HandleReload, nil},
					{"GET", "/outline", CourseHandler.HandleGetOutline, nil},
				},
			},
			{
				prefix: "/progression",
				routes: []*route{
					{"PUT", "", CourseHandler.HandleNavigate, []echo.MiddlewareFunc{echo_middleware.BodyLimit(maxBodySize)}},
					{"POST", "/advance", CourseHandler.HandleAdvance, nil},
					{"GET", "/exercise", CourseHandler.HandleCurrentExercise, nil},
					{"GET", "/completed", CourseHandler.HandleCompleted, nil},
				},
			},
			{
				prefix: "/exercise-sets",
				routes: []*route{
					{"GET", "/:id", ExerciseHandler.HandleGetExerciseSet, nil},
				},
			},
			{
				prefix: "/ws",
				routes: []*route{
					{"GET", "/progression", infra.WithHeartbeat(CourseHandler.HandleProgressionStream), nil},
				},
			},
		},
	}
}
