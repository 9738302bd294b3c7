package middleware

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ErrorHandlingOption options for error handling
type ErrorHandlingOption struct {
	// Handler replies to err, code is taken from *echo.HTTPError and defaults to 500
	Handler func(c echo.Context, code int, err error)
	Logger  *zap.Logger
}

// ErrorHandling turn errors and panics returned from controller into a response
// **DO NOT return error anymore**
func ErrorHandling(options ...*ErrorHandlingOption) echo.MiddlewareFunc {
	custom := &ErrorHandlingOption{
		Handler: func(c echo.Context, code int, err error) {
			c.String(code, err.Error())
		},
		Logger: zap.NewNop(),
	}
	if len(options) > 0 {
		option := options[0]
		if option.Handler != nil {
			custom.Handler = option.Handler
		}
		if option.Logger != nil {
			custom.Logger = option.Logger
		}
	}
	handler := custom.Handler
	logger := custom.Logger
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (ret error) {
			defer func() {
				if v := recover(); v != nil {
					err, ok := v.(error)
					if !ok {
						err = fmt.Errorf("%v", v)
					}
					logger.Error(err.Error(),
						zap.String("url.path", c.Request().RequestURI),
						zap.String("http.request.method", c.Request().Method),
						zap.Strings("route.params.name", c.ParamNames()),
						zap.Strings("route.params.value", c.ParamValues()),
						zap.String("trace.id", c.Response().Header().Get(echo.HeaderXRequestID)),
						zap.Stack("error.stack_trace"),
					)
					if !c.Response().Committed {
						handler(c, http.StatusInternalServerError, err)
					}
					ret = nil
				}
			}()

			err := next(c)
			if err == nil || c.Response().Committed {
				return nil
			}
			if he, ok := err.(*echo.HTTPError); ok {
				handler(c, he.Code, fmt.Errorf("%v", he.Message))
				return nil
			}
			logger.Error(err.Error(),
				zap.String("url.path", c.Request().RequestURI),
				zap.String("http.request.method", c.Request().Method),
				zap.String("trace.id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			handler(c, http.StatusInternalServerError, err)
			return nil
		}
	}
}
