package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pot-code/enlingo/internal/course"
	"github.com/pot-code/enlingo/internal/infrastructure/logging"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// HTTPConfig remote content API options
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration

	// responses larger than this are rejected, defaults to 8MiB
	MaxBodyBytes int64
}

// HTTPRepository reads curriculum from the remote content API
type HTTPRepository struct {
	cfg  HTTPConfig
	http *http.Client
}

var _ course.ContentRepository = &HTTPRepository{}

func NewHTTPRepository(cfg HTTPConfig) (*HTTPRepository, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("content base url required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 8 << 20
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &HTTPRepository{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// CurriculumTree GET {base}/courses/{id}/sections
func (c *HTTPRepository) CurriculumTree(ctx context.Context, id course.CourseID) (*course.Curriculum, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "HTTPRepository.CurriculumTree", "external")
	defer apmSpan.End()

	var sections []course.Section
	if err := c.getJSON(ctx, "/courses/"+string(id)+"/sections", &sections); err != nil {
		return nil, fmt.Errorf("course %s: %w", id, err)
	}
	return &course.Curriculum{CourseID: id, Sections: sections}, nil
}

// ExerciseSet GET {base}/exercise-sets/{id}
func (c *HTTPRepository) ExerciseSet(ctx context.Context, id course.ExerciseID) (*course.ExerciseSet, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "HTTPRepository.ExerciseSet", "external")
	defer apmSpan.End()

	var set course.ExerciseSet
	if err := c.getJSON(ctx, "/exercise-sets/"+strconv.Itoa(int(id)), &set); err != nil {
		return nil, fmt.Errorf("exercise set %d: %w", id, err)
	}
	return &set, nil
}

func (c *HTTPRepository) getJSON(ctx context.Context, path string, out interface{}) error {
	logger := logging.ExtractLoggerFromContext(ctx)
	u := c.cfg.BaseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	startTime := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if int64(len(raw)) > c.cfg.MaxBodyBytes {
		return fmt.Errorf("read %s: response exceeds %d bytes", path, c.cfg.MaxBodyBytes)
	}
	logger.Debug("content request",
		zap.String("url.full", u),
		zap.Int("http.response.status_code", resp.StatusCode),
		zap.Duration("event.duration", time.Since(startTime)))

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("content api http %d: %s", resp.StatusCode, truncate(raw, 256))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrInvalidContent, path, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
