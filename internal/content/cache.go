package content

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pot-code/enlingo/internal/course"
	"github.com/pot-code/enlingo/internal/infrastructure/logging"
	"github.com/pot-code/enlingo/internal/infrastructure/validate"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type setEntry struct {
	set     *course.ExerciseSet
	expires time.Time // zero never expires
}

// Cache session cache in front of a ContentRepository.
//
// Only the active course keeps its curriculum, failures are never cached and
// concurrent fetches of the same key share one origin call.
type Cache struct {
	origin    course.ContentRepository
	ttl       time.Duration
	validator validate.Validator
	now       func() time.Time
	group     singleflight.Group

	mu     sync.Mutex
	epoch  uint64 // bumped by Invalidate, fetches started before are not stored
	active course.CourseID
	trees  map[course.CourseID]*course.Curriculum
	sets   map[course.ExerciseID]setEntry
}

var (
	_ course.ContentRepository = &Cache{}
	_ course.CourseSwitcher    = &Cache{}
)

// NewCache wrap origin, exercise sets live for ttl, 0 keeps them for the whole session
func NewCache(origin course.ContentRepository, ttl time.Duration, validator validate.Validator) *Cache {
	return &Cache{
		origin:    origin,
		ttl:       ttl,
		validator: validator,
		now:       time.Now,
		trees:     make(map[course.CourseID]*course.Curriculum),
		sets:      make(map[course.ExerciseID]setEntry),
	}
}

// SwitchCourse evict curricula of every course but id
func (c *Cache) SwitchCourse(id course.CourseID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == id {
		return
	}
	c.active = id
	for cached := range c.trees {
		if cached != id {
			delete(c.trees, cached)
		}
	}
}

// Invalidate drop everything, eg. after a content update
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.trees = make(map[course.CourseID]*course.Curriculum)
	c.sets = make(map[course.ExerciseID]setEntry)
}

func (c *Cache) CurriculumTree(ctx context.Context, id course.CourseID) (*course.Curriculum, error) {
	c.mu.Lock()
	if tree, ok := c.trees[id]; ok {
		c.mu.Unlock()
		return tree, nil
	}
	epoch := c.epoch
	c.mu.Unlock()

	v, err := c.do(ctx, "tree:"+string(id), func(ctx context.Context) (interface{}, error) {
		tree, err := c.origin.CurriculumTree(ctx, id)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.epoch == epoch && (c.active == "" || c.active == id) {
			c.trees[id] = tree
		}
		c.mu.Unlock()
		return tree, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*course.Curriculum), nil
}

func (c *Cache) ExerciseSet(ctx context.Context, id course.ExerciseID) (*course.ExerciseSet, error) {
	c.mu.Lock()
	if entry, ok := c.sets[id]; ok && (entry.expires.IsZero() || c.now().Before(entry.expires)) {
		c.mu.Unlock()
		return entry.set, nil
	}
	epoch := c.epoch
	c.mu.Unlock()

	v, err := c.do(ctx, "set:"+strconv.Itoa(int(id)), func(ctx context.Context) (interface{}, error) {
		set, err := c.origin.ExerciseSet(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := checkExerciseSet(c.validator, set); err != nil {
			return nil, err
		}

		entry := setEntry{set: set}
		if c.ttl > 0 {
			entry.expires = c.now().Add(c.ttl)
		}
		c.mu.Lock()
		if c.epoch == epoch {
			c.sets[id] = entry
		}
		c.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*course.ExerciseSet), nil
}

// do share one origin call per key, the call itself is not cancelled when a waiting caller gives up
func (c *Cache) do(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return fn(fetchCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// Prefetch warm the curriculum of id and its exercise sets, at most limit fetches run at once
func (c *Cache) Prefetch(ctx context.Context, id course.CourseID, limit int) error {
	logger := logging.ExtractLoggerFromContext(ctx)

	tree, err := c.CurriculumTree(ctx, id)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	count := 0
	for _, section := range tree.Sections {
		for _, chapter := range section.Chapters {
			for _, lesson := range chapter.Lessons {
				for _, exerciseID := range lesson.Exercises {
					exerciseID := exerciseID
					count++
					g.Go(func() error {
						_, err := c.ExerciseSet(gctx, exerciseID)
						return err
					})
				}
			}
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Debug("content prefetched", zap.String("course.id", string(id)), zap.Int("exercise_sets", count))
	return nil
}
