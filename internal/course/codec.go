package course

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/pot-code/enlingo/internal/infrastructure/validate"
)

// ParseTag kind of a ParseResult
type ParseTag int

const (
	ParseOK ParseTag = iota
	ParseMalformed
	ParseOutOfBounds
	ParsePending // well formed, tree not loaded yet
)

func (t ParseTag) String() string {
	switch t {
	case ParseOK:
		return "ok"
	case ParseMalformed:
		return "malformed"
	case ParseOutOfBounds:
		return "out_of_bounds"
	default:
		return "pending"
	}
}

// ParseResult outcome of ParseProgression, Progression holds the decoded value unless Tag is ParseMalformed
type ParseResult struct {
	Tag         ParseTag
	Progression CourseProgression
	Err         error
}

type rawProgression struct {
	SectionIdx  *int `json:"sectionIdx"`
	ChapterIdx  *int `json:"chapterIdx"`
	LessonIdx   *int `json:"lessonIdx"`
	ExerciseIdx *int `json:"exerciseIdx"`
}

var progressionValidator validate.Validator = validate.NewValidator()

// DecodeProgression decode the four field JSON object, without checking it against a tree
func DecodeProgression(raw []byte) (CourseProgression, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var rp rawProgression
	if err := dec.Decode(&rp); err != nil {
		return DefaultProgression, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return DefaultProgression, errors.New("unexpected data after progression object")
	}

	fields := []struct {
		name string
		v    *int
	}{
		{"sectionIdx", rp.SectionIdx},
		{"chapterIdx", rp.ChapterIdx},
		{"lessonIdx", rp.LessonIdx},
		{"exerciseIdx", rp.ExerciseIdx},
	}
	for _, f := range fields {
		if f.v == nil {
			return DefaultProgression, fmt.Errorf("%s is required", f.name)
		}
	}

	p := CourseProgression{
		SectionIdx:  *rp.SectionIdx,
		ChapterIdx:  *rp.ChapterIdx,
		LessonIdx:   *rp.LessonIdx,
		ExerciseIdx: *rp.ExerciseIdx,
	}
	if errs := progressionValidator.Struct(p); len(errs) > 0 {
		return DefaultProgression, errs[0]
	}
	return p, nil
}

// ParseProgression decode raw and check it against tree
func ParseProgression(raw string, tree *Curriculum) ParseResult {
	p, err := DecodeProgression([]byte(raw))
	if err != nil {
		return ParseResult{Tag: ParseMalformed, Err: err}
	}
	switch Validate(p, tree) {
	case StatusPending:
		return ParseResult{Tag: ParsePending, Progression: p}
	case StatusOK:
		return ParseResult{Tag: ParseOK, Progression: p}
	default:
		return ParseResult{
			Tag:         ParseOutOfBounds,
			Progression: p,
			Err:         fmt.Errorf("progression %s does not fit the curriculum", EncodeProgression(p)),
		}
	}
}

// EncodeProgression serialize p as stored under ProgressionKey
func EncodeProgression(p CourseProgression) string {
	b, _ := json.Marshal(p)
	return string(b)
}
