// Package seed loads catalog data from a YAML file.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/alem-hub/coursequest/internal/domain/catalog"
	"github.com/alem-hub/coursequest/internal/domain/shared"
)

// File is the YAML document layout.
type File struct {
	Tags    []TagDoc    `yaml:"tags"`
	Courses []CourseDoc `yaml:"courses"`
}

// TagDoc is one tag entry.
type TagDoc struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

// CourseDoc is one course with its modules.
type CourseDoc struct {
	ID          int64       `yaml:"id"`
	Title       string      `yaml:"title"`
	Description string      `yaml:"description"`
	Tier        string      `yaml:"tier"`
	Cost        int64       `yaml:"cost"`
	Difficulty  string      `yaml:"difficulty"`
	Image       string      `yaml:"image"`
	TimeLimit   int64       `yaml:"time_limit_seconds"`
	Tags        []int64     `yaml:"tags"`
	Modules     []ModuleDoc `yaml:"modules"`
}

// ModuleDoc is one module entry.
type ModuleDoc struct {
	ID          int64  `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Position    int    `yaml:"position"`
	Kind        string `yaml:"kind"`
	UnlockCost  int64  `yaml:"unlock_cost"`
	Image       string `yaml:"image"`
}

// Summary counts what a load wrote.
type Summary struct {
	Tags    int
	Courses int
	Modules int
}

// Parse decodes and validates a catalog document without writing it.
func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	courseIDs := make(map[int64]bool, len(f.Courses))
	moduleIDs := make(map[int64]bool)
	for _, cd := range f.Courses {
		if courseIDs[cd.ID] {
			return fmt.Errorf("course %d: duplicate id", cd.ID)
		}
		courseIDs[cd.ID] = true

		c := cd.course()
		if err := c.Validate(); err != nil {
			return fmt.Errorf("course %d: %w", cd.ID, err)
		}
		modules := cd.modules()
		for _, m := range modules {
			if moduleIDs[int64(m.ID)] {
				return fmt.Errorf("module %d: duplicate id", m.ID)
			}
			moduleIDs[int64(m.ID)] = true
		}
		if err := catalog.ValidateModuleSet(modules); err != nil {
			return fmt.Errorf("course %d: %w", cd.ID, err)
		}
	}
	return nil
}

func (cd CourseDoc) course() *catalog.Course {
	c := &catalog.Course{
		ID:          shared.CourseID(cd.ID),
		Title:       cd.Title,
		Description: cd.Description,
		Tier:        catalog.Tier(cd.Tier),
		Cost:        cd.Cost,
		Difficulty:  catalog.Difficulty(cd.Difficulty),
		ImageRef:    cd.Image,
		TimeLimit:   cd.TimeLimit,
	}
	if c.Tier == "" {
		c.Tier = catalog.TierFree
	}
	for _, t := range cd.Tags {
		c.TagIDs = append(c.TagIDs, shared.TagID(t))
	}
	return c
}

func (cd CourseDoc) modules() []*catalog.Module {
	out := make([]*catalog.Module, 0, len(cd.Modules))
	for _, md := range cd.Modules {
		kind := catalog.ModuleKind(md.Kind)
		if kind == "" {
			kind = catalog.KindNormal
		}
		out = append(out, &catalog.Module{
			ID:          shared.ModuleID(md.ID),
			CourseID:    shared.CourseID(cd.ID),
			Title:       md.Title,
			Description: md.Description,
			Position:    md.Position,
			Kind:        kind,
			UnlockCost:  md.UnlockCost,
			ImageRef:    md.Image,
		})
	}
	return out
}

// Load parses r and writes every tag, course and module through w. Run it
// inside a transaction to make the load all-or-nothing.
func Load(ctx context.Context, r io.Reader, w catalog.Writer) (Summary, error) {
	f, err := Parse(r)
	if err != nil {
		return Summary{}, err
	}

	var s Summary
	for _, td := range f.Tags {
		if err := w.UpsertTag(ctx, &catalog.Tag{ID: shared.TagID(td.ID), Name: td.Name}); err != nil {
			return s, fmt.Errorf("tag %d: %w", td.ID, err)
		}
		s.Tags++
	}
	for _, cd := range f.Courses {
		if err := w.UpsertCourse(ctx, cd.course()); err != nil {
			return s, fmt.Errorf("course %d: %w", cd.ID, err)
		}
		s.Courses++
		for _, m := range cd.modules() {
			if err := w.UpsertModule(ctx, m); err != nil {
				return s, fmt.Errorf("module %d: %w", m.ID, err)
			}
			s.Modules++
		}
	}
	return s, nil
}

// LoadFile opens path and calls Load.
func LoadFile(ctx context.Context, path string, w catalog.Writer) (Summary, error) {
	fh, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open catalog seed: %w", err)
	}
	defer fh.Close()
	return Load(ctx, fh, w)
}
