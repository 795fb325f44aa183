// Package catalog holds the static, read-only practice problem sheet.
// The catalog is authoritative for totals: statistics iterate it, not the
// user's progress map.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/hyperengineering/leettrack/internal/types"
)

//go:embed catalog.yaml
var defaultYAML []byte

var (
	ErrEmptyCatalog     = errors.New("catalog has no categories")
	ErrEmptyCategory    = errors.New("category has no problems")
	ErrDuplicateProblem = errors.New("duplicate problem id")
	ErrDuplicateKey     = errors.New("duplicate category key")
	ErrInvalidProblem   = errors.New("invalid problem")
)

// Catalog is an ordered mapping from category key to an ordered, non-empty
// sequence of problems. It is immutable after Parse returns.
type Catalog struct {
	keys     []string
	names    map[string]string
	problems map[string][]types.Problem
	byID     map[string]types.Problem
	total    int
}

type fileCategory struct {
	Key      string          `yaml:"key"`
	Name     string          `yaml:"name"`
	Problems []types.Problem `yaml:"problems"`
}

type fileCatalog struct {
	Categories []fileCategory `yaml:"categories"`
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded catalog. It panics if the embedded file is
// malformed, which is caught by the package tests.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Parse(defaultYAML)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("embedded catalog: %v", defaultErr))
	}
	return defaultCatalog
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc fileCatalog
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return build(doc.Categories)
}

// New builds a catalog from in-memory categories, in the given order.
func New(categories []Category) (*Catalog, error) {
	fc := make([]fileCategory, len(categories))
	for i, c := range categories {
		fc[i] = fileCategory{Key: c.Key, Name: c.Name, Problems: c.Problems}
	}
	return build(fc)
}

// Category is one named group of problems used to construct a catalog.
type Category struct {
	Key      string
	Name     string
	Problems []types.Problem
}

func build(categories []fileCategory) (*Catalog, error) {
	if len(categories) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		names:    make(map[string]string, len(categories)),
		problems: make(map[string][]types.Problem, len(categories)),
		byID:     make(map[string]types.Problem),
	}

	for _, cat := range categories {
		if cat.Key == "" {
			return nil, fmt.Errorf("%w: category key is empty", ErrInvalidProblem)
		}
		if _, exists := c.names[cat.Key]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, cat.Key)
		}
		if len(cat.Problems) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptyCategory, cat.Key)
		}

		name := cat.Name
		if name == "" {
			name = cat.Key
		}

		list := make([]types.Problem, 0, len(cat.Problems))
		for _, p := range cat.Problems {
			if err := checkProblem(p); err != nil {
				return nil, fmt.Errorf("category %s: %w", cat.Key, err)
			}
			if _, dup := c.byID[p.ID]; dup {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateProblem, p.ID)
			}
			p.Category = cat.Key
			list = append(list, p)
			c.byID[p.ID] = p
		}

		c.keys = append(c.keys, cat.Key)
		c.names[cat.Key] = name
		c.problems[cat.Key] = list
		c.total += len(list)
	}

	return c, nil
}

func checkProblem(p types.Problem) error {
	if p.ID == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalidProblem)
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: %s has no title", ErrInvalidProblem, p.ID)
	}
	if !p.Difficulty.Valid() {
		return fmt.Errorf("%w: %s has difficulty %q", ErrInvalidProblem, p.ID, p.Difficulty)
	}
	return nil
}

// Categories returns category keys in display order.
func (c *Catalog) Categories() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Name returns the display name of a category, or the key if unknown.
func (c *Catalog) Name(key string) string {
	if n, ok := c.names[key]; ok {
		return n
	}
	return key
}

// Problems returns the problems of one category in display order.
func (c *Catalog) Problems(key string) []types.Problem {
	src := c.problems[key]
	out := make([]types.Problem, len(src))
	copy(out, src)
	return out
}

// All returns every problem, category by category.
func (c *Catalog) All() []types.Problem {
	out := make([]types.Problem, 0, c.total)
	for _, k := range c.keys {
		out = append(out, c.problems[k]...)
	}
	return out
}

// Lookup finds a problem by id.
func (c *Catalog) Lookup(id string) (types.Problem, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Len returns the total number of problems.
func (c *Catalog) Len() int {
	return c.total
}
