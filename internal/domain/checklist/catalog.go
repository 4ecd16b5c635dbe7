package checklist

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/noemisales1009/Round-Juju/internal/platform/apperr"
	"github.com/noemisales1009/Round-Juju/internal/platform/db"
)

// Catalog is the immutable set of round categories and their questions.
type Catalog struct {
	categories []Category
	byID       map[int]Category
	questions  map[int]Question
	byCategory map[int][]Question
}

// NewCatalog validates and indexes the reference data. Categories are kept
// in ID order, questions in (position, ID) order within their category.
func NewCatalog(categories []Category, questions []Question) (*Catalog, error) {
	c := &Catalog{
		byID:       make(map[int]Category, len(categories)),
		questions:  make(map[int]Question, len(questions)),
		byCategory: make(map[int][]Question, len(categories)),
	}
	for _, cat := range categories {
		if cat.ID <= 0 {
			return nil, fmt.Errorf("category %q: id must be positive", cat.Name)
		}
		if cat.Name == "" {
			return nil, fmt.Errorf("category %d: name is required", cat.ID)
		}
		if _, dup := c.byID[cat.ID]; dup {
			return nil, fmt.Errorf("duplicate category id %d", cat.ID)
		}
		c.byID[cat.ID] = cat
		c.categories = append(c.categories, cat)
	}
	for _, q := range questions {
		if q.ID <= 0 {
			return nil, fmt.Errorf("question %q: id must be positive", q.Text)
		}
		if _, ok := c.byID[q.CategoryID]; !ok {
			return nil, fmt.Errorf("question %d: unknown category %d", q.ID, q.CategoryID)
		}
		if _, dup := c.questions[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %d", q.ID)
		}
		c.questions[q.ID] = q
		c.byCategory[q.CategoryID] = append(c.byCategory[q.CategoryID], q)
	}

	sort.Slice(c.categories, func(i, j int) bool { return c.categories[i].ID < c.categories[j].ID })
	for _, qs := range c.byCategory {
		sort.Slice(qs, func(i, j int) bool {
			if qs[i].Position != qs[j].Position {
				return qs[i].Position < qs[j].Position
			}
			return qs[i].ID < qs[j].ID
		})
	}
	return c, nil
}

func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	copy(out, c.categories)
	return out
}

func (c *Catalog) Category(id int) (Category, bool) {
	cat, ok := c.byID[id]
	return cat, ok
}

func (c *Catalog) HasCategory(id int) bool {
	_, ok := c.byID[id]
	return ok
}

func (c *Catalog) Question(id int) (Question, bool) {
	q, ok := c.questions[id]
	return q, ok
}

func (c *Catalog) Questions(categoryID int) []Question {
	qs := c.byCategory[categoryID]
	out := make([]Question, len(qs))
	copy(out, qs)
	return out
}

func (c *Catalog) QuestionIDs(categoryID int) []int {
	qs := c.byCategory[categoryID]
	ids := make([]int, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}
	return ids
}

func (c *Catalog) QuestionCount(categoryID int) int {
	return len(c.byCategory[categoryID])
}

// QuestionCounts maps every category to its number of questions. Categories
// without questions map to 0.
func (c *Catalog) QuestionCounts() map[int]int {
	counts := make(map[int]int, len(c.categories))
	for _, cat := range c.categories {
		counts[cat.ID] = len(c.byCategory[cat.ID])
	}
	return counts
}

// -- Loading --

type catalogFile struct {
	Categories []struct {
		Category  `yaml:",inline"`
		Questions []Question `yaml:"questions"`
	} `yaml:"categories"`
}

// ParseCatalog reads a YAML catalog where each category lists its questions.
// A question's category_id is taken from its enclosing category.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	var cats []Category
	var qs []Question
	for _, entry := range f.Categories {
		cats = append(cats, entry.Category)
		for i, q := range entry.Questions {
			q.CategoryID = entry.ID
			if q.Position == 0 {
				q.Position = i + 1
			}
			qs = append(qs, q)
		}
	}
	return NewCatalog(cats, qs)
}

func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return ParseCatalog(data)
}

// LoadCatalog reads the catalog tables seeded by the migrations.
func LoadCatalog(ctx context.Context, q db.Querier, retry db.RetryPolicy) (*Catalog, error) {
	cats, err := db.Retry(ctx, retry, func(ctx context.Context) ([]Category, error) {
		rows, err := q.Query(ctx, `SELECT id, name, COALESCE(icon, '') FROM categories ORDER BY id`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		var out []Category
		for rows.Next() {
			var c Category
			if err := rows.Scan(&c.ID, &c.Name, &c.Icon); err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		return out, rows.Err()
	})
	if err != nil {
		return nil, apperr.Persistence("load categories", err)
	}

	qs, err := db.Retry(ctx, retry, func(ctx context.Context) ([]Question, error) {
		rows, err := q.Query(ctx, `SELECT id, category_id, text, position FROM questions ORDER BY category_id, position, id`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		var out []Question
		for rows.Next() {
			var qu Question
			if err := rows.Scan(&qu.ID, &qu.CategoryID, &qu.Text, &qu.Position); err != nil {
				return nil, err
			}
			out = append(out, qu)
		}
		return out, rows.Err()
	})
	if err != nil {
		return nil, apperr.Persistence("load questions", err)
	}

	return NewCatalog(cats, qs)
}
