// Package inmemdb keeps every record in memory. It backs the tests and local demos.
package inmemdb

import (
	"sync"

	"github.com/trezcool/clotrack/core/outcome"
	"github.com/trezcool/clotrack/core/user"
)

type table[T any] struct {
	rows  map[string]*T
	order []string // insertion order, for stable listings
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]*T)}
}

func (t *table[T]) put(id string, row T) {
	if _, ok := t.rows[id]; !ok {
		t.order = append(t.order, id)
	}
	t.rows[id] = &row
}

func (t *table[T]) get(id string) (T, bool) {
	row, ok := t.rows[id]
	if !ok {
		var zero T
		return zero, false
	}
	return *row, true
}

func (t *table[T]) filter(keep func(T) bool) []T {
	rows := make([]T, 0)
	for _, id := range t.order {
		if row := *t.rows[id]; keep(row) {
			rows = append(rows, row)
		}
	}
	return rows
}

type DB struct {
	mutex     sync.RWMutex
	courses   *table[outcome.Course]
	sections  *table[outcome.Section]
	templates *table[outcome.Template]
	instances *table[outcome.Instance]
	users     *table[user.User]
}

func Open() *DB {
	return &DB{
		courses:   newTable[outcome.Course](),
		sections:  newTable[outcome.Section](),
		templates: newTable[outcome.Template](),
		instances: newTable[outcome.Instance](),
		users:     newTable[user.User](),
	}
}

// AddCourse inserts or replaces a course.
func (db *DB) AddCourse(c outcome.Course) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.courses.put(c.ID, c)
}

// AddSection inserts or replaces a section.
func (db *DB) AddSection(s outcome.Section) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.sections.put(s.ID, s)
}

// AddTemplate inserts or replaces an outcome template.
func (db *DB) AddTemplate(t outcome.Template) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.templates.put(t.ID, t)
}

// AddInstance inserts or replaces an outcome instance, data fields included.
func (db *DB) AddInstance(inst outcome.Instance) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.instances.put(inst.ID, inst)
}
