// Package migration runs registered schema migrations in batches and records
// them in a tracking table so they can be rolled back batch by batch.
//
//	func init() {
//	    migration.Register("20260101000000_create_users_table", &CreateUsersTable{})
//	}
//
// Registered names must sort chronologically; a timestamp prefix does that.
package migration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/freshbulk/storefront/pkg/logger"
)

// Migration is implemented by every schema change.
type Migration interface {
	Up(db *gorm.DB) error
	Down(db *gorm.DB) error
}

type record struct {
	ID    uint      `gorm:"primaryKey;autoIncrement"`
	Name  string    `gorm:"uniqueIndex;size:255;not null"`
	Batch int       `gorm:"not null"`
	RunAt time.Time `gorm:"autoCreateTime"`
}

func (record) TableName() string { return "schema_migrations" }

type entry struct {
	name string
	m    Migration
}

var (
	registryMu sync.Mutex
	registry   []entry
)

// Register adds m to the global registry. Registering the same name twice
// panics.
func Register(name string, m Migration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, e := range registry {
		if e.name == name {
			panic(fmt.Sprintf("migration: %q registered twice", name))
		}
	}
	registry = append(registry, entry{name: name, m: m})
}

func registered() []entry {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := append([]entry(nil), registry...)
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Status describes one registered migration.
type Status struct {
	Name  string
	Ran   bool
	Batch int
}

// Runner executes and tracks migrations against one database.
type Runner struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Runner {
	return &Runner{db: db}
}

func (r *Runner) ensureTable() error {
	return r.db.AutoMigrate(&record{})
}

func (r *Runner) ran(ctx context.Context) (map[string]record, error) {
	var rows []record
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]record, len(rows))
	for _, rec := range rows {
		out[rec.Name] = rec
	}
	return out, nil
}

// Run applies every pending migration as one new batch and returns the names
// it applied. Each migration and its tracking row commit together.
func (r *Runner) Run(ctx context.Context) ([]string, error) {
	if err := r.ensureTable(); err != nil {
		return nil, fmt.Errorf("migration: ensure table: %w", err)
	}

	done, err := r.ran(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration: load history: %w", err)
	}

	var pending []entry
	for _, e := range registered() {
		if _, ok := done[e.name]; !ok {
			pending = append(pending, e)
		}
	}
	if len(pending) == 0 {
		logger.Info("migration: nothing to migrate")
		return nil, nil
	}

	batch := r.lastBatch(ctx) + 1
	applied := make([]string, 0, len(pending))

	for _, e := range pending {
		logger.Info("migration: running", "name", e.name, "batch", batch)
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := e.m.Up(tx); err != nil {
				return err
			}
			return tx.Create(&record{Name: e.name, Batch: batch}).Error
		})
		if err != nil {
			return applied, fmt.Errorf("migration: %s up: %w", e.name, err)
		}
		applied = append(applied, e.name)
	}

	logger.Info("migration: done", "ran", len(applied), "batch", batch)
	return applied, nil
}

// Rollback reverses the most recent batch, newest migration first, and
// returns the names it reverted.
func (r *Runner) Rollback(ctx context.Context) ([]string, error) {
	if err := r.ensureTable(); err != nil {
		return nil, fmt.Errorf("migration: ensure table: %w", err)
	}

	batch := r.lastBatch(ctx)
	if batch == 0 {
		return nil, nil
	}

	var rows []record
	if err := r.db.WithContext(ctx).Where("batch = ?", batch).Order("id desc").Find(&rows).Error; err != nil {
		return nil, err
	}

	byName := make(map[string]Migration)
	for _, e := range registered() {
		byName[e.name] = e.m
	}

	var reverted []string
	for _, rec := range rows {
		m, ok := byName[rec.Name]
		if !ok {
			return reverted, fmt.Errorf("migration: cannot roll back %s: not registered", rec.Name)
		}

		logger.Info("migration: rolling back", "name", rec.Name, "batch", batch)
		rec := rec
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := m.Down(tx); err != nil {
				return err
			}
			return tx.Delete(&rec).Error
		})
		if err != nil {
			return reverted, fmt.Errorf("migration: %s down: %w", rec.Name, err)
		}
		reverted = append(reverted, rec.Name)
	}
	return reverted, nil
}

// Status lists every registered migration with its batch, if it ran.
func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	if err := r.ensureTable(); err != nil {
		return nil, err
	}
	done, err := r.ran(ctx)
	if err != nil {
		return nil, err
	}

	var out []Status
	for _, e := range registered() {
		rec, ok := done[e.name]
		out = append(out, Status{Name: e.name, Ran: ok, Batch: rec.Batch})
	}
	return out, nil
}

func (r *Runner) lastBatch(ctx context.Context) int {
	var maxBatch struct{ Max int }
	r.db.WithContext(ctx).Model(&record{}).Select("COALESCE(MAX(batch), 0) AS max").Scan(&maxBatch)
	return maxBatch.Max
}
