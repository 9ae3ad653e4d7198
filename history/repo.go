// Package history keeps a log of completed query cycles.
package history

import (
	"context"
	"errors"
	"time"

	"weather-insight/models"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ErrNotTerminal is returned when asked to record a snapshot that is still in progress.
var ErrNotTerminal = errors.New("snapshot is not terminal")

type Repo struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) the sqlite database at dsn
func OpenSQLite(dsn string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
}

func New(db *gorm.DB) (*Repo, error) {
	if err := db.AutoMigrate(&QueryRecord{}); err != nil {
		return nil, err
	}
	return &Repo{db: db}, nil
}

// Record stores a terminal snapshot.
func (r *Repo) Record(ctx context.Context, snap models.Snapshot) (QueryRecord, error) {
	if !snap.State.Phase.Terminal() {
		return QueryRecord{}, ErrNotTerminal
	}

	rec := QueryRecord{
		ID:           uuid.New(),
		QueryID:      snap.QueryID,
		Query:        snap.Query,
		Phase:        string(snap.State.Phase),
		Kind:         string(snap.State.Kind),
		Reason:       snap.State.Reason,
		ForecastDays: len(snap.Forecast),
		CompletedAt:  snap.UpdatedAt.UTC(),
	}
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now().UTC()
	}
	if snap.Current != nil {
		rec.City = snap.Current.LocationName
		rec.Country = snap.Current.CountryCode
		temp := snap.Current.TemperatureC
		rec.TemperatureC = &temp
	}

	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return QueryRecord{}, err
	}
	return rec, nil
}

// Recent returns up to limit records, newest first. limit <= 0 means DefaultLimit.
func (r *Repo) Recent(ctx context.Context, limit int) ([]QueryRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	order := clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: "completed_at"}, Desc: true},
		{Column: clause.Column{Name: "id"}, Desc: true},
	}}

	rows := []QueryRecord{}
	if err := r.db.WithContext(ctx).Clauses(order).Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
