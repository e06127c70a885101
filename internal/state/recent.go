package state

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecentCollection backs the collection picker's history.
type RecentCollection struct {
	Name     string `gorm:"primaryKey"`
	Uses     int    `gorm:"not null;default:0"`
	LastUsed int64  `gorm:"index"`
}

func (db *DB) TouchCollection(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	row := RecentCollection{Name: name, Uses: 1, LastUsed: time.Now().UnixNano()}
	return db.Gorm.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(map[string]any{
			"uses":      gorm.Expr("uses + 1"),
			"last_used": row.LastUsed,
		}),
	}).Create(&row).Error
}

// RecentCollections returns names, most recently used first.
func (db *DB) RecentCollections(ctx context.Context, limit int) ([]RecentCollection, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []RecentCollection
	err := db.Gorm.WithContext(ctx).Order("last_used DESC").Limit(limit).Find(&out).Error
	return out, err
}
