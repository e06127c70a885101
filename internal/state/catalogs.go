package state

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"giftscope/internal/filter"
)

// CatalogSnapshot is the last attribute catalog fetched for a collection.
type CatalogSnapshot struct {
	Collection string `gorm:"primaryKey"`
	Payload    string `gorm:"not null"`
	TraitCount int
	ValueCount int
	UpdatedAt  int64 `gorm:"autoUpdateTime:false;index"`
}

// CatalogRow is the listing shape used by `cache list`.
type CatalogRow struct {
	Collection string
	Traits     int
	Values     int
	UpdatedAt  time.Time
}

func collectionKey(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// GetCatalog returns the stored catalog and when it was written. ok is false
// when nothing is stored.
func (db *DB) GetCatalog(ctx context.Context, collection string) (cat filter.Catalog, at time.Time, ok bool, err error) {
	var row CatalogSnapshot
	err = db.Gorm.WithContext(ctx).Where("collection = ?", collectionKey(collection)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, err
	}
	var raw map[string]map[string]filter.Stat
	if err := json.Unmarshal([]byte(row.Payload), &raw); err != nil {
		// corrupt rows are treated as a miss and overwritten on the next fetch
		return nil, time.Time{}, false, nil
	}
	return filter.NormalizeCatalog(raw), time.Unix(row.UpdatedAt, 0), true, nil
}

func (db *DB) PutCatalog(ctx context.Context, collection string, cat filter.Catalog) error {
	b, err := json.Marshal(cat)
	if err != nil {
		return err
	}
	row := CatalogSnapshot{
		Collection: collectionKey(collection),
		Payload:    string(b),
		TraitCount: len(cat),
		ValueCount: cat.Size(),
		UpdatedAt:  time.Now().Unix(),
	}
	return db.Gorm.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "trait_count", "value_count", "updated_at"}),
	}).Create(&row).Error
}

// DeleteCatalogs removes the snapshot for collection, or every snapshot when
// collection is empty. It returns the number of rows removed.
func (db *DB) DeleteCatalogs(ctx context.Context, collection string) (int64, error) {
	tx := db.Gorm.WithContext(ctx)
	var res *gorm.DB
	if strings.TrimSpace(collection) == "" {
		res = tx.Where("1 = 1").Delete(&CatalogSnapshot{})
	} else {
		res = tx.Where("collection = ?", collectionKey(collection)).Delete(&CatalogSnapshot{})
	}
	return res.RowsAffected, res.Error
}

func (db *DB) ListCatalogs(ctx context.Context) ([]CatalogRow, error) {
	var rows []CatalogSnapshot
	if err := db.Gorm.WithContext(ctx).Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]CatalogRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, CatalogRow{Collection: r.Collection, Traits: r.TraitCount, Values: r.ValueCount, UpdatedAt: time.Unix(r.UpdatedAt, 0)})
	}
	return out, nil
}
