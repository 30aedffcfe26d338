package gallery

import (
	"context"
	"errors"

	"github.com/eleven-am/roverlink/internal/shared"
	"gorm.io/gorm"
)

var ErrNotFound = shared.ErrNotFound

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Item{})
}

func (s *Store) Create(ctx context.Context, item *Item) error {
	if item.ID == "" {
		item.ID = shared.NewID("gal_")
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetByID(ctx context.Context, id string) (*Item, error) {
	var item Item
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// List returns items newest first. An empty kind matches every item.
func (s *Store) List(ctx context.Context, kind Kind, limit, offset int) ([]*Item, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Offset(offset)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}

	var items []*Item
	err := q.Find(&items).Error
	return items, err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&Item{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
