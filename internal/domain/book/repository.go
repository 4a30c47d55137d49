package book

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

const listLimit = 100

type Repository interface {
	Create(ctx context.Context, b *Book) error
	GetByID(ctx context.Context, id int64) (*Book, error)
	List(ctx context.Context, authorID int64) ([]Book, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, b *Book) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Book, error) {
	var b Book
	err := r.db.WithContext(ctx).First(&b, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// List returns the newest books, optionally only those of one author (authorID > 0).
func (r *repository) List(ctx context.Context, authorID int64) ([]Book, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC").Limit(listLimit)
	if authorID > 0 {
		q = q.Where("author_id = ?", authorID)
	}
	var books []Book
	err := q.Find(&books).Error
	return books, err
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&Book{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrBookNotFound
	}
	return nil
}
