package upload

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, files ...*StoredFile) error
	GetByStoredName(ctx context.Context, storedName string) (*StoredFile, error)
	ListByStoredNames(ctx context.Context, storedNames []string) ([]*StoredFile, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*StoredFile, error)
	DeleteByStoredNames(ctx context.Context, storedNames []string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository accepts a plain handle or a transaction.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, files ...*StoredFile) error {
	if len(files) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(files).Error
}

func (r *repository) GetByStoredName(ctx context.Context, storedName string) (*StoredFile, error) {
	var f StoredFile
	err := r.db.WithContext(ctx).Where("stored_name = ?", storedName).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUploadNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *repository) ListByStoredNames(ctx context.Context, storedNames []string) ([]*StoredFile, error) {
	var files []*StoredFile
	if len(storedNames) == 0 {
		return files, nil
	}
	err := r.db.WithContext(ctx).Where("stored_name IN ?", storedNames).Find(&files).Error
	return files, err
}

func (r *repository) ListByOwner(ctx context.Context, ownerID int64) ([]*StoredFile, error) {
	var files []*StoredFile
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&files).Error
	return files, err
}

func (r *repository) DeleteByStoredNames(ctx context.Context, storedNames []string) error {
	if len(storedNames) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("stored_name IN ?", storedNames).Delete(&StoredFile{}).Error
}
