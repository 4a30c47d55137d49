package profile

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"novelistan/internal/domain/upload"
)

var ErrProfileNotFound = errors.New("profile not found")

// FileRemover deletes stored files that no record references anymore.
type FileRemover interface {
	Discard(ctx context.Context, files ...*upload.StoredFile)
}

type Service struct {
	db    *gorm.DB
	files FileRemover
	log   *zap.Logger
}

func NewService(db *gorm.DB, files FileRemover, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, files: files, log: log}
}

func (s *Service) Get(ctx context.Context, userID int64) (*Profile, error) {
	var p Profile
	err := s.db.WithContext(ctx).First(&p, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetPicture points the profile at pic, creating the profile when needed. The
// previous picture and its descriptor are removed once the change committed;
// on failure pic itself is removed.
func (s *Service) SetPicture(ctx context.Context, userID int64, pic *upload.StoredFile) (*Profile, error) {
	var (
		p        Profile
		previous *upload.StoredFile
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		uploads := upload.NewRepository(tx)

		err := tx.First(&p, "user_id = ?", userID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			p = Profile{UserID: userID, CreatedAt: time.Now().UTC()}
		case err != nil:
			return err
		case p.PictureFile != "":
			old, err := uploads.GetByStoredName(ctx, p.PictureFile)
			if err != nil && !errors.Is(err, upload.ErrUploadNotFound) {
				return err
			}
			previous = old
		}

		if err := uploads.Create(ctx, pic); err != nil {
			return err
		}

		p.PictureFile = pic.StoredName
		p.PictureURL = pic.URL
		p.UpdatedAt = time.Now().UTC()
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"picture_file", "picture_url", "updated_at"}),
		}).Create(&p).Error; err != nil {
			return err
		}

		if previous != nil {
			return uploads.DeleteByStoredNames(ctx, []string{previous.StoredName})
		}
		return nil
	})
	if err != nil {
		s.log.Error("set profile picture failed", zap.Int64("user_id", userID), zap.Error(err))
		s.files.Discard(context.WithoutCancel(ctx), pic)
		return nil, err
	}

	if previous != nil {
		s.files.Discard(context.WithoutCancel(ctx), previous)
	}
	return &p, nil
}
