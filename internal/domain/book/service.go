package book

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"novelistan/internal/domain/upload"
	"novelistan/internal/pkg/validator"
)

// FileRemover deletes stored files that no record references anymore.
type FileRemover interface {
	Discard(ctx context.Context, files ...*upload.StoredFile)
}

type CreateInput struct {
	Title       string `validate:"required,max=200"`
	Genre       string `validate:"max=100"`
	Description string `validate:"max=5000"`
}

type Service struct {
	db    *gorm.DB
	books Repository
	files FileRemover
	log   *zap.Logger
}

func NewService(db *gorm.DB, files FileRemover, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, books: NewRepository(db), files: files, log: log}
}

// Create stores the book and its upload descriptors in one transaction. The
// files were committed by the ingestion middleware already; whenever Create
// fails they are removed again so no orphan stays on disk.
func (s *Service) Create(ctx context.Context, authorID int64, in CreateInput, manuscript, cover *upload.StoredFile) (*Book, error) {
	b, err := s.create(ctx, authorID, in, manuscript, cover)
	if err != nil {
		s.files.Discard(context.WithoutCancel(ctx), manuscript, cover)
		return nil, err
	}
	return b, nil
}

func (s *Service) create(ctx context.Context, authorID int64, in CreateInput, manuscript, cover *upload.StoredFile) (*Book, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Genre = strings.TrimSpace(in.Genre)
	in.Description = strings.TrimSpace(in.Description)
	if errs := validator.Validate(in); errs != nil {
		return nil, &InputError{Fields: errs}
	}
	if manuscript == nil {
		return nil, ErrManuscriptRequired
	}

	b := &Book{
		AuthorID:       authorID,
		Title:          in.Title,
		Genre:          in.Genre,
		Description:    in.Description,
		ManuscriptFile: manuscript.StoredName,
		ManuscriptURL:  manuscript.URL,
	}
	descriptors := []*upload.StoredFile{manuscript}
	if cover != nil {
		b.CoverFile = cover.StoredName
		b.CoverURL = cover.URL
		descriptors = append(descriptors, cover)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := NewRepository(tx).Create(ctx, b); err != nil {
			return err
		}
		return upload.NewRepository(tx).Create(ctx, descriptors...)
	})
	if err != nil {
		s.log.Error("create book failed", zap.Int64("author_id", authorID), zap.Error(err))
		return nil, err
	}
	return b, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Book, error) {
	return s.books.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, authorID int64) ([]Book, error) {
	return s.books.List(ctx, authorID)
}

// Delete removes the book, its upload descriptors and, after the transaction
// committed, the stored files.
func (s *Service) Delete(ctx context.Context, id, userID int64) error {
	b, err := s.books.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if b.AuthorID != userID {
		return ErrNotOwner
	}

	var stored []*upload.StoredFile
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		uploads := upload.NewRepository(tx)
		var err error
		if stored, err = uploads.ListByStoredNames(ctx, b.StoredNames()); err != nil {
			return err
		}
		if err := NewRepository(tx).Delete(ctx, id); err != nil {
			return err
		}
		return uploads.DeleteByStoredNames(ctx, b.StoredNames())
	})
	if err != nil {
		return err
	}

	s.files.Discard(context.WithoutCancel(ctx), stored...)
	return nil
}
