package book

import "time"

// Book is a manuscript published by an author. File columns hold stored names
// from the uploads table; the URL columns are what clients use to fetch them.
type Book struct {
	ID             int64     `gorm:"column:id;primaryKey" json:"id"`
	AuthorID       int64     `gorm:"column:author_id;index;not null" json:"author_id"`
	Title          string    `gorm:"column:title;size:200;not null" json:"title"`
	Genre          string    `gorm:"column:genre;size:100" json:"genre,omitempty"`
	Description    string    `gorm:"column:description;type:text" json:"description,omitempty"`
	ManuscriptFile string    `gorm:"column:manuscript_file;not null" json:"manuscript_file"`
	ManuscriptURL  string    `gorm:"column:manuscript_url" json:"manuscript_url"`
	CoverFile      string    `gorm:"column:cover_file" json:"cover_file,omitempty"`
	CoverURL       string    `gorm:"column:cover_url" json:"cover_url,omitempty"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Book) TableName() string { return "books" }

// StoredNames returns the upload names this book references.
func (b *Book) StoredNames() []string {
	names := []string{b.ManuscriptFile}
	if b.CoverFile != "" {
		names = append(names, b.CoverFile)
	}
	return names
}
