package models

import "time"

type PublicationStatus string

const (
	PublicationStatusDraft     PublicationStatus = "draft"
	PublicationStatusPublished PublicationStatus = "published"
)

type FileType string

const (
	FileTypePDF   FileType = "pdf"
	FileTypeVideo FileType = "video"
	FileTypeImage FileType = "image"
	FileTypeLink  FileType = "link"
)

// Content type names as seeded in content_types.
const (
	ContentTypeThesis  = "Tesis"
	ContentTypeArticle = "Artículo"
	ContentTypeEvent   = "Evento"
)

type Faculty struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Code   string `json:"code"`
	Color  string `json:"color"`
	Active bool   `json:"active"`
}

type ContentType struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Icon   string `json:"icon"`
	Color  string `json:"color"`
	Active bool   `json:"active"`
}

type Publication struct {
	ID            string
	Title         string
	Description   string
	AuthorName    string
	AuthorID      *string
	FacultyID     int64
	ContentTypeID int64
	ExternalURL   *string
	Location      *string
	ReadTime      *string
	Status        PublicationStatus
	LikesCount    int
	CommentsCount int
	ViewsCount    int
	BookmarkCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Joined columns, empty on insert.
	FacultyName     string
	ContentTypeName string
	Media           []MediaFile
}

// PublicationUpdate carries the mutable columns of a publication.
type PublicationUpdate struct {
	Title         string
	Description   string
	AuthorName    string
	FacultyID     int64
	ContentTypeID int64
	ExternalURL   *string
	Location      *string
	ReadTime      *string
}

type MediaFile struct {
	ID            string
	PublicationID string
	FileType      FileType
	FileName      string
	PublicURL     string
	StoragePath   string
	SizeBytes     int64
	MimeType      string
	CreatedAt     time.Time
}

// ContentItem is the flat view of a published publication.
type ContentItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Excerpt   string    `json:"excerpt"`
	Author    string    `json:"author"`
	AuthorID  string    `json:"authorId,omitempty"`
	Type      string    `json:"type"`
	TypeID    int64     `json:"typeId"`
	Faculty   string    `json:"faculty"`
	FacultyID int64     `json:"facultyId"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"createdAt"`
	ReadTime  string    `json:"readTime,omitempty"`
	Location  string    `json:"location,omitempty"`
	LinkURL   string    `json:"linkUrl,omitempty"`
	FileURL   string    `json:"fileUrl,omitempty"`
	FileType  FileType  `json:"fileType,omitempty"`
	FileName  string    `json:"fileName,omitempty"`
	Likes     int       `json:"likes"`
	Comments  int       `json:"comments"`
	Views     int       `json:"views"`
	Saves     int       `json:"saves"`
}

func (c ContentItem) HasMedia() bool {
	return c.FileURL != "" && c.FileType != ""
}
