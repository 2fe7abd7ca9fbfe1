package content

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/Kouriin1/Servicio-Comunitario/internal/models"
)

const (
	defaultAuthor   = "Administrador"
	defaultReadTime = "5 min"
	defaultLocation = "Por definir"
)

// Draft is the admin form for a publication. Faculty and Type are catalog names.
type Draft struct {
	Title    string `validate:"required,max=300"`
	Excerpt  string `validate:"required,max=5000"`
	Author   string `validate:"max=200"`
	Faculty  string `validate:"required"`
	Type     string `validate:"required"`
	LinkURL  string `validate:"omitempty,url"`
	Location string `validate:"max=300"`
	ReadTime string `validate:"max=50"`
	File     *Upload
}

// Patch replaces the mutable fields of a publication. A File replaces the
// current media; RemoveFile without a File drops it.
type Patch struct {
	Draft
	RemoveFile bool
}

// Upload is a file to attach. Size must be known up front.
type Upload struct {
	Name        string `validate:"required"`
	Size        int64  `validate:"gte=0"`
	ContentType string
	Body        io.Reader `validate:"required"`
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func (s *Store) validate(d Draft) error {
	trimmed := d
	trimmed.Title = strings.TrimSpace(d.Title)
	trimmed.Excerpt = strings.TrimSpace(d.Excerpt)
	if err := s.validator.Struct(trimmed); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := lo.Map(verrs, func(fe validator.FieldError, _ int) string {
				return strings.ToLower(fe.Field()) + " " + fe.Tag()
			})
			return fmt.Errorf("%w: %s", ErrInvalidDraft, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}
	if d.File != nil && s.opts.MaxUploadBytes > 0 && d.File.Size > s.opts.MaxUploadBytes {
		return fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, d.File.Name, d.File.Size)
	}
	return nil
}

// resolve maps catalog names to ids and applies the author and type defaults.
func (s *Store) resolve(d Draft) (models.PublicationUpdate, error) {
	s.mu.RLock()
	faculty, facultyOK := lo.Find(s.faculties, func(f models.Faculty) bool {
		return strings.EqualFold(f.Name, strings.TrimSpace(d.Faculty))
	})
	contentType, typeOK := lo.Find(s.contentTypes, func(ct models.ContentType) bool {
		return strings.EqualFold(ct.Name, strings.TrimSpace(d.Type))
	})
	s.mu.RUnlock()

	if !facultyOK {
		return models.PublicationUpdate{}, fmt.Errorf("%w: %q", ErrUnknownFaculty, d.Faculty)
	}
	if !typeOK {
		return models.PublicationUpdate{}, fmt.Errorf("%w: %q", ErrUnknownContentType, d.Type)
	}

	author := strings.TrimSpace(d.Author)
	if author == "" {
		if user := s.sessions.CurrentUser(); user != nil && user.Name != "" {
			author = user.Name
		} else {
			author = defaultAuthor
		}
	}

	isEvent := contentType.Name == models.ContentTypeEvent
	readTime := strings.TrimSpace(d.ReadTime)
	location := strings.TrimSpace(d.Location)
	if isEvent && location == "" {
		location = defaultLocation
	}
	if !isEvent && readTime == "" {
		readTime = defaultReadTime
	}

	return models.PublicationUpdate{
		Title:         strings.TrimSpace(d.Title),
		Description:   strings.TrimSpace(d.Excerpt),
		AuthorName:    author,
		FacultyID:     faculty.ID,
		ContentTypeID: contentType.ID,
		ExternalURL:   optional(d.LinkURL),
		Location:      optional(location),
		ReadTime:      optional(readTime),
	}, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
