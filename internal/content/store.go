package content

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/Kouriin1/Servicio-Comunitario/internal/models"
	"github.com/Kouriin1/Servicio-Comunitario/internal/session"
)

type Catalogs interface {
	ActiveFaculties(ctx context.Context) ([]models.Faculty, error)
	ActiveContentTypes(ctx context.Context) ([]models.ContentType, error)
}

type Publications interface {
	ListPublished(ctx context.Context) ([]models.Publication, error)
	Create(ctx context.Context, pub models.Publication) error
	Update(ctx context.Context, id string, update models.PublicationUpdate) error
	Delete(ctx context.Context, id string) error
}

type Media interface {
	ListByPublication(ctx context.Context, publicationID string) ([]models.MediaFile, error)
	Create(ctx context.Context, media models.MediaFile) error
	DeleteByIDs(ctx context.Context, ids []string) error
}

type Bookmarks interface {
	ListPublicationIDs(ctx context.Context, userID string) ([]string, error)
	Add(ctx context.Context, userID, publicationID string) error
	Remove(ctx context.Context, userID, publicationID string) error
}

type Storage interface {
	Upload(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string) error
	PublicURL(objectPath string) string
	Remove(ctx context.Context, paths []string) error
}

type Orphans interface {
	Track(ctx context.Context, paths ...string) error
}

// SessionSource is the view of the session manager the store needs.
type SessionSource interface {
	CurrentUserID() string
	CurrentUser() *models.User
	Subscribe(fn func(session.State)) func()
}

type Backend struct {
	Catalogs     Catalogs
	Publications Publications
	Media        Media
	Bookmarks    Bookmarks
	Storage      Storage
	Orphans      Orphans
}

type Options struct {
	MaxUploadBytes int64
}

const sessionChangeTimeout = 10 * time.Second

// Store mirrors published content, the current user's bookmarks and the
// reference catalogs of one workspace.
type Store struct {
	backend   Backend
	sessions  SessionSource
	opts      Options
	log       zerolog.Logger
	validator *validator.Validate
	now       func() time.Time

	mu            sync.RWMutex
	faculties     []models.Faculty
	contentTypes  []models.ContentType
	items         []models.ContentItem
	bookmarks     map[string]struct{}
	bookmarkOwner string
	bookmarkGen   uint64

	unsubscribe func()
}

// NewStore builds the store and starts following session changes: bookmarks
// are cleared on sign-out and reloaded whenever a session is present.
func NewStore(backend Backend, sessions SessionSource, opts Options, log zerolog.Logger) *Store {
	s := &Store{
		backend:   backend,
		sessions:  sessions,
		opts:      opts,
		log:       log.With().Str("component", "content").Logger(),
		validator: newValidator(),
		now:       time.Now,
		bookmarks: make(map[string]struct{}),
	}
	s.unsubscribe = sessions.Subscribe(s.onSessionChange)
	return s
}

func (s *Store) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (s *Store) onSessionChange(state session.State) {
	if state.Session == nil {
		s.clearBookmarks()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sessionChangeTimeout)
	defer cancel()
	_ = s.LoadBookmarks(ctx)
}

func (s *Store) LoadCatalogs(ctx context.Context) error {
	faculties, err := s.backend.Catalogs.ActiveFaculties(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("load faculties failed")
		return fmt.Errorf("%w: faculties: %v", ErrDataFetch, err)
	}
	contentTypes, err := s.backend.Catalogs.ActiveContentTypes(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("load content types failed")
		return fmt.Errorf("%w: content types: %v", ErrDataFetch, err)
	}

	s.mu.Lock()
	s.faculties = faculties
	s.contentTypes = contentTypes
	s.mu.Unlock()
	return nil
}

// LoadContent replaces the mirror with every published publication.
func (s *Store) LoadContent(ctx context.Context) error {
	pubs, err := s.backend.Publications.ListPublished(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("load content failed")
		return fmt.Errorf("%w: publications: %v", ErrDataFetch, err)
	}

	items := lo.FilterMap(pubs, func(p models.Publication, _ int) (models.ContentItem, bool) {
		return toItem(p), p.Status == models.PublicationStatusPublished
	})

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	s.log.Debug().Int("count", len(items)).Msg("content loaded")
	return nil
}

// LoadBookmarks replaces the bookmark set of the signed-in user. Without a
// session it empties the set and does not reach the backend. A set owned by
// another user is dropped before fetching, so a failed load never exposes it.
func (s *Store) LoadBookmarks(ctx context.Context) error {
	userID := s.sessions.CurrentUserID()
	if userID == "" {
		s.clearBookmarks()
		return nil
	}

	s.mu.Lock()
	s.bookmarkGen++
	generation := s.bookmarkGen
	if s.bookmarkOwner != userID {
		s.bookmarks = make(map[string]struct{})
		s.bookmarkOwner = ""
	}
	s.mu.Unlock()

	ids, err := s.backend.Bookmarks.ListPublicationIDs(ctx, userID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("load bookmarks failed")
		return fmt.Errorf("%w: bookmarks: %v", ErrDataFetch, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.bookmarkGen || s.sessions.CurrentUserID() != userID {
		s.log.Debug().Str("user_id", userID).Msg("discarding stale bookmarks")
		return nil
	}
	s.bookmarks = lo.SliceToMap(ids, func(id string) (string, struct{}) { return id, struct{}{} })
	s.bookmarkOwner = userID
	return nil
}

func (s *Store) clearBookmarks() {
	s.mu.Lock()
	s.bookmarkGen++
	s.bookmarks = make(map[string]struct{})
	s.bookmarkOwner = ""
	s.mu.Unlock()
}

// ToggleBookmark flips the bookmark of the signed-in user. The local set is
// patched only after the backend accepts the change.
func (s *Store) ToggleBookmark(ctx context.Context, publicationID string) error {
	userID := s.sessions.CurrentUserID()
	if userID == "" {
		return nil
	}

	s.mu.RLock()
	_, saved := s.bookmarks[publicationID]
	saved = saved && s.bookmarkOwner == userID
	s.mu.RUnlock()

	if saved {
		if err := s.backend.Bookmarks.Remove(ctx, userID, publicationID); err != nil {
			return fmt.Errorf("%w: remove bookmark: %v", ErrWrite, err)
		}
	} else {
		if err := s.backend.Bookmarks.Add(ctx, userID, publicationID); err != nil {
			return fmt.Errorf("%w: add bookmark: %v", ErrWrite, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions.CurrentUserID() != userID {
		return nil
	}
	if s.bookmarkOwner != userID {
		s.bookmarks = make(map[string]struct{})
		s.bookmarkOwner = userID
	}
	if saved {
		delete(s.bookmarks, publicationID)
	} else {
		s.bookmarks[publicationID] = struct{}{}
	}
	return nil
}

func toItem(p models.Publication) models.ContentItem {
	item := models.ContentItem{
		ID:        p.ID,
		Title:     p.Title,
		Excerpt:   p.Description,
		Author:    p.AuthorName,
		AuthorID:  lo.FromPtr(p.AuthorID),
		Type:      p.ContentTypeName,
		TypeID:    p.ContentTypeID,
		Faculty:   p.FacultyName,
		FacultyID: p.FacultyID,
		Date:      p.CreatedAt.Format("2006-01-02"),
		CreatedAt: p.CreatedAt,
		ReadTime:  lo.FromPtr(p.ReadTime),
		Location:  lo.FromPtr(p.Location),
		LinkURL:   lo.FromPtr(p.ExternalURL),
		Likes:     p.LikesCount,
		Comments:  p.CommentsCount,
		Views:     p.ViewsCount,
		Saves:     p.BookmarkCount,
	}
	if len(p.Media) > 0 {
		first := p.Media[0]
		item.FileURL = first.PublicURL
		item.FileType = first.FileType
		item.FileName = first.FileName
	}
	return item
}
