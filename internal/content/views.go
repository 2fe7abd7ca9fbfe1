package content

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/Kouriin1/Servicio-Comunitario/internal/models"
)

// Wildcards accepted by FeedQuery.
const (
	AllFaculties = "Todas"
	AllTypes     = "Todos"
)

// FeedQuery narrows the feed. Empty fields match everything.
type FeedQuery struct {
	Faculty   string
	Type      string
	Query     string
	SavedOnly bool
}

func (s *Store) All() []models.ContentItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ContentItem(nil), s.items...)
}

func (s *Store) Events() []models.ContentItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Filter(s.items, func(item models.ContentItem, _ int) bool {
		return item.Type == models.ContentTypeEvent
	})
}

func (s *Store) Works() []models.ContentItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Filter(s.items, func(item models.ContentItem, _ int) bool {
		return item.Type == models.ContentTypeThesis || item.Type == models.ContentTypeArticle
	})
}

// Saved returns the bookmarked items in feed order.
func (s *Store) Saved() []models.ContentItem {
	return s.Filter(FeedQuery{SavedOnly: true})
}

func (s *Store) Get(id string) (models.ContentItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Find(s.items, func(item models.ContentItem) bool { return item.ID == id })
}

func (s *Store) Filter(q FeedQuery) []models.ContentItem {
	faculty := strings.TrimSpace(q.Faculty)
	contentType := strings.TrimSpace(q.Type)
	needle := strings.ToLower(strings.TrimSpace(q.Query))

	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Filter(s.items, func(item models.ContentItem, _ int) bool {
		if faculty != "" && faculty != AllFaculties && item.Faculty != faculty {
			return false
		}
		if contentType != "" && contentType != AllTypes && item.Type != contentType {
			return false
		}
		if q.SavedOnly {
			if _, ok := s.bookmarks[item.ID]; !ok {
				return false
			}
		}
		if needle != "" && !strings.Contains(strings.ToLower(item.Title+" "+item.Author), needle) {
			return false
		}
		return true
	})
}

func (s *Store) Faculties() []models.Faculty {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Faculty(nil), s.faculties...)
}

func (s *Store) ContentTypes() []models.ContentType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ContentType(nil), s.contentTypes...)
}

func (s *Store) IsBookmarked(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.bookmarks[id]
	return ok
}

// BookmarkIDs returns the bookmarked publication ids, sorted.
func (s *Store) BookmarkIDs() []string {
	s.mu.RLock()
	ids := lo.Keys(s.bookmarks)
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
