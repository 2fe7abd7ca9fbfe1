package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Kouriin1/Servicio-Comunitario/internal/content"
	"github.com/Kouriin1/Servicio-Comunitario/internal/middleware"
	"github.com/Kouriin1/Servicio-Comunitario/internal/models"
)

type catalogsResponse struct {
	Faculties    []models.Faculty     `json:"faculties"`
	ContentTypes []models.ContentType `json:"contentTypes"`
}

type itemsResponse struct {
	Items []models.ContentItem `json:"items"`
}

func (h HandlerSet) Catalogs(c *gin.Context) {
	store := middleware.CurrentWorkspace(c).Content
	if len(store.Faculties()) == 0 {
		if err := store.LoadCatalogs(c.Request.Context()); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "catalogs_unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, catalogsResponse{
		Faculties:    nonNil(store.Faculties()),
		ContentTypes: nonNil(store.ContentTypes()),
	})
}

// ListContent filters the feed. refresh=true reloads the mirror first; a
// failed reload still answers from the previous mirror.
func (h HandlerSet) ListContent(c *gin.Context) {
	store := middleware.CurrentWorkspace(c).Content
	if refresh, _ := strconv.ParseBool(c.Query("refresh")); refresh {
		if err := store.LoadContent(c.Request.Context()); err != nil {
			c.Header("Warning", `199 - "content reload failed"`)
		}
	}
	saved, _ := strconv.ParseBool(c.Query("saved"))

	items := store.Filter(content.FeedQuery{
		Faculty:   c.Query("faculty"),
		Type:      c.Query("type"),
		Query:     c.Query("q"),
		SavedOnly: saved,
	})
	c.JSON(http.StatusOK, itemsResponse{Items: nonNil(items)})
}

func (h HandlerSet) ListEvents(c *gin.Context) {
	c.JSON(http.StatusOK, itemsResponse{Items: nonNil(middleware.CurrentWorkspace(c).Content.Events())})
}

func (h HandlerSet) ListWorks(c *gin.Context) {
	c.JSON(http.StatusOK, itemsResponse{Items: nonNil(middleware.CurrentWorkspace(c).Content.Works())})
}

func (h HandlerSet) GetContent(c *gin.Context) {
	item, ok := middleware.CurrentWorkspace(c).Content.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h HandlerSet) ListBookmarks(c *gin.Context) {
	store := middleware.CurrentWorkspace(c).Content
	c.JSON(http.StatusOK, gin.H{
		"ids":   nonNil(store.BookmarkIDs()),
		"items": nonNil(store.Saved()),
	})
}

func (h HandlerSet) ToggleBookmark(c *gin.Context) {
	store := middleware.CurrentWorkspace(c).Content
	id := c.Param("id")
	if err := store.ToggleBookmark(c.Request.Context(), id); err != nil {
		h.log.Error().Err(err).Str("publication_id", id).Msg("toggle bookmark failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "bookmark_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "bookmarked": store.IsBookmarked(id)})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
