package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Kouriin1/Servicio-Comunitario/internal/content"
	"github.com/Kouriin1/Servicio-Comunitario/internal/middleware"
)

const multipartOverhead = 1 << 20

// draftFromForm reads the publication form. The returned closer releases the
// uploaded file, if any.
func draftFromForm(c *gin.Context) (content.Draft, func(), error) {
	draft := content.Draft{
		Title:    c.PostForm("title"),
		Excerpt:  c.PostForm("excerpt"),
		Author:   c.PostForm("author"),
		Faculty:  c.PostForm("faculty"),
		Type:     c.PostForm("type"),
		LinkURL:  c.PostForm("linkUrl"),
		Location: c.PostForm("location"),
		ReadTime: c.PostForm("readTime"),
	}

	fh, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return draft, func() {}, nil
	}
	if err != nil {
		return draft, func() {}, err
	}
	file, err := fh.Open()
	if err != nil {
		return draft, func() {}, err
	}
	draft.File = uploadFrom(fh, file)
	return draft, func() { _ = file.Close() }, nil
}

func uploadFrom(fh *multipart.FileHeader, file multipart.File) *content.Upload {
	return &content.Upload{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        file,
	}
}

func (h HandlerSet) limitBody(c *gin.Context) {
	if limit := h.cfg.Storage.MaxUploadBytes; limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)
	}
}

func (h HandlerSet) CreatePublication(c *gin.Context) {
	h.limitBody(c)
	draft, release, err := draftFromForm(c)
	if err != nil {
		h.formError(c, err)
		return
	}
	defer release()

	store := middleware.CurrentWorkspace(c).Content
	id, err := store.CreatePublication(c.Request.Context(), draft)
	if err != nil && id == "" {
		h.contentError(c, err)
		return
	}

	resp := gin.H{"id": id}
	if item, ok := store.Get(id); ok {
		resp["item"] = item
	}
	if err != nil {
		h.log.Warn().Err(err).Str("publication_id", id).Msg("publication created without media")
		resp["warning"] = "media_not_attached"
	}
	c.JSON(http.StatusCreated, resp)
}

func (h HandlerSet) UpdatePublication(c *gin.Context) {
	h.limitBody(c)
	draft, release, err := draftFromForm(c)
	if err != nil {
		h.formError(c, err)
		return
	}
	defer release()
	removeFile, _ := strconv.ParseBool(c.PostForm("removeFile"))

	id := c.Param("id")
	store := middleware.CurrentWorkspace(c).Content
	if err := store.UpdatePublication(c.Request.Context(), id, content.Patch{Draft: draft, RemoveFile: removeFile}); err != nil {
		h.contentError(c, err)
		return
	}

	item, _ := store.Get(id)
	c.JSON(http.StatusOK, gin.H{"id": id, "item": item})
}

func (h HandlerSet) DeletePublication(c *gin.Context) {
	id := c.Param("id")
	err := middleware.CurrentWorkspace(c).Content.DeletePublication(c.Request.Context(), id)
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, content.ErrStorage):
		h.log.Warn().Err(err).Str("publication_id", id).Msg("publication deleted, files left for sweep")
		c.JSON(http.StatusOK, gin.H{"id": id, "warning": "files_pending_removal"})
	default:
		h.contentError(c, err)
	}
}

func (h HandlerSet) formError(c *gin.Context, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file_too_large"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_form", "message": err.Error()})
}

func (h HandlerSet) contentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, content.ErrInvalidDraft),
		errors.Is(err, content.ErrUnknownFaculty),
		errors.Is(err, content.ErrUnknownContentType):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_draft", "message": err.Error()})
	case errors.Is(err, content.ErrFileTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file_too_large", "message": err.Error()})
	case errors.Is(err, content.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("content write failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "write_failed", "message": err.Error()})
	}
}
