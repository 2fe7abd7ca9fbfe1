package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/samber/lo"

	"github.com/Kouriin1/Servicio-Comunitario/internal/ids"
	"github.com/Kouriin1/Servicio-Comunitario/internal/media/sniffer"
	"github.com/Kouriin1/Servicio-Comunitario/internal/models"
	"github.com/Kouriin1/Servicio-Comunitario/internal/repository"
	"github.com/Kouriin1/Servicio-Comunitario/internal/storage"
)

// preparedUpload is an Upload whose type has been detected locally.
type preparedUpload struct {
	upload   *Upload
	body     io.Reader
	fileType models.FileType
	mime     string
}

func prepareUpload(u *Upload) (*preparedUpload, error) {
	if u == nil {
		return nil, nil
	}
	result, head, err := sniffer.Detect(u.Body)
	if err != nil && !errors.Is(err, sniffer.ErrUnknownType) {
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidDraft, u.Name, err)
	}

	p := &preparedUpload{
		upload: u,
		body:   io.MultiReader(bytes.NewReader(head), u.Body),
	}
	if err == nil {
		p.fileType = models.FileType(result.Kind)
		p.mime = result.MIME
	} else {
		p.fileType = models.FileType(sniffer.KindFromMIME(u.ContentType))
		p.mime = u.ContentType
	}
	if p.mime == "" {
		p.mime = "application/octet-stream"
	}
	return p, nil
}

// CreatePublication stores a new publication and its optional file. When the
// file cannot be attached the publication is kept and its id is returned with
// an error wrapping ErrMediaAttach.
func (s *Store) CreatePublication(ctx context.Context, draft Draft) (string, error) {
	if err := s.validate(draft); err != nil {
		return "", err
	}
	update, err := s.resolve(draft)
	if err != nil {
		return "", err
	}
	file, err := prepareUpload(draft.File)
	if err != nil {
		return "", err
	}

	userID := s.sessions.CurrentUserID()
	pub := models.Publication{
		ID:            ids.New(),
		Title:         update.Title,
		Description:   update.Description,
		AuthorName:    update.AuthorName,
		AuthorID:      optional(userID),
		FacultyID:     update.FacultyID,
		ContentTypeID: update.ContentTypeID,
		ExternalURL:   update.ExternalURL,
		Location:      update.Location,
		ReadTime:      update.ReadTime,
		Status:        models.PublicationStatusPublished,
	}
	log := s.log.With().Str("publication_id", pub.ID).Str("user_id", userID).Logger()

	if err := s.backend.Publications.Create(ctx, pub); err != nil {
		log.Error().Err(err).Msg("create publication failed")
		return "", fmt.Errorf("%w: create publication: %v", ErrWrite, err)
	}
	log.Info().Str("title", pub.Title).Msg("publication created")

	var attachErr error
	if file != nil {
		if attachErr = s.attach(ctx, userID, pub.ID, file); attachErr != nil {
			log.Error().Err(attachErr).Msg("attach media failed")
		}
	}

	_ = s.LoadContent(ctx)
	return pub.ID, attachErr
}

// UpdatePublication rewrites the mutable fields. A replacement file is stored
// and recorded before the old media is removed.
func (s *Store) UpdatePublication(ctx context.Context, id string, patch Patch) error {
	if err := s.validate(patch.Draft); err != nil {
		return err
	}
	update, err := s.resolve(patch.Draft)
	if err != nil {
		return err
	}
	file, err := prepareUpload(patch.File)
	if err != nil {
		return err
	}

	log := s.log.With().Str("publication_id", id).Logger()
	if err := s.backend.Publications.Update(ctx, id, update); err != nil {
		if errors.Is(err, repository.ErrPublicationNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		log.Error().Err(err).Msg("update publication failed")
		return fmt.Errorf("%w: update publication: %v", ErrWrite, err)
	}

	if file == nil && !patch.RemoveFile {
		_ = s.LoadContent(ctx)
		return nil
	}

	old, err := s.backend.Media.ListByPublication(ctx, id)
	if err != nil {
		_ = s.LoadContent(ctx)
		return fmt.Errorf("%w: list media: %v", ErrWrite, err)
	}

	if file != nil {
		if err := s.attach(ctx, s.sessions.CurrentUserID(), id, file); err != nil {
			log.Error().Err(err).Msg("attach replacement media failed")
			_ = s.LoadContent(ctx)
			return err
		}
	}

	err = s.discardMedia(ctx, old, false)
	_ = s.LoadContent(ctx)
	return err
}

// DeletePublication removes the publication row, which cascades to its media
// rows and bookmarks, then its stored objects. Nothing is touched when the
// row cannot be deleted. Objects that cannot be removed are left for the
// orphan sweep and reported with ErrStorage.
func (s *Store) DeletePublication(ctx context.Context, id string) error {
	log := s.log.With().Str("publication_id", id).Logger()

	media, err := s.backend.Media.ListByPublication(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: list media: %v", ErrWrite, err)
	}
	if err := s.backend.Publications.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrPublicationNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		log.Error().Err(err).Msg("delete publication failed")
		return fmt.Errorf("%w: delete publication: %v", ErrWrite, err)
	}
	log.Info().Int("media", len(media)).Msg("publication deleted")

	storageErr := s.removeObjects(ctx, storagePaths(media), true)

	s.mu.Lock()
	delete(s.bookmarks, id)
	s.items = lo.Reject(s.items, func(item models.ContentItem, _ int) bool { return item.ID == id })
	s.mu.Unlock()

	_ = s.LoadContent(ctx)
	return storageErr
}

// attach uploads a file and records its media row. If the row cannot be
// written the uploaded object is removed again.
func (s *Store) attach(ctx context.Context, userID, publicationID string, file *preparedUpload) error {
	objectPath := storage.ObjectPath(userID, publicationID, s.now(), file.upload.Name)
	if err := s.backend.Storage.Upload(ctx, objectPath, file.body, file.upload.Size, file.mime); err != nil {
		return fmt.Errorf("%w: %w: %v", ErrMediaAttach, ErrStorage, err)
	}

	media := models.MediaFile{
		ID:            ids.New(),
		PublicationID: publicationID,
		FileType:      file.fileType,
		FileName:      file.upload.Name,
		PublicURL:     s.backend.Storage.PublicURL(objectPath),
		StoragePath:   objectPath,
		SizeBytes:     file.upload.Size,
		MimeType:      file.mime,
	}
	if err := s.backend.Media.Create(ctx, media); err != nil {
		_ = s.removeObjects(ctx, []string{objectPath}, false)
		return fmt.Errorf("%w: %w: %v", ErrMediaAttach, ErrWrite, err)
	}
	return nil
}

// discardMedia deletes media rows and then their objects.
func (s *Store) discardMedia(ctx context.Context, media []models.MediaFile, surfaceStorage bool) error {
	if len(media) == 0 {
		return nil
	}
	if err := s.backend.Media.DeleteByIDs(ctx, mediaIDs(media)); err != nil {
		return fmt.Errorf("%w: delete media rows: %v", ErrWrite, err)
	}
	return s.removeObjects(ctx, storagePaths(media), surfaceStorage)
}

// removeObjects deletes stored objects, tracking them as orphans on failure.
func (s *Store) removeObjects(ctx context.Context, paths []string, surface bool) error {
	if len(paths) == 0 {
		return nil
	}
	err := s.backend.Storage.Remove(ctx, paths)
	if err == nil {
		return nil
	}
	s.log.Warn().Err(err).Strs("paths", paths).Msg("remove objects failed, tracking orphans")
	if s.backend.Orphans != nil {
		if trackErr := s.backend.Orphans.Track(ctx, paths...); trackErr != nil {
			s.log.Error().Err(trackErr).Msg("track orphans failed")
		}
	}
	if surface {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func mediaIDs(media []models.MediaFile) []string {
	return lo.Map(media, func(m models.MediaFile, _ int) string { return m.ID })
}

func storagePaths(media []models.MediaFile) []string {
	return lo.FilterMap(media, func(m models.MediaFile, _ int) (string, bool) {
		return m.StoragePath, m.StoragePath != ""
	})
}
