package content

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Kouriin1/Servicio-Comunitario/internal/models"
)

type fixture struct {
	store    *Store
	db       *fakeDB
	storage  *fakeStorage
	orphans  *fakeOrphans
	sessions *fakeSessions
	calls    *[]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	calls := &[]string{}
	db := newFakeDB(calls)
	st := &fakeStorage{objects: map[string][]byte{}, calls: calls}
	orphans := &fakeOrphans{}
	sessions := &fakeSessions{}

	store := NewStore(Backend{
		Catalogs:     db,
		Publications: db,
		Media:        fakeMedia{db},
		Bookmarks:    fakeBookmarks{db},
		Storage:      st,
		Orphans:      orphans,
	}, sessions, Options{MaxUploadBytes: 100 << 20}, zerolog.Nop())
	store.now = func() time.Time { return time.UnixMilli(1714557600000) }
	t.Cleanup(store.Close)

	require.NoError(t, store.LoadCatalogs(context.Background()))
	return &fixture{store: store, db: db, storage: st, orphans: orphans, sessions: sessions, calls: calls}
}

func pdfUpload(name string) *Upload {
	body := []byte("%PDF-1.7\nhello")
	return &Upload{Name: name, Size: int64(len(body)), ContentType: "application/pdf", Body: bytes.NewReader(body)}
}

func (f *fixture) resetCalls() {
	*f.calls = (*f.calls)[:0]
}

func TestCreateResolvesCatalogNamesWithoutMedia(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.store.CreatePublication(ctx, Draft{Title: "T", Excerpt: "E", Faculty: "Derecho", Type: "Tesis"})
	require.NoError(t, err)

	row := f.db.pubs[id]
	require.EqualValues(t, 1, row.FacultyID)
	require.EqualValues(t, 9, row.ContentTypeID)
	require.Equal(t, models.PublicationStatusPublished, row.Status)
	require.Empty(t, f.db.media)

	items := f.store.All()
	require.Len(t, items, 1)
	item := items[0]
	require.Equal(t, id, item.ID)
	require.Equal(t, "T", item.Title)
	require.Equal(t, "E", item.Excerpt)
	require.Equal(t, "Derecho", item.Faculty)
	require.Equal(t, "Tesis", item.Type)
	require.Equal(t, "Administrador", item.Author)
	require.Equal(t, "5 min", item.ReadTime)
	require.Empty(t, item.FileURL)
	require.Empty(t, item.FileType)
	require.False(t, item.HasMedia())
}

func TestCreateDefaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sessions.signIn("u1", "Dra. Ana Pérez")

	id, err := f.store.CreatePublication(ctx, Draft{Title: "Foro", Excerpt: "Debate", Faculty: "ingeniería", Type: "Evento"})
	require.NoError(t, err)

	item, ok := f.store.Get(id)
	require.True(t, ok)
	require.Equal(t, "Dra. Ana Pérez", item.Author)
	require.Equal(t, "u1", item.AuthorID)
	require.Equal(t, "Por definir", item.Location)
	require.Empty(t, item.ReadTime)
	require.Len(t, f.store.Events(), 1)
	require.Empty(t, f.store.Works())
}

func TestCreateValidatesBeforeBackend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.store.CreatePublication(ctx, Draft{Title: "  ", Excerpt: "E", Faculty: "Derecho", Type: "Tesis"})
	require.ErrorIs(t, err, ErrInvalidDraft)

	_, err = f.store.CreatePublication(ctx, Draft{Title: "T", Excerpt: "E", Faculty: "Medicina", Type: "Tesis"})
	require.ErrorIs(t, err, ErrUnknownFaculty)

	_, err = f.store.CreatePublication(ctx, Draft{Title: "T", Excerpt: "E", Faculty: "Derecho", Type: "Poema"})
	require.ErrorIs(t, err, ErrUnknownContentType)

	_, err = f.store.CreatePublication(ctx, Draft{Title: "T", Excerpt: "E", Faculty: "Derecho", Type: "Tesis", LinkURL: "not a url"})
	require.ErrorIs(t, err, ErrInvalidDraft)

	big := pdfUpload("big.pdf")
	big.Size = 100<<20 + 1
	_, err = f.store.CreatePublication(ctx, Draft{Title: "T", Excerpt: "E", Faculty: "Derecho", Type: "Tesis", File: big})
	require.ErrorIs(t, err, ErrFileTooLarge)

	require.Empty(t, *f.calls)
}

func TestCreateWithFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sessions.signIn("u1", "Ana")

	id, err := f.store.CreatePublication(ctx, Draft{
		Title: "Tesis", Excerpt: "Resumen", Faculty: "Derecho", Type: "Tesis",
		File: &Upload{Name: "tesis final.pdf", Size: 14, ContentType: "application/octet-stream", Body: bytes.NewReader([]byte("%PDF-1.7\nhello"))},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"publication.create", "storage.upload", "media.create"}, *f.calls)

	expectedPath := fmt.Sprintf("u1/%s/1714557600000_tesis_final.pdf", id)
	require.Equal(t, []byte("%PDF-1.7\nhello"), f.storage.objects[expectedPath])

	require.Len(t, f.db.media, 1)
	for _, m := range f.db.media {
		require.Equal(t, models.FileTypePDF, m.FileType)
		require.Equal(t, "application/pdf", m.MimeType)
		require.Equal(t, expectedPath, m.StoragePath)
	}

	item, _ := f.store.Get(id)
	require.Equal(t, "https://files.test/"+expectedPath, item.FileURL)
	require.Equal(t, models.FileTypePDF, item.FileType)
	require.Equal(t, "tesis final.pdf", item.FileName)
}

func TestCreateFallsBackToDeclaredType(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.store.CreatePublication(ctx, Draft{
		Title: "Clip", Excerpt: "Video", Faculty: "Derecho", Type: "Artículo",
		File: &Upload{Name: "clip.mkv", Size: 5, ContentType: "video/x-matroska", Body: strings.NewReader("?????")},
	})
	require.NoError(t, err)
	item, _ := f.store.Get(id)
	require.Equal(t, models.FileTypeVideo, item.FileType)
}

func TestCreateSurfacesUploadFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.storage.failUpload = errBackend

	id, err := f.store.CreatePublication(ctx, Draft{Title: "T", Excerpt: "E", Faculty: "Derecho", Type: "Tesis", File: pdfUpload("a.pdf")})
	require.ErrorIs(t, err, ErrMediaAttach)
	require.ErrorIs(t, err, ErrStorage)
	require.NotEmpty(t, id)

	item, ok := f.store.Get(id)
	require.True(t, ok)
	require.False(t, item.HasMedia())
}

func TestCreateRemovesObjectWhenMediaRowFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.db.failCreateMedia = errBackend

	id, err := f.store.CreatePublication(ctx, Draft{Title: "T", Excerpt: "E", Faculty: "Derecho", Type: "Tesis", File: pdfUpload("a.pdf")})
	require.ErrorIs(t, err, ErrMediaAttach)
	require.ErrorIs(t, err, ErrWrite)
	require.NotEmpty(t, id)
	require.Empty(t, f.storage.objects)
}

func TestUpdateReplacesMediaKeepingOldUntilNewIsStored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sessions.signIn("u1", "Ana")

	id, err := f.store.CreatePublication(ctx, Draft{Title: "T", Excerpt: "E", Faculty: "Derecho", Type: "Tesis", File: pdfUpload("v1.pdf")})
	require.NoError(t, err)
	f.resetCalls()
	f.store.now = func() time.Time { return time.UnixMilli(1714557700000) }

	err = f.store.UpdatePublication(ctx, id, Patch{Draft: Draft{
		Title: "T2", Excerpt: "E2", Faculty: "Ingeniería", Type: "Artículo", File: pdfUpload("v2.pdf"),
	}})
	require.NoError(t, err)
	require.Equal(t, []string{"publication.update", "storage.upload", "media.create", "media.delete", "storage.remove"}, *f.calls)

	require.Len(t, f.db.media, 1)
	require.Len(t, f.storage.objects, 1)
	item, _ := f.store.Get(id)
	require.Equal(t, "T2", item.Title)
	require.Equal(t, "Ingeniería", item.Faculty)
	require.Equal(t, "v2.pdf", item.FileName)
}

func TestUpdateRemoveFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.store.CreatePublication(ctx, Draft{Title: "T", Excerpt: "E", Faculty: "Derecho", Type: "Tesis", File: pdfUpload("v1.pdf")})
	require.NoError(t, err)

	require.NoError(t, f.store.UpdatePublication(ctx, id, Patch{Draft: Draft{Title: "T", Excerpt: "E", Faculty: "Derecho", Type: "Tesis"}}))
	require.Len(t, f.db.media, 1)

	require.NoError(t, f.store.UpdatePublication(ctx, id, Patch{Draft: Draft{Title: "T", Excerpt: "E", Faculty: "Derecho", Type: "Tesis"}, RemoveFile: true}))
	require.Empty(t, f.db.media)
	require.Empty(t, f.storage.objects)
	item, _ := f.store.Get(id)
	require.False(t, item.HasMedia())
}

func TestUpdateTracksOrphanWhenOldObjectSurvives(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.store.CreatePublication(ctx, Draft{Title: "T", Excerpt: "E", Faculty: "Derecho", Type: "Tesis", File: pdfUpload("v1.pdf")})
	require.NoError(t, err)
	var oldPath string
	for p := range f.storage.objects {
		oldPath = p
	}

	f.storage.failRemove = errBackend
	err = f.store.UpdatePublication(ctx, id, Patch{Draft: Draft{Title: "T", Excerpt: "E", Faculty: "Derecho", Type: "Tesis"}, RemoveFile: true})
	require.NoError(t, err)
	require.Empty(t, f.db.media)
	require.Equal(t, []string{oldPath}, f.orphans.tracked)
}

func TestUpdateUnknownPublication(t *testing.T) {
	f := newFixture(t)
	err := f.store.UpdatePublication(context.Background(), "missing", Patch{Draft: Draft{Title: "T", Excerpt: "E", Faculty: "Derecho", Type: "Tesis"}})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRemovesEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sessions.signIn("u1", "Ana")

	id, err := f.store.CreatePublication(ctx, Draft{Title: "T", Excerpt: "E", Faculty: "Derecho", Type: "Tesis", File: pdfUpload("a.pdf")})
	require.NoError(t, err)
	require.NoError(t, f.store.ToggleBookmark(ctx, id))
	require.True(t, f.store.IsBookmarked(id))
	f.resetCalls()

	f.db.bookmarks["u2"] = map[string]bool{id: true}

	require.NoError(t, f.store.DeletePublication(ctx, id))
	require.Equal(t, []string{"publication.delete", "storage.remove"}, *f.calls)

	_, ok := f.store.Get(id)
	require.False(t, ok)
	require.False(t, f.store.IsBookmarked(id))
	require.Empty(t, f.db.media)
	require.Empty(t, f.db.bookmarks["u1"])
	require.Empty(t, f.db.bookmarks["u2"])
	require.Empty(t, f.storage.objects)
}

func TestDeleteFailureKeepsRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sessions.signIn("u1", "Ana")

	id, err := f.store.CreatePublication(ctx, Draft{Title: "T", Excerpt: "E", Faculty: "Derecho", Type: "Tesis", File: pdfUpload("a.pdf")})
	require.NoError(t, err)
	require.NoError(t, f.store.ToggleBookmark(ctx, id))
	f.db.bookmarks["u2"] = map[string]bool{id: true}
	f.db.failDelete = errBackend
	f.resetCalls()

	err = f.store.DeletePublication(ctx, id)
	require.ErrorIs(t, err, ErrWrite)
	require.Equal(t, []string{"publication.delete"}, *f.calls)

	require.Contains(t, f.db.pubs, id)
	require.Len(t, f.db.media, 1)
	require.True(t, f.db.bookmarks["u1"][id])
	require.True(t, f.db.bookmarks["u2"][id])
	require.Len(t, f.storage.objects, 1)
	require.Empty(t, f.orphans.tracked)

	item, ok := f.store.Get(id)
	require.True(t, ok)
	require.NotEmpty(t, item.FileURL)
	require.True(t, f.store.IsBookmarked(id))
}

func TestDeleteReportsStorageFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.store.CreatePublication(ctx, Draft{Title: "T", Excerpt: "E", Faculty: "Derecho", Type: "Tesis", File: pdfUpload("a.pdf")})
	require.NoError(t, err)
	f.storage.failRemove = errBackend

	err = f.store.DeletePublication(ctx, id)
	require.ErrorIs(t, err, ErrStorage)
	require.Len(t, f.orphans.tracked, 1)

	_, ok := f.store.Get(id)
	require.False(t, ok)
	require.Empty(t, f.db.pubs)
}

func TestToggleBookmarkTwiceRestoresMembership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sessions.signIn("u1", "Ana")

	id, err := f.store.CreatePublication(ctx, Draft{Title: "T", Excerpt: "E", Faculty: "Derecho", Type: "Tesis"})
	require.NoError(t, err)

	before := f.store.IsBookmarked(id)
	require.NoError(t, f.store.ToggleBookmark(ctx, id))
	require.NotEqual(t, before, f.store.IsBookmarked(id))
	require.NoError(t, f.store.ToggleBookmark(ctx, id))
	require.Equal(t, before, f.store.IsBookmarked(id))
}

func TestToggleBookmarkFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sessions.signIn("u1", "Ana")
	f.db.failBookmarks = errBackend

	err := f.store.ToggleBookmark(ctx, "p1")
	require.ErrorIs(t, err, ErrWrite)
	require.False(t, f.store.IsBookmarked("p1"))
}

func TestToggleBookmarkWithoutSessionIsNoop(t *testing.T) {
	f := newFixture(t)
	f.db.failBookmarks = errBackend
	require.NoError(t, f.store.ToggleBookmark(context.Background(), "p1"))
	require.Empty(t, f.store.BookmarkIDs())
}

func TestLoadBookmarksWithoutSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.LoadBookmarks(context.Background()))
	require.Empty(t, f.store.BookmarkIDs())
	require.Zero(t, f.db.bookmarkReads)
}

func TestBookmarksFollowSessionChanges(t *testing.T) {
	f := newFixture(t)
	f.db.bookmarks["u1"] = map[string]bool{"p1": true, "p2": true}
	f.db.bookmarks["u2"] = map[string]bool{"p3": true}

	f.sessions.signIn("u1", "Ana")
	require.Equal(t, []string{"p1", "p2"}, f.store.BookmarkIDs())

	f.sessions.signOut()
	require.Empty(t, f.store.BookmarkIDs())

	f.sessions.signIn("u2", "Luis")
	require.Equal(t, []string{"p3"}, f.store.BookmarkIDs())
}

func TestBookmarksClearedOnUserSwitchWhenLoadFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.store.CreatePublication(ctx, Draft{Title: "T", Excerpt: "E", Faculty: "Derecho", Type: "Tesis"})
	require.NoError(t, err)

	f.sessions.signIn("u1", "Ana")
	require.NoError(t, f.store.ToggleBookmark(ctx, id))
	require.Equal(t, []string{id}, f.store.BookmarkIDs())

	f.db.failBookmarks = errBackend
	f.sessions.signIn("u2", "Luis")

	require.Empty(t, f.store.BookmarkIDs())
	require.Empty(t, f.store.Saved())
	require.False(t, f.store.IsBookmarked(id))
	require.Empty(t, f.store.Filter(FeedQuery{SavedOnly: true}))

	f.db.failBookmarks = nil
	require.NoError(t, f.store.ToggleBookmark(ctx, id))
	require.Equal(t, []string{id}, f.store.BookmarkIDs())
	require.True(t, f.db.bookmarks["u2"][id])
	require.True(t, f.db.bookmarks["u1"][id])
}

func TestLoadFailuresKeepMirror(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sessions.signIn("u1", "Ana")

	_, err := f.store.CreatePublication(ctx, Draft{Title: "T", Excerpt: "E", Faculty: "Derecho", Type: "Tesis"})
	require.NoError(t, err)
	require.NoError(t, f.store.ToggleBookmark(ctx, f.store.All()[0].ID))

	f.db.failList = errBackend
	require.ErrorIs(t, f.store.LoadContent(ctx), ErrDataFetch)
	require.Len(t, f.store.All(), 1)

	f.db.failBookmarks = errBackend
	require.ErrorIs(t, f.store.LoadBookmarks(ctx), ErrDataFetch)
	require.Len(t, f.store.BookmarkIDs(), 1)

	f.db.failCatalogs = errBackend
	require.ErrorIs(t, f.store.LoadCatalogs(ctx), ErrDataFetch)
	require.Len(t, f.store.Faculties(), 2)
}

func TestFilter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sessions.signIn("u1", "Ana")

	drafts := []Draft{
		{Title: "Derecho penal", Excerpt: "x", Author: "Luis Gómez", Faculty: "Derecho", Type: "Tesis"},
		{Title: "Robótica", Excerpt: "x", Author: "Ana Pérez", Faculty: "Ingeniería", Type: "Artículo"},
		{Title: "Jornada", Excerpt: "x", Author: "Decanato", Faculty: "Ingeniería", Type: "Evento"},
	}
	var created []string
	for _, d := range drafts {
		id, err := f.store.CreatePublication(ctx, d)
		require.NoError(t, err)
		created = append(created, id)
	}
	require.NoError(t, f.store.ToggleBookmark(ctx, created[1]))

	require.Len(t, f.store.Filter(FeedQuery{Faculty: AllFaculties, Type: AllTypes}), 3)
	require.Len(t, f.store.Filter(FeedQuery{Faculty: "Ingeniería"}), 2)
	require.Len(t, f.store.Filter(FeedQuery{Faculty: "Ingeniería", Type: "Evento"}), 1)
	require.Len(t, f.store.Filter(FeedQuery{Query: "pérez"}), 1)
	require.Len(t, f.store.Filter(FeedQuery{Query: "PENAL"}), 1)

	saved := f.store.Saved()
	require.Len(t, saved, 1)
	require.Equal(t, created[1], saved[0].ID)
	require.Len(t, f.store.Works(), 2)
	require.Len(t, f.store.Events(), 1)

	all := f.store.All()
	require.Equal(t, created[2], all[0].ID, "newest first")
}
