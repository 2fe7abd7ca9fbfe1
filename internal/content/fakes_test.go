package content

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/Kouriin1/Servicio-Comunitario/internal/models"
	"github.com/Kouriin1/Servicio-Comunitario/internal/repository"
	"github.com/Kouriin1/Servicio-Comunitario/internal/session"
)

var errBackend = errors.New("backend unavailable")

// fakeDB is an in-memory relational backend shared by every repository interface.
type fakeDB struct {
	mu           sync.Mutex
	faculties    []models.Faculty
	contentTypes []models.ContentType
	pubs         map[string]models.Publication
	media        map[string]models.MediaFile
	bookmarks    map[string]map[string]bool
	clock        time.Time
	calls        *[]string

	failList        error
	failCatalogs    error
	failCreateMedia error
	failDelete      error
	failBookmarks   error
	bookmarkReads   int
}

func newFakeDB(calls *[]string) *fakeDB {
	return &fakeDB{
		faculties:    []models.Faculty{{ID: 1, Name: "Derecho", Active: true}, {ID: 2, Name: "Ingeniería", Active: true}},
		contentTypes: []models.ContentType{{ID: 9, Name: "Tesis", Active: true}, {ID: 10, Name: "Artículo", Active: true}, {ID: 11, Name: "Evento", Active: true}},
		pubs:         map[string]models.Publication{},
		media:        map[string]models.MediaFile{},
		bookmarks:    map[string]map[string]bool{},
		clock:        time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		calls:        calls,
	}
}

func (f *fakeDB) record(call string) {
	*f.calls = append(*f.calls, call)
}

func (f *fakeDB) ActiveFaculties(context.Context) ([]models.Faculty, error) {
	if f.failCatalogs != nil {
		return nil, f.failCatalogs
	}
	return f.faculties, nil
}

func (f *fakeDB) ActiveContentTypes(context.Context) ([]models.ContentType, error) {
	if f.failCatalogs != nil {
		return nil, f.failCatalogs
	}
	return f.contentTypes, nil
}

func (f *fakeDB) name(id int64, types bool) string {
	if types {
		for _, ct := range f.contentTypes {
			if ct.ID == id {
				return ct.Name
			}
		}
		return ""
	}
	for _, fa := range f.faculties {
		if fa.ID == id {
			return fa.Name
		}
	}
	return ""
}

func (f *fakeDB) ListPublished(context.Context) ([]models.Publication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList != nil {
		return nil, f.failList
	}
	var out []models.Publication
	for _, p := range f.pubs {
		if p.Status != models.PublicationStatusPublished {
			continue
		}
		p.FacultyName = f.name(p.FacultyID, false)
		p.ContentTypeName = f.name(p.ContentTypeID, true)
		p.Media = f.mediaOf(p.ID)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeDB) mediaOf(pubID string) []models.MediaFile {
	var out []models.MediaFile
	for _, m := range f.media {
		if m.PublicationID == pubID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (f *fakeDB) Create(_ context.Context, pub models.Publication) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("publication.create")
	f.clock = f.clock.Add(time.Minute)
	pub.CreatedAt = f.clock
	pub.UpdatedAt = f.clock
	f.pubs[pub.ID] = pub
	return nil
}

func (f *fakeDB) Update(_ context.Context, id string, u models.PublicationUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("publication.update")
	p, ok := f.pubs[id]
	if !ok {
		return repository.ErrPublicationNotFound
	}
	p.Title, p.Description, p.AuthorName = u.Title, u.Description, u.AuthorName
	p.FacultyID, p.ContentTypeID = u.FacultyID, u.ContentTypeID
	p.ExternalURL, p.Location, p.ReadTime = u.ExternalURL, u.Location, u.ReadTime
	f.pubs[id] = p
	return nil
}

func (f *fakeDB) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("publication.delete")
	if f.failDelete != nil {
		return f.failDelete
	}
	if _, ok := f.pubs[id]; !ok {
		return repository.ErrPublicationNotFound
	}
	delete(f.pubs, id)
	// ON DELETE CASCADE on media_files and bookmarks
	for mid, m := range f.media {
		if m.PublicationID == id {
			delete(f.media, mid)
		}
	}
	for _, set := range f.bookmarks {
		delete(set, id)
	}
	return nil
}

type fakeMedia struct{ *fakeDB }

func (f fakeMedia) ListByPublication(_ context.Context, pubID string) ([]models.MediaFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mediaOf(pubID), nil
}

func (f fakeMedia) Create(_ context.Context, m models.MediaFile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("media.create")
	if f.failCreateMedia != nil {
		return f.failCreateMedia
	}
	f.clock = f.clock.Add(time.Second)
	m.CreatedAt = f.clock
	f.media[m.ID] = m
	return nil
}

func (f fakeMedia) DeleteByIDs(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("media.delete")
	for _, id := range ids {
		delete(f.media, id)
	}
	return nil
}

type fakeBookmarks struct{ *fakeDB }

func (f fakeBookmarks) ListPublicationIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookmarkReads++
	if f.failBookmarks != nil {
		return nil, f.failBookmarks
	}
	var ids []string
	for id := range f.bookmarks[userID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f fakeBookmarks) Add(_ context.Context, userID, pubID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBookmarks != nil {
		return f.failBookmarks
	}
	if f.bookmarks[userID] == nil {
		f.bookmarks[userID] = map[string]bool{}
	}
	f.bookmarks[userID][pubID] = true
	return nil
}

func (f fakeBookmarks) Remove(_ context.Context, userID, pubID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBookmarks != nil {
		return f.failBookmarks
	}
	delete(f.bookmarks[userID], pubID)
	return nil
}

type fakeStorage struct {
	objects    map[string][]byte
	calls      *[]string
	failUpload error
	failRemove error
}

func (s *fakeStorage) Upload(_ context.Context, path string, r io.Reader, _ int64, _ string) error {
	*s.calls = append(*s.calls, "storage.upload")
	if s.failUpload != nil {
		return s.failUpload
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.objects[path] = data
	return nil
}

func (s *fakeStorage) PublicURL(path string) string {
	return "https://files.test/" + path
}

func (s *fakeStorage) Remove(_ context.Context, paths []string) error {
	*s.calls = append(*s.calls, "storage.remove")
	if s.failRemove != nil {
		return s.failRemove
	}
	for _, p := range paths {
		delete(s.objects, p)
	}
	return nil
}

type fakeOrphans struct {
	tracked []string
}

func (o *fakeOrphans) Track(_ context.Context, paths ...string) error {
	o.tracked = append(o.tracked, paths...)
	return nil
}

type fakeSessions struct {
	mu     sync.Mutex
	userID string
	user   *models.User
	subs   []func(session.State)
}

func (f *fakeSessions) CurrentUserID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userID
}

func (f *fakeSessions) CurrentUser() *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user
}

func (f *fakeSessions) Subscribe(fn func(session.State)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, fn)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.subs = nil
	}
}

// signIn switches the acting user and notifies like the session manager does.
func (f *fakeSessions) signIn(userID, name string) {
	f.mu.Lock()
	f.userID = userID
	f.user = &models.User{ID: userID, Name: name, Role: models.RoleAdmin}
	subs := append([]func(session.State){}, f.subs...)
	f.mu.Unlock()
	state := session.State{Session: &models.AuthSession{ID: "s-" + userID, UserID: userID}, User: f.user}
	for _, fn := range subs {
		fn(state)
	}
}

func (f *fakeSessions) signOut() {
	f.mu.Lock()
	f.userID = ""
	f.user = nil
	subs := append([]func(session.State){}, f.subs...)
	f.mu.Unlock()
	for _, fn := range subs {
		fn(session.State{})
	}
}
