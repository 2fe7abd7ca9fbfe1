package session

import (
	"context"
	"sync"

	"github.com/Kouriin1/Servicio-Comunitario/internal/models"
	"github.com/Kouriin1/Servicio-Comunitario/internal/repository"
)

type fakeAuth struct {
	mu        sync.Mutex
	listeners map[int]func(models.AuthEvent, *models.AuthSession)
	nextID    int
	stored    *models.AuthSession

	signInSession *models.AuthSession
	signInErr     error
	signUpSession *models.AuthSession
	signUpErr     error
	signOutErr    error
	resetErr      error
	updateErr     error

	signUpCalls      int
	resetRedirect    string
	updatedPasswords []string
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{listeners: map[int]func(models.AuthEvent, *models.AuthSession){}}
}

func (f *fakeAuth) OnAuthStateChange(fn func(models.AuthEvent, *models.AuthSession)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func (f *fakeAuth) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func (f *fakeAuth) emit(event models.AuthEvent, session *models.AuthSession) {
	f.mu.Lock()
	f.stored = session
	fns := make([]func(models.AuthEvent, *models.AuthSession), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(event, session)
	}
}

func (f *fakeAuth) GetSession(context.Context) (*models.AuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stored, nil
}

func (f *fakeAuth) SignInWithPassword(context.Context, string, string) (*models.AuthSession, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	f.emit(models.AuthEventSignedIn, f.signInSession)
	return f.signInSession, nil
}

func (f *fakeAuth) SignUp(context.Context, string, string, models.SignUpMetadata) (*models.AuthSession, error) {
	f.signUpCalls++
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	if f.signUpSession != nil {
		f.emit(models.AuthEventSignedIn, f.signUpSession)
	}
	return f.signUpSession, nil
}

// SignOut only drops the session when the backend call succeeds.
func (f *fakeAuth) SignOut(context.Context) error {
	if f.signOutErr != nil {
		return f.signOutErr
	}
	f.emit(models.AuthEventSignedOut, nil)
	return nil
}

func (f *fakeAuth) ResetPasswordForEmail(_ context.Context, _ string, redirectURL string) error {
	f.resetRedirect = redirectURL
	return f.resetErr
}

func (f *fakeAuth) VerifyRecovery(context.Context, string) (*models.AuthSession, error) {
	session := &models.AuthSession{ID: "recovery", UserID: "u-student", Recovery: true}
	f.emit(models.AuthEventPasswordRecovery, session)
	return session, nil
}

func (f *fakeAuth) ConfirmEmail(context.Context, string) (*models.AuthSession, error) {
	session := &models.AuthSession{ID: "confirmed", UserID: "u-student"}
	f.emit(models.AuthEventSignedIn, session)
	return session, nil
}

func (f *fakeAuth) UpdateUser(_ context.Context, password string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updatedPasswords = append(f.updatedPasswords, password)
	return nil
}

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]models.Profile
	// gates block GetProfile for a user until the channel is closed.
	gates   map[string]chan struct{}
	entered chan string
	calls   int
}

func newFakeProfiles(profiles ...models.Profile) *fakeProfiles {
	f := &fakeProfiles{profiles: map[string]models.Profile{}, gates: map[string]chan struct{}{}}
	for _, p := range profiles {
		f.profiles[p.ID] = p
	}
	return f
}

func (f *fakeProfiles) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gates[userID]
	f.mu.Unlock()

	if gate != nil {
		if f.entered != nil {
			f.entered <- userID
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return &p, nil
}

func (f *fakeProfiles) UpdateFaculty(_ context.Context, userID string, facultyID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return repository.ErrProfileNotFound
	}
	p.FacultyID = &facultyID
	f.profiles[userID] = p
	return nil
}
