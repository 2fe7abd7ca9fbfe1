package session

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Kouriin1/Servicio-Comunitario/internal/identity"
	"github.com/Kouriin1/Servicio-Comunitario/internal/models"
)

func profile(id, role, first string) models.Profile {
	return models.Profile{ID: id, Email: id + "@usm.edu.ve", FirstName: first, Role: role}
}

var testOptions = Options{
	AdminRedirect:       "/admin",
	DefaultRedirect:     "/dashboard",
	RecoveryRedirectURL: "http://portal.test/reset-password",
}

func newTestManager(auth *fakeAuth, profiles *fakeProfiles) *Manager {
	return NewManager(auth, profiles, testOptions, zerolog.Nop())
}

func TestSignOutAlwaysClearsState(t *testing.T) {
	for _, backendErr := range []error{nil, errors.New("network down")} {
		ctx := context.Background()
		auth := newFakeAuth()
		auth.signInSession = &models.AuthSession{ID: "s1", UserID: "u-student"}
		auth.signOutErr = backendErr
		m := newTestManager(auth, newFakeProfiles(profile("u-student", "student", "Ana")))

		_, err := m.SignIn(ctx, "ana@usm.edu.ve", "secreta1")
		require.NoError(t, err)
		require.NotNil(t, m.State().Profile)

		err = m.SignOut(ctx)
		if backendErr != nil {
			require.ErrorIs(t, err, ErrAuthService)
		} else {
			require.NoError(t, err)
		}

		state := m.State()
		require.Nil(t, state.Session)
		require.Nil(t, state.Profile)
		require.Nil(t, state.User)
		require.Empty(t, m.CurrentUserID())
	}
}

func TestSignInRedirectByRole(t *testing.T) {
	tests := []struct {
		role string
		want string
	}{
		{role: "admin", want: "/admin"},
		{role: "administrador", want: "/admin"},
		{role: "professor", want: "/dashboard"},
		{role: "student", want: "/dashboard"},
		{role: "", want: "/dashboard"},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			auth := newFakeAuth()
			auth.signInSession = &models.AuthSession{ID: "s1", UserID: "u1"}
			m := newTestManager(auth, newFakeProfiles(profile("u1", tt.role, "Ana")))

			redirect, err := m.SignIn(context.Background(), "ana@usm.edu.ve", "secreta1")
			require.NoError(t, err)
			require.Equal(t, tt.want, redirect)
		})
	}
}

func TestSignInErrors(t *testing.T) {
	auth := newFakeAuth()
	auth.signInErr = identity.ErrInvalidCredentials
	m := newTestManager(auth, newFakeProfiles())

	_, err := m.SignIn(context.Background(), "ana@usm.edu.ve", "bad")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	require.ErrorIs(t, err, ErrAuthService)

	auth.signInErr = errors.New("connection refused")
	_, err = m.SignIn(context.Background(), "ana@usm.edu.ve", "bad")
	require.ErrorIs(t, err, ErrAuthService)
	require.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignUpRequiringConfirmation(t *testing.T) {
	auth := newFakeAuth()
	m := newTestManager(auth, newFakeProfiles())

	redirect, err := m.SignUp(context.Background(), SignUpInput{Email: "new@usm.edu.ve", Password: "secreta1"})
	require.NoError(t, err)
	require.Equal(t, RedirectNone, redirect)
	require.Nil(t, m.State().Session)
}

func TestSignUpWithImmediateSessionPatchesFaculty(t *testing.T) {
	auth := newFakeAuth()
	auth.signUpSession = &models.AuthSession{ID: "s1", UserID: "u-new"}
	profiles := newFakeProfiles(profile("u-new", "student", "Nuevo"))
	m := newTestManager(auth, profiles)

	var faculty int64 = 4
	redirect, err := m.SignUp(context.Background(), SignUpInput{
		Email:     "new@usm.edu.ve",
		Password:  "secreta1",
		FirstName: "Nuevo",
		FacultyID: &faculty,
	})
	require.NoError(t, err)
	require.Equal(t, "/dashboard", redirect)

	state := m.State()
	require.NotNil(t, state.Profile)
	require.Equal(t, &faculty, state.Profile.FacultyID)
	require.Equal(t, "Nuevo", state.User.Name)
}

func TestSignUpValidatesBeforeBackend(t *testing.T) {
	auth := newFakeAuth()
	m := newTestManager(auth, newFakeProfiles())

	_, err := m.SignUp(context.Background(), SignUpInput{Email: "new@usm.edu.ve", Password: "123"})
	require.ErrorIs(t, err, ErrWeakPassword)
	_, err = m.SignUp(context.Background(), SignUpInput{Email: " ", Password: "secreta1"})
	require.ErrorIs(t, err, ErrRegistration)
	require.Zero(t, auth.signUpCalls)

	auth.signUpErr = identity.ErrEmailTaken
	_, err = m.SignUp(context.Background(), SignUpInput{Email: "new@usm.edu.ve", Password: "secreta1"})
	require.ErrorIs(t, err, ErrRegistration)
	require.ErrorIs(t, err, identity.ErrEmailTaken)
}

func TestRestoreAndLoading(t *testing.T) {
	ctx := context.Background()

	auth := newFakeAuth()
	m := newTestManager(auth, newFakeProfiles())
	require.True(t, m.State().Loading)
	require.NoError(t, m.Restore(ctx))
	require.False(t, m.State().Loading)
	require.Nil(t, m.State().User)

	auth = newFakeAuth()
	auth.stored = &models.AuthSession{ID: "s1", UserID: "u1"}
	m = newTestManager(auth, newFakeProfiles(profile("u1", "professor", "Luis")))
	require.NoError(t, m.Restore(ctx))
	state := m.State()
	require.False(t, state.Loading)
	require.Equal(t, models.RoleProfessor, state.User.Role)
	require.Equal(t, "u1", m.CurrentUserID())
}

func TestSubscribersSeeTransitions(t *testing.T) {
	ctx := context.Background()
	auth := newFakeAuth()
	auth.signInSession = &models.AuthSession{ID: "s1", UserID: "u1"}
	m := newTestManager(auth, newFakeProfiles(profile("u1", "student", "Ana")))

	var seen []State
	unsubscribe := m.Subscribe(func(s State) { seen = append(seen, s) })

	_, err := m.SignIn(ctx, "ana@usm.edu.ve", "secreta1")
	require.NoError(t, err)
	require.NotEmpty(t, seen)
	last := seen[len(seen)-1]
	require.Equal(t, "s1", last.Session.ID)
	require.Equal(t, "Ana", last.User.Name)

	unsubscribe()
	count := len(seen)
	require.NoError(t, m.SignOut(ctx))
	require.Len(t, seen, count)
}

func TestStaleProfileIsDiscarded(t *testing.T) {
	ctx := context.Background()
	auth := newFakeAuth()
	profiles := newFakeProfiles(profile("u-slow", "admin", "Lento"))
	profiles.gates["u-slow"] = make(chan struct{})
	profiles.entered = make(chan string, 1)
	m := newTestManager(auth, profiles)

	done := make(chan struct{})
	go func() {
		auth.emit(models.AuthEventSignedIn, &models.AuthSession{ID: "s-slow", UserID: "u-slow"})
		close(done)
	}()

	<-profiles.entered
	require.NoError(t, m.SignOut(ctx))
	close(profiles.gates["u-slow"])
	<-done

	state := m.State()
	require.Nil(t, state.Session)
	require.Nil(t, state.Profile)
}

func TestPasswordRecovery(t *testing.T) {
	ctx := context.Background()
	auth := newFakeAuth()
	m := newTestManager(auth, newFakeProfiles(profile("u-student", "student", "Ana")))

	require.ErrorIs(t, m.RequestPasswordReset(ctx, ""), ErrRecovery)
	require.NoError(t, m.RequestPasswordReset(ctx, "ana@usm.edu.ve"))
	require.Equal(t, testOptions.RecoveryRedirectURL, auth.resetRedirect)

	auth.resetErr = errors.New("smtp down")
	require.ErrorIs(t, m.RequestPasswordReset(ctx, "ana@usm.edu.ve"), ErrRecovery)

	require.ErrorIs(t, m.CompletePasswordReset(ctx, "nueva-clave"), ErrNoRecoverySession)

	require.NoError(t, m.VerifyRecovery(ctx, "token"))
	require.True(t, m.State().Session.Recovery)

	require.ErrorIs(t, m.CompletePasswordReset(ctx, "123"), ErrWeakPassword)
	require.NoError(t, m.CompletePasswordReset(ctx, "nueva-clave"))
	require.Equal(t, []string{"nueva-clave"}, auth.updatedPasswords)

	auth.updateErr = errors.New("boom")
	require.ErrorIs(t, m.CompletePasswordReset(ctx, "otra-clave"), ErrAuthService)
}

func TestConfirmEmailSignsIn(t *testing.T) {
	auth := newFakeAuth()
	m := newTestManager(auth, newFakeProfiles(profile("u-student", "student", "Ana")))

	redirect, err := m.ConfirmEmail(context.Background(), "token")
	require.NoError(t, err)
	require.Equal(t, "/dashboard", redirect)
	require.Equal(t, "u-student", m.CurrentUserID())
}

func TestCloseReleasesSubscription(t *testing.T) {
	auth := newFakeAuth()
	m := newTestManager(auth, newFakeProfiles())
	require.Equal(t, 1, auth.listenerCount())
	m.Close()
	m.Close()
	require.Zero(t, auth.listenerCount())
}

func TestValidateNewPassword(t *testing.T) {
	require.ErrorIs(t, ValidateNewPassword("12345", "12345"), ErrWeakPassword)
	require.ErrorIs(t, ValidateNewPassword("123456", "1234567"), ErrPasswordMismatch)
	require.NoError(t, ValidateNewPassword("ñandú1", "ñandú1"))
}
