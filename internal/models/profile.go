package models

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleProfessor Role = "professor"
	RoleStudent   Role = "student"
)

const fallbackDisplayName = "Usuario"

type Profile struct {
	ID          string
	Email       string
	FirstName   string
	LastName    string
	DisplayName *string
	Role        string
	FacultyID   *int64
	FacultyName *string
	AvatarURL   *string
	Bio         *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// User is the view of a profile that consumers render.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Initials  string `json:"initials"`
	Role      Role   `json:"role"`
	FacultyID *int64 `json:"facultyId,omitempty"`
	Faculty   string `json:"faculty,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Bio       string `json:"bio,omitempty"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// NormalizeRole maps any stored role onto the three roles the portal knows.
// Unknown values become students.
func NormalizeRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin", "administrador":
		return RoleAdmin
	case "professor", "profesor":
		return RoleProfessor
	default:
		return RoleStudent
	}
}

// DeriveUser builds the user view from a profile. It returns nil for a nil
// profile and never retains the profile.
func DeriveUser(p *Profile) *User {
	if p == nil {
		return nil
	}

	name := displayName(p)
	user := &User{
		ID:        p.ID,
		Email:     p.Email,
		Name:      name,
		Initials:  initials(name),
		Role:      NormalizeRole(p.Role),
		FacultyID: p.FacultyID,
	}
	if p.FacultyName != nil {
		user.Faculty = *p.FacultyName
	}
	if p.AvatarURL != nil {
		user.AvatarURL = *p.AvatarURL
	}
	if p.Bio != nil {
		user.Bio = *p.Bio
	}
	return user
}

func displayName(p *Profile) string {
	if p.DisplayName != nil {
		if name := strings.TrimSpace(*p.DisplayName); name != "" {
			return name
		}
	}
	if full := strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName)); full != "" {
		return full
	}
	return fallbackDisplayName
}

func initials(name string) string {
	out := make([]rune, 0, 2)
	for _, word := range strings.Fields(name) {
		out = append(out, []rune(strings.ToUpper(word))[0])
		if len(out) == 2 {
			break
		}
	}
	return string(out)
}
