package user

import (
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/clotrack/core"
)

// Roles
const (
	// Admin
	RoleAdmin        = "admin:"        // institution-wide admin
	RoleAdminProgram = "admin:program" // program admin, receives submission alerts

	// Teacher
	RoleTeacher = "teacher:" // section instructor
)

var (
	AdminRoles   = []string{RoleAdmin, RoleAdminProgram}
	TeacherRoles = []string{RoleTeacher}
	AllRoles     = append(append([]string{}, AdminRoles...), TeacherRoles...)

	Roles = []Role{
		{Name: "Instructor", Value: RoleTeacher},
		{Name: "Program Admin", Value: RoleAdminProgram},
		{Name: "Admin", Value: RoleAdmin},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID            string    `json:"id"`
	InstitutionID string    `json:"institution_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	IsActive      bool      `json:"is_active"`
	Roles         []string  `json:"roles"`
	ProgramIDs    []string  `json:"program_ids"`
	PasswordHash  []byte    `json:"-"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
	LastLogin     time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) RoleStartsWith(prefix string) bool {
	return rolesStartWith(u.Roles, prefix)
}

func (u *User) IsAdmin() bool {
	return u.RoleStartsWith(RoleAdmin)
}

func (u *User) IsTeacher() bool {
	return u.RoleStartsWith(RoleTeacher)
}

// EmailAddress returns the address to notify u at, and whether u can be notified at all.
func (u *User) EmailAddress() (addr mail.Address, ok bool) {
	if !u.IsActive || u.Email == "" {
		return addr, false
	}
	return mail.Address{Name: u.Name, Address: u.Email}, true
}

// AuthContext builds the caller identity handed to the outcome services.
func (u *User) AuthContext() AuthContext {
	return AuthContext{
		UserID:        u.ID,
		InstitutionID: u.InstitutionID,
		Roles:         u.Roles,
		ProgramIDs:    u.ProgramIDs,
	}
}

func rolesStartWith(roles []string, prefix string) bool {
	for _, role := range roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	InstitutionID   string   `json:"institution_id" validate:"required,uuid"`
	Name            string   `json:"name" validate:"required"`
	Email           string   `json:"email" validate:"required,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
	ProgramIDs      []string `json:"program_ids" validate:"omitempty,dive,uuid"`
}

func (nu *NewUser) Clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
}
