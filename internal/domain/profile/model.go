package profile

import (
	"time"

	"github.com/google/uuid"
)

// Role selects the dashboard and navigation a user sees.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleNurse   Role = "nurse"
	RoleAdmin   Role = "admin"
)

// RoleCount is the number of roles. Tables indexed by role are sized with it.
const RoleCount = 4

// Roles lists every role in index order.
var Roles = [RoleCount]Role{RolePatient, RoleDoctor, RoleNurse, RoleAdmin}

// Index returns the position of r in Roles, or -1 for an unknown role.
func (r Role) Index() int {
	for i, role := range Roles {
		if role == r {
			return i
		}
	}
	return -1
}

func (r Role) Valid() bool {
	return r.Index() >= 0
}

// Profile maps to the profiles table. ID equals the identity id.
type Profile struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	Email           string     `db:"email" json:"email"`
	FullName        string     `db:"full_name" json:"full_name"`
	Role            Role       `db:"role" json:"role"`
	Specialization  *string    `db:"specialization" json:"specialization,omitempty"`
	LicenseNumber   *string    `db:"license_number" json:"license_number,omitempty"`
	ExperienceYears *int       `db:"experience_years" json:"experience_years,omitempty"`
	Department      *string    `db:"department" json:"department,omitempty"`
	Phone           *string    `db:"phone" json:"phone,omitempty"`
	Address         *string    `db:"address" json:"address,omitempty"`
	DateOfBirth     *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	IsActive        bool       `db:"is_active" json:"is_active"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Patch carries the fields of a partial profile update. Nil fields are left
// unchanged.
type Patch struct {
	FullName        *string    `json:"full_name,omitempty"`
	Role            *Role      `json:"role,omitempty"`
	Specialization  *string    `json:"specialization,omitempty"`
	LicenseNumber   *string    `json:"license_number,omitempty"`
	ExperienceYears *int       `json:"experience_years,omitempty"`
	Department      *string    `json:"department,omitempty"`
	Phone           *string    `json:"phone,omitempty"`
	Address         *string    `json:"address,omitempty"`
	DateOfBirth     *time.Time `json:"date_of_birth,omitempty"`
	IsActive        *bool      `json:"is_active,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p == Patch{}
}

// Apply copies the set fields of p onto prof.
func (p Patch) Apply(prof *Profile) {
	if p.FullName != nil {
		prof.FullName = *p.FullName
	}
	if p.Role != nil {
		prof.Role = *p.Role
	}
	if p.Specialization != nil {
		prof.Specialization = p.Specialization
	}
	if p.LicenseNumber != nil {
		prof.LicenseNumber = p.LicenseNumber
	}
	if p.ExperienceYears != nil {
		prof.ExperienceYears = p.ExperienceYears
	}
	if p.Department != nil {
		prof.Department = p.Department
	}
	if p.Phone != nil {
		prof.Phone = p.Phone
	}
	if p.Address != nil {
		prof.Address = p.Address
	}
	if p.DateOfBirth != nil {
		prof.DateOfBirth = p.DateOfBirth
	}
	if p.IsActive != nil {
		prof.IsActive = *p.IsActive
	}
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Role       Role
	Search     string
	ActiveOnly bool
}

// Summary is the slice of a profile joined into other records.
type Summary struct {
	ID             uuid.UUID `json:"id"`
	FullName       string    `json:"full_name"`
	Email          string    `json:"email"`
	Specialization *string   `json:"specialization,omitempty"`
}
