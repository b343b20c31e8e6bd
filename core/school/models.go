package school

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/darasahub/darasa/core"
)

// School is a top-level organization boundary; every portal action happens
// within exactly one selected school.
type School struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	IsActive  *bool     `json:"is_active"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Branch is a campus or site of a School.
type Branch struct {
	ID             string    `json:"id"`
	SchoolID       string    `json:"school_id"`
	Name           string    `json:"name"`
	Code           string    `json:"code"`
	IsHeadquarters bool      `json:"is_headquarters"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

// Membership links a user to a school they may act within.
type Membership struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SchoolID  string    `json:"school_id"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// Selection is the current school/branch pair a principal acts within.
// BranchID is only meaningful when SchoolID is set; switching schools always
// clears the branch so a stale branch can never survive a school switch.
type Selection struct {
	SchoolID string `json:"school_id,omitempty"`
	BranchID string `json:"branch_id,omitempty"`
}

func (s Selection) HasSchool() bool { return s.SchoolID != "" }
func (s Selection) HasBranch() bool { return s.SchoolID != "" && s.BranchID != "" }

// WithSchool returns a selection scoped to the given school with no branch.
func (s Selection) WithSchool(schoolID string) Selection {
	return Selection{SchoolID: schoolID}
}

// WithBranch returns the selection with the branch set; a branch without a
// school is meaningless and yields the zero selection.
func (s Selection) WithBranch(branchID string) Selection {
	if !s.HasSchool() {
		return Selection{}
	}
	return Selection{SchoolID: s.SchoolID, BranchID: branchID}
}

// NewSchool contains information needed to register a new School.
type NewSchool struct {
	Name string `json:"name" validate:"required"`
	Slug string `json:"slug" validate:"required,min=3,alphanum_"`
}

func (ns *NewSchool) Validate(validate *validator.Validate, svc *Service) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Slug = core.CleanString(ns.Slug, true /* lower */)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckSlugUniqueness(ns.Slug)
}

type UpdateSchool struct {
	Name     string `json:"name"`
	Slug     string `json:"slug" validate:"omitempty,min=3,alphanum_"`
	IsActive *bool  `json:"is_active"`
}

func (us *UpdateSchool) Validate(orig School, validate *validator.Validate, svc *Service) error {
	if name := core.CleanString(us.Name); name != "" {
		us.Name = name
	} else {
		us.Name = orig.Name
	}

	if slug := core.CleanString(us.Slug, true /* lower */); slug != "" {
		us.Slug = slug
	} else {
		us.Slug = orig.Slug
	}

	if err := validate.Struct(us); err != nil {
		return err
	}
	return svc.CheckSlugUniqueness(us.Slug, orig)
}

// NewBranch contains information needed to add a Branch to a School.
type NewBranch struct {
	Name           string `json:"name" validate:"required"`
	Code           string `json:"code" validate:"required,min=2,alphanum_"`
	IsHeadquarters bool   `json:"is_headquarters"`
}

func (nb *NewBranch) Validate(schoolID string, validate *validator.Validate, svc *Service) error {
	nb.Name = core.CleanString(nb.Name)
	nb.Code = core.CleanString(nb.Code, true /* lower */)

	if err := validate.Struct(nb); err != nil {
		return err
	}
	return svc.CheckBranchCodeUniqueness(schoolID, nb.Code)
}

type UpdateBranch struct {
	Name           string `json:"name"`
	Code           string `json:"code" validate:"omitempty,min=2,alphanum_"`
	IsHeadquarters *bool  `json:"is_headquarters"`
}

func (ub *UpdateBranch) Validate(orig Branch, validate *validator.Validate, svc *Service) error {
	if name := core.CleanString(ub.Name); name != "" {
		ub.Name = name
	} else {
		ub.Name = orig.Name
	}

	if code := core.CleanString(ub.Code, true /* lower */); code != "" {
		ub.Code = code
	} else {
		ub.Code = orig.Code
	}

	if err := validate.Struct(ub); err != nil {
		return err
	}
	return svc.CheckBranchCodeUniqueness(orig.SchoolID, ub.Code, orig)
}
