package notice

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/user"
)

// Notice is an announcement published within a school, optionally narrowed to
// a single branch and/or an audience of roles. An empty audience means
// everyone in the school sees it.
type Notice struct {
	ID          string      `json:"id"`
	SchoolID    string      `json:"school_id"`
	BranchID    string      `json:"branch_id,omitempty"`
	Title       string      `json:"title"`
	Body        string      `json:"body"`
	Audience    []user.Role `json:"audience,omitempty"`
	PublishedAt time.Time   `json:"published_at"` // UTC
	ExpiresAt   time.Time   `json:"expires_at"`   // UTC; zero = never
	CreatedBy   string      `json:"created_by"`
	CreatedAt   time.Time   `json:"created_at"` // UTC
	UpdatedAt   time.Time   `json:"updated_at"` // UTC
}

// VisibleTo reports whether the notice targets the given role and branch at
// the given time. A notice without a branch is school-wide.
func (n Notice) VisibleTo(role user.Role, branchID string, at time.Time) bool {
	if at.Before(n.PublishedAt) {
		return false
	}
	if !n.ExpiresAt.IsZero() && at.After(n.ExpiresAt) {
		return false
	}
	if n.BranchID != "" && n.BranchID != branchID {
		return false
	}
	if len(n.Audience) == 0 {
		return true
	}
	for _, r := range n.Audience {
		if r == role {
			return true
		}
	}
	return false
}

type NewNotice struct {
	BranchID    string      `json:"branch_id"`
	Title       string      `json:"title" validate:"required"`
	Body        string      `json:"body" validate:"required"`
	Audience    []user.Role `json:"audience" validate:"omitempty,dive,role"`
	PublishedAt time.Time   `json:"published_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

func (nn *NewNotice) Validate(validate *validator.Validate) error {
	nn.Title = core.CleanString(nn.Title)
	nn.Body = core.CleanString(nn.Body)
	return validate.Struct(nn)
}

type UpdateNotice struct {
	Title     string      `json:"title"`
	Body      string      `json:"body"`
	Audience  []user.Role `json:"audience" validate:"omitempty,dive,role"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func (un *UpdateNotice) Validate(orig Notice, validate *validator.Validate) error {
	if title := core.CleanString(un.Title); title != "" {
		un.Title = title
	} else {
		un.Title = orig.Title
	}

	if body := core.CleanString(un.Body); body != "" {
		un.Body = body
	} else {
		un.Body = orig.Body
	}
	return validate.Struct(un)
}

// QueryFilter narrows a school's notice listing.
type QueryFilter struct {
	BranchID string    `query:"branch_id"`
	Role     user.Role `query:"role"`
	ActiveAt time.Time `query:"active_at"`
}
