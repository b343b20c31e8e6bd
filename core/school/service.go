package school

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahub/darasa/core"
)

var (
	// errors
	ErrNotFound       = errors.New("school not found")
	ErrBranchNotFound = errors.New("branch not found")
	ErrSlugExists     = errors.New("a school with this slug already exists")
	ErrCodeExists     = errors.New("a branch with this code already exists in this school")
	ErrNotMember      = errors.New("user is not a member of this school")
)

type (
	Repository interface {
		CheckSlugUniqueness(ctx context.Context, slug string, excludedSchools []School, exec ...core.DBExecutor) error
		CreateSchool(ctx context.Context, sch School, exec ...core.DBExecutor) (School, error)
		QueryAllSchools(ctx context.Context, exec ...core.DBExecutor) ([]School, error)
		GetSchoolByID(ctx context.Context, id string, exec ...core.DBExecutor) (School, error)
		GetSchoolBySlug(ctx context.Context, slug string, exec ...core.DBExecutor) (School, error)
		// UpdateSchool only writes non-zero fields; isActive is applied when non-nil.
		UpdateSchool(ctx context.Context, sch School, isActive *bool, exec ...core.DBExecutor) (School, error)
		DeleteSchoolsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error

		CheckBranchCodeUniqueness(ctx context.Context, schoolID, code string, excludedBranches []Branch, exec ...core.DBExecutor) error
		CreateBranch(ctx context.Context, br Branch, exec ...core.DBExecutor) (Branch, error)
		// QueryBranches returns the branches of a single school only.
		QueryBranches(ctx context.Context, schoolID string, exec ...core.DBExecutor) ([]Branch, error)
		GetBranchByID(ctx context.Context, id string, exec ...core.DBExecutor) (Branch, error)
		UpdateBranch(ctx context.Context, br Branch, isHeadquarters *bool, exec ...core.DBExecutor) (Branch, error)
		DeleteBranchesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error

		CreateMembership(ctx context.Context, m Membership, exec ...core.DBExecutor) (Membership, error)
		DeleteMembership(ctx context.Context, userID, schoolID string, exec ...core.DBExecutor) error
		QueryMemberSchools(ctx context.Context, userID string, exec ...core.DBExecutor) ([]School, error)
		IsMember(ctx context.Context, userID, schoolID string, exec ...core.DBExecutor) (bool, error)
	}

	Service struct {
		conf *core.Config
		repo Repository
	}
)

func NewService(conf *core.Config, repo Repository) *Service {
	return &Service{conf: conf, repo: repo}
}

func (svc *Service) CheckSlugUniqueness(slug string, exclSchools ...School) error {
	if err := svc.repo.CheckSlugUniqueness(context.Background(), slug, exclSchools); err != nil {
		if errors.Cause(err) == ErrSlugExists {
			return core.NewValidationError(err, core.FieldError{Field: "slug", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) CheckBranchCodeUniqueness(schoolID, code string, exclBranches ...Branch) error {
	if err := svc.repo.CheckBranchCodeUniqueness(context.Background(), schoolID, code, exclBranches); err != nil {
		if errors.Cause(err) == ErrCodeExists {
			return core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, ns NewSchool) (School, error) {
	now := time.Now().UTC()
	active := true
	sch := School{
		Name:      ns.Name,
		Slug:      ns.Slug,
		IsActive:  &active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateSchool(ctx, sch)
}

func (svc *Service) QueryAll(ctx context.Context) ([]School, error) {
	return svc.repo.QueryAllSchools(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id string) (School, error) {
	return svc.repo.GetSchoolByID(ctx, id)
}

func (svc *Service) GetBySlug(ctx context.Context, slug string) (School, error) {
	return svc.repo.GetSchoolBySlug(ctx, core.CleanString(slug, true /* lower */))
}

func (svc *Service) Update(ctx context.Context, id string, us UpdateSchool) (School, error) {
	sch := School{
		ID:        id,
		Name:      us.Name,
		Slug:      us.Slug,
		UpdatedAt: time.Now().UTC(),
	}
	return svc.repo.UpdateSchool(ctx, sch, us.IsActive)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteSchoolsByID(ctx, ids)
}

func (svc *Service) CreateBranch(ctx context.Context, schoolID string, nb NewBranch) (Branch, error) {
	if _, err := svc.repo.GetSchoolByID(ctx, schoolID); err != nil {
		return Branch{}, err
	}
	now := time.Now().UTC()
	br := Branch{
		SchoolID:       schoolID,
		Name:           nb.Name,
		Code:           nb.Code,
		IsHeadquarters: nb.IsHeadquarters,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return svc.repo.CreateBranch(ctx, br)
}

// Branches lists a school's branches; the result is always scoped to the one
// given school so a caller can never see another school's branches.
func (svc *Service) Branches(ctx context.Context, schoolID string) ([]Branch, error) {
	return svc.repo.QueryBranches(ctx, schoolID)
}

func (svc *Service) GetBranchByID(ctx context.Context, id string) (Branch, error) {
	return svc.repo.GetBranchByID(ctx, id)
}

func (svc *Service) UpdateBranch(ctx context.Context, id string, ub UpdateBranch) (Branch, error) {
	br := Branch{
		ID:        id,
		Name:      ub.Name,
		Code:      ub.Code,
		UpdatedAt: time.Now().UTC(),
	}
	return svc.repo.UpdateBranch(ctx, br, ub.IsHeadquarters)
}

func (svc *Service) DeleteBranches(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteBranchesByID(ctx, ids)
}

func (svc *Service) AddMember(ctx context.Context, userID, schoolID string, isDefault bool) (Membership, error) {
	if _, err := svc.repo.GetSchoolByID(ctx, schoolID); err != nil {
		return Membership{}, err
	}
	m := Membership{
		UserID:    userID,
		SchoolID:  schoolID,
		IsDefault: isDefault,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateMembership(ctx, m)
}

func (svc *Service) RemoveMember(ctx context.Context, userID, schoolID string) error {
	return svc.repo.DeleteMembership(ctx, userID, schoolID)
}

// SchoolsFor lists the schools the given user may act within.
func (svc *Service) SchoolsFor(ctx context.Context, userID string) ([]School, error) {
	return svc.repo.QueryMemberSchools(ctx, userID)
}

// Select commits a school selection for a user. Selecting the currently
// selected school is a no-op and returns the selection unchanged; selecting a
// different school clears any branch so a stale branch never survives the
// switch. A user may only select schools they are a member of.
func (svc *Service) Select(ctx context.Context, userID string, current Selection, schoolID string) (Selection, error) {
	if current.SchoolID == schoolID && schoolID != "" {
		return current, nil
	}

	ok, err := svc.repo.IsMember(ctx, userID, schoolID)
	if err != nil {
		return current, errors.Wrap(err, "checking membership")
	}
	if !ok {
		return current, ErrNotMember
	}
	return current.WithSchool(schoolID), nil
}

// SelectBranch commits a branch selection within the currently selected
// school. The branch must belong to that school.
func (svc *Service) SelectBranch(ctx context.Context, current Selection, branchID string) (Selection, error) {
	if !current.HasSchool() {
		return current, ErrNotMember
	}
	br, err := svc.repo.GetBranchByID(ctx, branchID)
	if err != nil {
		return current, err
	}
	if br.SchoolID != current.SchoolID {
		return current, ErrBranchNotFound
	}
	return current.WithBranch(br.ID), nil
}
