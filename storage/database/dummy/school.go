package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/school"
)

type schoolRepository struct {
	schools     *schoolTable
	branches    *branchTable
	memberships *membershipTable
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{
		schools:     db.school,
		branches:    db.branch,
		memberships: db.membership,
	}
}

func (repo *schoolRepository) querySchools() []school.School {
	schools := make([]school.School, 0, len(repo.schools.table))
	for _, s := range repo.schools.table {
		schools = append(schools, *s)
	}
	sort.Slice(schools, func(i, j int) bool { return schools[i].Name < schools[j].Name })
	return schools
}

func (repo *schoolRepository) CheckSlugUniqueness(
	_ context.Context,
	slug string,
	excludedSchools []school.School,
	_ ...core.DBExecutor,
) error {
	repo.schools.RLock()
	defer repo.schools.RUnlock()

	excluded := make(map[string]struct{}, len(excludedSchools))
	for _, sch := range excludedSchools {
		excluded[sch.ID] = struct{}{}
	}
	for _, sch := range repo.querySchools() {
		if _, skip := excluded[sch.ID]; skip {
			continue
		}
		if sch.Slug == slug {
			return school.ErrSlugExists
		}
	}
	return nil
}

func (repo *schoolRepository) CreateSchool(_ context.Context, sch school.School, _ ...core.DBExecutor) (school.School, error) {
	repo.schools.Lock()
	defer repo.schools.Unlock()

	sch.ID = uuid.New().String()
	repo.schools.table[sch.ID] = &sch
	return sch, nil
}

func (repo *schoolRepository) QueryAllSchools(_ context.Context, _ ...core.DBExecutor) ([]school.School, error) {
	repo.schools.RLock()
	defer repo.schools.RUnlock()
	return repo.querySchools(), nil
}

func (repo *schoolRepository) GetSchoolByID(_ context.Context, id string, _ ...core.DBExecutor) (school.School, error) {
	repo.schools.RLock()
	defer repo.schools.RUnlock()

	if sch, ok := repo.schools.table[id]; ok {
		return *sch, nil
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) GetSchoolBySlug(_ context.Context, slug string, _ ...core.DBExecutor) (school.School, error) {
	repo.schools.RLock()
	defer repo.schools.RUnlock()

	for _, sch := range repo.querySchools() {
		if sch.Slug == slug {
			return sch, nil
		}
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) UpdateSchool(_ context.Context, sch school.School, isActive *bool, _ ...core.DBExecutor) (school.School, error) {
	repo.schools.Lock()
	defer repo.schools.Unlock()

	orig, ok := repo.schools.table[sch.ID]
	if !ok {
		return school.School{}, school.ErrNotFound
	}
	if sch.Name != "" {
		orig.Name = sch.Name
	}
	if sch.Slug != "" {
		orig.Slug = sch.Slug
	}
	if isActive != nil {
		orig.IsActive = isActive
	}
	if !sch.UpdatedAt.IsZero() {
		orig.UpdatedAt = sch.UpdatedAt
	}

	repo.schools.table[sch.ID] = orig
	return *orig, nil
}

func (repo *schoolRepository) DeleteSchoolsByID(_ context.Context, ids []string, _ ...core.DBExecutor) error {
	repo.schools.Lock()
	defer repo.schools.Unlock()
	for _, id := range ids {
		delete(repo.schools.table, id)
	}
	return nil
}

func (repo *schoolRepository) CheckBranchCodeUniqueness(
	_ context.Context,
	schoolID, code string,
	excludedBranches []school.Branch,
	_ ...core.DBExecutor,
) error {
	repo.branches.RLock()
	defer repo.branches.RUnlock()

	excluded := make(map[string]struct{}, len(excludedBranches))
	for _, br := range excludedBranches {
		excluded[br.ID] = struct{}{}
	}
	for _, br := range repo.branches.table {
		if _, skip := excluded[br.ID]; skip {
			continue
		}
		if br.SchoolID == schoolID && br.Code == code {
			return school.ErrCodeExists
		}
	}
	return nil
}

func (repo *schoolRepository) CreateBranch(_ context.Context, br school.Branch, _ ...core.DBExecutor) (school.Branch, error) {
	repo.branches.Lock()
	defer repo.branches.Unlock()

	br.ID = uuid.New().String()
	repo.branches.table[br.ID] = &br
	return br, nil
}

func (repo *schoolRepository) QueryBranches(_ context.Context, schoolID string, _ ...core.DBExecutor) ([]school.Branch, error) {
	repo.branches.RLock()
	defer repo.branches.RUnlock()

	var branches []school.Branch
	for _, br := range repo.branches.table {
		if br.SchoolID == schoolID {
			branches = append(branches, *br)
		}
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })
	return branches, nil
}

func (repo *schoolRepository) GetBranchByID(_ context.Context, id string, _ ...core.DBExecutor) (school.Branch, error) {
	repo.branches.RLock()
	defer repo.branches.RUnlock()

	if br, ok := repo.branches.table[id]; ok {
		return *br, nil
	}
	return school.Branch{}, school.ErrBranchNotFound
}

func (repo *schoolRepository) UpdateBranch(_ context.Context, br school.Branch, isHeadquarters *bool, _ ...core.DBExecutor) (school.Branch, error) {
	repo.branches.Lock()
	defer repo.branches.Unlock()

	orig, ok := repo.branches.table[br.ID]
	if !ok {
		return school.Branch{}, school.ErrBranchNotFound
	}
	if br.Name != "" {
		orig.Name = br.Name
	}
	if br.Code != "" {
		orig.Code = br.Code
	}
	if isHeadquarters != nil {
		orig.IsHeadquarters = *isHeadquarters
	}
	if !br.UpdatedAt.IsZero() {
		orig.UpdatedAt = br.UpdatedAt
	}

	repo.branches.table[br.ID] = orig
	return *orig, nil
}

func (repo *schoolRepository) DeleteBranchesByID(_ context.Context, ids []string, _ ...core.DBExecutor) error {
	repo.branches.Lock()
	defer repo.branches.Unlock()
	for _, id := range ids {
		delete(repo.branches.table, id)
	}
	return nil
}

func (repo *schoolRepository) CreateMembership(_ context.Context, m school.Membership, _ ...core.DBExecutor) (school.Membership, error) {
	repo.memberships.Lock()
	defer repo.memberships.Unlock()

	m.ID = uuid.New().String()
	repo.memberships.table[m.ID] = &m
	return m, nil
}

func (repo *schoolRepository) DeleteMembership(_ context.Context, userID, schoolID string, _ ...core.DBExecutor) error {
	repo.memberships.Lock()
	defer repo.memberships.Unlock()

	for id, m := range repo.memberships.table {
		if m.UserID == userID && m.SchoolID == schoolID {
			delete(repo.memberships.table, id)
		}
	}
	return nil
}

func (repo *schoolRepository) QueryMemberSchools(ctx context.Context, userID string, exec ...core.DBExecutor) ([]school.School, error) {
	repo.memberships.RLock()
	var schoolIDs []string
	for _, m := range repo.memberships.table {
		if m.UserID == userID {
			schoolIDs = append(schoolIDs, m.SchoolID)
		}
	}
	repo.memberships.RUnlock()

	var schools []school.School
	for _, id := range schoolIDs {
		if sch, err := repo.GetSchoolByID(ctx, id, exec...); err == nil {
			schools = append(schools, sch)
		}
	}
	sort.Slice(schools, func(i, j int) bool { return schools[i].Name < schools[j].Name })
	return schools, nil
}

func (repo *schoolRepository) IsMember(_ context.Context, userID, schoolID string, _ ...core.DBExecutor) (bool, error) {
	repo.memberships.RLock()
	defer repo.memberships.RUnlock()

	for _, m := range repo.memberships.table {
		if m.UserID == userID && m.SchoolID == schoolID {
			return true, nil
		}
	}
	return false, nil
}
