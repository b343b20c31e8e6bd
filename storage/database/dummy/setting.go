package dummydb

import (
	"context"
	"sort"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/setting"
)

type settingRepository struct {
	db *settingTable
}

var _ setting.Repository = (*settingRepository)(nil) // interface compliance check

func NewSettingRepository(db *DB) setting.Repository {
	return &settingRepository{db: db.setting}
}

func settingKey(schoolID, key string) string { return schoolID + "/" + key }

func (repo *settingRepository) UpsertSetting(_ context.Context, s setting.Setting, _ ...core.DBExecutor) (setting.Setting, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.table[settingKey(s.SchoolID, s.Key)] = &s
	return s, nil
}

func (repo *settingRepository) GetSetting(_ context.Context, schoolID, key string, _ ...core.DBExecutor) (setting.Setting, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.table[settingKey(schoolID, key)]; ok {
		return *s, nil
	}
	return setting.Setting{}, setting.ErrNotFound
}

func (repo *settingRepository) QuerySettings(_ context.Context, schoolID string, _ ...core.DBExecutor) ([]setting.Setting, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var settings []setting.Setting
	for _, s := range repo.db.table {
		if s.SchoolID == schoolID {
			settings = append(settings, *s)
		}
	}
	sort.Slice(settings, func(i, j int) bool { return settings[i].Key < settings[j].Key })
	return settings, nil
}

func (repo *settingRepository) DeleteSetting(_ context.Context, schoolID, key string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.table, settingKey(schoolID, key))
	return nil
}
