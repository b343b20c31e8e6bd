package dummydb

import (
	"sync"

	"github.com/darasahub/darasa/core/account"
	"github.com/darasahub/darasa/core/notice"
	"github.com/darasahub/darasa/core/school"
	"github.com/darasahub/darasa/core/setting"
	"github.com/darasahub/darasa/core/user"
)

// DB is an in-memory store for tests and local hacking.
type (
	DB struct {
		user       *userTable
		school     *schoolTable
		branch     *branchTable
		membership *membershipTable
		notice     *noticeTable
		fee        *feeTable
		setting    *settingTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	schoolTable struct {
		sync.RWMutex
		table map[string]*school.School
	}

	branchTable struct {
		sync.RWMutex
		table map[string]*school.Branch
	}

	membershipTable struct {
		sync.RWMutex
		table map[string]*school.Membership
	}

	noticeTable struct {
		sync.RWMutex
		table map[string]*notice.Notice
	}

	feeTable struct {
		sync.RWMutex
		table map[string]*account.FeeRecord
	}

	settingTable struct {
		sync.RWMutex
		table map[string]*setting.Setting // keyed by schoolID + "/" + key
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		school:     &schoolTable{table: make(map[string]*school.School)},
		branch:     &branchTable{table: make(map[string]*school.Branch)},
		membership: &membershipTable{table: make(map[string]*school.Membership)},
		notice:     &noticeTable{table: make(map[string]*notice.Notice)},
		fee:        &feeTable{table: make(map[string]*account.FeeRecord)},
		setting:    &settingTable{table: make(map[string]*setting.Setting)},
	}
	return db, nil
}
