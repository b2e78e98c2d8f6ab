package models

// All lists every model for auto-migration.
func All() []interface{} {
	return []interface{}{
		&User{},
		&TrashSubmission{},
		&CollectionRecord{},
		&RewardPointHistory{},
		&RewardClaim{},
		&SystemSettings{},
		&ActivityLog{},
		&PageView{},
	}
}
