package services

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ttt-platform/trash2treasure/models"
)

// LedgerEntry is one signed change to a user's reward balance.
type LedgerEntry struct {
	UserID       uint
	Points       int
	Reason       string
	SubmissionID *uint
	ClaimID      *uint
	AwardedByID  *uint
}

// PostLedger applies entry inside tx: the user row is locked, the balance is
// moved with a single guarded UPDATE and the history row is written in the
// same transaction. The balance never goes negative.
func PostLedger(tx *gorm.DB, entry LedgerEntry) (*models.RewardPointHistory, error) {
	if entry.Points == 0 {
		return nil, Invalid("points must not be zero")
	}
	if entry.Reason == "" {
		return nil, Invalid("a reason is required for point changes")
	}

	var user models.User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "reward_points").
		First(&user, entry.UserID).Error; err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	if user.RewardPoints+entry.Points < 0 {
		return nil, Conflict("insufficient points")
	}

	res := tx.Model(&models.User{}).
		Where("id = ? AND reward_points + ? >= 0", entry.UserID, entry.Points).
		UpdateColumn("reward_points", gorm.Expr("reward_points + ?", entry.Points))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, Conflict("insufficient points")
	}

	row := models.RewardPointHistory{
		UserID:       entry.UserID,
		Points:       entry.Points,
		BalanceAfter: user.RewardPoints + entry.Points,
		Reason:       truncate(entry.Reason, 255),
		SubmissionID: entry.SubmissionID,
		ClaimID:      entry.ClaimID,
		AwardedByID:  entry.AwardedByID,
		CreatedAt:    time.Now(),
	}
	if err := tx.Create(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// LedgerReport compares a stored balance with the sum of its history.
type LedgerReport struct {
	UserID     uint  `json:"user_id"`
	Balance    int   `json:"balance"`
	LedgerSum  int   `json:"ledger_sum"`
	Entries    int64 `json:"entries"`
	Consistent bool  `json:"consistent"`
}

// CheckLedger reconciles one user's balance against their history.
func CheckLedger(db *gorm.DB, userID uint) (*LedgerReport, error) {
	var user models.User
	if err := db.Select("id", "reward_points").First(&user, userID).Error; err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	var agg struct {
		Total   int
		Entries int64
	}
	if err := db.Model(&models.RewardPointHistory{}).
		Select("COALESCE(SUM(points), 0) AS total, COUNT(*) AS entries").
		Where("user_id = ?", userID).
		Scan(&agg).Error; err != nil {
		return nil, err
	}
	return &LedgerReport{
		UserID:     userID,
		Balance:    user.RewardPoints,
		LedgerSum:  agg.Total,
		Entries:    agg.Entries,
		Consistent: user.RewardPoints == agg.Total,
	}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func uintPtr(v uint) *uint { return &v }
