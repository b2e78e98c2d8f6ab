package services

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ttt-platform/trash2treasure/config"
	"github.com/ttt-platform/trash2treasure/events"
	"github.com/ttt-platform/trash2treasure/models"
	"github.com/ttt-platform/trash2treasure/utils"
)

// ClaimInput is a redemption request.
type ClaimInput struct {
	ClaimAmount      int
	ClaimType        string
	DonationHospital string
}

// ClaimFilter narrows claim listings.
type ClaimFilter struct {
	Status   string
	UserID   uint
	Page     int
	PageSize int
}

// ClaimService handles reward redemption.
type ClaimService struct {
	db     *gorm.DB
	events events.Publisher
}

func NewClaimService(db *gorm.DB, pub events.Publisher) *ClaimService {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &ClaimService{db: db, events: pub}
}

// MonetaryValue converts points at the configured rate.
func MonetaryValue(points int) decimal.Decimal {
	return decimal.NewFromInt(int64(points)).Mul(decimal.NewFromInt(int64(config.Get().PointValue))).Round(2)
}

// outstanding sums claims that are still open for the user.
func outstanding(tx *gorm.DB, userID uint) (int, error) {
	var total int
	err := tx.Model(&models.RewardClaim{}).
		Where("user_id = ? AND status IN ?", userID, []models.ClaimStatus{models.ClaimPending, models.ClaimProcessing}).
		Select("COALESCE(SUM(claim_amount), 0)").
		Scan(&total).Error
	return total, err
}

// Available returns how many points the user can still put into a new claim.
func (s *ClaimService) Available(userID uint) (int, error) {
	var user models.User
	if err := s.db.Select("id", "reward_points").First(&user, userID).Error; err != nil {
		return 0, notFoundOr(err, "user not found")
	}
	open, err := outstanding(s.db, userID)
	if err != nil {
		return 0, err
	}
	if avail := user.RewardPoints - open; avail > 0 {
		return avail, nil
	}
	return 0, nil
}

// Create opens a pending claim. Points stay on the balance until the claim completes.
func (s *ClaimService) Create(user *models.User, in ClaimInput) (*models.RewardClaim, error) {
	cfg := config.Get()
	if in.ClaimAmount < cfg.MinClaimPoints {
		return nil, Invalid("minimum claim amount is %d points", cfg.MinClaimPoints)
	}
	hospital := utils.CleanText(in.DonationHospital)
	switch in.ClaimType {
	case models.ClaimPayment:
		hospital = ""
	case models.ClaimDonation:
		if hospital == "" {
			return nil, Invalid("donation hospital is required for donations")
		}
		if len([]rune(hospital)) > 100 {
			return nil, Invalid("donation hospital must be at most 100 characters")
		}
	default:
		return nil, Invalid("claim type must be payment or donation")
	}

	claim := models.RewardClaim{
		UserID:           user.ID,
		ClaimAmount:      in.ClaimAmount,
		MonetaryAmount:   MonetaryValue(in.ClaimAmount),
		ClaimType:        in.ClaimType,
		DonationHospital: hospital,
		Status:           models.ClaimPending,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var owner models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&owner, user.ID).Error; err != nil {
			return notFoundOr(err, "user not found")
		}
		open, err := outstanding(tx, owner.ID)
		if err != nil {
			return err
		}
		if in.ClaimAmount > owner.RewardPoints-open {
			return Invalid("cannot claim more points than available")
		}
		ref, err := uniqueCode(tx, &models.RewardClaim{}, "reference_id", utils.NewClaimReference)
		if err != nil {
			return err
		}
		claim.ReferenceID = ref
		return tx.Create(&claim).Error
	})
	if err != nil {
		return nil, err
	}

	ev := events.New(events.ClaimCreated, user.ID)
	ev.ClaimID, ev.ReferenceID, ev.Status, ev.Points = claim.ID, claim.ReferenceID, string(claim.Status), claim.ClaimAmount
	events.Emit(s.events, ev)
	return &claim, nil
}

// List returns claims newest first.
func (s *ClaimService) List(f ClaimFilter) ([]models.RewardClaim, int64, error) {
	q := s.db.Model(&models.RewardClaim{})
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.RewardClaim
	err := paginate(q.Preload("User"), f.Page, f.PageSize).Order("created_at DESC, id DESC").Find(&rows).Error
	return rows, total, err
}

// UpdateStatus drives a claim through pending, processing, completed or cancelled.
// Completing deducts the claimed points; cancelling credits claim_amount back.
func (s *ClaimService) UpdateStatus(admin *models.User, claimID uint, to models.ClaimStatus, notes string) (*models.RewardClaim, error) {
	if !admin.IsAdmin() {
		return nil, Forbidden("only admins can process claims")
	}
	if !to.Valid() {
		return nil, Invalid("invalid claim status")
	}

	var claim models.RewardClaim
	var delta int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&claim, claimID).Error; err != nil {
			return notFoundOr(err, "claim not found")
		}
		from := claim.Status
		var reason string
		switch {
		case from == models.ClaimPending && to == models.ClaimProcessing:
		case from == models.ClaimProcessing && to == models.ClaimCompleted:
			delta = -claim.ClaimAmount
			reason = fmt.Sprintf("Claim %s completed (%s)", claim.ReferenceID, claim.ClaimType)
		case (from == models.ClaimPending || from == models.ClaimProcessing) && to == models.ClaimCancelled:
			delta = claim.ClaimAmount
			reason = fmt.Sprintf("Claim %s cancelled - refund", claim.ReferenceID)
		case to == models.ClaimCompleted:
			return Conflict("claims can only be completed from processing")
		default:
			return Conflict("cannot change claim status from %s to %s", from, to)
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":          to,
			"processed_by_id": admin.ID,
			"processed_at":    now,
		}
		if n := utils.CleanText(notes); n != "" {
			updates["notes"] = n
		}
		if err := tx.Model(&claim).Updates(updates).Error; err != nil {
			return err
		}
		claim.Status = to

		if delta != 0 {
			if _, err := PostLedger(tx, LedgerEntry{
				UserID:      claim.UserID,
				Points:      delta,
				Reason:      reason,
				ClaimID:     uintPtr(claim.ID),
				AwardedByID: uintPtr(admin.ID),
			}); err != nil {
				return err
			}
		}
		return logActivity(tx, admin.ID, ActionClaimStatus, map[string]interface{}{
			"claim_id":     claim.ID,
			"reference_id": claim.ReferenceID,
			"old_status":   from,
			"new_status":   to,
		})
	})
	if err != nil {
		return nil, err
	}

	invalidateStats()
	ev := events.New(events.ClaimStatusChanged, claim.UserID)
	ev.ActorID = admin.ID
	ev.ClaimID, ev.ReferenceID, ev.Status, ev.Points = claim.ID, claim.ReferenceID, string(claim.Status), delta
	events.Emit(s.events, ev)
	return &claim, nil
}

// Delete removes a claim that never moved points: pending or cancelled ones only.
func (s *ClaimService) Delete(admin *models.User, claimID uint) error {
	if !admin.IsAdmin() {
		return Forbidden("only admins can delete claims")
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		var claim models.RewardClaim
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&claim, claimID).Error; err != nil {
			return notFoundOr(err, "claim not found")
		}
		if claim.Status != models.ClaimPending && claim.Status != models.ClaimCancelled {
			return Conflict("only pending or cancelled claims can be deleted")
		}
		// ledger rows outlive the claim, so drop their reference to it
		if err := tx.Model(&models.RewardPointHistory{}).
			Where("claim_id = ?", claim.ID).
			Update("claim_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Delete(&claim).Error; err != nil {
			return err
		}
		return logActivity(tx, admin.ID, ActionDeleteClaim, map[string]interface{}{
			"claim_id":     claim.ID,
			"reference_id": claim.ReferenceID,
			"status":       claim.Status,
		})
	})
}
