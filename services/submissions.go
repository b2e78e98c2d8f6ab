package services

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ttt-platform/trash2treasure/events"
	"github.com/ttt-platform/trash2treasure/models"
	"github.com/ttt-platform/trash2treasure/utils"
)

const maxCollectionPoints = 100000

var (
	trackIDPattern = regexp.MustCompile(`^TR[0-9A-F]{8}$`)
	// decimal(6,2)
	maxWeight = decimal.RequireFromString("9999.99")
)

// transitions lists every allowed forward move. Anything else is rejected.
var transitions = map[models.SubmissionStatus][]models.SubmissionStatus{
	models.SubmissionPending:   {models.SubmissionAssigned, models.SubmissionCancelled},
	models.SubmissionAssigned:  {models.SubmissionOnTheWay, models.SubmissionCancelled},
	models.SubmissionOnTheWay:  {models.SubmissionArrived, models.SubmissionCancelled},
	models.SubmissionArrived:   {models.SubmissionPicked},
	models.SubmissionPicked:    {models.SubmissionCollected},
	models.SubmissionCollected: {models.SubmissionVerified},
}

// riderNext is the single step a rider may take from each status via a status update.
var riderNext = map[models.SubmissionStatus]models.SubmissionStatus{
	models.SubmissionAssigned: models.SubmissionOnTheWay,
	models.SubmissionOnTheWay: models.SubmissionArrived,
	models.SubmissionArrived:  models.SubmissionPicked,
}

// CanTransition reports whether a submission may move from one status to another.
func CanTransition(from, to models.SubmissionStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// RiderNextStatus returns the status a rider update would move to, if any.
func RiderNextStatus(from models.SubmissionStatus) (models.SubmissionStatus, bool) {
	next, ok := riderNext[from]
	return next, ok
}

// ValidTrackID reports whether s looks like a tracking code.
func ValidTrackID(s string) bool {
	return trackIDPattern.MatchString(s)
}

// SubmissionInput is what a user fills in to request a pickup.
type SubmissionInput struct {
	QuantityKg  *decimal.Decimal
	Location    string
	Description string
}

// CompletionInput is what a rider reports when a pickup is done.
type CompletionInput struct {
	TrashType      string
	ActualQuantity decimal.Decimal
	PointsAwarded  int
	Notes          string
}

// SubmissionFilter narrows submission listings.
type SubmissionFilter struct {
	Status   string
	Range    string
	Search   string
	RiderID  uint
	Page     int
	PageSize int
}

// SubmissionService owns the submission lifecycle.
type SubmissionService struct {
	db     *gorm.DB
	events events.Publisher
}

func NewSubmissionService(db *gorm.DB, pub events.Publisher) *SubmissionService {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &SubmissionService{db: db, events: pub}
}

// Create records a new pending submission for a regular user.
func (s *SubmissionService) Create(owner *models.User, in SubmissionInput) (*models.TrashSubmission, error) {
	if owner.UserType != models.RoleUser {
		return nil, Forbidden("only regular users can submit trash")
	}
	location := utils.CleanText(in.Location)
	if location == "" {
		return nil, Invalid("location is required")
	}
	if len([]rune(location)) > 255 {
		return nil, Invalid("location must be at most 255 characters")
	}
	var qty decimal.NullDecimal
	if in.QuantityKg != nil {
		if !in.QuantityKg.IsPositive() || in.QuantityKg.GreaterThan(maxWeight) {
			return nil, Invalid("estimated weight must be between 0.01 and 9999.99 kg")
		}
		qty = decimal.NewNullDecimal(in.QuantityKg.Round(2))
	}

	sub := models.TrashSubmission{
		UserID:           owner.ID,
		QuantityKg:       qty,
		Location:         location,
		TrashDescription: utils.CleanText(in.Description),
		Status:           models.SubmissionPending,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		trackID, err := uniqueCode(tx, &models.TrashSubmission{}, "track_id", utils.NewTrackID)
		if err != nil {
			return err
		}
		sub.TrackID = trackID
		return tx.Create(&sub).Error
	})
	if err != nil {
		return nil, err
	}

	ev := events.New(events.SubmissionCreated, owner.ID)
	ev.SubmissionID, ev.TrackID, ev.Status = sub.ID, sub.TrackID, string(sub.Status)
	invalidateStats()
	events.Emit(s.events, ev)
	return &sub, nil
}

// Get loads a submission for viewer: the owner, any rider and admins may see it.
func (s *SubmissionService) Get(viewer *models.User, id uint) (*models.TrashSubmission, error) {
	var sub models.TrashSubmission
	if err := s.db.Preload("User").Preload("Rider").Preload("Collection").First(&sub, id).Error; err != nil {
		return nil, notFoundOr(err, "submission not found")
	}
	if viewer != nil && sub.UserID != viewer.ID && !viewer.IsAdmin() && !viewer.IsRider() {
		return nil, Forbidden("you do not have permission to view this submission")
	}
	return &sub, nil
}

// Track looks a submission up by its public tracking code.
func (s *SubmissionService) Track(trackID string) (*models.TrashSubmission, error) {
	trackID = strings.ToUpper(strings.TrimSpace(trackID))
	if !ValidTrackID(trackID) {
		return nil, Invalid("invalid tracking code")
	}
	var sub models.TrashSubmission
	if err := s.db.Preload("Rider").Where("track_id = ?", trackID).First(&sub).Error; err != nil {
		return nil, notFoundOr(err, "submission not found")
	}
	return &sub, nil
}

// ListForUser returns the owner's submissions newest first.
func (s *SubmissionService) ListForUser(userID uint, f SubmissionFilter) ([]models.TrashSubmission, int64, error) {
	q := s.filtered(s.db.Model(&models.TrashSubmission{}).Where("user_id = ?", userID), f)
	return s.page(q, f, "created_at DESC")
}

// ListAll returns every submission for admins.
func (s *SubmissionService) ListAll(f SubmissionFilter) ([]models.TrashSubmission, int64, error) {
	q := s.db.Model(&models.TrashSubmission{})
	if f.RiderID != 0 {
		q = q.Where("rider_id = ?", f.RiderID)
	}
	return s.page(s.filtered(q, f), f, "created_at DESC")
}

// ListPending returns submissions waiting for a rider, oldest first.
func (s *SubmissionService) ListPending(f SubmissionFilter) ([]models.TrashSubmission, int64, error) {
	f.Status = string(models.SubmissionPending)
	return s.page(s.filtered(s.db.Model(&models.TrashSubmission{}), f), f, "created_at ASC")
}

// ListForRider returns the rider's assignments. Without a status filter only
// work in progress (assigned through picked) is returned.
func (s *SubmissionService) ListForRider(riderID uint, f SubmissionFilter) ([]models.TrashSubmission, int64, error) {
	q := s.db.Model(&models.TrashSubmission{}).Where("rider_id = ?", riderID)
	if f.Status == "" {
		q = q.Where("status IN ?", []models.SubmissionStatus{
			models.SubmissionAssigned, models.SubmissionOnTheWay, models.SubmissionArrived, models.SubmissionPicked,
		})
	}
	return s.page(s.filtered(q, f), f, "assigned_at ASC, id ASC")
}

func (s *SubmissionService) filtered(q *gorm.DB, f SubmissionFilter) *gorm.DB {
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if since, ok := rangeStart(time.Now(), f.Range); ok {
		q = q.Where("created_at >= ?", since)
	}
	if strings.TrimSpace(f.Search) != "" {
		like := likePattern(f.Search)
		q = q.Where("track_id LIKE ? OR location LIKE ? OR trash_description LIKE ?", like, like, like)
	}
	return q.Session(&gorm.Session{})
}

func (s *SubmissionService) page(q *gorm.DB, f SubmissionFilter, order string) ([]models.TrashSubmission, int64, error) {
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.TrashSubmission
	err := paginate(q.Preload("User").Preload("Rider").Preload("Collection"), f.Page, f.PageSize).
		Order(order).
		Find(&rows).Error
	return rows, total, err
}

// Assign gives a pending submission to an active rider.
func (s *SubmissionService) Assign(admin *models.User, submissionID, riderID uint, notes string) (*models.TrashSubmission, error) {
	if !admin.IsAdmin() {
		return nil, Forbidden("only admins can assign riders")
	}
	if riderID == 0 {
		return nil, Invalid("rider is required")
	}
	var sub models.TrashSubmission
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockSubmission(tx, submissionID, &sub); err != nil {
			return err
		}
		if sub.Status != models.SubmissionPending {
			return Conflict("submission is not in pending status")
		}
		var rider models.User
		if err := tx.First(&rider, riderID).Error; err != nil {
			return notFoundOr(err, "rider not found")
		}
		if !rider.IsRider() {
			return Invalid("selected user is not a rider")
		}
		if !rider.IsActive() {
			return Invalid("rider account is not active")
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":           models.SubmissionAssigned,
			"rider_id":         rider.ID,
			"assigned_at":      now,
			"assignment_notes": utils.CleanText(notes),
		}
		if err := tx.Model(&sub).Updates(updates).Error; err != nil {
			return err
		}
		sub.Status = models.SubmissionAssigned
		return logActivity(tx, admin.ID, ActionAssignRider, map[string]interface{}{
			"submission_id": sub.ID,
			"track_id":      sub.TrackID,
			"rider_id":      rider.ID,
			"rider":         rider.Username,
		})
	})
	if err != nil {
		return nil, err
	}
	s.afterStatus(&sub, admin.ID)
	return s.reload(sub.ID)
}

// UpdateStatus moves an assigned submission one step along on_the_way, arrived, picked.
func (s *SubmissionService) UpdateStatus(rider *models.User, submissionID uint, to models.SubmissionStatus, notes string) (*models.TrashSubmission, error) {
	if !rider.IsRider() {
		return nil, Forbidden("only riders can update collection status")
	}
	if to != models.SubmissionOnTheWay && to != models.SubmissionArrived && to != models.SubmissionPicked {
		return nil, Invalid("invalid status")
	}
	var sub models.TrashSubmission
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockSubmission(tx, submissionID, &sub); err != nil {
			return err
		}
		if sub.RiderID == nil || *sub.RiderID != rider.ID {
			return Forbidden("this submission is not assigned to you")
		}
		from := sub.Status
		if next, ok := riderNext[from]; !ok || next != to {
			return Conflict("cannot change status from %s to %s", from, to)
		}

		now := time.Now()
		updates := map[string]interface{}{"status": to}
		switch to {
		case models.SubmissionOnTheWay:
			updates["on_the_way_at"] = now
		case models.SubmissionArrived:
			updates["arrived_at"] = now
		case models.SubmissionPicked:
			updates["pickup_time"] = now
		}
		if n := utils.CleanText(notes); n != "" {
			updates["rider_notes"] = n
		}
		if err := tx.Model(&sub).Updates(updates).Error; err != nil {
			return err
		}
		sub.Status = to
		return logActivity(tx, rider.ID, ActionUpdateStatus, map[string]interface{}{
			"submission_id": sub.ID,
			"track_id":      sub.TrackID,
			"old_status":    from,
			"new_status":    to,
		})
	})
	if err != nil {
		return nil, err
	}
	s.afterStatus(&sub, rider.ID)
	return s.reload(sub.ID)
}

// Complete records the collection of a picked submission and credits the
// awarded points to the submitting user.
func (s *SubmissionService) Complete(rider *models.User, submissionID uint, in CompletionInput) (*models.CollectionRecord, error) {
	if !rider.IsRider() {
		return nil, Forbidden("only riders can complete collections")
	}
	trashType := utils.CleanText(in.TrashType)
	if trashType == "" {
		return nil, Invalid("trash type is required")
	}
	if len([]rune(trashType)) > 50 {
		return nil, Invalid("trash type must be at most 50 characters")
	}
	if !in.ActualQuantity.IsPositive() || in.ActualQuantity.GreaterThan(maxWeight) {
		return nil, Invalid("actual quantity must be between 0.01 and 9999.99 kg")
	}
	if in.PointsAwarded < 0 || in.PointsAwarded > maxCollectionPoints {
		return nil, Invalid("points awarded must be between 0 and %d", maxCollectionPoints)
	}
	qty := in.ActualQuantity.Round(2)

	var (
		sub    models.TrashSubmission
		record models.CollectionRecord
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockSubmission(tx, submissionID, &sub); err != nil {
			return err
		}
		if sub.RiderID == nil || *sub.RiderID != rider.ID {
			return Forbidden("this submission is not assigned to you")
		}
		if sub.Status != models.SubmissionPicked {
			return Conflict("submission must be in picked status to complete")
		}

		now := time.Now()
		record = models.CollectionRecord{
			SubmissionID:   sub.ID,
			RiderID:        rider.ID,
			TrashType:      trashType,
			ActualQuantity: qty,
			PointsAwarded:  in.PointsAwarded,
			CollectedAt:    now,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		updates := map[string]interface{}{
			"status":          models.SubmissionCollected,
			"completion_time": now,
		}
		if n := utils.CleanText(in.Notes); n != "" {
			updates["rider_notes"] = n
		}
		if err := tx.Model(&sub).Updates(updates).Error; err != nil {
			return err
		}
		sub.Status = models.SubmissionCollected
		if in.PointsAwarded > 0 {
			if _, err := PostLedger(tx, LedgerEntry{
				UserID:       sub.UserID,
				Points:       in.PointsAwarded,
				Reason:       fmt.Sprintf("Collected %skg of %s", qty.StringFixed(2), trashType),
				SubmissionID: uintPtr(sub.ID),
				AwardedByID:  uintPtr(rider.ID),
			}); err != nil {
				return err
			}
		}
		return logActivity(tx, rider.ID, ActionCompleteCollection, map[string]interface{}{
			"submission_id":   sub.ID,
			"track_id":        sub.TrackID,
			"trash_type":      trashType,
			"actual_quantity": qty.StringFixed(2),
			"points_awarded":  in.PointsAwarded,
		})
	})
	if err != nil {
		return nil, err
	}
	s.afterStatus(&sub, rider.ID)
	if in.PointsAwarded > 0 {
		s.afterPoints(sub.UserID, in.PointsAwarded, "collection "+sub.TrackID)
	}
	record.Submission = &sub
	return &record, nil
}

// Verify confirms a collected submission and awards the verification points.
func (s *SubmissionService) Verify(admin *models.User, submissionID uint, points int, notes string) (*models.CollectionRecord, error) {
	if !admin.IsAdmin() {
		return nil, Forbidden("only admins can verify collections")
	}
	if points <= 0 {
		return nil, Invalid("points are required and must be a positive whole number")
	}
	if points > maxCollectionPoints {
		return nil, Invalid("points must be at most %d", maxCollectionPoints)
	}
	notes = utils.CleanText(notes)

	var (
		sub    models.TrashSubmission
		record models.CollectionRecord
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockSubmission(tx, submissionID, &sub); err != nil {
			return err
		}
		if sub.Status != models.SubmissionCollected {
			return Conflict("submission is not in collected status")
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("submission_id = ?", sub.ID).First(&record).Error; err != nil {
			return notFoundOr(err, "collection record not found")
		}
		if record.AdminVerified {
			return Conflict("collection already verified")
		}

		now := time.Now()
		if err := tx.Model(&record).Updates(map[string]interface{}{
			"admin_verified":     true,
			"verified_by_id":     admin.ID,
			"verified_at":        now,
			"verified_points":    points,
			"verification_notes": notes,
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&sub).Update("status", models.SubmissionVerified).Error; err != nil {
			return err
		}
		sub.Status = models.SubmissionVerified
		reason := "Collection verified by admin"
		if notes != "" {
			reason += " - " + notes
		}
		if _, err := PostLedger(tx, LedgerEntry{
			UserID:       sub.UserID,
			Points:       points,
			Reason:       reason,
			SubmissionID: uintPtr(sub.ID),
			AwardedByID:  uintPtr(admin.ID),
		}); err != nil {
			return err
		}
		return logActivity(tx, admin.ID, ActionVerifyCollection, map[string]interface{}{
			"submission_id": sub.ID,
			"track_id":      sub.TrackID,
			"points":        points,
		})
	})
	if err != nil {
		return nil, err
	}
	s.afterStatus(&sub, admin.ID)
	s.afterPoints(sub.UserID, points, "verification "+sub.TrackID)
	record.Submission = &sub
	return &record, nil
}

// Cancel withdraws a submission that has not reached the pickup point yet.
func (s *SubmissionService) Cancel(actor *models.User, submissionID uint, reason string) (*models.TrashSubmission, error) {
	var sub models.TrashSubmission
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockSubmission(tx, submissionID, &sub); err != nil {
			return err
		}
		if sub.UserID != actor.ID && !actor.IsAdmin() {
			return Forbidden("you cannot cancel this submission")
		}
		if !CanTransition(sub.Status, models.SubmissionCancelled) {
			return Conflict("submission can no longer be cancelled")
		}
		from := sub.Status
		if err := tx.Model(&sub).Updates(map[string]interface{}{
			"status":        models.SubmissionCancelled,
			"cancelled_at":  time.Now(),
			"cancel_reason": truncate(utils.CleanText(reason), 255),
		}).Error; err != nil {
			return err
		}
		sub.Status = models.SubmissionCancelled
		return logActivity(tx, actor.ID, ActionCancelSubmission, map[string]interface{}{
			"submission_id": sub.ID,
			"track_id":      sub.TrackID,
			"old_status":    from,
		})
	})
	if err != nil {
		return nil, err
	}
	s.afterStatus(&sub, actor.ID)
	return s.reload(sub.ID)
}

func (s *SubmissionService) reload(id uint) (*models.TrashSubmission, error) {
	return s.Get(nil, id)
}

func (s *SubmissionService) afterStatus(sub *models.TrashSubmission, actorID uint) {
	invalidateStats()
	ev := events.New(events.SubmissionStatusChanged, sub.UserID)
	ev.ActorID = actorID
	ev.SubmissionID, ev.TrackID, ev.Status = sub.ID, sub.TrackID, string(sub.Status)
	events.Emit(s.events, ev)
}

func (s *SubmissionService) afterPoints(userID uint, points int, msg string) {
	ev := events.New(events.PointsChanged, userID)
	ev.Points, ev.Message = points, msg
	events.Emit(s.events, ev)
}

// lockSubmission re-reads the row with FOR UPDATE so concurrent transitions serialise.
// The struct is refreshed so callers see the status after the lock was taken.
func lockSubmission(tx *gorm.DB, id uint, out *models.TrashSubmission) error {
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(out, id).Error; err != nil {
		return notFoundOr(err, "submission not found")
	}
	return nil
}

// uniqueCode draws codes until one is unused in column.
func uniqueCode(tx *gorm.DB, model interface{}, column string, gen func() string) (string, error) {
	for i := 0; i < 8; i++ {
		code := gen()
		var n int64
		if err := tx.Model(model).Where(column+" = ?", code).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique %s", column)
}
