package services

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ttt-platform/trash2treasure/config"
	"github.com/ttt-platform/trash2treasure/events"
	"github.com/ttt-platform/trash2treasure/models"
	"github.com/ttt-platform/trash2treasure/utils"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.@+-]{3,150}$`)
	phonePattern    = regexp.MustCompile(`^\+?[0-9 -]{6,15}$`)
	validate        = validator.New()
)

// ValidUsername reports whether s is an acceptable login name.
func ValidUsername(s string) bool {
	return usernamePattern.MatchString(s)
}

// RegisterInput is a self sign-up.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Location  string
	IP        string
}

// RiderInput is what an admin fills in to create a rider account.
type RiderInput struct {
	RegisterInput
	VehicleType  string
	VehicleModel string
	LicensePlate string
	VehicleColor string
}

// ProfileInput is a partial profile update; nil fields are left unchanged.
type ProfileInput struct {
	Email        *string
	FirstName    *string
	LastName     *string
	Phone        *string
	Location     *string
	VehicleType  *string
	VehicleModel *string
	LicensePlate *string
	VehicleColor *string
}

// UserFilter narrows the admin user listing.
type UserFilter struct {
	Search   string
	UserType string
	Status   string
	Page     int
	PageSize int
}

// HistoryFilter narrows a points history listing.
type HistoryFilter struct {
	Type     string // earned or spent
	Range    string
	Page     int
	PageSize int
}

// UserService manages accounts and balances outside the collection flow.
type UserService struct {
	db     *gorm.DB
	events events.Publisher
}

func NewUserService(db *gorm.DB, pub events.Publisher) *UserService {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &UserService{db: db, events: pub}
}

func (s *UserService) newAccount(tx *gorm.DB, in RegisterInput, role string) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	if !ValidUsername(username) {
		return nil, Invalid("username must be 3-150 characters of letters, digits and @.+-_")
	}
	email := strings.TrimSpace(in.Email)
	if email != "" {
		if err := validate.Var(email, "email"); err != nil {
			return nil, Invalid("enter a valid email address")
		}
	}
	if err := utils.ValidatePassword(in.Password); err != nil {
		return nil, Invalid("%s", err.Error())
	}
	phone := strings.TrimSpace(in.Phone)
	if phone != "" && !phonePattern.MatchString(phone) {
		return nil, Invalid("enter a valid phone number")
	}

	var n int64
	if err := tx.Model(&models.User{}).Where("username = ?", username).Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, Conflict("username already exists")
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	return &models.User{
		Username:     username,
		Email:        email,
		FirstName:    truncate(utils.CleanText(in.FirstName), 150),
		LastName:     truncate(utils.CleanText(in.LastName), 150),
		Phone:        phone,
		Location:     truncate(utils.CleanText(in.Location), 255),
		PasswordHash: hash,
		UserType:     role,
		Status:       models.UserActive,
		RegisterIP:   in.IP,
	}, nil
}

// Register creates a regular user. The role is always user, whatever the caller asked for.
func (s *UserService) Register(in RegisterInput) (*models.User, error) {
	user, err := s.newAccount(s.db, in, models.RoleUser)
	if err != nil {
		return nil, err
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}
	invalidateStats()
	return user, nil
}

// CreateRider creates a rider account on behalf of an admin.
func (s *UserService) CreateRider(admin *models.User, in RiderInput) (*models.User, error) {
	if !admin.IsAdmin() {
		return nil, Forbidden("only admins can create riders")
	}
	var rider *models.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		u, err := s.newAccount(tx, in.RegisterInput, models.RoleRider)
		if err != nil {
			return err
		}
		u.VehicleType = truncate(utils.CleanText(in.VehicleType), 50)
		u.VehicleModel = truncate(utils.CleanText(in.VehicleModel), 50)
		u.LicensePlate = truncate(strings.ToUpper(utils.CleanText(in.LicensePlate)), 20)
		u.VehicleColor = truncate(utils.CleanText(in.VehicleColor), 30)
		if err := tx.Create(u).Error; err != nil {
			return err
		}
		rider = u
		return logActivity(tx, admin.ID, ActionCreateRider, map[string]interface{}{
			"rider_id": u.ID,
			"username": u.Username,
		})
	})
	if err != nil {
		return nil, err
	}
	invalidateStats()
	return rider, nil
}

// Authenticate checks credentials. Suspended and inactive accounts cannot log in.
func (s *UserService) Authenticate(username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, Invalid("please provide both username and password")
	}
	var user models.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, Unauthorized("invalid username or password")
		}
		return nil, err
	}
	if !utils.CheckPassword(user.PasswordHash, password) {
		return nil, Unauthorized("invalid username or password")
	}
	if !user.IsActive() {
		return nil, Forbidden("your account is %s", user.Status)
	}
	now := time.Now()
	if err := s.db.Model(&user).UpdateColumn("last_login_at", now).Error; err != nil {
		utils.Sugar.Warnf("update last login user=%d: %v", user.ID, err)
	}
	user.LastLoginAt = &now
	return &user, nil
}

// Get loads a user by id.
func (s *UserService) Get(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	return &user, nil
}

// UpdateProfile applies a partial update. Vehicle fields are only accepted for riders.
func (s *UserService) UpdateProfile(user *models.User, in ProfileInput) (*models.User, error) {
	updates := map[string]interface{}{}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if email != "" {
			if err := validate.Var(email, "email"); err != nil {
				return nil, Invalid("enter a valid email address")
			}
		}
		updates["email"] = email
	}
	if in.Phone != nil {
		phone := strings.TrimSpace(*in.Phone)
		if phone != "" && !phonePattern.MatchString(phone) {
			return nil, Invalid("enter a valid phone number")
		}
		updates["phone"] = phone
	}
	text := func(col string, v *string, max int) {
		if v != nil {
			updates[col] = truncate(utils.CleanText(*v), max)
		}
	}
	text("first_name", in.FirstName, 150)
	text("last_name", in.LastName, 150)
	text("location", in.Location, 255)
	if in.VehicleType != nil || in.VehicleModel != nil || in.LicensePlate != nil || in.VehicleColor != nil {
		if !user.IsRider() {
			return nil, Forbidden("vehicle details can only be set by riders")
		}
		text("vehicle_type", in.VehicleType, 50)
		text("vehicle_model", in.VehicleModel, 50)
		text("license_plate", in.LicensePlate, 20)
		text("vehicle_color", in.VehicleColor, 30)
	}
	if len(updates) == 0 {
		return s.Get(user.ID)
	}
	if err := s.db.Model(&models.User{ID: user.ID}).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Get(user.ID)
}

// ChangePassword replaces the password after checking the current one.
func (s *UserService) ChangePassword(user *models.User, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return Invalid("please provide both old and new password")
	}
	var fresh models.User
	if err := s.db.Select("id", "password_hash").First(&fresh, user.ID).Error; err != nil {
		return notFoundOr(err, "user not found")
	}
	if !utils.CheckPassword(fresh.PasswordHash, oldPassword) {
		return Invalid("old password is incorrect")
	}
	if err := utils.ValidatePassword(newPassword); err != nil {
		return Invalid("%s", err.Error())
	}
	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.db.Model(&models.User{ID: user.ID}).Update("password_hash", hash).Error
}

// SetProfileImage stores a square thumbnail and replaces the previous one.
func (s *UserService) SetProfileImage(user *models.User, r io.Reader) (*models.User, error) {
	return s.storeImage(user, r, utils.ProfileImageSpec, "profile_image", user.ProfileImage)
}

// SetIDProof stores a rider's identity document.
func (s *UserService) SetIDProof(rider *models.User, r io.Reader) (*models.User, error) {
	if !rider.IsRider() {
		return nil, Forbidden("only riders can upload an id proof")
	}
	return s.storeImage(rider, r, utils.IDProofSpec, "id_proof", rider.IDProof)
}

func (s *UserService) storeImage(user *models.User, r io.Reader, spec utils.ImageSpec, column, previous string) (*models.User, error) {
	root := config.Get().MediaRoot
	rel, err := utils.SaveImage(r, root, spec)
	if err != nil {
		if errors.Is(err, utils.ErrUnsupportedImage) {
			return nil, Invalid("upload a valid image")
		}
		return nil, err
	}
	if err := s.db.Model(&models.User{ID: user.ID}).Update(column, rel).Error; err != nil {
		utils.RemoveMedia(root, rel)
		return nil, err
	}
	utils.RemoveMedia(root, previous)
	return s.Get(user.ID)
}

// List returns users for the admin console.
func (s *UserService) List(f UserFilter) ([]models.User, int64, error) {
	q := s.db.Model(&models.User{})
	if term := strings.TrimSpace(f.Search); term != "" {
		like := likePattern(term)
		q = q.Where("username LIKE ? OR email LIKE ? OR first_name LIKE ? OR last_name LIKE ?", like, like, like, like)
	}
	if f.UserType != "" {
		q = q.Where("user_type = ?", f.UserType)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.User
	err := paginate(q, f.Page, f.PageSize).Order("created_at DESC, id DESC").Find(&rows).Error
	return rows, total, err
}

// ListRiders returns active riders, used to fill the assignment picker.
func (s *UserService) ListRiders() ([]models.User, error) {
	var rows []models.User
	err := s.db.Where("user_type = ? AND status = ?", models.RoleRider, models.UserActive).
		Order("username ASC").Find(&rows).Error
	return rows, err
}

// ToggleStatus flips a non-admin account between active and suspended.
func (s *UserService) ToggleStatus(admin *models.User, userID uint) (*models.User, error) {
	if !admin.IsAdmin() {
		return nil, Forbidden("only admins can change account status")
	}
	var user models.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
			return notFoundOr(err, "user not found")
		}
		if user.IsAdmin() {
			return Forbidden("cannot change status of admin users")
		}
		from := user.Status
		to := models.UserSuspended
		if from != models.UserActive {
			to = models.UserActive
		}
		if err := tx.Model(&user).Update("status", to).Error; err != nil {
			return err
		}
		user.Status = to
		return logActivity(tx, admin.ID, ActionToggleStatus, map[string]interface{}{
			"user_id":    user.ID,
			"username":   user.Username,
			"old_status": from,
			"new_status": to,
		})
	})
	if err != nil {
		return nil, err
	}
	invalidateStats()
	return &user, nil
}

// ClearPoints zeroes a balance through a single negative ledger entry.
func (s *UserService) ClearPoints(admin *models.User, userID uint) (*models.User, error) {
	if !admin.IsAdmin() {
		return nil, Forbidden("only admins can clear points")
	}
	var cleared int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
			return notFoundOr(err, "user not found")
		}
		if user.IsAdmin() {
			return Forbidden("cannot clear points of admin users")
		}
		cleared = user.RewardPoints
		if cleared == 0 {
			return nil
		}
		if _, err := PostLedger(tx, LedgerEntry{
			UserID:      user.ID,
			Points:      -cleared,
			Reason:      "Points cleared by admin",
			AwardedByID: uintPtr(admin.ID),
		}); err != nil {
			return err
		}
		return logActivity(tx, admin.ID, ActionClearPoints, map[string]interface{}{
			"user_id": user.ID,
			"points":  cleared,
		})
	})
	if err != nil {
		return nil, err
	}
	if cleared > 0 {
		invalidateStats()
		ev := events.New(events.PointsChanged, userID)
		ev.ActorID, ev.Points, ev.Message = admin.ID, -cleared, "points cleared"
		events.Emit(s.events, ev)
	}
	return s.Get(userID)
}

// AwardBonus credits between 1 and MaxBonusPoints points with a mandatory reason.
func (s *UserService) AwardBonus(admin *models.User, userID uint, points int, reason string) (*models.RewardPointHistory, error) {
	if !admin.IsAdmin() {
		return nil, Forbidden("only admins can award bonus points")
	}
	max := config.Get().MaxBonusPoints
	if points < 1 || points > max {
		return nil, Invalid("bonus points must be between 1 and %d", max)
	}
	reason = utils.CleanText(reason)
	if reason == "" {
		return nil, Invalid("reason is required")
	}

	var row *models.RewardPointHistory
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Select("id", "user_type").First(&user, userID).Error; err != nil {
			return notFoundOr(err, "user not found")
		}
		if user.IsAdmin() {
			return Forbidden("cannot award points to admin users")
		}
		var err error
		row, err = PostLedger(tx, LedgerEntry{
			UserID:      userID,
			Points:      points,
			Reason:      "Bonus: " + reason,
			AwardedByID: uintPtr(admin.ID),
		})
		if err != nil {
			return err
		}
		return logActivity(tx, admin.ID, ActionAwardBonus, map[string]interface{}{
			"user_id": userID,
			"points":  points,
			"reason":  reason,
		})
	})
	if err != nil {
		return nil, err
	}
	invalidateStats()
	ev := events.New(events.PointsChanged, userID)
	ev.ActorID, ev.Points, ev.Message = admin.ID, points, fmt.Sprintf("bonus: %s", reason)
	events.Emit(s.events, ev)
	return row, nil
}

// PointsHistory lists a user's ledger newest first.
func (s *UserService) PointsHistory(userID uint, f HistoryFilter) ([]models.RewardPointHistory, int64, error) {
	q := s.db.Model(&models.RewardPointHistory{}).Where("user_id = ?", userID)
	switch f.Type {
	case "":
	case "earned":
		q = q.Where("points > 0")
	case "spent":
		q = q.Where("points < 0")
	default:
		return nil, 0, Invalid("type must be earned or spent")
	}
	if since, ok := rangeStart(time.Now(), f.Range); ok {
		q = q.Where("created_at >= ?", since)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.RewardPointHistory
	err := paginate(q.Preload("AwardedBy"), f.Page, f.PageSize).Order("created_at DESC, id DESC").Find(&rows).Error
	return rows, total, err
}

// RiderCollections lists a rider's collection records newest first.
func (s *UserService) RiderCollections(riderID uint, f SubmissionFilter) ([]models.CollectionRecord, int64, error) {
	q := s.db.Model(&models.CollectionRecord{}).Where("collection_records.rider_id = ?", riderID)
	if since, ok := rangeStart(time.Now(), f.Range); ok {
		q = q.Where("collection_records.collected_at >= ?", since)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := likePattern(term)
		q = q.Joins("JOIN trash_submissions ON trash_submissions.id = collection_records.submission_id").
			Where("trash_submissions.track_id LIKE ? OR trash_submissions.location LIKE ? OR collection_records.trash_type LIKE ?", like, like, like)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.CollectionRecord
	err := paginate(q.Preload("Submission").Preload("Submission.User"), f.Page, f.PageSize).
		Order("collection_records.collected_at DESC").
		Find(&rows).Error
	return rows, total, err
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet.
func (s *UserService) EnsureAdmin(username, password, email string) error {
	if username == "" || password == "" {
		return nil
	}
	var n int64
	if err := s.db.Model(&models.User{}).Where("username = ?", username).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	admin := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		UserType:     models.RoleAdmin,
		Status:       models.UserActive,
	}
	if err := s.db.Create(&admin).Error; err != nil {
		return err
	}
	utils.Sugar.Infof("bootstrap admin %q created", username)
	return nil
}

// CheckLedger reconciles a user's stored balance with their history.
func (s *UserService) CheckLedger(userID uint) (*LedgerReport, error) {
	return CheckLedger(s.db, userID)
}
