package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/ttt-platform/trash2treasure/models"
	"github.com/ttt-platform/trash2treasure/services"
	"github.com/ttt-platform/trash2treasure/utils"
)

// SubmissionController exposes the pickup lifecycle to users, riders and admins.
type SubmissionController struct {
	subs *services.SubmissionService
}

func NewSubmissionController(subs *services.SubmissionService) *SubmissionController {
	return &SubmissionController{subs: subs}
}

func submissionFilter(ctx *gin.Context) services.SubmissionFilter {
	page, pageSize := pageParams(ctx)
	return services.SubmissionFilter{
		Status:   ctx.Query("status"),
		Range:    ctx.Query("date"),
		Search:   ctx.Query("search"),
		Page:     page,
		PageSize: pageSize,
	}
}

func listSubmissions(ctx *gin.Context, f services.SubmissionFilter, list func(services.SubmissionFilter) ([]models.TrashSubmission, int64, error)) {
	rows, total, err := list(f)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Paginated(ctx, rows, f.Page, f.PageSize, total)
}

type createSubmissionRequest struct {
	QuantityKg       *decimal.Decimal `json:"quantity_kg"`
	Location         string           `json:"location" binding:"required,max=255"`
	TrashDescription string           `json:"trash_description"`
}

// Create submits a new pickup request.
func (s *SubmissionController) Create(ctx *gin.Context) {
	var req createSubmissionRequest
	if !bindJSON(ctx, &req) {
		return
	}
	sub, err := s.subs.Create(currentUser(ctx), services.SubmissionInput{
		QuantityKg:  req.QuantityKg,
		Location:    req.Location,
		Description: req.TrashDescription,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, sub)
}

// ListMine lists the caller's submissions.
func (s *SubmissionController) ListMine(ctx *gin.Context) {
	user := currentUser(ctx)
	listSubmissions(ctx, submissionFilter(ctx), func(f services.SubmissionFilter) ([]models.TrashSubmission, int64, error) {
		return s.subs.ListForUser(user.ID, f)
	})
}

// Get returns one submission if the caller may see it.
func (s *SubmissionController) Get(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	sub, err := s.subs.Get(currentUser(ctx), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, sub)
}

type trackRequest struct {
	TrackID string `uri:"track_id" binding:"required,trackid"`
}

// Track is the public lookup by tracking code.
func (s *SubmissionController) Track(ctx *gin.Context) {
	var req trackRequest
	if err := ctx.ShouldBindUri(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, bindMessage(err))
		return
	}
	sub, err := s.subs.Track(req.TrackID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	out := gin.H{
		"track_id":     sub.TrackID,
		"status":       sub.Status,
		"status_label": sub.StatusLabel(),
		"location":     sub.Location,
		"created_at":   sub.CreatedAt,
		"assigned_at":  sub.AssignedAt,
		"pickup_time":  sub.PickupTime,
	}
	if sub.Rider != nil {
		out["rider"] = sub.Rider.FullName()
	}
	utils.Success(ctx, out)
}

type reasonRequest struct {
	Reason string `json:"reason" binding:"max=255"`
}

// Cancel withdraws a submission.
func (s *SubmissionController) Cancel(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if ctx.Request.ContentLength > 0 && !bindJSON(ctx, &req) {
		return
	}
	sub, err := s.subs.Cancel(currentUser(ctx), id, req.Reason)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, sub)
}

// RiderList lists the rider's assigned work.
func (s *SubmissionController) RiderList(ctx *gin.Context) {
	rider := currentUser(ctx)
	listSubmissions(ctx, submissionFilter(ctx), func(f services.SubmissionFilter) ([]models.TrashSubmission, int64, error) {
		return s.subs.ListForRider(rider.ID, f)
	})
}

type statusRequest struct {
	Status string `json:"status" binding:"required,oneof=on_the_way arrived picked"`
	Notes  string `json:"notes"`
}

// UpdateStatus moves an assigned submission one step forward.
func (s *SubmissionController) UpdateStatus(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !bindJSON(ctx, &req) {
		return
	}
	sub, err := s.subs.UpdateStatus(currentUser(ctx), id, models.SubmissionStatus(req.Status), req.Notes)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, sub)
}

type completeRequest struct {
	TrashType      string          `json:"trash_type" binding:"required,max=50"`
	ActualQuantity decimal.Decimal `json:"actual_quantity"`
	PointsAwarded  int             `json:"points_awarded" binding:"gte=0"`
	Notes          string          `json:"notes"`
}

// Complete records the collection of a picked submission.
func (s *SubmissionController) Complete(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req completeRequest
	if !bindJSON(ctx, &req) {
		return
	}
	record, err := s.subs.Complete(currentUser(ctx), id, services.CompletionInput{
		TrashType:      req.TrashType,
		ActualQuantity: req.ActualQuantity,
		PointsAwarded:  req.PointsAwarded,
		Notes:          req.Notes,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, record)
}

type assignRequest struct {
	RiderID uint   `json:"rider_id" binding:"required"`
	Notes   string `json:"notes"`
}

// Assign gives a pending submission to a rider.
func (s *SubmissionController) Assign(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req assignRequest
	if !bindJSON(ctx, &req) {
		return
	}
	sub, err := s.subs.Assign(currentUser(ctx), id, req.RiderID, req.Notes)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, sub)
}

type verifyRequest struct {
	Points int    `json:"points"`
	Notes  string `json:"notes"`
}

// Verify confirms a collection and awards the verification points.
func (s *SubmissionController) Verify(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req verifyRequest
	if !bindJSON(ctx, &req) {
		return
	}
	record, err := s.subs.Verify(currentUser(ctx), id, req.Points, req.Notes)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, record)
}

// AdminList lists every submission; rider_id narrows to one rider.
func (s *SubmissionController) AdminList(ctx *gin.Context) {
	f := submissionFilter(ctx)
	if v, ok := ctx.GetQuery("rider_id"); ok && v != "" {
		id, ok := paramIDValue(v)
		if !ok {
			utils.Error(ctx, http.StatusBadRequest, 40002, "invalid rider_id")
			return
		}
		f.RiderID = id
	}
	listSubmissions(ctx, f, s.subs.ListAll)
}

// AdminPending lists submissions waiting for a rider.
func (s *SubmissionController) AdminPending(ctx *gin.Context) {
	listSubmissions(ctx, submissionFilter(ctx), s.subs.ListPending)
}
