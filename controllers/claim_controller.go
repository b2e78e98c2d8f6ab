package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/ttt-platform/trash2treasure/models"
	"github.com/ttt-platform/trash2treasure/services"
	"github.com/ttt-platform/trash2treasure/utils"
)

// ClaimController handles reward redemption for users and admins.
type ClaimController struct {
	claims *services.ClaimService
}

func NewClaimController(claims *services.ClaimService) *ClaimController {
	return &ClaimController{claims: claims}
}

type createClaimRequest struct {
	ClaimAmount      int    `json:"claim_amount"`
	ClaimType        string `json:"claim_type" binding:"required,oneof=payment donation"`
	DonationHospital string `json:"donation_hospital" binding:"max=100"`
}

// Create opens a claim for the caller.
func (c *ClaimController) Create(ctx *gin.Context) {
	var req createClaimRequest
	if !bindJSON(ctx, &req) {
		return
	}
	claim, err := c.claims.Create(currentUser(ctx), services.ClaimInput{
		ClaimAmount:      req.ClaimAmount,
		ClaimType:        req.ClaimType,
		DonationHospital: req.DonationHospital,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, claim)
}

// ListMine lists the caller's claims together with the points still claimable.
func (c *ClaimController) ListMine(ctx *gin.Context) {
	user := currentUser(ctx)
	page, pageSize := pageParams(ctx)
	rows, total, err := c.claims.List(services.ClaimFilter{
		UserID:   user.ID,
		Status:   ctx.Query("status"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	avail, err := c.claims.Available(user.ID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{
		"items":            rows,
		"available_points": avail,
		"pagination": gin.H{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	})
}

// AdminList lists every claim, optionally by status.
func (c *ClaimController) AdminList(ctx *gin.Context) {
	page, pageSize := pageParams(ctx)
	rows, total, err := c.claims.List(services.ClaimFilter{
		Status:   ctx.Query("status"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Paginated(ctx, rows, page, pageSize, total)
}

type claimStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending processing completed cancelled"`
	Notes  string `json:"notes"`
}

// UpdateStatus moves a claim through its workflow.
func (c *ClaimController) UpdateStatus(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req claimStatusRequest
	if !bindJSON(ctx, &req) {
		return
	}
	claim, err := c.claims.UpdateStatus(currentUser(ctx), id, models.ClaimStatus(req.Status), req.Notes)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, claim)
}

// Delete removes a pending or cancelled claim.
func (c *ClaimController) Delete(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	if err := c.claims.Delete(currentUser(ctx), id); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "claim deleted"})
}
