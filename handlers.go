package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pawnest/adoptions_backend/models"
	"github.com/pawnest/adoptions_backend/models/reports"
	"github.com/pawnest/adoptions_backend/utils"
)

// respondError maps the domain error taxonomy to HTTP. The reason codes are
// part of the API contract; clients branch on them, not on messages.
func respondError(c *gin.Context, err error) {
	if ve, ok := utils.AsValidationError(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  ve.Message,
			"reason": "validation",
			"fields": ve.Fields,
		})
		return
	}
	if ce, ok := utils.AsConflictError(err); ok {
		c.JSON(http.StatusConflict, gin.H{
			"error":  ce.Error(),
			"reason": string(ce.Reason),
		})
		return
	}
	if te, ok := utils.AsInvalidTransitionError(err); ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  te.Error(),
			"reason": "invalid_transition",
			"from":   te.From,
			"to":     te.To,
		})
		return
	}
	if _, ok := utils.AsArchivalConsistencyError(err); ok {
		// retryable: re-invoking the rejection converges
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  err.Error(),
			"reason": "archival_inconsistency",
		})
		return
	}
	if errors.Is(err, utils.ErrorRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "reason": "not_found"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func requireUserId(c *gin.Context) (int, bool) {
	userId, ok := utils.GetUserIdFromContext(c.Request.Context())
	if !ok || userId == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return 0, false
	}
	return userId, true
}

func requireShelterStaff(c *gin.Context) bool {
	role, _ := utils.GetUserRoleFromContext(c.Request.Context())
	if models.UserRole(role) != models.UserRoleShelterStaff && models.UserRole(role) != models.UserRoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "shelter staff only"})
		return false
	}
	return true
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		info, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := models.Logout(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": ok})
	}
}

func registerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.NewUser
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		// staff and admin accounts are provisioned internally
		if req.Role != models.UserRoleApplicant {
			if err := authorizeAdminOnly(c.Request.Context()); err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
		}
		user, err := models.CreateUser(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

// serviceTokenHandler issues a JWT for service-to-service callers (scheduler,
// ops tooling). Requires an admin session; the token carries the admin's id
// and role and expires after TOKEN_HOUR_LIFESPAN hours.
func serviceTokenHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := authorizeAdminOnly(c.Request.Context()); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		userId, _ := utils.GetUserIdFromContext(c.Request.Context())
		role, _ := utils.GetUserRoleFromContext(c.Request.Context())
		token, err := utils.JwtGenerate(userId, role)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

func listAvailablePetsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		pets, err := models.ListAvailablePets(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, pets)
	}
}

func getPetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		pet, err := models.GetPet(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, pet)
	}
}

// petApplicationStatusHandler answers the pet page's button state for the
// session user.
func petApplicationStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		viewerId, ok := requireUserId(c)
		if !ok {
			return
		}
		view, err := models.GetPetApplicationStatus(c.Request.Context(), id, viewerId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

func createPetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireShelterStaff(c) {
			return
		}
		var req models.NewPet
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		pet, err := models.CreatePet(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, pet)
	}
}

func updatePetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireShelterStaff(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		var req models.EditPet
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		pet, err := models.UpdatePet(c.Request.Context(), id, &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, pet)
	}
}

func archivePetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireShelterStaff(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		pet, err := models.ArchivePet(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, pet)
	}
}

func submitApplicationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireUserId(c); !ok {
			return
		}
		var req models.NewApplication
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		ctx, span := tracer.Start(c.Request.Context(), "submitApplication")
		defer span.End()

		application, err := models.SubmitApplication(ctx, &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, application)
	}
}

func listApplicationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireUserId(c); !ok {
			return
		}
		items, err := models.ListApplicationsForApplicant(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

func withdrawApplicationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireUserId(c); !ok {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		application, err := models.WithdrawApplication(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, application)
	}
}

type transitionRequest struct {
	Action          string  `json:"action" binding:"required"`
	RejectionReason string  `json:"rejection_reason"`
	ShelterNotes    *string `json:"shelter_notes"`
}

func transitionApplicationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireShelterStaff(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		var req transitionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		action, err := models.ParseTransitionAction(req.Action)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, span := tracer.Start(c.Request.Context(), "transitionApplication")
		defer span.End()

		result, err := models.TransitionApplication(ctx, id, action, &models.RejectionInput{
			RejectionReason: req.RejectionReason,
			ShelterNotes:    req.ShelterNotes,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func listShelterPetsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireShelterStaff(c) {
			return
		}
		pets, err := models.ListPetsForShelter(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, pets)
	}
}

func listRejectionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireShelterStaff(c) {
			return
		}
		records, err := models.ListArchivedRejectionsForShelter(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, records)
	}
}

func exportRejectionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireShelterStaff(c) {
			return
		}
		f, err := reports.BuildRejectionsXLSX(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=rejections.xlsx")
		if err := f.Write(c.Writer); err != nil {
			c.Status(http.StatusInternalServerError)
		}
	}
}

func listHistoriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireShelterStaff(c) {
			return
		}
		var referenceId *int
		if v := c.Query("reference_id"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				referenceId = &n
			}
		}
		var referenceType *string
		if v := c.Query("reference_type"); v != "" {
			referenceType = &v
		}
		var userId *int
		if v := c.Query("user_id"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				userId = &n
			}
		}
		histories, err := models.GetHistories(c.Request.Context(), referenceId, referenceType, userId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, histories)
	}
}

func createShelterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := authorizeAdminOnly(c.Request.Context()); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var req models.NewShelter
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		shelter, err := models.CreateShelter(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, shelter)
	}
}
