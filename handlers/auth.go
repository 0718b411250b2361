package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-api/middleware"
	"storefront-api/models"
	"storefront-api/services"
	"storefront-api/statemachine"
)

type LoginRequest struct {
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required"`
}

// Signup creates a password account, when the store accepts signups
func (h *Handler) Signup(c *gin.Context) {
	var form services.SignupForm
	if err := c.ShouldBind(&form); err != nil {
		respondError(c, services.FieldErrors(err))
		return
	}

	user, err := h.Accounts.Signup(c.Request.Context(), form)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.JWT.GenerateToken(user)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Account created successfully",
		"token":   token,
		"user":    userJSON(user),
	})
}

// Login authenticates a password account and returns a JWT
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, services.FieldErrors(err))
		return
	}

	user, err := h.Accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.JWT.GenerateToken(user)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user":    userJSON(user),
	})
}

// Me returns the caller, its current role and where the admin gate stands
func (h *Handler) Me(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	ctx := c.Request.Context()

	out := gin.H{"id": p.ID, "email": p.Email}
	if h.Stores.Users != nil {
		user, err := h.Accounts.Lookup(ctx, p.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		out = userJSON(user)
	} else if err := h.Accounts.EnsureProfile(ctx, p.ID, p.Email); err != nil {
		zap.L().Warn("could not create profile", zap.String("principal", p.ID), zap.Error(err))
	}

	state := statemachine.Unresolved
	role, err := h.Roles.ResolveRole(ctx, p.ID)
	if err != nil {
		zap.L().Error("role resolution failed", zap.String("principal", p.ID), zap.Error(err))
	} else {
		out["role"] = role
		state = statemachine.User
		if role == models.RoleAdmin {
			state = statemachine.Admin
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"user":     out,
		"state":    state,
		"decision": statemachine.Guard(state, true),
	})
}

func userJSON(u *models.User) gin.H {
	return gin.H{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
		"role":  u.Role,
	}
}
