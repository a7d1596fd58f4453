package handler

import (
	"net/http"
	"strconv"

	"doubtiq-go/internal/middleware"
	"doubtiq-go/internal/service"
	"doubtiq-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves user management for admins.
type AdminHandler struct {
	adminService service.AdminService
}

func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

// ListUsers handles GET /admin/users?page=&size=.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	users, err := h.adminService.ListUsers(c.Request.Context(), page, size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": users})
}

// SetUserActive handles PATCH /admin/users/:id/active.
func (h *AdminHandler) SetUserActive(c *gin.Context) {
	userID, ok := idParam(c, "id", "User not found")
	if !ok {
		return
	}
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		badRequest(c, "active is required")
		return
	}

	admin, _ := middleware.CurrentUser(c)
	user, err := h.adminService.SetUserActive(c.Request.Context(), userID, *req.Active)
	if err != nil {
		respondError(c, err)
		return
	}
	if admin != nil {
		log.Infow("admin changed user status", "adminId", admin.ID, "userId", userID, "active", *req.Active)
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": user})
}
