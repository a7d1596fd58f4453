package handler

import (
	"net/http"

	"doubtiq-go/internal/service"

	"github.com/gin-gonic/gin"
)

type DoubtHandler struct {
	doubtService service.DoubtService
}

func NewDoubtHandler(doubtService service.DoubtService) *DoubtHandler {
	return &DoubtHandler{doubtService: doubtService}
}

type askRequest struct {
	Question string `json:"question"`
}

// Ask handles POST /doubt/ask.
func (h *DoubtHandler) Ask(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Question is required")
		return
	}

	doubt, err := h.doubtService.AskDoubt(c.Request.Context(), user.ID, req.Question)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Doubt answered successfully",
		"id":      doubt.ID,
		"answer":  doubt.Answer,
	})
}

func (h *DoubtHandler) History(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	doubts, err := h.doubtService.History(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": doubts})
}

// Search handles GET /doubt/search?q=.
func (h *DoubtHandler) Search(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	hits, err := h.doubtService.Search(c.Request.Context(), user.ID, c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": hits})
}
