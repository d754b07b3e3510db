package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prepforge/prepforge-backend/internal/response"
	"github.com/prepforge/prepforge-backend/internal/service"
)

// WeakQuestionHandler serves the focus-mode practice view.
type WeakQuestionHandler struct {
	statService *service.StatService
}

// NewWeakQuestionHandler creates a new WeakQuestionHandler.
func NewWeakQuestionHandler(statService *service.StatService) *WeakQuestionHandler {
	return &WeakQuestionHandler{statService: statService}
}

// ListWeakQuestions godoc
// GET /api/v1/weak-questions
// Lists questions whose latest recorded outcome was wrong, most practiced
// first. ?mode=recent restricts to the latest finalized attempt's window.
func (h *WeakQuestionHandler) ListWeakQuestions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(service.DefaultWeakLimit)))
	mode := c.DefaultQuery("mode", service.WeakModeAll)

	questions, err := h.statService.ListWeak(c.Request.Context(), limit, mode)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"weak_questions": questions})
}
