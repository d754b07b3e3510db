package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prepforge/prepforge-backend/internal/model"
	"github.com/prepforge/prepforge-backend/internal/response"
	"github.com/prepforge/prepforge-backend/internal/service"
	"github.com/prepforge/prepforge-backend/internal/validator"
)

// AttemptHandler handles attempt lifecycle endpoints.
type AttemptHandler struct {
	attemptService *service.AttemptService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService) *AttemptHandler {
	return &AttemptHandler{attemptService: attemptService}
}

// StartAttempt godoc
// POST /api/v1/attempts
// Starts an attempt over an exam and returns the channel token.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	var req model.StartAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	examID, err := uuid.Parse(req.ExamID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	resp, err := h.attemptService.Start(c.Request.Context(), examID, req.NegativeMark, req.TimeLimit)
	if err != nil {
		if errors.Is(err, service.ErrExamNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"attempt": resp})
}

// StartWeakAttempt godoc
// POST /api/v1/attempts/weak
// Starts a focus-mode attempt over an explicit question list.
func (h *AttemptHandler) StartWeakAttempt(c *gin.Context) {
	var req model.StartWeakAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questionIDs := make([]uuid.UUID, len(req.QuestionIDs))
	for i, raw := range req.QuestionIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		questionIDs[i] = id
	}

	resp, err := h.attemptService.StartCustom(c.Request.Context(), questionIDs, req.NegativeMark, req.TimeLimit)
	if err != nil {
		if errors.Is(err, service.ErrQuestionsNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"attempt": resp})
}

// ListAttempts godoc
// GET /api/v1/attempts
// Lists attempt summaries, newest first.
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	attempts, err := h.attemptService.List(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// GetPaper godoc
// GET /api/v1/attempts/:id/paper
// Returns the attempt's question set with the answer key stripped.
func (h *AttemptHandler) GetPaper(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	paper, err := h.attemptService.GetPaper(c.Request.Context(), attemptID)
	if err != nil {
		h.failLifecycle(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}

// GetState godoc
// GET /api/v1/attempts/:id/state
// Returns autosaved answers and remaining time for resume.
func (h *AttemptHandler) GetState(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.attemptService.GetState(c.Request.Context(), attemptID)
	if err != nil {
		h.failLifecycle(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"state": state})
}

// SubmitAnswers godoc
// PATCH /api/v1/attempts/:id/answers
// Records a partial submission. HTTP fallback for the live channel.
func (h *AttemptHandler) SubmitAnswers(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitAnswersRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	answers, err := model.ParseAnswerMap(req.Answers)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	if err := h.attemptService.RecordPartial(c.Request.Context(), attemptID, answers); err != nil {
		h.failLifecycle(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// FinishAttempt godoc
// POST /api/v1/attempts/:id/finish
// Finalizes the attempt with the submitted answers and returns the score.
func (h *AttemptHandler) FinishAttempt(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitAnswersRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	answers, err := model.ParseAnswerMap(req.Answers)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	result, err := h.attemptService.Finalize(c.Request.Context(), attemptID, answers)
	if err != nil {
		h.failLifecycle(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": model.FinalizeResponse{
		AttemptID:    attemptID,
		ScoreTotal:   result.ScoreTotal,
		ScoreByTopic: result.ScoreByTopic,
		CorrectCount: result.CorrectCount,
		WrongCount:   result.WrongCount,
		BlankCount:   result.BlankCount,
	}})
}

// GetResult godoc
// GET /api/v1/attempts/:id
// Returns the full post-finalize review.
func (h *AttemptHandler) GetResult(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	review, err := h.attemptService.GetResult(c.Request.Context(), attemptID)
	if err != nil {
		h.failLifecycle(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"review": review})
}

// failLifecycle maps lifecycle errors onto the response envelope.
func (h *AttemptHandler) failLifecycle(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAttemptNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrAlreadyFinished):
		response.Fail(c, http.StatusConflict, response.ErrConflict)
	case errors.Is(err, service.ErrStillInProgress):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidState)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
