package quizzes

import (
	"github.com/gin-gonic/gin"

	"github.com/aura-learn/quiz-backend/internal/middleware"
	"github.com/aura-learn/quiz-backend/pkg/response"
	"github.com/aura-learn/quiz-backend/pkg/utils"
)

// Handler handles quiz authoring HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a quizzes handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Create handles POST /quizzes (tutor).
func (h *Handler) Create(c *gin.Context) {
	var req CreateQuizInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	q, err := h.svc.CreateQuiz(c.Request.Context(), middleware.Caller(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, q)
}

// Get handles GET /quizzes/:id (tutor).
func (h *Handler) Get(c *gin.Context) {
	id, ok := utils.ParamID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid quiz id")
		return
	}
	d, err := h.svc.GetQuiz(c.Request.Context(), middleware.Caller(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, d)
}

// Update handles PATCH /quizzes/:id (tutor).
func (h *Handler) Update(c *gin.Context) {
	id, ok := utils.ParamID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid quiz id")
		return
	}
	var req UpdateQuizInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	q, err := h.svc.UpdateQuiz(c.Request.Context(), middleware.Caller(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, q)
}

// Delete handles DELETE /quizzes/:id (tutor).
func (h *Handler) Delete(c *gin.Context) {
	id, ok := utils.ParamID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid quiz id")
		return
	}
	if err := h.svc.DeleteQuiz(c.Request.Context(), middleware.Caller(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"id": id, "deleted": true})
}

// AddQuestion handles POST /quizzes/:id/questions (tutor).
func (h *Handler) AddQuestion(c *gin.Context) {
	id, ok := utils.ParamID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid quiz id")
		return
	}
	var req QuestionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	q, err := h.svc.AddQuestion(c.Request.Context(), middleware.Caller(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, q)
}

// GetQuestion handles GET /questions/:id (tutor).
func (h *Handler) GetQuestion(c *gin.Context) {
	id, ok := utils.ParamID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid question id")
		return
	}
	q, err := h.svc.GetQuestion(c.Request.Context(), middleware.Caller(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, q)
}

// UpdateQuestion handles PATCH /questions/:id (tutor).
func (h *Handler) UpdateQuestion(c *gin.Context) {
	id, ok := utils.ParamID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid question id")
		return
	}
	var req UpdateQuestionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	q, err := h.svc.UpdateQuestion(c.Request.Context(), middleware.Caller(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, q)
}

// DeleteQuestion handles DELETE /questions/:id (tutor).
func (h *Handler) DeleteQuestion(c *gin.Context) {
	id, ok := utils.ParamID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid question id")
		return
	}
	if err := h.svc.DeleteQuestion(c.Request.Context(), middleware.Caller(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"id": id, "deleted": true})
}

// Register mounts the authoring routes on a group that already requires the tutor role.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.POST("/quizzes", h.Create)
	g.GET("/quizzes/:id", h.Get)
	g.PATCH("/quizzes/:id", h.Update)
	g.DELETE("/quizzes/:id", h.Delete)
	g.POST("/quizzes/:id/questions", h.AddQuestion)
	g.GET("/questions/:id", h.GetQuestion)
	g.PATCH("/questions/:id", h.UpdateQuestion)
	g.DELETE("/questions/:id", h.DeleteQuestion)
}
