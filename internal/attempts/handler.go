package attempts

import (
	"github.com/gin-gonic/gin"

	"github.com/aura-learn/quiz-backend/internal/middleware"
	"github.com/aura-learn/quiz-backend/pkg/response"
	"github.com/aura-learn/quiz-backend/pkg/utils"
)

// Handler handles attempt HTTP endpoints for students.
type Handler struct {
	svc *Service
}

// NewHandler creates an attempts handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Start handles POST /quizzes/:id/start. 201 for a new attempt, 200 when resuming.
func (h *Handler) Start(c *gin.Context) {
	quizID, ok := utils.ParamID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid quiz id")
		return
	}
	res, err := h.svc.Start(c.Request.Context(), middleware.Caller(c), quizID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if res.Resumed {
		response.OK(c, res)
		return
	}
	response.Created(c, res)
}

// Questions handles GET /attempts/:id/questions.
func (h *Handler) Questions(c *gin.Context) {
	attemptID, ok := utils.ParamID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid attempt id")
		return
	}
	sheet, err := h.svc.Questions(c.Request.Context(), middleware.Caller(c), attemptID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sheet)
}

// SaveAnswer handles POST /attempts/:id/answer.
func (h *Handler) SaveAnswer(c *gin.Context) {
	attemptID, ok := utils.ParamID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid attempt id")
		return
	}
	var req SaveAnswerInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ans, err := h.svc.SaveAnswer(c.Request.Context(), middleware.Caller(c), attemptID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, ans)
}

// Submit handles POST /attempts/:id/submit.
func (h *Handler) Submit(c *gin.Context) {
	attemptID, ok := utils.ParamID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid attempt id")
		return
	}
	sub, err := h.svc.Submit(c.Request.Context(), middleware.Caller(c), attemptID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sub)
}

// Register mounts the attempt routes on a group that already requires the student role.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.POST("/quizzes/:id/start", h.Start)
	g.GET("/attempts/:id/questions", h.Questions)
	g.POST("/attempts/:id/answer", h.SaveAnswer)
	g.POST("/attempts/:id/submit", h.Submit)
}
