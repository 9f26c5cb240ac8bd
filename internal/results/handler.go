package results

import (
	"github.com/gin-gonic/gin"

	"github.com/aura-learn/quiz-backend/internal/middleware"
	"github.com/aura-learn/quiz-backend/internal/models"
	"github.com/aura-learn/quiz-backend/internal/quizzes"
	"github.com/aura-learn/quiz-backend/pkg/response"
	"github.com/aura-learn/quiz-backend/pkg/utils"
)

// Handler serves the routes whose answer depends on the caller's role.
type Handler struct {
	svc     *Service
	quizzes *quizzes.Service
}

// NewHandler creates a results handler.
func NewHandler(svc *Service, quizSvc *quizzes.Service) *Handler {
	return &Handler{svc: svc, quizzes: quizSvc}
}

// CourseQuizzes handles GET /courses/:id/quizzes. Tutors get every quiz of the course,
// students get the active quizzes with their progress.
func (h *Handler) CourseQuizzes(c *gin.Context) {
	courseID, ok := utils.ParamID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid course id")
		return
	}
	caller := middleware.Caller(c)
	ctx := c.Request.Context()
	switch caller.Role {
	case models.RoleTutor:
		list, err := h.quizzes.ListCourseQuizzes(ctx, caller, courseID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, gin.H{"course_id": courseID, "quizzes": list})
	case models.RoleStudent:
		list, err := h.svc.CourseOverview(ctx, caller, courseID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, gin.H{"course_id": courseID, "quizzes": list})
	default:
		response.Forbidden(c, "insufficient permissions")
	}
}

// QuizAttempts handles GET /quizzes/:id/attempts. Students see their own attempts,
// tutors see every attempt with answers.
func (h *Handler) QuizAttempts(c *gin.Context) {
	quizID, ok := utils.ParamID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid quiz id")
		return
	}
	caller := middleware.Caller(c)
	ctx := c.Request.Context()
	switch caller.Role {
	case models.RoleTutor:
		report, err := h.svc.AuthorView(ctx, caller, quizID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, report)
	case models.RoleStudent:
		sum, err := h.svc.LearnerView(ctx, caller, quizID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, sum)
	default:
		response.Forbidden(c, "insufficient permissions")
	}
}

// Register mounts the role-dispatched routes on an authenticated group.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("/courses/:id/quizzes", h.CourseQuizzes)
	g.GET("/quizzes/:id/attempts", h.QuizAttempts)
}
