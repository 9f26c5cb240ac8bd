package main

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-learn/quiz-backend/internal/attempts"
	"github.com/aura-learn/quiz-backend/internal/auth"
	"github.com/aura-learn/quiz-backend/internal/middleware"
	"github.com/aura-learn/quiz-backend/internal/models"
	"github.com/aura-learn/quiz-backend/internal/quizzes"
	"github.com/aura-learn/quiz-backend/internal/results"
	"github.com/aura-learn/quiz-backend/pkg/response"
)

type services struct {
	quizzes  *quizzes.Service
	attempts *attempts.Service
	results  *results.Service
}

func newRouter(logger *zap.Logger, jwtService *auth.JWTService, corsOrigins string, svc services) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(corsOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))

	// Authoring
	quizzes.NewHandler(svc.quizzes).Register(api.Group("", middleware.RequireRole(models.RoleTutor)))

	// Taking
	attempts.NewHandler(svc.attempts).Register(api.Group("", middleware.RequireRole(models.RoleStudent)))

	// Listings and results (answer depends on role)
	results.NewHandler(svc.results, svc.quizzes).Register(api)

	return router
}
