package http

import (
	"time"

	"github.com/gin-gonic/gin"

	appsvc "policyqa/internal/app"
	"policyqa/internal/bootstrap"
	"policyqa/internal/platform/rabbitmq"
	"policyqa/internal/rag"
	"policyqa/internal/repository"
	"policyqa/internal/transport/http/handler"
	"policyqa/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	docRepo := repository.NewDocumentRepository(app.MySQL)
	historyRepo := repository.NewChatHistoryRepository(app.MySQL)

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)

	ingestQueue := rabbitmq.NewIngestPublisher(app.MQConn, app.Config.RabbitMQ.IngestQueue)
	docService := appsvc.NewDocumentService(docRepo, app.Files, app.Index, ingestQueue)

	historyQueue := rabbitmq.NewHistoryPublisher(app.MQConn, app.Config.RabbitMQ.HistoryPersistQueue)
	answerer := rag.NewAnswerer(docRepo, app.Embedder, app.Index, app.Completer, historyQueue, rag.AnswerOptions{
		TopK:         app.Config.RAG.TopK,
		PromptBudget: app.Config.RAG.PromptBudgetRunes,
	})
	historyService := appsvc.NewHistoryService(historyRepo, app.HistoryCache)

	authHandler := handler.NewAuthHandler(authService)
	docHandler := handler.NewDocumentHandler(docService)
	chatHandler := handler.NewChatHandler(answerer, historyService)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Me)

	docGroup := v1.Group("/documents")
	docGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	docGroup.POST("", docHandler.Upload)
	docGroup.GET("", docHandler.List)
	docGroup.POST("/:id/reingest", docHandler.Reingest)
	docGroup.DELETE("/:id", docHandler.Delete)

	chatGroup := v1.Group("/chat")
	chatGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	chatGroup.POST("", chatHandler.Ask)
	chatGroup.GET("/history", chatHandler.History)

	return router
}
