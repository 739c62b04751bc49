package routes

import (
	"healthnexus-portal/internal/activity"
	"healthnexus-portal/internal/config"
	"healthnexus-portal/internal/handlers"
	"healthnexus-portal/internal/middleware"
	"healthnexus-portal/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config, rec *activity.Recorder) {
	// Initialize handlers
	authHandler := handlers.NewAuthHandler(db, cfg)
	userHandler := handlers.NewUserHandler(db, rec)
	appointmentHandler := handlers.NewAppointmentHandler(db, rec)
	feedbackHandler := handlers.NewFeedbackHandler(db, rec)
	newsHandler := handlers.NewNewsHandler(db, rec)
	reportHandler := handlers.NewReportHandler(db)
	activityHandler := handlers.NewActivityHandler(rec, cfg.Activity.SnapshotSize, cfg.Activity.HeartbeatInterval)

	// Public routes (no authentication required)
	public := router.Group("/api")
	{
		public.POST("/login", authHandler.Login)
		public.POST("/register", authHandler.Register)
		public.GET("/doctors", userHandler.GetDoctors)
		public.GET("/news", newsHandler.GetNews)
	}

	// Authenticated routes
	private := router.Group("/api")
	private.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	{
		private.GET("/me", authHandler.GetProfile)

		// Appointment routes. Ownership is checked inside the handler.
		appointmentRoutes := private.Group("/app")
		{
			appointmentRoutes.POST("", appointmentHandler.CreateAppointment)
			appointmentRoutes.GET("/p/:patientId", appointmentHandler.GetPatientAppointments)
			appointmentRoutes.PUT("/status/:status/:id", appointmentHandler.UpdateStatusByPath)
			appointmentRoutes.PUT("/:id", appointmentHandler.UpdateAppointment)
			appointmentRoutes.DELETE("/:id", appointmentHandler.DeleteAppointment)
		}

		private.POST("/feedback", middleware.RoleAuthMiddleware(models.RolePatient), feedbackHandler.SubmitFeedback)

		reportRoutes := private.Group("/report")
		{
			reportRoutes.POST("", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), reportHandler.CreateReport)
			reportRoutes.GET("/p/:patientId", reportHandler.GetPatientReports)
		}

		// Admin-only routes
		adminRoutes := private.Group("/admin")
		adminRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin))
		{
			adminRoutes.GET("/appointments", appointmentHandler.GetAllAppointments)
			adminRoutes.PUT("/appointment/:id", appointmentHandler.UpdateAppointment)

			adminRoutes.GET("/patients", userHandler.GetPatients)
			adminRoutes.POST("/doctor", userHandler.CreateDoctor)
			adminRoutes.PUT("/doctor/:id", userHandler.UpdateDoctor)
			adminRoutes.DELETE("/doctor/:id", userHandler.DeleteDoctor)

			adminRoutes.GET("/feedback", feedbackHandler.GetAllFeedback)

			adminRoutes.GET("/news", newsHandler.GetAllNews)
			adminRoutes.GET("/news/:id", newsHandler.GetArticle)
			adminRoutes.POST("/news", newsHandler.CreateNews)
			adminRoutes.PUT("/news/:id", newsHandler.UpdateNews)
			adminRoutes.DELETE("/news/:id", newsHandler.DeleteNews)

			adminRoutes.GET("/activity/recent", activityHandler.GetRecent)
			adminRoutes.GET("/activity/stream", activityHandler.Stream)

			adminRoutes.POST("/impersonate/:role/:id", authHandler.Impersonate)
		}
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
}
