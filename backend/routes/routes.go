package routes

import (
	"coursemarket/backend/config"
	"coursemarket/backend/controllers"
	"coursemarket/backend/middleware"
	"coursemarket/backend/services"
	"coursemarket/backend/storage"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func SetupRoutes(app *fiber.App, svc *services.Container, store storage.BlobStore, cfg *config.Config, log *zap.SugaredLogger) {
	// Middleware
	authMiddleware := middleware.AuthMiddleware(cfg, svc.Auth)
	optionalAuth := middleware.OptionalAuth(cfg, svc.Auth)
	adminMiddleware := middleware.AdminMiddleware(svc.Admins)
	optionalAdmin := middleware.OptionalAdmin(svc.Admins)

	api := app.Group("/api")
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Auth routes
	authController := controllers.NewAuthController(svc.Auth)
	auth := api.Group("/auth")
	auth.Post("/register", authController.Register)
	auth.Post("/login", authController.Login)
	auth.Post("/logout", authMiddleware, authController.Logout)
	auth.Post("/password", authMiddleware, authController.ChangePassword)
	auth.Post("/password/forgot", authController.RequestPasswordReset)
	auth.Post("/password/reset", authController.ResetPassword)

	// User routes
	userController := controllers.NewUserController(svc)
	user := api.Group("/user", authMiddleware)
	user.Get("/profile", userController.GetProfile)
	user.Put("/profile", userController.UpdateProfile)
	user.Get("/courses", userController.GetMyCourses)
	user.Get("/orders", userController.GetMyOrders)

	// Overview routes
	overviewController := controllers.NewOverviewController(svc)
	api.Get("/overview", overviewController.GetOverview)

	// Courses routes
	coursesController := controllers.NewCoursesController(svc)
	courses := api.Group("/courses", optionalAuth, optionalAdmin)
	courses.Get("/", coursesController.GetCourses)
	courses.Get("/slug/:slug", coursesController.GetCourseBySlug)
	courses.Get("/:id", coursesController.GetCourse)
	courses.Get("/:id/chapters", authMiddleware, coursesController.GetChapters)
	courses.Get("/:id/chapters/:chapterId", authMiddleware, coursesController.GetChapter)

	// Cart routes
	cartController := controllers.NewCartController(svc)
	cart := api.Group("/cart", optionalAuth)
	cart.Get("/", cartController.GetCart)
	cart.Post("/items", cartController.AddItem)
	cart.Delete("/items/:courseId", cartController.RemoveItem)
	cart.Delete("/", cartController.ClearCart)

	// Checkout routes
	checkoutController := controllers.NewCheckoutController(svc, cfg.MidtransServerKey, log)
	api.Post("/checkout", authMiddleware, checkoutController.Checkout)
	api.Get("/checkout/return", optionalAuth, checkoutController.Return)
	api.Post("/payments/notification", checkoutController.Notification)

	// Admin routes
	admin := api.Group("/admin", authMiddleware, adminMiddleware)

	admin.Get("/courses", coursesController.GetAllCourses)
	admin.Post("/courses", coursesController.CreateCourse)
	admin.Post("/courses/import", coursesController.ImportCourse)
	admin.Get("/courses/backup", coursesController.ExportBackup)
	admin.Post("/courses/restore", coursesController.RestoreBackup)
	admin.Put("/courses/:id", coursesController.UpdateCourse)
	admin.Put("/courses/:id/status", coursesController.UpdateCourseStatus)
	admin.Delete("/courses/:id", coursesController.DeleteCourse)
	admin.Get("/courses/:id/export", coursesController.ExportCourse)

	chaptersController := controllers.NewChaptersController(svc)
	admin.Post("/courses/:id/chapters", chaptersController.AddChapter)
	admin.Put("/courses/:id/chapters/reorder", chaptersController.ReorderChapters)
	admin.Put("/courses/:id/chapters/:chapterId", chaptersController.UpdateChapter)
	admin.Delete("/courses/:id/chapters/:chapterId", chaptersController.DeleteChapter)

	ordersController := controllers.NewOrdersController(svc)
	admin.Get("/orders", ordersController.GetAllOrders)
	admin.Get("/orders/:id", ordersController.GetOrder)
	admin.Post("/orders/:id/approve", ordersController.ApproveOrder)
	admin.Post("/orders/:id/reject", ordersController.RejectOrder)

	adminController := controllers.NewAdminController(svc)
	admin.Get("/admins", adminController.ListAdmins)
	admin.Post("/admins", adminController.AddAdmin)
	admin.Delete("/admins/:userId", adminController.RemoveAdmin)

	analyticsController := controllers.NewAnalyticsController(svc, cfg)
	admin.Get("/analytics/sales", analyticsController.GetSalesSummary)

	if store != nil {
		uploadController := controllers.NewUploadController(store)
		admin.Post("/uploads/thumbnail", uploadController.UploadThumbnail)
	}
}
