package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/DPLnainar/placement-management-system-sub002/internal/middleware"
	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
	"github.com/DPLnainar/placement-management-system-sub002/internal/service"
)

// Routes bundles everything Register mounts.
type Routes struct {
	Auth         *service.AuthService
	Audit        middleware.AuditWriter
	Logger       *zap.Logger
	Jobs         *JobHandler
	Applications *ApplicationHandler
	Eligibility  *EligibilityHandler
	Students     *StudentHandler
}

// Register mounts the JWT protected API on group.
func Register(group *gin.RouterGroup, routes Routes) {
	api := group.Group("", middleware.JWT(routes.Auth))
	staff := middleware.RequireStaff()
	student := middleware.RequireRoles(models.RoleStudent)

	jobs := api.Group("/jobs")
	jobs.GET("", routes.Jobs.List)
	jobs.GET("/closing-soon", routes.Jobs.ClosingSoon)
	jobs.GET("/:id", routes.Jobs.Get)
	jobs.POST("", staff, routes.Jobs.Create)
	jobs.POST("/bulk-status", staff, routes.Jobs.BulkChangeStatus)
	jobs.PATCH("/:id/status", staff, routes.Jobs.ChangeStatus)
	jobs.POST("/:id/extend-deadline", staff, routes.Jobs.ExtendDeadline)

	apps := api.Group("/applications")
	apps.POST("", student, routes.Applications.Apply)
	apps.GET("", routes.Applications.List)
	apps.GET("/:id", routes.Applications.Get)
	apps.PATCH("/:id/status", staff, routes.Applications.UpdateStatus)
	apps.POST("/:id/rounds", staff, routes.Applications.AddRound)
	apps.PATCH("/:id/rounds/:index", staff, routes.Applications.UpdateRound)
	apps.POST("/:id/reject", staff, routes.Applications.Reject)
	apps.POST("/:id/withdraw", student, routes.Applications.Withdraw)

	eligibility := api.Group("/eligibility")
	eligibility.GET("/jobs", student, routes.Eligibility.EligibleJobs)
	eligibility.GET("/jobs/:id", student, routes.Eligibility.Check)
	eligibility.GET("/jobs/:id/students", staff, routes.Eligibility.Students)
	eligibility.GET("/jobs/:id/summary", staff, routes.Eligibility.Summary)
	eligibility.POST("/jobs/:id/export", staff, routes.Eligibility.Export)
	eligibility.POST("/bulk-check", staff, routes.Eligibility.BulkCheck)

	api.GET("/export/:token", staff,
		middleware.Audit(routes.Audit, routes.Logger, models.AuditActionExportDownload, "eligibility_export"),
		routes.Eligibility.Download)

	students := api.Group("/students")
	students.GET("/me/placement", student, routes.Students.PlacementCard)
	self := middleware.RBAC(middleware.RoleSelf, string(models.RoleSuperAdmin), string(models.RoleAdmin), string(models.RoleModerator))
	students.POST("/:id/offers/:offerId/accept", self, routes.Students.AcceptOffer)
	students.POST("/:id/offers/:offerId/decline", self, routes.Students.DeclineOffer)
	students.POST("/:id/offers/:offerId/withdraw", staff, routes.Students.WithdrawOffer)
}
