package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hcunanan79/COREcare-access/config"
	"github.com/hcunanan79/COREcare-access/internal/api/handler"
	"github.com/hcunanan79/COREcare-access/internal/api/middleware"
	"github.com/hcunanan79/COREcare-access/internal/model"
	"github.com/hcunanan79/COREcare-access/pkg/jwt"
	"github.com/hcunanan79/COREcare-access/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// denials 记录角色守卫拒绝的请求（通常为审计服务）
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, denials middleware.DenialRecorder, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	staffOnly := middleware.RoleAuth(denials, model.RoleAdmin, model.RoleStaff)
	adminOnly := middleware.RoleAuth(denials, model.RoleAdmin)
	clockLimit := middleware.RateLimit(rdb, cfg.Agency.ClockRateLimit, time.Hour, logger)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		v1.POST("/auth/login", middleware.RateLimit(rdb, 20, time.Minute, logger), h.Auth.Login)

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, rdb))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)

			// 出勤模块
			visits := authorized.Group("/visits")
			{
				visits.POST("/clock-in", clockLimit, h.Visit.ClockIn)
				visits.POST("/:id/clock-out", clockLimit, h.Visit.ClockOut)
				visits.GET("/active", h.Visit.GetActive)
				visits.GET("", h.Visit.ListVisits)
				visits.POST("/:id/mileage", h.Visit.AddMileage)
				visits.GET("/:id", h.Visit.GetVisit)
				visits.PUT("/:id", staffOnly, h.Visit.UpdateVisit)
				visits.DELETE("/:id", staffOnly, h.Visit.DeleteVisit)
				visits.POST("/:id/comments", h.Visit.AddComment)
				visits.GET("/:id/comments", h.Visit.ListComments)
			}

			// 周汇总模块（护工仅本人，Service 层鉴权）
			summaries := authorized.Group("/summaries")
			{
				summaries.GET("/weekly", h.Summary.GetWeekly)
				summaries.GET("/caregivers/:id", h.Summary.ListForCaregiver)
			}

			// 排班模块
			shifts := authorized.Group("/shifts")
			{
				shifts.POST("", staffOnly, h.Shift.Create)
				shifts.PUT("/:id", staffOnly, h.Shift.Update)
				shifts.GET("/my", h.Shift.ListMine)
				shifts.GET("/:id", h.Shift.Get)
				shifts.GET("", staffOnly, h.Shift.List)
			}

			// 工资报表模块
			payroll := authorized.Group("/payroll", staffOnly)
			{
				payroll.GET("", h.Payroll.Report)
				payroll.GET("/export.csv", h.Payroll.ExportCSV)
				payroll.GET("/export.xlsx", h.Payroll.ExportXLSX)
			}

			// 客户日程模块（家属权限由 Service 层校验）
			clients := authorized.Group("/clients/:id")
			{
				clients.GET("/schedule", h.Calendar.GetSchedule)
				clients.GET("/calendar-feed", h.Calendar.CalendarFeed)
				clients.GET("/calendar.ics", h.Calendar.ExportICS)
				clients.POST("/events/check-conflicts", h.Calendar.CheckConflicts)
				clients.POST("/events", h.Calendar.CreateEvent)
				clients.POST("/events/import", h.Calendar.ImportEvents)
				clients.GET("/events/deleted", h.Calendar.ListDeletedEvents)
			}

			// 日历事件模块
			events := authorized.Group("/events")
			{
				events.PUT("/:id", h.Calendar.UpdateEvent)
				events.DELETE("/:id", h.Calendar.DeleteEvent)
				events.POST("/:id/restore", h.Calendar.RestoreEvent)
				events.DELETE("/:id/purge", staffOnly, h.Calendar.PurgeEvent)
				events.POST("/:id/attachments", h.Calendar.AddAttachment)
				events.GET("/:id/attachments", h.Calendar.ListAttachments)
			}

			// 审计日志
			authorized.GET("/audit-logs", adminOnly, h.Audit.List)
		}
	}

	return r
}
