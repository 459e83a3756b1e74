package router

import (
	"time"

	"costcenter/api"
	"costcenter/config"
	_ "costcenter/docs"
	"costcenter/middleware"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config) *gin.Engine {
	// 设置运行模式
	gin.SetMode(cfg.Server.Mode)

	r := gin.Default()

	// CORS 中间件
	r.Use(CORSMiddleware())

	// Swagger 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API v1 路由组
	v1 := r.Group("/api/v1")
	{
		// 认证相关路由（无需登录）
		authHandler := api.NewAuthHandler(cfg)
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", middleware.LoginRateLimit(10, time.Minute), authHandler.Login)
		}

		// 费用类别（无需登录）
		expenseHandler := api.NewExpenseHandler()
		v1.GET("/categories", expenseHandler.GetCategories)

		// 需要 JWT 认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth())
		{
			// 用户相关
			authorized.GET("/auth/profile", authHandler.GetProfile)

			// 成本中心与结项工作流
			costCenterHandler := api.NewCostCenterHandler(cfg)
			transferHandler := api.NewTransferHandler(cfg)
			ledgerHandler := api.NewLedgerHandler()
			costCenters := authorized.Group("/cost-centers")
			{
				costCenters.POST("", costCenterHandler.Create)
				costCenters.GET("", costCenterHandler.List)
				costCenters.GET("/:id", costCenterHandler.Get)
				costCenters.GET("/:id/events", costCenterHandler.ListEvents)

				// 资金划拨
				costCenters.POST("/:id/transfers", transferHandler.Create)
				costCenters.GET("/:id/transfers", transferHandler.List)

				// 费用申报
				costCenters.POST("/:id/expenses", expenseHandler.Submit)
				costCenters.GET("/:id/expenses", expenseHandler.List)

				// 结项工作流
				costCenters.POST("/:id/finalize", costCenterHandler.Finalize)
				costCenters.POST("/:id/approve", costCenterHandler.Approve)
				costCenters.POST("/:id/reject", costCenterHandler.Reject)
				costCenters.POST("/:id/cancel", costCenterHandler.Cancel)
				costCenters.POST("/:id/request-funds", costCenterHandler.RequestFunds)
				costCenters.POST("/:id/funds-received", costCenterHandler.FundsReceived)

				// 对账
				costCenters.POST("/:id/reconcile", ledgerHandler.Reconcile)
			}

			// 费用审批
			authorized.POST("/expenses/:id/review", expenseHandler.Review)

			// 账务查询
			authorized.GET("/budget-accounts/:id", ledgerHandler.GetBudgetAccount)
			authorized.GET("/cash-ledger", ledgerHandler.ListCashLedger)
			authorized.POST("/reconcile", ledgerHandler.ReconcileAll)

			// 导出相关
			exportHandler := api.NewExportHandler()
			export := authorized.Group("/export")
			{
				export.GET("/cost-centers/:id/statement", exportHandler.ExportStatement)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	return r
}

// CORSMiddleware CORS 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
