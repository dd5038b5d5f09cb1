package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/tnqbao/gau-share-service/http/controller"
	"github.com/tnqbao/gau-share-service/http/middleware"
	"github.com/tnqbao/gau-share-service/service"
)

func SetupRouter(ctrl *controller.Controller) *gin.Engine {
	r := gin.Default()
	if err := r.SetTrustedProxies(ctrl.Config.EnvConfig.TrustedProxies); err != nil {
		panic(err)
	}
	middles, err := middlewares.NewMiddlewares(ctrl)
	if err != nil {
		panic(err)
	}

	r.Use(middles.CORSMiddleware)

	apiRoutes := r.Group(service.APIPrefix)
	{
		apiRoutes.Use(middles.APIRateLimiter)

		apiRoutes.POST("/upload", middles.UploadRateLimiter, ctrl.UploadFile)
		apiRoutes.POST("/check", middles.CheckCodeRateLimiter, ctrl.CheckCode)

		apiRoutes.GET("/download/id/:id", ctrl.DownloadByID)
		apiRoutes.GET("/download/code/:code", ctrl.DownloadByCode)
		apiRoutes.GET("/meta/:id", ctrl.GetMeta)
		apiRoutes.GET("/stats", ctrl.GetStats)

		bulkRoutes := apiRoutes.Group("/bulk")
		{
			bulkRoutes.POST("/upload", middles.UploadRateLimiter, ctrl.UploadBulk)
			bulkRoutes.GET("/download/:bulkId", ctrl.DownloadBulk)
			bulkRoutes.GET("/:bulkId", ctrl.GetBulk)
		}
	}
	return r
}
