package http

import "github.com/gin-gonic/gin"

// RegisterReportRoutes registra las rutas de reports y del modelo de lectura de ubicaciones.
func RegisterReportRoutes(r *gin.Engine, handler *ReportHandler) {
	reports := r.Group("/reports")
	{
		reports.POST("", handler.RequestReport)
		reports.GET("", handler.ListReports)
		reports.GET("/:id", handler.GetReport)
	}
	r.GET("/locations", handler.ListLocations)
}
