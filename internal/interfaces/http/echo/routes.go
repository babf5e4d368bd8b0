package echo

import e "github.com/labstack/echo/v4"

func RegisterRoutes(server *e.Echo, uploadHandler *UploadHandler, constituentHandler *ConstituentHandler) {
	server.POST("/api/v1/uploads", uploadHandler.StartUpload)
	server.GET("/api/v1/uploads/:id", uploadHandler.GetUpload)
	server.GET("/api/v1/organizations/:orgID/constituents/:id/lapse-risk", constituentHandler.GetLapseRisk)
}
