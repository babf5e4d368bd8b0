package bootstrap

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	"github.com/givemetry/advancement/internal/application/ingest"
	"github.com/givemetry/advancement/internal/infrastructure/repository"
	httpecho "github.com/givemetry/advancement/internal/interfaces/http/echo"
)

func NewHTTPServer(db *gorm.DB, calculator httpecho.LapseRiskCalculator) *echo.Echo {
	server := echo.New()
	server.HideBanner = true

	server.Use(middleware.Recover())
	server.Use(middleware.RequestID())
	server.Use(middleware.BodyLimit("10M"))

	jobRepo := repository.NewUploadJobRepository(db)
	uploadHandler := httpecho.NewUploadHandler(
		ingest.NewStartUpload(jobRepo),
		ingest.NewGetUpload(jobRepo),
	)
	constituentHandler := httpecho.NewConstituentHandler(calculator)

	httpecho.RegisterRoutes(server, uploadHandler, constituentHandler)

	server.GET("/healthz", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	return server
}
