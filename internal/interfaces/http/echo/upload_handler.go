package echo

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/givemetry/advancement/internal/application/ingest"
	"github.com/givemetry/advancement/internal/domain/donor"
)

type UploadHandler struct {
	startUpload ingest.StartUpload
	getUpload   ingest.GetUpload
}

type startUploadRequest struct {
	OrganizationID string            `json:"organization_id"`
	UserID         string            `json:"user_id"`
	Filename       string            `json:"filename"`
	StoragePath    string            `json:"storage_path"`
	DataType       string            `json:"data_type"`
	FieldMapping   map[string]string `json:"field_mapping,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiResponse struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

func NewUploadHandler(startUpload ingest.StartUpload, getUpload ingest.GetUpload) *UploadHandler {
	return &UploadHandler{startUpload: startUpload, getUpload: getUpload}
}

func (h *UploadHandler) StartUpload(c echo.Context) error {
	var req startUploadRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
			Code:    "bad_request",
			Message: "invalid request body",
		}})
	}

	out, err := h.startUpload.Execute(c.Request().Context(), ingest.StartUploadInput{
		OrganizationID: req.OrganizationID,
		UserID:         req.UserID,
		Filename:       req.Filename,
		StoragePath:    req.StoragePath,
		DataType:       req.DataType,
		FieldMapping:   req.FieldMapping,
	})
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrInvalidUploadSource):
			return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
				Code:    "invalid_source",
				Message: "storage_path must be a .csv file",
			}})
		case errors.Is(err, ingest.ErrInvalidDataType):
			return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
				Code:    "invalid_data_type",
				Message: "data_type must be constituents, gifts or contacts",
			}})
		}
		return c.JSON(http.StatusInternalServerError, apiResponse{Error: &errorBody{
			Code:    "internal_error",
			Message: "failed to enqueue upload job",
		}})
	}

	return c.JSON(http.StatusAccepted, apiResponse{Data: out})
}

func (h *UploadHandler) GetUpload(c echo.Context) error {
	out, err := h.getUpload.Execute(c.Request().Context(), ingest.GetUploadInput{
		JobID:          c.Param("id"),
		OrganizationID: c.QueryParam("organization_id"),
	})
	if err != nil {
		if errors.Is(err, donor.ErrUploadJobNotFound) {
			return c.JSON(http.StatusNotFound, apiResponse{Error: &errorBody{
				Code:    "not_found",
				Message: "upload job not found",
			}})
		}
		return c.JSON(http.StatusInternalServerError, apiResponse{Error: &errorBody{
			Code:    "internal_error",
			Message: "failed to get upload job",
		}})
	}

	return c.JSON(http.StatusOK, apiResponse{Data: out})
}
