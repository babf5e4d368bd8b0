package echo

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/givemetry/advancement/internal/domain/donor"
)

type LapseRiskCalculator interface {
	CalculateConstituentLapseRisk(ctx context.Context, organizationID, constituentID string) (donor.Prediction, error)
}

type ConstituentHandler struct {
	calculator LapseRiskCalculator
}

func NewConstituentHandler(calculator LapseRiskCalculator) *ConstituentHandler {
	return &ConstituentHandler{calculator: calculator}
}

type lapseRiskResponse struct {
	ConstituentID string         `json:"constituent_id"`
	Score         float64        `json:"score"`
	Factors       []donor.Factor `json:"factors"`
}

func (h *ConstituentHandler) GetLapseRisk(c echo.Context) error {
	organizationID := c.Param("orgID")
	constituentID := c.Param("id")

	prediction, err := h.calculator.CalculateConstituentLapseRisk(c.Request().Context(), organizationID, constituentID)
	if err != nil {
		if errors.Is(err, donor.ErrConstituentNotFound) {
			return c.JSON(http.StatusNotFound, apiResponse{Error: &errorBody{
				Code:    "not_found",
				Message: "constituent not found",
			}})
		}
		return c.JSON(http.StatusInternalServerError, apiResponse{Error: &errorBody{
			Code:    "internal_error",
			Message: "failed to calculate lapse risk",
		}})
	}

	return c.JSON(http.StatusOK, apiResponse{Data: lapseRiskResponse{
		ConstituentID: constituentID,
		Score:         prediction.Score,
		Factors:       prediction.Factors,
	}})
}
