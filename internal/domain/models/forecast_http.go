package models

// Requests and responses of the forecast HTTP endpoint. Horizon and covariate
// lengths are checked by the covariate generator, not here.

type ForecastHTTPRequest struct {
	StoreNbr    int    `json:"store_nbr" validate:"gte=1"`
	Family      string `json:"family" validate:"required,max=64"`
	Horizon     int    `json:"horizon"`
	OnPromotion []int  `json:"onpromotion"`
	IsHoliday   []int  `json:"is_holiday"`
}

type ForecastHTTPResponse struct {
	StoreNbr  int      `json:"store_nbr"`
	Family    string   `json:"family"`
	Horizon   int      `json:"horizon"`
	Dates     []string `json:"dates"`
	Forecasts []Sales  `json:"forecasts"`
	ModelID   string   `json:"model_id,omitempty"`
}
