package covariates

import (
	"fmt"
	"time"

	"StoreSales/internal/domain/models"
)

// Generate builds the future covariate window of exactly horizon days that
// starts the day after trainedLastDate. Inputs longer than horizon are
// truncated; nothing is interpolated or resampled.
//
// Checks run in order and the first failure is returned: horizon above
// models.MaxHorizon, horizon not positive, promotion or holiday input shorter
// than horizon, oil projection shorter than horizon, invalid values.
func Generate(horizon int, onPromotion []int, oilForecasts []float64, isHoliday []int, trainedLastDate time.Time) (models.CovariateSeries, error) {
	switch {
	case horizon > models.MaxHorizon:
		return nil, fmt.Errorf("%w: got %d", models.ErrHorizonTooLarge, horizon)
	case horizon <= 0:
		return nil, fmt.Errorf("%w: got %d", models.ErrHorizonNotPositive, horizon)
	case horizon > len(onPromotion) || horizon > len(isHoliday):
		return nil, fmt.Errorf("%w: horizon %d, onpromotion %d, is_holiday %d",
			models.ErrInsufficientCovariates, horizon, len(onPromotion), len(isHoliday))
	case horizon > len(oilForecasts):
		return nil, fmt.Errorf("%w: horizon %d, oil %d", models.ErrInsufficientOil, horizon, len(oilForecasts))
	}

	start := models.NextDay(trainedLastDate)
	out := make(models.CovariateSeries, horizon)
	for i := 0; i < horizon; i++ {
		if onPromotion[i] < 0 {
			return nil, fmt.Errorf("%w: onpromotion[%d]=%d is negative", models.ErrInvalidCovariate, i, onPromotion[i])
		}
		if isHoliday[i] != 0 && isHoliday[i] != 1 {
			return nil, fmt.Errorf("%w: is_holiday[%d]=%d is not 0 or 1", models.ErrInvalidCovariate, i, isHoliday[i])
		}
		out[i] = models.CovariateRow{
			Date:        start.AddDate(0, 0, i),
			OnPromotion: onPromotion[i],
			OilPrice:    oilForecasts[i],
			IsHoliday:   isHoliday[i],
		}
	}
	return out, nil
}
