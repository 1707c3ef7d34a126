package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"StoreSales/internal/domain/models"
	domrepo "StoreSales/internal/domain/repository"
	domsvc "StoreSales/internal/domain/service"
	"StoreSales/internal/services/covariates"
	"StoreSales/internal/services/etl"
	"StoreSales/internal/services/oilmodel"
	applogger "StoreSales/pkg/logger"
)

// TrainOptions controls one training run.
type TrainOptions struct {
	From, To     time.Time // zero bounds are open
	TestDays     int
	OilLags      int
	HampelWindow int
	HampelSigma  float64
}

// TrainReport summarizes a finished run.
type TrainReport struct {
	ModelID         string
	TrainedLastDate time.Time
	Series          int
	Dropped         int
	Evaluated       int
	ScaledMSE       float64
}

// Trainer rebuilds every artifact from the raw sales tables.
type Trainer struct {
	store   domrepo.SalesStore
	model   domsvc.SalesModel
	writer  domrepo.ArtifactWriter
	metrics domrepo.Metrics
	l       *applogger.Logger
	opts    TrainOptions
	now     func() time.Time
}

func NewTrainer(store domrepo.SalesStore, model domsvc.SalesModel, writer domrepo.ArtifactWriter, metrics domrepo.Metrics, l *applogger.Logger, opts TrainOptions) *Trainer {
	return &Trainer{
		store:   store,
		model:   model,
		writer:  writer,
		metrics: metrics,
		l:       l,
		opts:    opts,
		now:     time.Now,
	}
}

// Run trains with the options given to NewTrainer.
func (t *Trainer) Run(ctx context.Context) (*TrainReport, error) {
	return t.RunWith(ctx, t.opts)
}

// Options returns the options Run uses.
func (t *Trainer) Options() TrainOptions { return t.opts }

// RunWith loads, integrates, fits and saves. When TestDays is positive the
// held out tail is forecast afterwards and scored; scoring failures are
// logged and never fail the run.
func (t *Trainer) RunWith(ctx context.Context, opts TrainOptions) (*TrainReport, error) {
	start := t.now()
	defer func() { t.metrics.RecordLatency("train", t.now().Sub(start).Seconds()) }()

	ds, err := t.integrate(ctx, opts)
	if err != nil {
		t.metrics.RecordError("train_load")
		return nil, err
	}
	if len(ds.Series) == 0 {
		t.metrics.RecordError("train_load")
		return nil, fmt.Errorf("%w: every series is constant", etl.ErrNoSales)
	}

	train := make([]models.SeriesData, len(ds.Series))
	test := make([]models.SeriesData, len(ds.Series))
	for i, s := range ds.Series {
		train[i], test[i] = etl.SplitTail(s, opts.TestDays)
	}
	oilTrain := ds.Oil
	if d := opts.TestDays; d > 0 && d < len(oilTrain) {
		oilTrain = oilTrain[:len(oilTrain)-d]
	}

	oil, err := oilmodel.Fit(oilTrain, opts.OilLags)
	if err != nil {
		t.metrics.RecordError("train_oil")
		return nil, fmt.Errorf("fit oil model: %w", err)
	}
	t.l.Info("oil model fitted",
		applogger.Int("lags", oil.Lags),
		applogger.Date("last_date", oil.LastDate),
	)

	modelID, err := t.model.Fit(ctx, train)
	if err != nil {
		t.metrics.RecordError("train_fit")
		return nil, fmt.Errorf("fit sales model: %w", err)
	}

	set := &domrepo.ArtifactSet{
		Manifest: domrepo.ModelManifest{
			ModelID:         modelID,
			TrainedAt:       t.now().UTC(),
			TrainedLastDate: oil.LastDate,
			Series:          make([]models.SeriesID, len(train)),
		},
		Oil:        oil,
		Covariates: make(map[models.SeriesID]models.CovariateSeries, len(train)),
		Targets:    make(map[models.SeriesID]models.TimeSeries, len(train)),
	}
	for i, s := range train {
		set.Manifest.Series[i] = s.ID
		set.Covariates[s.ID] = s.Covariates
		set.Targets[s.ID] = s.Target
	}
	if err := t.writer.Save(ctx, set); err != nil {
		t.metrics.RecordError("train_save")
		return nil, fmt.Errorf("save artifacts: %w", err)
	}

	report := &TrainReport{
		ModelID:         modelID,
		TrainedLastDate: oil.LastDate,
		Series:          len(train),
		Dropped:         len(ds.Dropped),
	}
	t.l.Info("artifacts saved",
		applogger.String("model_id", modelID),
		applogger.Int("series", report.Series),
		applogger.Int("dropped", report.Dropped),
		applogger.Date("trained_last_date", report.TrainedLastDate),
	)

	if opts.TestDays > 0 {
		t.evaluate(ctx, oil, train, test, opts.TestDays, report)
	}
	return report, nil
}

func (t *Trainer) integrate(ctx context.Context, opts TrainOptions) (*etl.Dataset, error) {
	sales, err := t.store.DailySales(ctx, opts.From, opts.To)
	if err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}
	oil, err := t.store.OilPrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("load oil: %w", err)
	}
	stores, err := t.store.Stores(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stores: %w", err)
	}
	holidays, err := t.store.Holidays(ctx)
	if err != nil {
		return nil, fmt.Errorf("load holidays: %w", err)
	}
	t.l.Info("raw data loaded",
		applogger.Int("sales", len(sales)),
		applogger.Int("oil", len(oil)),
		applogger.Int("stores", len(stores)),
		applogger.Int("holidays", len(holidays)),
	)

	ds, err := etl.Integrate(sales, oil, stores, holidays, etl.Options{
		HampelWindow: opts.HampelWindow,
		HampelSigma:  opts.HampelSigma,
	})
	if err != nil {
		return nil, fmt.Errorf("integrate: %w", err)
	}
	for _, id := range ds.Dropped {
		t.l.Debug("constant series dropped", applogger.Stringer("series", id))
	}
	return ds, nil
}

// evaluate forecasts at most MaxHorizon days of every test tail.
func (t *Trainer) evaluate(ctx context.Context, oil domsvc.OilModel, train, test []models.SeriesData, testDays int, report *TrainReport) {
	horizon := testDays
	if horizon > models.MaxHorizon {
		horizon = models.MaxHorizon
	}
	oilPreds, err := oil.Forecast(models.OilForecastWindow)
	if err != nil {
		t.l.Warn("evaluation skipped", applogger.Error(err))
		return
	}

	evals := make([]etl.Evaluation, 0, len(train))
	for i := range train {
		ev, err := t.evaluateSeries(ctx, oil, oilPreds, train[i], test[i], horizon)
		if err != nil {
			t.metrics.RecordError("train_evaluate")
			t.l.Warn("series not evaluated",
				applogger.Stringer("series", train[i].ID),
				applogger.Error(err),
			)
			continue
		}
		evals = append(evals, ev)
	}

	mse, err := etl.ScaledMSE(evals)
	if err != nil {
		if !errors.Is(err, etl.ErrNothingToEvaluate) {
			t.l.Warn("evaluation failed", applogger.Error(err))
		}
		return
	}
	report.Evaluated = len(evals)
	report.ScaledMSE = mse
	t.l.Info("evaluation finished",
		applogger.Int("series", len(evals)),
		applogger.Int("horizon", horizon),
		applogger.Float64("scaled_mse", mse),
	)
}

func (t *Trainer) evaluateSeries(ctx context.Context, oil domsvc.OilModel, oilPreds []float64, train, test models.SeriesData, horizon int) (etl.Evaluation, error) {
	if len(test.Target) < horizon {
		return etl.Evaluation{}, fmt.Errorf("test window has %d days, want %d", len(test.Target), horizon)
	}
	promo := make([]int, horizon)
	holiday := make([]int, horizon)
	for i := 0; i < horizon; i++ {
		promo[i] = test.Covariates[i].OnPromotion
		holiday[i] = test.Covariates[i].IsHoliday
	}
	future, err := covariates.Generate(horizon, promo, oilPreds, holiday, oil.LastTrainedDate())
	if err != nil {
		return etl.Evaluation{}, err
	}
	past, err := train.Covariates.Append(future)
	if err != nil {
		return etl.Evaluation{}, err
	}
	points, err := t.model.Forecast(ctx, horizon, train.ID, train.Target, past)
	if err != nil {
		return etl.Evaluation{}, err
	}
	if len(points) != horizon {
		return etl.Evaluation{}, fmt.Errorf("%w: %d values for horizon %d", models.ErrModelOutput, len(points), horizon)
	}
	predicted := make([]float64, horizon)
	for i, p := range points {
		predicted[i] = p.Value
	}
	return etl.Evaluation{
		Train:     train.Target.Values(),
		Actual:    test.Target.Values()[:horizon],
		Predicted: predicted,
	}, nil
}
