package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"StoreSales/internal/services/etl"
	applogger "StoreSales/pkg/logger"
	"StoreSales/pkg/queue"
	"StoreSales/pkg/util"
)

// RetrainJobType is the queue message type of a retraining request.
const RetrainJobType = "retrain"

// RetrainRequest overrides parts of the configured training options. Empty
// fields keep the configured value.
type RetrainRequest struct {
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	TestDays *int   `json:"test_days,omitempty"`
}

// Options applies the request on top of base.
func (r RetrainRequest) Options(base TrainOptions) (TrainOptions, error) {
	opts := base
	if r.From != "" || r.To != "" {
		from, to, err := util.ParseDateRange(r.From, r.To)
		if err != nil {
			return opts, err
		}
		if r.From != "" {
			opts.From = from
		}
		if r.To != "" {
			opts.To = to
		}
		if !opts.From.IsZero() && !opts.To.IsZero() && opts.To.Before(opts.From) {
			return opts, fmt.Errorf("training range ends before it starts")
		}
	}
	if r.TestDays != nil {
		if *r.TestDays < 0 {
			return opts, fmt.Errorf("test_days cannot be negative")
		}
		opts.TestDays = *r.TestDays
	}
	return opts, nil
}

// RetrainJob runs the trainer from the job queue and calls onTrained after a
// successful run so servers pick up the new artifacts.
type RetrainJob struct {
	trainer   *Trainer
	onTrained func(ctx context.Context, report *TrainReport)
	l         *applogger.Logger
}

func NewRetrainJob(trainer *Trainer, l *applogger.Logger, onTrained func(ctx context.Context, report *TrainReport)) *RetrainJob {
	if l == nil {
		l = applogger.Nop()
	}
	return &RetrainJob{trainer: trainer, onTrained: onTrained, l: l}
}

func (j *RetrainJob) Type() string { return RetrainJobType }

// Handle rejects bad requests and empty training data as permanent; anything
// else is left to the queue's retry policy.
func (j *RetrainJob) Handle(ctx context.Context, payload json.RawMessage) error {
	req, err := queue.Decode[RetrainRequest](payload)
	if err != nil {
		return err
	}
	opts, err := req.Options(j.trainer.Options())
	if err != nil {
		return fmt.Errorf("%w: %v", queue.ErrPermanent, err)
	}

	report, err := j.trainer.RunWith(ctx, opts)
	if err != nil {
		if errors.Is(err, etl.ErrNoSales) {
			return fmt.Errorf("%w: %v", queue.ErrPermanent, err)
		}
		return err
	}

	j.l.Info("retrain finished",
		applogger.String("model_id", report.ModelID),
		applogger.Int("series", report.Series),
		applogger.Int("evaluated", report.Evaluated),
		applogger.Float64("scaled_mse", report.ScaledMSE),
	)
	if j.onTrained != nil {
		j.onTrained(ctx, report)
	}
	return nil
}
