// Package pipeline drives the full segmentation batch: aggregate raw
// transactions, score RFM, scale features, cluster, and profile. Each stage
// fully consumes its input; the first stage error fails the run.
package pipeline

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/segment-cli/internal/aggregate"
	"github.com/sells-group/segment-cli/internal/features"
	"github.com/sells-group/segment-cli/internal/kmeans"
	"github.com/sells-group/segment-cli/internal/model"
	"github.com/sells-group/segment-cli/internal/profile"
	"github.com/sells-group/segment-cli/internal/rfm"
)

// Options configures a pipeline run.
type Options struct {
	Aggregate aggregate.Options
	AgePolicy features.AgePolicy
	Cluster   kmeans.Options
	ElbowMaxK int // when > 0, the elbow curve is computed alongside the fit
}

// Result collects the outputs of one pipeline run.
type Result struct {
	Customers []model.Customer
	Profiles  []model.ClusterProfile
	Elbow     []model.ElbowPoint
	Stats     *aggregate.Stats
	Fit       *kmeans.Result
}

// Run executes the pipeline end to end. Customers whose rows were dropped by
// the age policy keep cluster id 0 (unassigned).
func Run(txns []model.Transaction, opts Options) (*Result, error) {
	log := zap.L().With(zap.String("component", "pipeline"))

	customers, stats, err := aggregate.Aggregate(txns, opts.Aggregate)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: aggregate")
	}

	if err := rfm.Score(customers); err != nil {
		return nil, eris.Wrap(err, "pipeline: rfm score")
	}

	matrix, err := features.Build(customers, opts.AgePolicy)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: build features")
	}
	if _, _, err := features.Standardize(matrix); err != nil {
		return nil, eris.Wrap(err, "pipeline: standardize")
	}

	res := &Result{Customers: customers, Stats: stats}

	if opts.ElbowMaxK > 0 {
		curve, err := kmeans.ElbowCurve(matrix.Data, opts.ElbowMaxK, opts.Cluster)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: elbow")
		}
		res.Elbow = curve
	}

	fit, err := kmeans.Fit(matrix.Data, opts.Cluster)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: cluster")
	}
	res.Fit = fit

	for i, row := range matrix.Rows {
		customers[row].Cluster = fit.Labels[i]
	}

	profiles, err := profile.Summarize(customers)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: profile")
	}
	res.Profiles = profiles

	log.Info("pipeline complete",
		zap.Int("customers", len(customers)),
		zap.Int("clusters", len(profiles)),
		zap.Float64("ratio", fit.Ratio),
	)

	return res, nil
}
