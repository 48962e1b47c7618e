// Package model defines the core data types shared across the segmentation
// pipeline: raw transactions, per-customer RFM records, and cluster profiles.
package model

import "time"

// Transaction is a single raw banking transaction row. Date, Amount, Balance,
// and Age are pointers because source exports routinely leave them blank.
type Transaction struct {
	CustomerID string
	Date       *time.Time
	Amount     *float64
	Balance    *float64
	Gender     string
	Age        *float64
}

// Segment is the qualitative RFM band assigned from the composite score.
type Segment string

const (
	SegmentChampions          Segment = "Champions"
	SegmentLoyalCustomers     Segment = "Loyal Customers"
	SegmentPotentialLoyalists Segment = "Potential Loyalists"
	SegmentNeedsAttention     Segment = "Needs Attention"
	SegmentHibernating        Segment = "Hibernating"
	SegmentAtRisk             Segment = "At Risk"
)

// Customer is the aggregated per-customer record. Aggregation fills the raw
// metrics; scoring and clustering append their fields afterwards and never
// rewrite the aggregated ones.
type Customer struct {
	ID          string   `csv:"customer_id" json:"customer_id"`
	Recency     int      `csv:"recency" json:"recency"`
	Frequency   int      `csv:"frequency" json:"frequency"`
	Monetary    float64  `csv:"monetary" json:"monetary"`
	AvgAmount   float64  `csv:"avg_transaction_amount" json:"avg_transaction_amount"`
	LastAmount  float64  `csv:"last_transaction_amount" json:"last_transaction_amount"`
	AvgBalance  float64  `csv:"avg_account_balance" json:"avg_account_balance"`
	LastBalance float64  `csv:"last_account_balance" json:"last_account_balance"`
	GenderFlag  int      `csv:"gender_flag" json:"gender_flag"`
	Age         *float64 `csv:"age,omitempty" json:"age,omitempty"`

	RecencyScore   int     `csv:"recency_score" json:"recency_score"`
	FrequencyScore int     `csv:"frequency_score" json:"frequency_score"`
	MonetaryScore  int     `csv:"monetary_score" json:"monetary_score"`
	RFMScore       float64 `csv:"rfm_score" json:"rfm_score"`
	RFMLevel       string  `csv:"rfm_level" json:"rfm_level"`
	Segment        Segment `csv:"segment" json:"segment"`

	Cluster int `csv:"cluster" json:"cluster"`
}

// ClusterProfile summarizes one cluster for human labeling. Label stays empty
// unless an analyst overlay supplies one.
type ClusterProfile struct {
	Cluster       int     `csv:"cluster" json:"cluster"`
	Label         string  `csv:"label,omitempty" json:"label,omitempty"`
	Count         int     `csv:"count" json:"count"`
	MeanRecency   float64 `csv:"mean_recency" json:"mean_recency"`
	MeanFrequency float64 `csv:"mean_frequency" json:"mean_frequency"`
	MeanMonetary  float64 `csv:"mean_monetary" json:"mean_monetary"`
	MeanBalance   float64 `csv:"mean_balance" json:"mean_balance"`
	MeanGender    float64 `csv:"mean_gender_flag" json:"mean_gender_flag"`
	MeanAge       float64 `csv:"mean_age" json:"mean_age"`
}

// ElbowPoint is one (k, within-cluster SS) sample of the elbow curve.
type ElbowPoint struct {
	K        int     `csv:"k" json:"k"`
	WithinSS float64 `csv:"within_ss" json:"within_ss"`
}

// SegmentFor maps a composite RFM score to its segment band. First matching
// threshold wins; bands are exhaustive, so every score maps to exactly one.
func SegmentFor(score float64) Segment {
	switch {
	case score >= 4.5:
		return SegmentChampions
	case score >= 4.0:
		return SegmentLoyalCustomers
	case score >= 3.0:
		return SegmentPotentialLoyalists
	case score >= 2.0:
		return SegmentNeedsAttention
	case score >= 1.0:
		return SegmentHibernating
	default:
		return SegmentAtRisk
	}
}
