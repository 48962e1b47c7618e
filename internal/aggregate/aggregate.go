// Package aggregate reduces raw transactions into one RFM record per
// customer. The reduction is a pure two-pass computation: one scan fixes the
// dataset-wide reference date, a second derives per-customer metrics.
package aggregate

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/segment-cli/internal/model"
)

var (
	// ErrEmptyInput means the input had no rows or no parseable dates.
	ErrEmptyInput = eris.New("aggregate: no usable transaction rows")

	// ErrMissingDate means a customer has no valid transaction date and
	// strict date handling is enabled.
	ErrMissingDate = eris.New("aggregate: customer has no valid transaction date")
)

// Options controls aggregation behavior.
type Options struct {
	// GenderPositive is the gender category encoded as 1; all others are 0.
	GenderPositive string

	// StrictDates fails the run when a customer has no valid date instead
	// of excluding that customer.
	StrictDates bool
}

// Stats reports what the aggregation pass consumed and dropped.
type Stats struct {
	Transactions   int       `json:"transactions"`
	Customers      int       `json:"customers"`
	ExcludedNoDate int       `json:"excluded_no_date"`
	Reference      time.Time `json:"reference"`
}

// accum holds the running per-customer state during the reduction.
type accum struct {
	id        string
	count     int
	amountSum float64
	amountN   int
	balSum    float64
	balN      int
	maxDate   time.Time
	hasDate   bool
	lastAmt   float64
	lastBal   float64
	genders   map[string]int
	genderOrd []string // non-empty genders in first-seen order, for tie-breaks
	age       *float64
}

// Aggregate produces exactly one customer record per distinct customer id, in
// first-encounter order. The reference date is the maximum transaction date
// across the whole input. Customers without any valid date are excluded and
// counted unless StrictDates is set, in which case the run fails.
func Aggregate(txns []model.Transaction, opts Options) ([]model.Customer, *Stats, error) {
	if len(txns) == 0 {
		return nil, nil, ErrEmptyInput
	}

	byID := make(map[string]*accum)
	var order []string

	var ref time.Time
	haveRef := false

	for _, t := range txns {
		a, ok := byID[t.CustomerID]
		if !ok {
			a = &accum{id: t.CustomerID, genders: make(map[string]int)}
			byID[t.CustomerID] = a
			order = append(order, t.CustomerID)
		}

		a.count++

		if t.Amount != nil {
			a.amountSum += *t.Amount
			a.amountN++
		}
		if t.Balance != nil {
			a.balSum += *t.Balance
			a.balN++
		}

		if t.Date != nil {
			d := toDate(*t.Date)
			if !haveRef || d.After(ref) {
				ref = d
				haveRef = true
			}
			if !a.hasDate || d.After(a.maxDate) {
				a.maxDate = d
				a.hasDate = true
				// Last values track the max-dated row itself; a blank cell
				// there reads as zero, never as a stale older value.
				a.lastAmt = 0
				a.lastBal = 0
				if t.Amount != nil {
					a.lastAmt = *t.Amount
				}
				if t.Balance != nil {
					a.lastBal = *t.Balance
				}
			}
		}

		if t.Gender != "" {
			if _, seen := a.genders[t.Gender]; !seen {
				a.genderOrd = append(a.genderOrd, t.Gender)
			}
			a.genders[t.Gender]++
		}
		if a.age == nil && t.Age != nil {
			v := *t.Age
			a.age = &v
		}
	}

	if !haveRef {
		return nil, nil, eris.Wrap(ErrEmptyInput, "aggregate: no transaction has a valid date")
	}

	stats := &Stats{Transactions: len(txns), Reference: ref}

	customers := make([]model.Customer, 0, len(order))
	for _, id := range order {
		a := byID[id]

		if !a.hasDate {
			if opts.StrictDates {
				return nil, nil, eris.Wrapf(ErrMissingDate, "aggregate: customer %s", id)
			}
			stats.ExcludedNoDate++
			continue
		}

		c := model.Customer{
			ID:        id,
			Recency:   dayDiff(ref, a.maxDate),
			Frequency: a.count,
			Monetary:  a.amountSum,
		}
		if a.amountN > 0 {
			c.AvgAmount = a.amountSum / float64(a.amountN)
		}
		if a.balN > 0 {
			c.AvgBalance = a.balSum / float64(a.balN)
		}
		c.LastAmount = a.lastAmt
		c.LastBalance = a.lastBal
		if dominantGender(a) == opts.GenderPositive {
			c.GenderFlag = 1
		}
		c.Age = a.age

		customers = append(customers, c)
	}

	if len(customers) == 0 {
		return nil, nil, eris.Wrap(ErrEmptyInput, "aggregate: every customer lacked a valid date")
	}
	stats.Customers = len(customers)

	zap.L().Info("aggregation complete",
		zap.Int("transactions", stats.Transactions),
		zap.Int("customers", stats.Customers),
		zap.Int("excluded_no_date", stats.ExcludedNoDate),
		zap.Time("reference", stats.Reference),
	)

	return customers, stats, nil
}

// dominantGender returns the most frequent non-empty gender value, breaking
// frequency ties by first-seen order so the result does not depend on map
// iteration.
func dominantGender(a *accum) string {
	best := ""
	bestN := 0
	for _, g := range a.genderOrd {
		if n := a.genders[g]; n > bestN {
			best = g
			bestN = n
		}
	}
	return best
}

// toDate truncates a timestamp to its UTC calendar date.
func toDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dayDiff returns the whole-day difference ref - d for date-truncated inputs.
func dayDiff(ref, d time.Time) int {
	return int(ref.Sub(d) / (24 * time.Hour))
}
