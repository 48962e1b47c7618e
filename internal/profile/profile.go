// Package profile aggregates per-cluster statistics for human labeling.
// Semantic cluster names are an analyst judgment call: this package only
// produces the numeric summary and, optionally, attaches labels supplied in a
// YAML overlay file.
package profile

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/segment-cli/internal/model"
)

// Summarize computes one profile row per cluster id: member count and the
// mean of each profiling metric. Missing ages are excluded from the age mean.
// Profiles are ordered by cluster id.
func Summarize(customers []model.Customer) ([]model.ClusterProfile, error) {
	if len(customers) == 0 {
		return nil, eris.New("profile: no customers")
	}

	type acc struct {
		n         int
		recency   float64
		frequency float64
		monetary  float64
		balance   float64
		gender    float64
		age       float64
		ageN      int
	}
	byCluster := make(map[int]*acc)

	for _, c := range customers {
		a, ok := byCluster[c.Cluster]
		if !ok {
			a = &acc{}
			byCluster[c.Cluster] = a
		}
		a.n++
		a.recency += float64(c.Recency)
		a.frequency += float64(c.Frequency)
		a.monetary += c.Monetary
		a.balance += c.AvgBalance
		a.gender += float64(c.GenderFlag)
		if c.Age != nil {
			a.age += *c.Age
			a.ageN++
		}
	}

	ids := make([]int, 0, len(byCluster))
	for id := range byCluster {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	profiles := make([]model.ClusterProfile, 0, len(ids))
	for _, id := range ids {
		a := byCluster[id]
		p := model.ClusterProfile{
			Cluster:       id,
			Count:         a.n,
			MeanRecency:   a.recency / float64(a.n),
			MeanFrequency: a.frequency / float64(a.n),
			MeanMonetary:  a.monetary / float64(a.n),
			MeanBalance:   a.balance / float64(a.n),
			MeanGender:    a.gender / float64(a.n),
		}
		if a.ageN > 0 {
			p.MeanAge = a.age / float64(a.ageN)
		}
		profiles = append(profiles, p)
	}

	return profiles, nil
}

// LoadLabels reads an analyst-provided YAML file mapping cluster ids to
// human-readable labels, e.g.
//
//	labels:
//	  1: "Inactive low-balance"
//	  2: "High-value frequent"
func LoadLabels(path string) (map[int]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "profile: read labels %s", path)
	}

	var wrapper struct {
		Labels map[int]string `yaml:"labels"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "profile: parse labels")
	}
	if len(wrapper.Labels) == 0 {
		return nil, eris.Errorf("profile: no labels in %s", path)
	}

	return wrapper.Labels, nil
}

// ApplyLabels attaches labels to matching profiles. Clusters without an entry
// keep an empty label; label entries without a cluster are ignored.
func ApplyLabels(profiles []model.ClusterProfile, labels map[int]string) {
	for i := range profiles {
		if l, ok := labels[profiles[i].Cluster]; ok {
			profiles[i].Label = l
		}
	}
}
