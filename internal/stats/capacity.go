package stats

import (
	"fmt"
	"sort"

	"github.com/chairtools/chairstat/internal/venue"
)

// MissingLoadPolicy decides how a member without a load declaration counts.
type MissingLoadPolicy string

const (
	// MissingLoadSkip lists the member as missing and leaves it out of the total.
	MissingLoadSkip MissingLoadPolicy = "skip"
	// MissingLoadDefault counts the member with CapacityPolicy.DefaultLoad.
	MissingLoadDefault MissingLoadPolicy = "default"
)

// ParseMissingLoadPolicy returns the policy named s. The empty string is skip.
func ParseMissingLoadPolicy(s string) (MissingLoadPolicy, error) {
	switch MissingLoadPolicy(s) {
	case "", MissingLoadSkip:
		return MissingLoadSkip, nil
	case MissingLoadDefault:
		return MissingLoadDefault, nil
	default:
		return "", fmt.Errorf("unknown missing load policy %q (want %q or %q)", s, MissingLoadSkip, MissingLoadDefault)
	}
}

type CapacityPolicy struct {
	Missing     MissingLoadPolicy
	DefaultLoad int
}

// LoadBucket counts the members who declared the same load.
type LoadBucket struct {
	Load    int `json:"load" yaml:"load"`
	Members int `json:"members" yaml:"members"`
}

// CapacityReport summarises the declared load capacity of one role.
type CapacityReport struct {
	Role      venue.Role `json:"role" yaml:"role"`
	Members   int        `json:"members" yaml:"members"`
	Declared  int        `json:"declared" yaml:"declared"`
	Missing   []string   `json:"missing,omitempty" yaml:"missing,omitempty"`
	Defaulted int        `json:"defaulted" yaml:"defaulted"`

	Total  int     `json:"total" yaml:"total"`
	Active int     `json:"active" yaml:"active"`
	Min    int     `json:"min" yaml:"min"`
	Max    int     `json:"max" yaml:"max"`
	Mean   float64 `json:"mean" yaml:"mean"`

	Distribution []LoadBucket `json:"distribution" yaml:"distribution"`
}

// Capacity sums the declared maximum loads of the distinct members of a
// role. Loads of people outside the member list are ignored.
func Capacity(role venue.Role, members []string, loads map[string]int, policy CapacityPolicy) CapacityReport {
	report := CapacityReport{Role: role, Distribution: []LoadBucket{}}

	seen := make(map[string]bool, len(members))
	buckets := make(map[int]int)
	counted := 0

	for _, member := range members {
		if seen[member] {
			continue
		}
		seen[member] = true
		report.Members++

		load, ok := loads[member]
		switch {
		case ok:
			report.Declared++
		case policy.Missing == MissingLoadDefault:
			load = policy.DefaultLoad
			report.Defaulted++
		default:
			report.Missing = append(report.Missing, member)
			continue
		}

		if counted == 0 || load < report.Min {
			report.Min = load
		}
		if counted == 0 || load > report.Max {
			report.Max = load
		}
		counted++

		report.Total += load
		if load != 0 {
			report.Active++
		}
		buckets[load]++
	}

	if counted > 0 {
		report.Mean = float64(report.Total) / float64(counted)
	}

	sort.Strings(report.Missing)

	for load, n := range buckets {
		report.Distribution = append(report.Distribution, LoadBucket{Load: load, Members: n})
	}
	sort.Slice(report.Distribution, func(i, j int) bool {
		return report.Distribution[i].Load < report.Distribution[j].Load
	})

	return report
}

// CapacityAll computes a report for each role of a capacity snapshot, in
// the order given.
func CapacityAll(snap *venue.Snapshot, roles []venue.Role, policy CapacityPolicy) []CapacityReport {
	reports := make([]CapacityReport, 0, len(roles))
	for _, role := range roles {
		reports = append(reports, Capacity(role, snap.Members[role], snap.Loads[role], policy))
	}
	return reports
}
