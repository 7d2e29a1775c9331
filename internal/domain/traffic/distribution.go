package traffic

import (
	"math/rand"
	"sort"
	"time"

	"github.com/trafficsim/backend/internal/domain/fingerprint"
)

// Distribution maps category labels to integer weights.
// Weighted draws walk labels in sorted order so a seeded random source
// reproduces the same sequence of picks.
type Distribution map[string]int

// Total returns the sum of all weights
func (d Distribution) Total() int {
	total := 0
	for _, w := range d {
		total += w
	}
	return total
}

// Labels returns the category labels in sorted order
func (d Distribution) Labels() []string {
	labels := make([]string, 0, len(d))
	for label := range d {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Sample draws one label with probability proportional to its weight.
// An empty or zero-weight distribution returns "".
func (d Distribution) Sample(r *rand.Rand) string {
	total := d.Total()
	if total <= 0 {
		return ""
	}
	labels := d.Labels()
	n := r.Intn(total)
	for _, label := range labels {
		n -= d[label]
		if n < 0 {
			return label
		}
	}
	return labels[len(labels)-1]
}

// Clone returns an independent copy of the distribution
func (d Distribution) Clone() Distribution {
	c := make(Distribution, len(d))
	for label, w := range d {
		c[label] = w
	}
	return c
}

// IntRange is an inclusive integer interval
type IntRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Sample draws a uniform integer from the interval
func (ir IntRange) Sample(r *rand.Rand) int {
	if ir.Max <= ir.Min {
		return ir.Min
	}
	return ir.Min + r.Intn(ir.Max-ir.Min+1)
}

// DurationRange is an inclusive duration interval
type DurationRange struct {
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
}

// Sample draws a uniform duration from the interval
func (dr DurationRange) Sample(r *rand.Rand) time.Duration {
	if dr.Max <= dr.Min {
		return dr.Min
	}
	return dr.Min + time.Duration(r.Int63n(int64(dr.Max-dr.Min)+1))
}

// Demographics is one session's sampled demographic identity
type Demographics struct {
	Device     fingerprint.DeviceClass
	Country    string
	Gender     string
	AgeBracket string
	AgeRange   IntRange
}

// ageBracketRanges maps age distribution labels to concrete year intervals
var ageBracketRanges = map[string]IntRange{
	"18-24": {Min: 18, Max: 24},
	"25-34": {Min: 25, Max: 34},
	"35-44": {Min: 35, Max: 44},
	"45-54": {Min: 45, Max: 54},
	"55+":   {Min: 55, Max: 75},
	"18-75": {Min: 18, Max: 75},
}

// defaultAgeRange is used for age bracket labels without a known interval
var defaultAgeRange = IntRange{Min: 18, Max: 65}

// AgeRangeForBracket resolves an age distribution label to a year interval
func AgeRangeForBracket(label string) IntRange {
	if r, ok := ageBracketRanges[label]; ok {
		return r
	}
	return defaultAgeRange
}

// SampleDemographics draws device, country, gender and age bracket via
// independent weighted draws from the config's distributions.
func SampleDemographics(r *rand.Rand, cfg *Config) Demographics {
	bracket := cfg.AgeDistribution.Sample(r)
	return Demographics{
		Device:     fingerprint.DeviceClass(cfg.DeviceDistribution.Sample(r)),
		Country:    cfg.CountryDistribution.Sample(r),
		Gender:     cfg.GenderDistribution.Sample(r),
		AgeBracket: bracket,
		AgeRange:   AgeRangeForBracket(bracket),
	}
}
