// Package stats aggregates the snapshot store into the per-streamer and
// per-donor leaderboard totals the festival board presents.
package stats

import (
	"sort"
	"strings"

	"github.com/soopfest/balloonwatch/internal/classify"
	"github.com/soopfest/balloonwatch/internal/record"
)

// StreamerStats is one leaderboard row.
type StreamerStats struct {
	Name           string `json:"bjName" yaml:"bjName"`
	TotalBalloons  int    `json:"totalBalloons" yaml:"totalBalloons"`
	DonationCount  int    `json:"donationCount" yaml:"donationCount"`
	TopDonor       string `json:"topDonor" yaml:"topDonor"`
	TopDonorAmount int    `json:"topDonorAmount" yaml:"topDonorAmount"`
	LastUpdate     string `json:"lastUpdate" yaml:"lastUpdate"`
}

// DonorStats aggregates one donor across all their donations.
type DonorStats struct {
	Name          string   `json:"userName" yaml:"userName"`
	TotalBalloons int      `json:"totalBalloons" yaml:"totalBalloons"`
	DonationCount int      `json:"donationCount" yaml:"donationCount"`
	Targets       []string `json:"targetBjs" yaml:"targetBjs"`
}

// Report is the full aggregation output.
type Report struct {
	Streamers      []StreamerStats `json:"streamers" yaml:"streamers"`
	Donors         []DonorStats    `json:"donors" yaml:"donors"`
	TotalBalloons  int             `json:"totalBalloons" yaml:"totalBalloons"`
	TotalDonations int             `json:"totalDonations" yaml:"totalDonations"`
	Unclassified   int             `json:"unclassifiedCount" yaml:"unclassifiedCount"`
}

// Aggregate folds the record set into leaderboard totals. Every registered
// streamer gets a row even with zero donations, plus one bucket for
// unclassified records. Classification falls back to the message text for
// records without a target, the same resolution the board applies.
func Aggregate(data []record.Donation, mappings []classify.Mapping) Report {
	clf := classify.New(mappings)

	streamers := make(map[string]*StreamerStats, len(mappings)+1)
	order := make([]string, 0, len(mappings)+1)
	for _, m := range mappings {
		streamers[m.Name] = &StreamerStats{Name: m.Name, TopDonor: "-"}
		order = append(order, m.Name)
	}
	streamers[record.Unclassified] = &StreamerStats{Name: record.Unclassified, TopDonor: "-"}
	order = append(order, record.Unclassified)

	donors := make(map[string]*DonorStats)
	donorOrder := make([]string, 0)

	report := Report{}
	for _, d := range data {
		name := record.Unclassified
		if d.Classified() {
			// A stored target wins; normalize it to the canonical name
			// when it maps to a registered streamer.
			if n := clf.Classify(d.TargetName, ""); n != record.Unclassified {
				name = n
			} else {
				name = d.TargetName
			}
		} else if n := clf.Classify("", d.Message); n != record.Unclassified {
			name = n
		}

		amount := d.Amount
		if d.Cancelled || cancelledByMarker(d.Message) || cancelledByMarker(d.TargetName) {
			amount = -abs(amount)
		}

		row, ok := streamers[name]
		if !ok {
			// A target name outside the registry still gets a row.
			row = &StreamerStats{Name: name, TopDonor: "-"}
			streamers[name] = row
			order = append(order, name)
		}
		row.TotalBalloons += amount
		row.DonationCount++
		if amount > 0 && amount > row.TopDonorAmount {
			row.TopDonor = d.DonorName
			row.TopDonorAmount = amount
		}
		if d.CreateDate > row.LastUpdate {
			row.LastUpdate = d.CreateDate
		}

		donor, ok := donors[d.DonorName]
		if !ok {
			donor = &DonorStats{Name: d.DonorName}
			donors[d.DonorName] = donor
			donorOrder = append(donorOrder, d.DonorName)
		}
		donor.TotalBalloons += amount
		donor.DonationCount++
		if name != record.Unclassified && !contains(donor.Targets, name) {
			donor.Targets = append(donor.Targets, name)
		}

		report.TotalBalloons += amount
		report.TotalDonations++
		if name == record.Unclassified {
			report.Unclassified++
		}
	}

	for _, name := range order {
		report.Streamers = append(report.Streamers, *streamers[name])
	}
	sort.SliceStable(report.Streamers, func(i, j int) bool {
		return report.Streamers[i].TotalBalloons > report.Streamers[j].TotalBalloons
	})

	for _, name := range donorOrder {
		report.Donors = append(report.Donors, *donors[name])
	}
	sort.SliceStable(report.Donors, func(i, j int) bool {
		return report.Donors[i].TotalBalloons > report.Donors[j].TotalBalloons
	})

	return report
}

// cancelledByMarker detects the refund marker some source formats carry: a
// standalone Hangul token "마" in the message or target text.
func cancelledByMarker(text string) bool {
	if text == "" {
		return false
	}
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool {
		return r < '가' || r > '힣'
	}) {
		if tok == "마" {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
