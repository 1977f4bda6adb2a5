// Package record defines the donation record model and the extraction and
// normalization steps that turn raw scrape output into records.
package record

import "fmt"

// Unclassified is the sentinel target name for a donation that could not be
// attributed to any registered streamer.
const Unclassified = "미분류"

// GameAmount is the fixed payout of the on-stream mini game. A donation of
// exactly this amount is a game event, not a direct donation, and is never
// attributed to a target.
const GameAmount = 2500

// Donation is one observed donation event. JSON tags match the snapshot
// format the leaderboard front-end reads.
type Donation struct {
	MessageID    string `json:"messageId"`
	CreateDate   string `json:"createDate"`
	RelativeTime string `json:"relativeTime,omitempty"`
	DonorName    string `json:"ballonUserName"`
	Amount       int    `json:"ballonCount"`
	TargetName   string `json:"targetBjName"`
	Message      string `json:"message"`
	MessageDate  string `json:"messageDate,omitempty"`
	Cancelled    bool   `json:"isCancel,omitempty"`
}

// IdentityKey derives the record identity from its stable fields. The source
// regenerates its internal row IDs on every render, so identity is content
// derived: timestamp, donor and amount.
func IdentityKey(createDate, donor string, amount int) string {
	return fmt.Sprintf("%s-%s-%d", createDate, donor, amount)
}

// Classified reports whether the record carries a usable target name.
func (d Donation) Classified() bool {
	return d.TargetName != "" && d.TargetName != Unclassified
}
