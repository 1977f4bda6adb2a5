// Package classify attributes donation records to registered streamers by
// keyword matching against the target-name field and the donor message.
package classify

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/soopfest/balloonwatch/internal/logger"
	"github.com/soopfest/balloonwatch/internal/record"
)

// Mapping registers one streamer with the alias keywords that identify them
// in free text. The registry file is owned by admin tooling; this package
// only reads it.
type Mapping struct {
	Name     string   `json:"bjName" validate:"required"`
	Keywords []string `json:"keywords" validate:"unique"`
}

var validate = validator.New()

// LoadRegistry reads and validates the keyword registry file.
func LoadRegistry(path string) ([]Mapping, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyword registry: %w", err)
	}

	var mappings []Mapping
	if err := json.Unmarshal(raw, &mappings); err != nil {
		return nil, fmt.Errorf("parse keyword registry: %w", err)
	}
	for i, m := range mappings {
		if err := validate.Struct(m); err != nil {
			return nil, fmt.Errorf("keyword registry entry %d: %w", i, err)
		}
	}
	return mappings, nil
}

// Classifier matches record text against the registry.
type Classifier struct {
	mappings []Mapping
}

// New creates a classifier over the given registry.
func New(mappings []Mapping) *Classifier {
	return &Classifier{mappings: mappings}
}

// Classify resolves a record's target name and message to a canonical
// streamer name, or the unclassified sentinel. An exact canonical-name
// match on the target field wins outright. Otherwise the keywords of every
// mapping are checked as substrings of the letter-stripped text; the match
// counts only when exactly one mapping matches. Ambiguity is surfaced, not
// guessed away.
func (c *Classifier) Classify(target, message string) string {
	target = strings.TrimSpace(target)
	if target != "" && target != record.Unclassified {
		for _, m := range c.mappings {
			if m.Name == target {
				return m.Name
			}
		}
	}

	text := stripNonLetters(target + " " + message)
	if text == "" {
		return record.Unclassified
	}

	var matched []string
	for _, m := range c.mappings {
		if c.matches(m, text) {
			matched = append(matched, m.Name)
		}
	}

	switch len(matched) {
	case 1:
		return matched[0]
	case 0:
		return record.Unclassified
	default:
		logger.Warn("ambiguous classification, leaving unclassified",
			"target", target, "message", message, "candidates", strings.Join(matched, ","))
		return record.Unclassified
	}
}

// Apply classifies a single record in place, preserving an already-assigned
// target unless it is empty or the sentinel.
func (c *Classifier) Apply(d *record.Donation) {
	if d.Classified() {
		// Normalize a scraped target to its canonical form when it maps
		// to a registered streamer; otherwise keep the scraped value.
		if name := c.Classify(d.TargetName, ""); name != record.Unclassified {
			d.TargetName = name
		}
		return
	}
	d.TargetName = c.Classify(d.TargetName, d.Message)
	if d.TargetName == record.Unclassified {
		d.TargetName = ""
	}
}

// Reclassify runs the batch re-pass over a record set, matching the message
// field of records whose target extraction failed or came back empty. It is
// idempotent and returns the number of newly classified records.
func (c *Classifier) Reclassify(data []record.Donation) int {
	classified := 0
	for i := range data {
		if data[i].Classified() {
			continue
		}
		if name := c.Classify("", data[i].Message); name != record.Unclassified {
			data[i].TargetName = name
			classified++
		}
	}
	return classified
}

func (c *Classifier) matches(m Mapping, text string) bool {
	if kw := stripNonLetters(m.Name); kw != "" && strings.Contains(text, kw) {
		return true
	}
	for _, k := range m.Keywords {
		if kw := stripNonLetters(k); kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// stripNonLetters drops everything but letters so that decorations and
// stray digits in donor text do not defeat substring matching.
func stripNonLetters(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
