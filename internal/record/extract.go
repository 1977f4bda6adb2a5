package record

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/soopfest/balloonwatch/internal/logger"
)

// Field token sets for the last-resort key-sniffing adapter. The monitoring
// site has shipped at least three response shapes with different field
// names; these tokens cover all of them.
var (
	dateTokens   = []string{"date", "time", "created"}
	donorTokens  = []string{"user", "nick", "name", "sender"}
	amountTokens = []string{"count", "balloon", "coin", "amount", "cnt"}
	targetTokens = []string{"bj", "target", "receiver"}
	msgTokens    = []string{"msg", "message", "chat", "content"}
)

// FromPayload extracts donation records from a captured JSON response body
// of unknown shape. Unrecognized bodies and malformed items are skipped
// silently: one bad item must never abort the batch.
func FromPayload(body []byte, now time.Time) []Donation {
	items := itemsFromPayload(body)
	if len(items) == 0 {
		return nil
	}

	out := make([]Donation, 0, len(items))
	for _, item := range items {
		if d, ok := fromItem(item, now); ok {
			out = append(out, d)
		}
	}
	return out
}

// itemsFromPayload selects the envelope adapter for a payload. Known shapes
// are a bare array and objects wrapping the rows under "data", "rows",
// "list" or "gridData".
func itemsFromPayload(body []byte) []map[string]any {
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) <= 10 {
		return nil
	}

	switch trimmed[0] {
	case '[':
		var arr []map[string]any
		if err := json.Unmarshal(body, &arr); err != nil {
			return nil
		}
		return arr
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil
		}
		for _, envelope := range []string{"data", "rows", "list", "gridData"} {
			raw, ok := obj[envelope]
			if !ok {
				continue
			}
			var arr []map[string]any
			if err := json.Unmarshal(raw, &arr); err != nil {
				continue
			}
			if len(arr) > 0 {
				return arr
			}
		}
	}
	return nil
}

// fromItem maps a single row object to a record via case-insensitive key
// sniffing. A record is produced only when both a donor field and an amount
// field are present; anything less is not worth guessing about.
func fromItem(item map[string]any, now time.Time) (Donation, bool) {
	keys := make([]string, 0, len(item))
	for k := range item {
		keys = append(keys, k)
	}
	// Deterministic sniffing: "message" sorts before "messageId",
	// "createDate" before "messageDate".
	sort.Strings(keys)

	kDonor := findKey(keys, donorTokens)
	kAmount := findKey(keys, amountTokens)
	if kDonor == "" || kAmount == "" {
		return Donation{}, false
	}

	donor := stringValue(item[kDonor])
	amount, ok := amountValue(item[kAmount])
	if donor == "" || !ok {
		return Donation{}, false
	}

	createDate := ""
	if kDate := findKey(keys, dateTokens); kDate != "" {
		createDate = stringValue(item[kDate])
	}
	createDate = NormalizeDate(createDate, now)

	target := ""
	if kTarget := findKey(keys, targetTokens); kTarget != "" {
		target = strings.TrimSpace(stringValue(item[kTarget]))
	}

	msg := ""
	if kMsg := findKey(keys, msgTokens); kMsg != "" {
		msg = StripTimestamps(stringValue(item[kMsg]))
	}

	return build(createDate, donor, amount, target, msg), true
}

// FromRow builds a record from the fixed logical columns of a grid row.
// Date and amount cells must both be non-empty.
func FromRow(date, donor, amount, msg, target string, now time.Time) (Donation, bool) {
	date = strings.TrimSpace(date)
	donor = strings.TrimSpace(donor)
	amount = strings.TrimSpace(amount)
	if date == "" || donor == "" || amount == "" {
		return Donation{}, false
	}

	n, ok := parseAmount(amount)
	if !ok {
		logger.Debug("grid row amount not numeric", "amount", amount, "donor", donor)
		return Donation{}, false
	}

	return build(NormalizeDate(date, now), donor, n, strings.TrimSpace(target), StripTimestamps(msg)), true
}

func build(createDate, donor string, amount int, target, msg string) Donation {
	// The mini-game payout is a side activity, never a direct donation.
	if amount == GameAmount {
		target = ""
	}
	return Donation{
		MessageID:   IdentityKey(createDate, donor, amount),
		CreateDate:  createDate,
		DonorName:   donor,
		Amount:      amount,
		TargetName:  target,
		Message:     msg,
		MessageDate: createDate,
	}
}

func findKey(keys []string, tokens []string) string {
	for _, k := range keys {
		lower := strings.ToLower(k)
		for _, tok := range tokens {
			if strings.Contains(lower, tok) {
				return k
			}
		}
	}
	return ""
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case nil:
		return ""
	default:
		return ""
	}
}

func amountValue(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case string:
		return parseAmount(n)
	default:
		return 0, false
	}
}

// parseAmount parses an integer that may carry thousands separators.
func parseAmount(s string) (int, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
