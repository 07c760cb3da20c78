package interfaces

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Timestamp accepts ISO dates ("2024-01-01"), ISO date-times without zone and RFC3339.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD[THH:MM:SS]", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(time.RFC3339))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Timestamp) MarshalYAML() (interface{}, error) {
	return t.Format(time.RFC3339), nil
}

func (t *Timestamp) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseTimestamp(value.Value)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MessageQuery selects messages. Build one with NewMessageQuery; the
// label/sender/recipient lists are deduplicated sets.
type MessageQuery struct {
	After         *Timestamp `json:"after,omitempty" yaml:"after,omitempty"`
	Before        *Timestamp `json:"before,omitempty" yaml:"before,omitempty"`
	Labels        []string   `json:"labels" yaml:"labels"`
	ExcludeLabels []string   `json:"exclude_labels" yaml:"exclude_labels"`
	Sender        []string   `json:"sender" yaml:"sender"`
	To            []string   `json:"to" yaml:"to"`
}

func NewMessageQuery(after, before *Timestamp, labels, excludeLabels, sender, to []string) MessageQuery {
	q := MessageQuery{
		Labels:        toSet(labels),
		ExcludeLabels: toSet(excludeLabels),
		Sender:        toSet(sender),
		To:            toSet(to),
	}
	if after != nil {
		a := *after
		q.After = &a
	}
	if before != nil {
		b := *before
		q.Before = &b
	}
	return q
}

// Normalized returns a copy with every list turned into a sorted set.
// Request bodies decode straight into MessageQuery, so callers run this first.
func (q MessageQuery) Normalized() MessageQuery {
	return NewMessageQuery(q.After, q.Before, q.Labels, q.ExcludeLabels, q.Sender, q.To)
}

// GmailFilter renders the query in Gmail search syntax, e.g.
// `label:"INBOX" -label:"archived" {from:"a@x" from:"b@x"} after:1704067200`.
func (q MessageQuery) GmailFilter() string {
	n := q.Normalized()
	var parts []string
	for _, l := range n.Labels {
		parts = append(parts, fmt.Sprintf(`label:"%s"`, l))
	}
	for _, l := range n.ExcludeLabels {
		parts = append(parts, fmt.Sprintf(`-label:"%s"`, l))
	}
	if p := anyOf("from", n.Sender); p != "" {
		parts = append(parts, p)
	}
	if p := anyOf("to", n.To); p != "" {
		parts = append(parts, p)
	}
	if n.After != nil {
		parts = append(parts, fmt.Sprintf("after:%d", n.After.Unix()))
	}
	if n.Before != nil {
		parts = append(parts, fmt.Sprintf("before:%d", n.Before.Unix()))
	}
	return strings.Join(parts, " ")
}

func anyOf(op string, values []string) string {
	switch len(values) {
	case 0:
		return ""
	case 1:
		return quoted(op, values[0])
	}
	terms := make([]string, len(values))
	for i, v := range values {
		terms[i] = quoted(op, v)
	}
	return "{" + strings.Join(terms, " ") + "}"
}

// quoted keeps values with spaces, such as display names, in one term.
// Gmail search has no escape for '"', so it is dropped.
func quoted(op, value string) string {
	return op + `:"` + strings.ReplaceAll(value, `"`, "") + `"`
}

func toSet(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
