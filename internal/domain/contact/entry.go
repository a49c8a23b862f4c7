// internal/domain/contact/entry.go
package contact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Entry is the normalized form of one contact override. Both on-disk shapes (a bare
// address string, or {"to": "...", "cc": "..."}) decode into it, so nothing past the
// loader needs to know which shape was stored.
type Entry struct {
	To []string
	CC []string
	// Suppressed marks the legacy bare-string form holding no address at all: the party
	// is deliberately configured to receive nothing.
	Suppressed bool
	legacy     bool
}

type structuredEntry struct {
	To string `json:"to"`
	CC string `json:"cc"`
}

// ParseEntry decodes a stored mapping value in either shape.
func ParseEntry(raw []byte) (Entry, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Entry{}, fmt.Errorf("empty contact entry")
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Entry{}, fmt.Errorf("invalid legacy contact entry: %w", err)
		}
		to := SplitAddresses(s)
		return Entry{To: to, Suppressed: len(to) == 0, legacy: true}, nil
	case '{':
		var se structuredEntry
		if err := json.Unmarshal(raw, &se); err != nil {
			return Entry{}, fmt.Errorf("invalid contact entry: %w", err)
		}
		return Entry{To: SplitAddresses(se.To), CC: SplitAddresses(se.CC)}, nil
	default:
		return Entry{}, fmt.Errorf("unsupported contact entry: %s", string(raw))
	}
}

// UnmarshalJSON implements json.Unmarshaler via ParseEntry.
func (e *Entry) UnmarshalJSON(b []byte) error {
	parsed, err := ParseEntry(b)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// MarshalJSON writes the structured shape. A suppressed legacy entry is written back as
// an empty string so its meaning survives a rewrite of the file.
func (e Entry) MarshalJSON() ([]byte, error) {
	if e.Suppressed && e.legacy {
		return []byte(`""`), nil
	}
	return json.Marshal(structuredEntry{To: JoinAddresses(e.To), CC: JoinAddresses(e.CC)})
}

// Merge unions new "to" and "cc" submissions into the entry. Existing addresses keep
// their position; new ones are appended; comparison is case-insensitive.
func (e Entry) Merge(to, cc []string) Entry {
	return Entry{
		To: MergeAddresses(e.To, to),
		CC: MergeAddresses(e.CC, cc),
	}
}

// SplitAddresses splits a "," or ";" separated address list, trimming blanks.
func SplitAddresses(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// JoinAddresses is the inverse of SplitAddresses used for storage and display.
func JoinAddresses(addrs []string) string {
	return strings.Join(addrs, ", ")
}

// MergeAddresses returns base followed by every address of extra not already present,
// compared case-insensitively. Duplicates inside base are dropped as well.
func MergeAddresses(base, extra []string) []string {
	fold := cases.Fold()
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, addr := range list {
			key := fold.String(strings.TrimSpace(addr))
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, strings.TrimSpace(addr))
		}
	}
	return out
}

// ContainsAddress reports whether addr is in list, ignoring case.
func ContainsAddress(list []string, addr string) bool {
	fold := cases.Fold()
	key := fold.String(strings.TrimSpace(addr))
	for _, a := range list {
		if fold.String(strings.TrimSpace(a)) == key {
			return true
		}
	}
	return false
}
