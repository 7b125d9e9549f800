// Package model defines the wire-level AT line and the LocationRecord it
// renders, per spec.md §3-4. Parsing and rendering live together here
// because raw_at_line must be reused verbatim (never re-derived) by
// WHATSAT replies and by the flood engine — see spec.md's invariant 2.
package model

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// coordsPattern splits a concatenated signed-lat/signed-lon pair such as
// "+34.068930-118.445127" into its two signed decimal components.
var coordsPattern = regexp.MustCompile(`^([+-][0-9]+(?:\.[0-9]+)?)([+-][0-9]+(?:\.[0-9]+)?)$`)

// Record is the canonical per-client state: spec.md §3's LocationRecord.
type Record struct {
	ClientID            string
	Coords              string // e.g. "+34.068930-118.445127"
	ClientTimestampRaw  string // preserved verbatim, full textual precision
	ClientTimestamp     float64
	OriginServer        string
	TimeSkewRaw         string // signed, preserved verbatim
	RawATLine           string // exact AT line, no trailing newline
}

// ParseCoords splits coords into its signed latitude and longitude
// components. ok is false if coords isn't a concatenation of two signed
// decimals.
func ParseCoords(coords string) (lat, lon string, ok bool) {
	m := coordsPattern.FindStringSubmatch(coords)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// ParseFiniteFloat parses s as a decimal number, rejecting the textual
// Inf/NaN forms strconv.ParseFloat otherwise accepts — spec.md requires
// "parseable as finite decimals" for coords and timestamps alike.
func ParseFiniteFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// FormatTimeSkew renders a signed time skew with an explicit sign and at
// least 9 fractional digits, per spec.md §4.1's IAMAT effect and §9's
// open question ("9 fractional digits is chosen for reproducibility").
func FormatTimeSkew(skew float64) string {
	return fmt.Sprintf("%+.9f", skew)
}

// NewFromIAMAT builds the Record a herd member accepts directly from a
// client's IAMAT line, computing time skew against receivedAt.
func NewFromIAMAT(ownName string, receivedAt time.Time, clientID, coords, clientTimestampRaw string, clientTimestamp float64) Record {
	skewVal := float64(receivedAt.UnixNano())/1e9 - clientTimestamp
	skewStr := FormatTimeSkew(skewVal)

	raw := fmt.Sprintf("AT %s %s %s %s %s", ownName, skewStr, clientID, coords, clientTimestampRaw)

	return Record{
		ClientID:           clientID,
		Coords:             coords,
		ClientTimestampRaw: clientTimestampRaw,
		ClientTimestamp:    clientTimestamp,
		OriginServer:       ownName,
		TimeSkewRaw:        skewStr,
		RawATLine:          raw,
	}
}

// ParseAT parses an inbound "AT <origin> <skew> <client> <coords> <ts>"
// line (six whitespace-separated tokens, tokens[0] == "AT") into a
// Record. A well-formed AT never gets a reply; a malformed one still
// falls under the protocol's blanket "invalid input" rule, so callers
// that see an error here answer with a `?` line rather than applying
// anything to the store.
func ParseAT(tokens []string) (Record, error) {
	if len(tokens) != 6 || tokens[0] != "AT" {
		return Record{}, fmt.Errorf("model: not a 6-token AT line")
	}

	origin := tokens[1]
	skewRaw := tokens[2]
	clientID := tokens[3]
	coords := tokens[4]
	tsRaw := tokens[5]

	if _, ok := ParseFiniteFloat(skewRaw); !ok {
		return Record{}, fmt.Errorf("model: invalid time skew %q", skewRaw)
	}
	if _, _, ok := ParseCoords(coords); !ok {
		return Record{}, fmt.Errorf("model: invalid coords %q", coords)
	}
	ts, ok := ParseFiniteFloat(tsRaw)
	if !ok {
		return Record{}, fmt.Errorf("model: invalid client timestamp %q", tsRaw)
	}

	return Record{
		ClientID:           clientID,
		Coords:             coords,
		ClientTimestampRaw: tsRaw,
		ClientTimestamp:    ts,
		OriginServer:       origin,
		TimeSkewRaw:        skewRaw,
		RawATLine:          strings.Join(tokens, " "),
	}, nil
}
