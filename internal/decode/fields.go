// Package decode implements the zero-allocation byte-level venue frame
// scanners: locating named JSON fields without a structural parser, and
// lifting venue-specific frames into unified marketdata records.
package decode

// findField scans data for the first occurrence of a quoted key exactly
// matching field, then returns the value token that follows: either the
// interior of a quoted string, or a bare token terminated by ',', '}',
// ']', or whitespace. It returns (nil, false) if the field is absent or
// the frame is too short to plausibly contain it.
func findField(data []byte, field string) ([]byte, bool) {
	if len(data) < len(field)+3 {
		return nil, false
	}

	idx := indexOfKey(data, field)
	if idx < 0 {
		return nil, false
	}

	pos := idx + len(field) + 2 // past the closing quote of "field"
	for pos < len(data) && isSpace(data[pos]) {
		pos++
	}
	if pos >= len(data) || data[pos] != ':' {
		return nil, false
	}
	pos++
	for pos < len(data) && isSpace(data[pos]) {
		pos++
	}
	if pos >= len(data) {
		return nil, false
	}

	if data[pos] == '"' {
		pos++
		start := pos
		for pos < len(data) && data[pos] != '"' {
			pos++
		}
		if pos >= len(data) {
			return nil, false
		}
		return data[start:pos], true
	}

	start := pos
	for pos < len(data) && !isTokenTerminator(data[pos]) {
		pos++
	}
	if pos == start {
		return nil, false
	}
	return data[start:pos], true
}

// indexOfKey finds the byte offset of the opening '"' of a quoted key
// exactly matching field, i.e. the literal `"field"` sequence.
func indexOfKey(data []byte, field string) int {
	n := len(field)
	for i := 0; i+n+2 <= len(data); i++ {
		if data[i] != '"' {
			continue
		}
		if string(data[i+1:i+1+n]) != field {
			continue
		}
		if data[i+1+n] != '"' {
			continue
		}
		return i
	}
	return -1
}

// contains reports whether data contains needle anywhere; used for the
// fixed-order message-type discriminator probes.
func contains(data []byte, needle string) bool {
	n := len(needle)
	if n == 0 || n > len(data) {
		return false
	}
	for i := 0; i+n <= len(data); i++ {
		if string(data[i:i+n]) == needle {
			return true
		}
	}
	return false
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func isTokenTerminator(b byte) bool {
	return b == ',' || b == '}' || b == ']' || isSpace(b)
}

// parseU64 parses an unsigned decimal integer from b, failing on empty
// input, non-digit bytes, or overflow.
func parseU64(b []byte) (uint64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	var v uint64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		d := uint64(c - '0')
		if v > (^uint64(0)-d)/10 {
			return 0, false
		}
		v = v*10 + d
	}
	return v, true
}

// parseTimestampMs parses a millisecond timestamp and scales it to
// nanoseconds (the unit every other record in the system uses).
func parseTimestampMs(b []byte) (int64, bool) {
	ms, ok := parseU64(b)
	if !ok {
		return 0, false
	}
	ns := ms * 1_000_000
	if ns > uint64(1<<63-1) {
		return 0, false
	}
	return int64(ns), true
}

// parseBool recognizes exactly the literal tokens "true" and "false";
// anything else (including different casing) fails.
func parseBool(b []byte) (bool, bool) {
	switch string(b) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}
