package server

import (
	"errors"
	"strconv"
	"strings"
)

var (
	errInvalidRange        = errors.New("server: invalid range header")
	errRangeNotSatisfiable = errors.New("server: range not satisfiable")
)

// parseByteRange parses a single-range "bytes=start-end" Range header value
// against a resource of the given size, returning an inclusive [start, end]
// byte span. Multi-range requests are rejected as invalid, since the
// streaming endpoint only ever serves one contiguous span per response.
func parseByteRange(header string, size int64) (int64, int64, error) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return 0, 0, errInvalidRange
	}
	spec := strings.TrimPrefix(header, prefix)
	if strings.Contains(spec, ",") {
		return 0, 0, errInvalidRange
	}

	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, errInvalidRange
	}
	startStr, endStr := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

	var start, end int64
	var explicitEnd bool
	switch {
	case startStr == "" && endStr == "":
		return 0, 0, errInvalidRange
	case startStr == "":
		// suffix range: last N bytes
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, errInvalidRange
		}
		if n > size {
			n = size
		}
		start = size - n
		end = size - 1
	default:
		s, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil || s < 0 {
			return 0, 0, errInvalidRange
		}
		start = s
		if endStr == "" {
			end = size - 1
		} else {
			e, err := strconv.ParseInt(endStr, 10, 64)
			if err != nil || e < 0 {
				return 0, 0, errInvalidRange
			}
			end = e
			explicitEnd = true
		}
	}

	if start > end {
		return 0, 0, errRangeNotSatisfiable
	}

	// start >= size, an explicit end >= size, or start > end are all 416s —
	// an out-of-bounds explicit end is rejected outright, not clamped.
	if start >= size || start < 0 {
		return 0, 0, errRangeNotSatisfiable
	}
	if explicitEnd && end >= size {
		return 0, 0, errRangeNotSatisfiable
	}
	return start, end, nil
}
