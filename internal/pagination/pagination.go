// Package pagination pages through append-only logs with opaque cursors.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const cursorPrefix = "off"

// ParseLimit parses a limit query value, falling back to defaultVal and
// clamping to maxVal.
func ParseLimit(s string, defaultVal, maxVal int) int {
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return defaultVal
	}
	if n > maxVal {
		return maxVal
	}
	return n
}

// Encode returns an opaque cursor for a log offset.
func Encode(offset int) string {
	raw := fmt.Sprintf("%s|%d", cursorPrefix, offset)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// Decode parses an opaque cursor. An empty cursor is offset 0.
func Decode(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor")
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 || parts[0] != cursorPrefix {
		return 0, fmt.Errorf("invalid cursor")
	}
	offset, err := strconv.Atoi(parts[1])
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("invalid cursor")
	}
	return offset, nil
}

// Page returns up to limit items starting at the cursor's offset, the cursor
// of the next page and whether more items follow. Offsets stay valid because
// the logs paged here are append-only.
func Page[T any](items []T, cursor string, limit int) ([]T, string, bool, error) {
	offset, err := Decode(cursor)
	if err != nil {
		return nil, "", false, err
	}
	if offset >= len(items) {
		return []T{}, "", false, nil
	}
	end := offset + limit
	if end >= len(items) {
		return items[offset:], "", false, nil
	}
	return items[offset:end], Encode(end), true, nil
}
