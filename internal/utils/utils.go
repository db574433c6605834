package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var ErrEmptyCollection = errors.New("collection name is empty after sanitizing")

var unsafeNameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f\x7f]`)

// SanitizeCollection turns a client supplied title into a single safe
// directory name. Unicode letters are kept.
func SanitizeCollection(title string) (string, error) {
	name := unsafeNameChars.ReplaceAllString(title, "_")
	name = strings.Join(strings.Fields(name), " ")
	name = strings.Trim(name, " .")
	if name == "" || strings.Trim(name, "_") == "" {
		return "", ErrEmptyCollection
	}
	if len(name) > 200 {
		name = strings.TrimRight(truncateUTF8(name, 200), " .")
	}
	return name, nil
}

func truncateUTF8(s string, n int) string {
	for n > 0 && n < len(s) && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// ParseSize parses sizes such as "64 MB", "512KB" or "1048576".
func ParseSize(sizeStr string) (int64, error) {
	sizeStr = strings.TrimSpace(strings.ReplaceAll(sizeStr, "&nbsp;", " "))
	if sizeStr == "" {
		return 0, fmt.Errorf("empty size")
	}
	i := strings.IndexFunc(sizeStr, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	numPart, unit := sizeStr, "B"
	if i >= 0 {
		numPart, unit = strings.TrimSpace(sizeStr[:i]), strings.TrimSpace(sizeStr[i:])
	}
	value, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", sizeStr, err)
	}
	var multiplier float64
	switch strings.ToUpper(unit) {
	case "B":
		multiplier = 1
	case "KB", "K", "KIB":
		multiplier = 1024
	case "MB", "M", "MIB":
		multiplier = 1024 * 1024
	case "GB", "G", "GIB":
		multiplier = 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("invalid size unit %q", unit)
	}
	return int64(value * multiplier), nil
}

func FormatBytes(n int64) string {
	b := float64(n)
	switch {
	case b >= 1024*1024*1024:
		return fmt.Sprintf("%.1f GB", b/(1024*1024*1024))
	case b >= 1024*1024:
		return fmt.Sprintf("%.1f MB", b/(1024*1024))
	case b >= 1024:
		return fmt.Sprintf("%.1f KB", b/1024)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
