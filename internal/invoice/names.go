package invoice

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// TimestampLayout is the suffix format for relocated files and artifacts.
const TimestampLayout = "20060102_150405"

var (
	unsafeChars    = regexp.MustCompile(`[<>:"/\\|?*]`)
	repeatedUnders = regexp.MustCompile(`_+`)
)

// FileExtension returns the lower-cased extension without the dot.
func FileExtension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// IsSupportedFormat reports whether the filename's lower-cased extension is
// in the supported set.
func IsSupportedFormat(filename string, supported []string) bool {
	ext := FileExtension(filename)
	for _, s := range supported {
		if ext == s {
			return true
		}
	}
	return false
}

// TimestampedFilename inserts a timestamp suffix before the extension.
// An empty suffix uses the current UTC time.
func TimestampedFilename(original, suffix string) string {
	if suffix == "" {
		suffix = time.Now().UTC().Format(TimestampLayout)
	}
	ext := filepath.Ext(original)
	stem := strings.TrimSuffix(filepath.Base(original), ext)
	return fmt.Sprintf("%s_%s%s", stem, suffix, ext)
}

// SafeFilename replaces characters that are invalid on common filesystems
// and collapses runs of underscores.
func SafeFilename(filename string) string {
	safe := unsafeChars.ReplaceAllString(filename, "_")
	return repeatedUnders.ReplaceAllString(safe, "_")
}

// EnsureUniqueFilename returns target if it does not exist, otherwise the
// first "{stem}_{n}{ext}" variant that is free. Safe only for sequential
// use within a single process; there is no cross-process locking.
func EnsureUniqueFilename(target string) string {
	if _, err := os.Stat(target); os.IsNotExist(err) {
		return target
	}

	dir := filepath.Dir(target)
	ext := filepath.Ext(target)
	stem := strings.TrimSuffix(filepath.Base(target), ext)

	for counter := 1; ; counter++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, counter, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// FormatDuration renders a duration in seconds as a human-readable string.
func FormatDuration(seconds float64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%.2f seconds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%.2f minutes", seconds/60)
	default:
		return fmt.Sprintf("%.2f hours", seconds/3600)
	}
}

// TruncateText shortens text to maxLen runes-worth of bytes, appending an
// ellipsis when truncated.
func TruncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return text[:maxLen]
	}
	return text[:maxLen-3] + "..."
}
