package utils

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"gorm.io/gorm"
)

const slugMaxLen = 160

var repeatedDash = regexp.MustCompile(`-+`)

// GenerateSlug lower-cases s and collapses every run of non-alphanumerics into a dash.
func GenerateSlug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('-')
		}
	}
	out := repeatedDash.ReplaceAllString(b.String(), "-")
	return cutToLen(strings.Trim(out, "-"), slugMaxLen)
}

func cutToLen(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.Trim(s[:n], "-")
}

// UniqueSlug returns base, or base-2, base-3 ... whichever is free in table
// within the given academy. excludeID skips the row being updated.
func UniqueSlug(ctx context.Context, db *gorm.DB, table, academyID, base, excludeID string) (string, error) {
	base = GenerateSlug(base)
	if base == "" {
		base = "course"
	}
	for i := 1; i <= 1000; i++ {
		candidate := base
		if i > 1 {
			suffix := fmt.Sprintf("-%d", i)
			candidate = cutToLen(base, slugMaxLen-len(suffix)) + suffix
		}
		q := db.WithContext(ctx).Table(table).
			Where("academy_id = ? AND lower(slug) = lower(?)", academyID, candidate)
		if excludeID != "" {
			q = q.Where("id <> ?", excludeID)
		}
		var cnt int64
		if err := q.Count(&cnt).Error; err != nil {
			return "", err
		}
		if cnt == 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free slug for %q", base)
}
