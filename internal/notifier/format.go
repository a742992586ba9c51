// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package notifier

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
)

const (
	DefaultLimit = 280
	ellipsis     = "..."
	maxTags      = 3
	baseHashtags = "#がん研究 #医療 #研究"

	tcoLength = 23
)

// Counter measures text the way the receiving service does.
type Counter func(string) int

func RuneCount(s string) int {
	return utf8.RuneCountInString(s)
}

var linkPattern = regexp.MustCompile(`https?://\S+`)

// TwitterLength is the weighted length Twitter checks against 280: every link counts as 23 and
// characters outside Latin and general punctuation (kana, kanji, emoji) count as 2.
func TwitterLength(s string) int {
	n := 0
	rest := linkPattern.ReplaceAllStringFunc(s, func(string) string {
		n += tcoLength
		return ""
	})
	for _, r := range rest {
		n += twitterWeight(r)
	}
	return n
}

func twitterWeight(r rune) int {
	switch {
	case r <= 0x10FF,
		r >= 0x2000 && r <= 0x200D,
		r >= 0x2010 && r <= 0x201F,
		r >= 0x2032 && r <= 0x2037:
		return 1
	default:
		return 2
	}
}

// Fit keeps text within limit as measured by count (runes when nil). When it is too long, the
// summary segment is shortened and ends in "..." so the title and link survive. If that is not
// enough, the whole text is cut. The summary is looked up from the end, since templates put it
// after the title and the two may be identical.
func Fit(text, summary string, limit int, count Counter) string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if count == nil {
		count = RuneCount
	}
	if count(text) <= limit {
		return text
	}

	tail := count(ellipsis)
	if summary != "" {
		if i := strings.LastIndex(text, summary); i >= 0 {
			before, after := text[:i], text[i+len(summary):]
			budget := limit - count(before) - count(after) - tail
			if budget > 0 {
				return before + truncateTo(summary, budget, count) + ellipsis + after
			}
		}
	}

	return truncateTo(text, limit-tail, count) + ellipsis
}

// truncateTo returns the longest rune prefix of s that count keeps within budget.
func truncateTo(s string, budget int, count Counter) string {
	if budget <= 0 {
		return ""
	}
	if count(s) <= budget {
		return s
	}
	r := []rune(s)
	k := sort.Search(len(r)+1, func(k int) bool { return count(string(r[:k])) > budget }) - 1
	return strings.TrimRightFunc(string(r[:max(k, 0)]), func(r rune) bool { return r == ' ' || r == '\n' })
}

// Hiragana, katakana and CJK ideographs are kept alongside ASCII word characters.
var (
	tagSpace   = regexp.MustCompile(`\s+`)
	tagInvalid = regexp.MustCompile(`[^\w\x{3040}-\x{309F}\x{30A0}-\x{30FF}\x{4E00}-\x{9FAF}]`)
)

// Hashtags turns a comma separated tag string into at most three hashtags followed by the
// fixed site hashtags.
func Hashtags(tags string) string {
	list := lo.Filter(strings.Split(tags, ","), func(t string, _ int) bool {
		return strings.TrimSpace(t) != ""
	})
	if len(list) > maxTags {
		list = list[:maxTags]
	}

	cleaned := lo.FilterMap(list, func(t string, _ int) (string, bool) {
		t = tagInvalid.ReplaceAllString(tagSpace.ReplaceAllString(t, ""), "")
		return "#" + t, t != ""
	})

	if len(cleaned) == 0 {
		return baseHashtags
	}
	return strings.Join(cleaned, " ") + " " + baseHashtags
}
