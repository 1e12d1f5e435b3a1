/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package sqpack

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Language identifies one of the archive's known per-language string
// tables, the same seven the original client supports.
type Language int

const (
	LanguageUnspecified Language = iota
	LanguageJapanese
	LanguageEnglish
	LanguageGerman
	LanguageFrench
	LanguageChineseSimplified
	LanguageChineseTraditional
	LanguageKorean
)

var languageCodes = [...]string{"ja", "en", "de", "fr", "chs", "cht", "ko"}

// ParseLanguage maps a config string ("en", "de", ...) to a Language,
// returning LanguageUnspecified for an empty or unrecognized value.
func ParseLanguage(code string) Language {
	for i, c := range languageCodes {
		if strings.EqualFold(c, code) {
			return Language(i + 1)
		}
	}
	return LanguageUnspecified
}

func (l Language) code() (string, bool) {
	if l <= LanguageUnspecified || int(l) > len(languageCodes) {
		return "", false
	}
	return languageCodes[l-1], true
}

// LanguageHashTracker rewrites language-tagged content path segments to
// a configured target language and records the first occurrence of
// each distinct original path, mirroring XivAlexander's
// HashTrackerLanguageOverride / UseHashTrackerKeyLogging behavior: the
// original hooks the client's own filename-hash routine to substitute
// the language segment before the hash is computed, then optionally
// logs the observed key. A Go rework has no equivalent hook into the
// client's hash function, so this is exposed for a host's own
// hash-computation hook to call directly (see DESIGN.md).
type LanguageHashTracker struct {
	Override    Language
	LogObserved bool
	Logger      logrus.FieldLogger

	mu     sync.Mutex
	logged map[string]struct{}
}

// NewLanguageHashTracker constructs a tracker. A nil logger disables
// LogOnce regardless of logObserved.
func NewLanguageHashTracker(override Language, logObserved bool, logger logrus.FieldLogger) *LanguageHashTracker {
	return &LanguageHashTracker{
		Override:    override,
		LogObserved: logObserved,
		Logger:      logger,
		logged:      make(map[string]struct{}),
	}
}

// Rewrite substitutes original's language-coded segment or suffix
// (e.g. "_en", "/en/") with the tracker's target language and reports
// the candidate only if exists confirms it names a real entry.
// "ui/uld/logo" paths are left untouched, since overriding them is
// known to destabilize the client.
func (t *LanguageHashTracker) Rewrite(original string, exists func(candidate string) bool) (string, bool) {
	if t == nil || t.Override == LanguageUnspecified {
		return original, false
	}
	target, ok := t.Override.code()
	if !ok {
		return original, false
	}

	stem, suffix := splitAtFirstDot(original)
	lowerStem := strings.ToLower(stem)
	if strings.HasPrefix(lowerStem, "ui/uld/logo") {
		return original, false
	}

	for _, code := range languageCodes {
		if strings.HasSuffix(lowerStem, "_"+code) {
			candidate := stem[:len(stem)-len(code)] + target + suffix
			if exists(candidate) {
				return candidate, true
			}
			return original, false
		}
		if mid := "/" + code + "/"; strings.Contains(lowerStem, mid) {
			pos := strings.Index(lowerStem, mid)
			candidate := stem[:pos] + "/" + target + "/" + stem[pos+len(mid):] + suffix
			if exists(candidate) {
				return candidate, true
			}
			return original, false
		}
	}
	return original, false
}

// LogOnce emits one Info line per distinct original path, the first
// time it's observed, when LogObserved is enabled.
func (t *LanguageHashTracker) LogOnce(original, rewritten string) {
	if t == nil || !t.LogObserved || t.Logger == nil {
		return
	}

	t.mu.Lock()
	_, seen := t.logged[original]
	if !seen {
		t.logged[original] = struct{}{}
	}
	t.mu.Unlock()
	if seen {
		return
	}

	entry := t.Logger.WithField("original", original)
	if rewritten != original {
		entry = entry.WithField("rewritten", rewritten)
	}
	entry.Info("intercept: observed filename hash key")
}

func splitAtFirstDot(path string) (stem, suffix string) {
	if i := strings.IndexByte(path, '.'); i != -1 {
		return path[:i], path[i:]
	}
	return path, ""
}
