/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package sqpack

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func newTestLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.InfoLevel)
	return logger, hook
}

func TestLanguageHashTrackerRewritesSuffixSegment(t *testing.T) {
	tracker := NewLanguageHashTracker(LanguageEnglish, false, nil)

	existing := map[string]bool{"ui/icon/062000/062042_en.tex": true}
	rewritten, ok := tracker.Rewrite("ui/icon/062000/062042_de.tex", func(c string) bool { return existing[c] })
	assert.True(t, ok)
	assert.Equal(t, "ui/icon/062000/062042_en.tex", rewritten)
}

func TestLanguageHashTrackerRewritesMiddleSegment(t *testing.T) {
	tracker := NewLanguageHashTracker(LanguageGerman, false, nil)

	existing := map[string]bool{"common/font/de/font1.tex": true}
	rewritten, ok := tracker.Rewrite("common/font/fr/font1.tex", func(c string) bool { return existing[c] })
	assert.True(t, ok)
	assert.Equal(t, "common/font/de/font1.tex", rewritten)
}

func TestLanguageHashTrackerLeavesLogoUntouched(t *testing.T) {
	tracker := NewLanguageHashTracker(LanguageEnglish, false, nil)
	rewritten, ok := tracker.Rewrite("ui/uld/logo_de.tex", func(string) bool { return true })
	assert.False(t, ok)
	assert.Equal(t, "ui/uld/logo_de.tex", rewritten)
}

func TestLanguageHashTrackerNoSubstitutionWhenCandidateMissing(t *testing.T) {
	tracker := NewLanguageHashTracker(LanguageEnglish, false, nil)
	rewritten, ok := tracker.Rewrite("ui/icon/062000/062042_de.tex", func(string) bool { return false })
	assert.False(t, ok)
	assert.Equal(t, "ui/icon/062000/062042_de.tex", rewritten)
}

func TestLanguageHashTrackerNoOverrideIsNoOp(t *testing.T) {
	tracker := NewLanguageHashTracker(LanguageUnspecified, true, nil)
	rewritten, ok := tracker.Rewrite("ui/icon/062000/062042_de.tex", func(string) bool { return true })
	assert.False(t, ok)
	assert.Equal(t, "ui/icon/062000/062042_de.tex", rewritten)
}

func TestLanguageHashTrackerLogOnceDeduplicates(t *testing.T) {
	logger, hook := newTestLogger()
	tracker := NewLanguageHashTracker(LanguageEnglish, true, logger)

	tracker.LogOnce("chara/weapon/w0001.mdl", "chara/weapon/w0001.mdl")
	tracker.LogOnce("chara/weapon/w0001.mdl", "chara/weapon/w0001.mdl")
	assert.Len(t, hook.Entries, 1)
}

func TestParseLanguage(t *testing.T) {
	assert.Equal(t, LanguageEnglish, ParseLanguage("en"))
	assert.Equal(t, LanguageGerman, ParseLanguage("DE"))
	assert.Equal(t, LanguageUnspecified, ParseLanguage("xx"))
	assert.Equal(t, LanguageUnspecified, ParseLanguage(""))
}
