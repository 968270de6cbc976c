// Package classifier maps release tag and name text to release metadata.
// Classification is a pure function: identical inputs always yield identical
// metadata and no side effects occur.
package classifier

import (
	"regexp"
	"strings"

	"github.com/dukex/shiphook/pkg/models"
)

var (
	multiTargetPattern = regexp.MustCompile(`\+([a-z]+)`)
	versionPattern     = regexp.MustCompile(`^\d+\.\d+\.\d+`)
)

// prereleaseMarkers are matched as "-<marker>" in the v-stripped tag.
var prereleaseMarkers = []string{"alpha", "beta", "rc", "pre", "dev"}

// keywordEntry pairs a target type with its matching keywords. The table is
// an ordered slice so first-match priority stays deterministic.
type keywordEntry struct {
	target   models.ReleaseTarget
	keywords []string
}

var keywordTable = []keywordEntry{
	{models.TargetMobile, []string{"mobile", "ios", "android", "app"}},
	{models.TargetDesktop, []string{"desktop", "windows", "macos", "linux", "electron"}},
	{models.TargetCloud, []string{"cloud", "server", "api", "service"}},
	{models.TargetSDK, []string{"sdk", "library", "package", "npm", "pip"}},
}

// Classify derives release metadata from a tag and release name.
//
// Multi-target tokens of the form "+<target>" take precedence; when present
// the type is the general umbrella marker and the targets are the
// de-duplicated token values. Without tokens, the ordered keyword table
// decides a single target, defaulting to general. The version is the longest
// MAJOR.MINOR.PATCH prefix of the v-stripped tag, or the whole v-stripped
// tag when no such prefix exists.
func Classify(tag, name string) (*models.ReleaseMetadata, error) {
	combined := strings.ToLower(tag) + " " + strings.ToLower(name)

	targets, err := multiTargets(combined)
	if err != nil {
		return nil, err
	}

	releaseType := models.TargetGeneral

	if len(targets) == 0 {
		releaseType = matchKeywordTarget(combined)
		targets = []models.ReleaseTarget{releaseType}
	}

	stripped := strings.TrimPrefix(tag, "v")

	return &models.ReleaseMetadata{
		Type:       releaseType,
		Targets:    targets,
		Version:    extractVersion(stripped),
		Tag:        tag,
		Name:       name,
		Prerelease: isPrerelease(stripped),
	}, nil
}

// multiTargets collects the de-duplicated valid "+token" targets from text.
// More than models.MaxTargets valid tokens is a validation error naming the
// excess set.
func multiTargets(text string) ([]models.ReleaseTarget, error) {
	matches := multiTargetPattern.FindAllStringSubmatch(text, -1)

	var targets []models.ReleaseTarget

	seen := make(map[models.ReleaseTarget]struct{})

	for _, match := range matches {
		if !models.IsKnownTarget(match[1]) {
			continue
		}

		target := models.ReleaseTarget(match[1])
		if _, dup := seen[target]; dup {
			continue
		}

		seen[target] = struct{}{}
		targets = append(targets, target)
	}

	if len(targets) > models.MaxTargets {
		names := make([]string, 0, len(targets))
		for _, t := range targets {
			names = append(names, string(t))
		}

		return nil, models.NewValidationError(
			"targets",
			"too many release targets: "+strings.Join(names, ", "),
			models.ErrTooManyTargets,
		)
	}

	return targets, nil
}

// matchKeywordTarget returns the first table entry whose any keyword occurs
// in text, or general when nothing matches.
func matchKeywordTarget(text string) models.ReleaseTarget {
	for _, entry := range keywordTable {
		for _, keyword := range entry.keywords {
			if strings.Contains(text, keyword) {
				return entry.target
			}
		}
	}

	return models.TargetGeneral
}

func extractVersion(strippedTag string) string {
	if version := versionPattern.FindString(strippedTag); version != "" {
		return version
	}

	return strippedTag
}

func isPrerelease(strippedTag string) bool {
	for _, marker := range prereleaseMarkers {
		if strings.Contains(strippedTag, "-"+marker) {
			return true
		}
	}

	return false
}
