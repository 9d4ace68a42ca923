// Package changelog loads the "what's new" release feed and renders it into a
// manual page, where it is indexed like any other content.
package changelog

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

// Feed is a list of releases plus the version range that is published.
type Feed struct {
	VersionRange Range     `yaml:"version_range" json:"version_range"`
	Releases     []Release `yaml:"releases" json:"releases"`
}

// Range bounds the published versions, inclusive. Empty bounds are open.
type Range struct {
	Min string `yaml:"min" json:"min"`
	Max string `yaml:"max" json:"max"`
}

// Release is one version's announcement.
type Release struct {
	Date        string    `yaml:"date" json:"date"`
	Version     string    `yaml:"version" json:"version"`
	Title       string    `yaml:"title" json:"title"`
	ModalTitle  string    `yaml:"modal_title" json:"modal_title,omitempty"`
	ManualTitle string    `yaml:"manual_title" json:"manual_title,omitempty"`
	Contents    []Content `yaml:"contents" json:"contents"`
}

// Content is one topic of a release. Text is Markdown.
type Content struct {
	Heading   string `yaml:"heading" json:"heading"`
	Text      string `yaml:"text" json:"text"`
	Image     string `yaml:"image" json:"image,omitempty"`
	Link      string `yaml:"link" json:"link,omitempty"`
	TicketIDs string `yaml:"ticket_ids" json:"ticket_ids,omitempty"`
}

// DisplayTitle is the heading used on the manual page.
func (r Release) DisplayTitle() string {
	if r.ManualTitle != "" {
		return r.ManualTitle
	}
	return r.Title
}

// Contains reports whether version falls inside the range.
func (r Range) Contains(version string) bool {
	if r.Min != "" && CompareVersions(version, r.Min) < 0 {
		return false
	}
	if r.Max != "" && CompareVersions(version, r.Max) > 0 {
		return false
	}
	return true
}

// Published returns the releases inside the version range, newest first.
// Releases with equal versions keep their feed order.
func (f *Feed) Published() []Release {
	var out []Release
	for _, r := range f.Releases {
		if f.VersionRange.Contains(r.Version) {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b Release) int {
		return CompareVersions(b.Version, a.Version)
	})
	return out
}

// CompareVersions compares dotted numeric versions segment by segment, so
// "1.10" is newer than "1.9". Missing segments count as zero and
// non-numeric segments compare as strings.
func CompareVersions(a, b string) int {
	as := strings.Split(strings.TrimPrefix(strings.TrimSpace(a), "v"), ".")
	bs := strings.Split(strings.TrimPrefix(strings.TrimSpace(b), "v"), ".")

	for i := 0; i < max(len(as), len(bs)); i++ {
		x, y := segment(as, i), segment(bs, i)
		xn, xerr := strconv.Atoi(x)
		yn, yerr := strconv.Atoi(y)
		if xerr == nil && yerr == nil {
			if c := cmp.Compare(xn, yn); c != 0 {
				return c
			}
			continue
		}
		if c := strings.Compare(x, y); c != 0 {
			return c
		}
	}
	return 0
}

func segment(parts []string, i int) string {
	if i < len(parts) && parts[i] != "" {
		return parts[i]
	}
	return "0"
}
