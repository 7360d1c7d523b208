// Package profile stores reusable conversion settings for a vendor export
// layout: the column mapping, time format, cutoffs and duplicate handling,
// plus the header the profile was saved from so new files can be matched
// against it.
//
// Profiles are YAML files, one per profile, in a single directory.
package profile

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/JonMunkholm/collarconv/internal/core"
)

// MatchThreshold is the minimum header overlap for a profile to be offered
// as a match.
const MatchThreshold = 0.7

var (
	ErrNotFound    = errors.New("profile not found")
	ErrInvalidName = errors.New("profile name must start with a letter or digit and contain only letters, digits, '.', '_' or '-'")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// Cutoff is a per-serial start date as the user typed it.
type Cutoff struct {
	Serial string `yaml:"serial" json:"serial"`
	Start  string `yaml:"start" json:"start"`
}

// Profile is one saved set of conversion settings.
type Profile struct {
	Name          string            `yaml:"name" json:"name"`
	Description   string            `yaml:"description,omitempty" json:"description,omitempty"`
	Mapping       core.FieldMapping `yaml:"mapping" json:"mapping"`
	TimeFormat    string            `yaml:"time_format,omitempty" json:"time_format,omitempty"`
	GlobalStart   string            `yaml:"global_start,omitempty" json:"global_start,omitempty"`
	Cutoffs       []Cutoff          `yaml:"cutoffs,omitempty" json:"cutoffs,omitempty"`
	FixDuplicates *bool             `yaml:"fix_duplicates,omitempty" json:"fix_duplicates,omitempty"`
	Headers       []string          `yaml:"headers,omitempty" json:"headers,omitempty"`
	CreatedAt     time.Time         `yaml:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `yaml:"updated_at" json:"updated_at"`
}

// Validate checks the name, the mapping, the time format and every cutoff.
func (p *Profile) Validate() error {
	if !namePattern.MatchString(p.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, p.Name)
	}
	if err := p.Mapping.Validate(); err != nil {
		return err
	}
	if _, err := core.NewTimeParser(p.TimeFormat); err != nil {
		return err
	}
	if _, err := p.CutoffSpec(); err != nil {
		return err
	}
	return nil
}

// CutoffSpec parses the stored global start and per-serial cutoffs.
func (p *Profile) CutoffSpec() (core.CutoffSpec, error) {
	var spec core.CutoffSpec

	if g := strings.TrimSpace(p.GlobalStart); g != "" {
		start, err := core.ParseCutoff("global start", g)
		if err != nil {
			return core.CutoffSpec{}, err
		}
		spec.Global = &start
	}

	for _, c := range p.Cutoffs {
		serial := strings.TrimSpace(c.Serial)
		if serial == "" {
			return core.CutoffSpec{}, core.ErrCutoffInput
		}
		start, err := core.ParseCutoff("start for "+serial, c.Start)
		if err != nil {
			return core.CutoffSpec{}, err
		}
		spec.Set(serial, start)
	}
	return spec, nil
}

// Dedup reports whether duplicates should be fixed, falling back to def
// when the profile does not say.
func (p *Profile) Dedup(def bool) bool {
	if p.FixDuplicates == nil {
		return def
	}
	return *p.FixDuplicates
}

// Apply fills the fields req leaves empty from the profile and adds the
// profile's per-serial cutoffs to sess. Values already set on req win;
// req.FixDuplicates is taken as the default for an unset dedup flag.
func (p *Profile) Apply(req core.ConvertRequest, sess *core.Session) (core.ConvertRequest, error) {
	req.Mapping = req.Mapping.Fill(p.Mapping)
	if req.TimeFormat == "" {
		req.TimeFormat = p.TimeFormat
	}
	if req.GlobalStart == "" {
		req.GlobalStart = p.GlobalStart
	}
	req.FixDuplicates = p.Dedup(req.FixDuplicates)

	for _, c := range p.Cutoffs {
		if err := sess.SetCutoff(c.Serial, c.Start); err != nil {
			return core.ConvertRequest{}, err
		}
	}
	return req, nil
}

// Match is a profile whose saved header overlaps a file's header.
type Match struct {
	Profile Profile `json:"profile"`
	Score   float64 `json:"score"`
}

// matchHeaders returns the share of the profile's headers present in
// columns, compared case-insensitively.
func matchHeaders(columns, profileHeaders []string) float64 {
	if len(profileHeaders) == 0 {
		return 0
	}

	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[strings.ToLower(strings.TrimSpace(c))] = true
	}

	matched := 0
	for _, h := range profileHeaders {
		if present[strings.ToLower(strings.TrimSpace(h))] {
			matched++
		}
	}
	return float64(matched) / float64(len(profileHeaders))
}
