// Package hierarchy classifies documents into the three-level tenant
// hierarchy (organization, subunit, individual) and derives the canonical
// key used for exact-match retrieval filters.
package hierarchy

import (
	"errors"
	"path/filepath"
	"strings"
)

// KeySeparator joins the present hierarchy levels into a HierarchyKey.
const KeySeparator = "|"

// Metadata keys attached to chunks. MetaKey is the single source of truth
// for scope membership; the per-level keys are redundant views of the same
// path and are kept in sync by Path.Metadata.
const (
	MetaOrganization = "organization"
	MetaSubunit      = "subunit"
	MetaIndividual   = "individual"
	MetaKey          = "hierarchy_key"
)

// Level names a retrieval scope, from most to least specific.
type Level string

const (
	LevelIndividual   Level = "individual"
	LevelSubunit      Level = "subunit"
	LevelOrganization Level = "organization"
	LevelUnscoped     Level = "unscoped"
)

// Levels lists all levels in descending specificity.
var Levels = []Level{LevelIndividual, LevelSubunit, LevelOrganization, LevelUnscoped}

// ErrBrokenHierarchy is returned when a level is set below an absent level
// (an individual without a subunit, or anything without an organization).
var ErrBrokenHierarchy = errors.New("hierarchy level set below an absent level")

// Path is an ordered tuple of up to three identifiers locating content in
// the tenant hierarchy. Missing trailing levels are empty strings; a level
// below an absent level is always absent.
type Path struct {
	Organization string
	Subunit      string
	Individual   string
}

// New builds a Path from request fields, rejecting combinations that break
// the hierarchy invariant.
func New(organization, subunit, individual string) (Path, error) {
	p := Path{Organization: organization, Subunit: subunit, Individual: individual}
	if (p.Individual != "" && p.Subunit == "") || (p.Subunit != "" && p.Organization == "") {
		return Path{}, ErrBrokenHierarchy
	}
	return p, nil
}

// Classify derives a Path from a file path relative to the knowledge root.
// The first segment maps to the organization, the second to the subunit,
// the third to the individual; deeper segments are not part of the
// hierarchy. The final segment (the file name) is never a level. Any path
// is classifiable; a file directly at the root yields a zero Path.
func Classify(rel string) Path {
	rel = filepath.ToSlash(filepath.Clean(rel))
	if rel == "." || rel == "/" || rel == "" {
		return Path{}
	}
	segments := strings.Split(strings.Trim(rel, "/"), "/")
	// Drop the file name; only directory segments carry hierarchy.
	dirs := segments[:len(segments)-1]

	var p Path
	if len(dirs) > 0 {
		p.Organization = dirs[0]
	}
	if len(dirs) > 1 {
		p.Subunit = dirs[1]
	}
	if len(dirs) > 2 {
		p.Individual = dirs[2]
	}
	return p
}

// IsZero reports whether no level is set (unscoped content at the root).
func (p Path) IsZero() bool {
	return p.Organization == "" && p.Subunit == "" && p.Individual == ""
}

// Key returns the canonical string encoding of the present levels, joined
// by KeySeparator. Absent trailing levels are omitted, never encoded as
// placeholders. Equal Paths always produce byte-identical keys.
func (p Path) Key() string {
	if p.Organization == "" {
		return ""
	}
	parts := []string{p.Organization}
	if p.Subunit != "" {
		parts = append(parts, p.Subunit)
		if p.Individual != "" {
			parts = append(parts, p.Individual)
		}
	}
	return strings.Join(parts, KeySeparator)
}

// Level returns the most specific level present in the path.
func (p Path) Level() Level {
	switch {
	case p.Individual != "":
		return LevelIndividual
	case p.Subunit != "":
		return LevelSubunit
	case p.Organization != "":
		return LevelOrganization
	default:
		return LevelUnscoped
	}
}

// Metadata returns the path as chunk metadata: one key per present level
// plus the derived hierarchy key. Absent levels produce no entry so that
// filter predicates never match against empty values.
func (p Path) Metadata() map[string]string {
	meta := make(map[string]string, 4)
	if p.Organization != "" {
		meta[MetaOrganization] = p.Organization
		meta[MetaKey] = p.Key()
	}
	if p.Subunit != "" {
		meta[MetaSubunit] = p.Subunit
	}
	if p.Individual != "" {
		meta[MetaIndividual] = p.Individual
	}
	return meta
}

// Truncate returns the path cut down to the given level: LevelOrganization
// drops subunit and individual, LevelSubunit drops individual, and
// LevelUnscoped drops everything. Used to build per-level filter keys.
func (p Path) Truncate(level Level) Path {
	switch level {
	case LevelIndividual:
		return p
	case LevelSubunit:
		return Path{Organization: p.Organization, Subunit: p.Subunit}
	case LevelOrganization:
		return Path{Organization: p.Organization}
	default:
		return Path{}
	}
}
