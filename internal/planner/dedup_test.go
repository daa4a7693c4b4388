package planner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldtlabs/stratad/internal/completion"
	"github.com/veldtlabs/stratad/internal/hierarchy"
	"github.com/veldtlabs/stratad/internal/vectorstore"
)

func leveledResult(level hierarchy.Level, content, source, page, org, sub, ind string) leveled {
	meta := map[string]string{
		vectorstore.MetaSource: source,
	}
	if page != "" {
		meta[vectorstore.MetaPage] = page
	}
	if org != "" {
		meta[hierarchy.MetaOrganization] = org
	}
	if sub != "" {
		meta[hierarchy.MetaSubunit] = sub
	}
	if ind != "" {
		meta[hierarchy.MetaIndividual] = ind
	}
	return leveled{
		level:  level,
		result: vectorstore.SearchResult{Content: content, Metadata: meta},
	}
}

func TestDedup_KeepsFirstOccurrence(t *testing.T) {
	a := leveledResult(hierarchy.LevelIndividual, "same text", "acme/doc.md", "1", "acme", "sales", "jordan")
	b := leveledResult(hierarchy.LevelUnscoped, "same text", "acme/doc.md", "1", "acme", "sales", "jordan")

	out := dedup([]leveled{a, b})
	require.Len(t, out, 1)
	assert.Equal(t, hierarchy.LevelIndividual, out[0].level)
}

func TestDedup_DistinguishesEveryKeyComponent(t *testing.T) {
	base := leveledResult(hierarchy.LevelOrganization, "text", "acme/doc.md", "1", "acme", "", "")
	variants := []leveled{
		leveledResult(hierarchy.LevelOrganization, "other text", "acme/doc.md", "1", "acme", "", ""),
		leveledResult(hierarchy.LevelOrganization, "text", "acme/other.md", "1", "acme", "", ""),
		leveledResult(hierarchy.LevelOrganization, "text", "acme/doc.md", "2", "acme", "", ""),
		leveledResult(hierarchy.LevelOrganization, "text", "acme/doc.md", "1", "acme", "sales", ""),
		leveledResult(hierarchy.LevelOrganization, "text", "acme/doc.md", "1", "acme", "sales", "jordan"),
	}

	out := dedup(append([]leveled{base}, variants...))
	assert.Len(t, out, len(variants)+1)
}

func TestDedup_Idempotent(t *testing.T) {
	in := []leveled{
		leveledResult(hierarchy.LevelSubunit, "a", "s1", "", "acme", "sales", ""),
		leveledResult(hierarchy.LevelOrganization, "b", "s2", "", "acme", "", ""),
	}
	once := dedup(in)
	twice := dedup(once)
	assert.Equal(t, once, twice)
}

func TestDedup_PreservesOrder(t *testing.T) {
	in := []leveled{
		leveledResult(hierarchy.LevelIndividual, "first", "s", "", "acme", "sales", "jordan"),
		leveledResult(hierarchy.LevelSubunit, "second", "s", "", "acme", "sales", ""),
		leveledResult(hierarchy.LevelOrganization, "third", "s", "", "acme", "", ""),
	}
	out := dedup(in)
	require.Len(t, out, 3)
	assert.Equal(t, "first", out[0].result.Content)
	assert.Equal(t, "second", out[1].result.Content)
	assert.Equal(t, "third", out[2].result.Content)
}

func TestSelectLevels(t *testing.T) {
	tests := []struct {
		name  string
		scope hierarchy.Path
		want  []hierarchy.Level
	}{
		{
			name:  "full scope queries every level",
			scope: hierarchy.Path{Organization: "acme", Subunit: "sales", Individual: "jordan"},
			want: []hierarchy.Level{
				hierarchy.LevelIndividual,
				hierarchy.LevelSubunit,
				hierarchy.LevelOrganization,
				hierarchy.LevelUnscoped,
			},
		},
		{
			name:  "subunit scope skips individual",
			scope: hierarchy.Path{Organization: "acme", Subunit: "sales"},
			want: []hierarchy.Level{
				hierarchy.LevelSubunit,
				hierarchy.LevelOrganization,
				hierarchy.LevelUnscoped,
			},
		},
		{
			name:  "organization scope",
			scope: hierarchy.Path{Organization: "acme"},
			want: []hierarchy.Level{
				hierarchy.LevelOrganization,
				hierarchy.LevelUnscoped,
			},
		},
		{
			name:  "empty scope still queries unscoped",
			scope: hierarchy.Path{},
			want:  []hierarchy.Level{hierarchy.LevelUnscoped},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectLevels(tt.scope))
		})
	}
}

func TestBuildMessages(t *testing.T) {
	sections := []Section{
		{Level: hierarchy.LevelIndividual, Content: "jordan's quota"},
		{Level: hierarchy.LevelOrganization, Content: "company handbook"},
	}
	history := []Exchange{{Question: "earlier q", Answer: "earlier a"}}

	messages := buildMessages("acme", sections, history, "current q")
	require.Len(t, messages, 4)

	system := messages[0]
	assert.Equal(t, completion.RoleSystem, system.Role)
	assert.Contains(t, system.Content, "acme")
	assert.Contains(t, system.Content, "INDIVIDUAL-SPECIFIC INFORMATION")
	assert.Contains(t, system.Content, "jordan's quota")
	assert.Contains(t, system.Content, "ORGANIZATION-LEVEL INFORMATION")
	assert.Contains(t, system.Content, "company handbook")

	// Most specific section comes first.
	assert.Less(t,
		strings.Index(system.Content, "INDIVIDUAL-SPECIFIC INFORMATION"),
		strings.Index(system.Content, "ORGANIZATION-LEVEL INFORMATION"))

	assert.Equal(t, completion.RoleUser, messages[1].Role)
	assert.Equal(t, "earlier q", messages[1].Content)
	assert.Equal(t, completion.RoleAssistant, messages[2].Role)
	assert.Equal(t, "earlier a", messages[2].Content)
	assert.Equal(t, completion.RoleUser, messages[3].Role)
	assert.Equal(t, "current q", messages[3].Content)
}
