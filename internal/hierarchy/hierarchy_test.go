package hierarchy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldtlabs/stratad/internal/hierarchy"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name         string
		organization string
		subunit      string
		individual   string
		wantErr      bool
	}{
		{name: "organization only", organization: "acme"},
		{name: "organization and subunit", organization: "acme", subunit: "sales"},
		{name: "full path", organization: "acme", subunit: "sales", individual: "jordan"},
		{name: "empty path", wantErr: false},
		{name: "individual without subunit", organization: "acme", individual: "jordan", wantErr: true},
		{name: "subunit without organization", subunit: "sales", wantErr: true},
		{name: "individual without organization", subunit: "sales", individual: "jordan", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := hierarchy.New(tt.organization, tt.subunit, tt.individual)
			if tt.wantErr {
				require.ErrorIs(t, err, hierarchy.ErrBrokenHierarchy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.organization, p.Organization)
			assert.Equal(t, tt.subunit, p.Subunit)
			assert.Equal(t, tt.individual, p.Individual)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		rel  string
		want hierarchy.Path
	}{
		{
			name: "file at root is unscoped",
			rel:  "handbook.md",
			want: hierarchy.Path{},
		},
		{
			name: "organization level",
			rel:  "acme/handbook.md",
			want: hierarchy.Path{Organization: "acme"},
		},
		{
			name: "subunit level",
			rel:  "acme/sales/targets.pdf",
			want: hierarchy.Path{Organization: "acme", Subunit: "sales"},
		},
		{
			name: "individual level",
			rel:  "acme/sales/jordan/review.docx",
			want: hierarchy.Path{Organization: "acme", Subunit: "sales", Individual: "jordan"},
		},
		{
			name: "segments beyond the third are not levels",
			rel:  "acme/sales/jordan/2025/q1/notes.txt",
			want: hierarchy.Path{Organization: "acme", Subunit: "sales", Individual: "jordan"},
		},
		{
			name: "redundant separators are cleaned",
			rel:  "acme//sales/./targets.pdf",
			want: hierarchy.Path{Organization: "acme", Subunit: "sales"},
		},
		{
			name: "empty path",
			rel:  "",
			want: hierarchy.Path{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hierarchy.Classify(tt.rel))
		})
	}
}

func TestPathKey(t *testing.T) {
	tests := []struct {
		name string
		path hierarchy.Path
		want string
	}{
		{name: "zero path", path: hierarchy.Path{}, want: ""},
		{name: "organization", path: hierarchy.Path{Organization: "acme"}, want: "acme"},
		{
			name: "subunit",
			path: hierarchy.Path{Organization: "acme", Subunit: "sales"},
			want: "acme|sales",
		},
		{
			name: "individual",
			path: hierarchy.Path{Organization: "acme", Subunit: "sales", Individual: "jordan"},
			want: "acme|sales|jordan",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.path.Key())
		})
	}
}

func TestPathKeyDeterministic(t *testing.T) {
	a := hierarchy.Path{Organization: "acme", Subunit: "sales", Individual: "jordan"}
	b := hierarchy.Path{Organization: "acme", Subunit: "sales", Individual: "jordan"}
	assert.Equal(t, a.Key(), b.Key())
}

func TestPathLevel(t *testing.T) {
	assert.Equal(t, hierarchy.LevelUnscoped, hierarchy.Path{}.Level())
	assert.Equal(t, hierarchy.LevelOrganization, hierarchy.Path{Organization: "acme"}.Level())
	assert.Equal(t, hierarchy.LevelSubunit,
		hierarchy.Path{Organization: "acme", Subunit: "sales"}.Level())
	assert.Equal(t, hierarchy.LevelIndividual,
		hierarchy.Path{Organization: "acme", Subunit: "sales", Individual: "jordan"}.Level())
}

func TestPathMetadata(t *testing.T) {
	t.Run("full path", func(t *testing.T) {
		p := hierarchy.Path{Organization: "acme", Subunit: "sales", Individual: "jordan"}
		meta := p.Metadata()
		assert.Equal(t, "acme", meta[hierarchy.MetaOrganization])
		assert.Equal(t, "sales", meta[hierarchy.MetaSubunit])
		assert.Equal(t, "jordan", meta[hierarchy.MetaIndividual])
		assert.Equal(t, "acme|sales|jordan", meta[hierarchy.MetaKey])
	})

	t.Run("absent levels produce no entries", func(t *testing.T) {
		meta := hierarchy.Path{Organization: "acme"}.Metadata()
		assert.NotContains(t, meta, hierarchy.MetaSubunit)
		assert.NotContains(t, meta, hierarchy.MetaIndividual)
		assert.Equal(t, "acme", meta[hierarchy.MetaKey])
	})

	t.Run("zero path is empty", func(t *testing.T) {
		assert.Empty(t, hierarchy.Path{}.Metadata())
	})
}

func TestPathTruncate(t *testing.T) {
	full := hierarchy.Path{Organization: "acme", Subunit: "sales", Individual: "jordan"}

	assert.Equal(t, full, full.Truncate(hierarchy.LevelIndividual))
	assert.Equal(t, hierarchy.Path{Organization: "acme", Subunit: "sales"},
		full.Truncate(hierarchy.LevelSubunit))
	assert.Equal(t, hierarchy.Path{Organization: "acme"},
		full.Truncate(hierarchy.LevelOrganization))
	assert.Equal(t, hierarchy.Path{}, full.Truncate(hierarchy.LevelUnscoped))
}

func TestIsZero(t *testing.T) {
	assert.True(t, hierarchy.Path{}.IsZero())
	assert.False(t, hierarchy.Path{Organization: "acme"}.IsZero())
}
