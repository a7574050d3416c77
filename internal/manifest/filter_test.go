package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selectedPaths(m *Manifest, f *Filter) []string {
	var out []string
	for _, p := range m.Projects() {
		if f.Selected(p) {
			out = append(out, p.LocalPath())
		}
	}
	return out
}

func TestFilter(t *testing.T) {
	m, err := load(t, sampleManifest)
	require.NoError(t, err)

	tests := []struct {
		name    string
		include []string
		exclude []string
		only    []string
		want    []string
	}{
		{
			name: "no patterns selects enabled projects",
			want: []string{"applications/mobile/android", "applications/mobile/ios", "libs/core", "libs/net", "tools", "vendor/sdk"},
		},
		{
			name:    "include",
			include: []string{"libs/*"},
			want:    []string{"libs/core", "libs/net"},
		},
		{
			name:    "super-asterisk crosses separators",
			include: []string{"applications/**"},
			want:    []string{"applications/mobile/android", "applications/mobile/ios"},
		},
		{
			name:    "exclude wins over include",
			include: []string{"libs/*"},
			exclude: []string{"*/net"},
			want:    []string{"libs/core"},
		},
		{
			name:    "single asterisk stays within a segment",
			exclude: []string{"*"},
			want:    []string{"applications/mobile/android", "applications/mobile/ios", "libs/core", "libs/net", "vendor/sdk"},
		},
		{
			name: "explicit subset",
			only: []string{"tools", "libs/net/"},
			want: []string{"libs/net", "tools"},
		},
		{
			name: "disabled project stays unselected when requested",
			only: []string{"old"},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFilter(tt.include, tt.exclude)
			require.NoError(t, err)
			assert.Equal(t, tt.want, selectedPaths(m, f.Only(tt.only)))
		})
	}
}

func TestNilFilter(t *testing.T) {
	m, err := load(t, sampleManifest)
	require.NoError(t, err)

	var f *Filter
	assert.Len(t, selectedPaths(m, f), 6)
	assert.Equal(t, []string{"tools"}, selectedPaths(m, f.Only([]string{"tools"})))
}

func TestNewFilterRejectsBadPattern(t *testing.T) {
	_, err := NewFilter([]string{"libs/[a-"}, nil)
	require.Error(t, err)
}
