package store

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanelSizes_Resize(t *testing.T) {
	def := DefaultLayout().Panels
	tests := []struct {
		name  string
		panel Panel
		size  int
		want  PanelSizes
	}{
		{"grow left", PanelLeft, 50, PanelSizes{Left: 50, Middle: 23, Right: 27}},
		{"clamp high", PanelMiddle, 95, PanelSizes{Left: 10, Middle: 80, Right: 10}},
		{"clamp low", PanelRight, 2, PanelSizes{Left: 48, Middle: 42, Right: 10}},
		{"unchanged", PanelLeft, 35, def},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, def.Resize(tt.panel, tt.size))
		})
	}
}

func TestPanelSizes_AlwaysSumTo100(t *testing.T) {
	p := DefaultLayout().Panels
	panels := []Panel{PanelLeft, PanelMiddle, PanelRight}
	for i := 0; i < 300; i++ {
		p = p.Resize(panels[i%3], (i*37)%120-10)
		require.Equal(t, 100, p.Left+p.Middle+p.Right, "step %d: %+v", i, p)
		for _, v := range []int{p.Left, p.Middle, p.Right} {
			require.GreaterOrEqual(t, v, MinPanelSize)
			require.LessOrEqual(t, v, MaxPanelSize)
		}
	}
}

func TestLayoutStore(t *testing.T) {
	s := NewLayoutStore(zerolog.Nop())
	require.ErrorIs(t, s.SetPanelSize("top", 20), ErrInvalidPanel)
	require.NoError(t, s.SetPanelSize(PanelLeft, 50))
	require.NoError(t, s.TogglePanel(PanelRight))

	s.AddHighlight(Highlight{ID: "h1", Field: "total"})
	s.AddHighlight(Highlight{ID: "h1", Field: "total"})
	s.AddHighlight(Highlight{ID: "h2", Field: "vendor.name"})
	s.RemoveHighlight("h1")
	s.SetSelectedFields([]string{"total"})
	s.ToggleSidebar()

	st := s.State()
	assert.Equal(t, PanelSizes{Left: 50, Middle: 23, Right: 27}, st.Panels)
	assert.True(t, st.Collapsed.Right)
	assert.Equal(t, []Highlight{{ID: "h2", Field: "vendor.name"}}, st.Highlights)
	assert.Equal(t, []string{"total"}, st.SelectedFields)
	assert.False(t, st.SidebarOpen)

	s.ClearHighlights()
	assert.Empty(t, s.State().Highlights)

	s.Reset()
	assert.Equal(t, DefaultLayout(), s.State())
}
