package store

import (
	"fmt"
	"slices"

	"github.com/rs/zerolog"
)

type Panel string

const (
	PanelLeft   Panel = "left"
	PanelMiddle Panel = "middle"
	PanelRight  Panel = "right"
)

const (
	MinPanelSize = 10
	MaxPanelSize = 80
)

// PanelSizes are percentages that always sum to 100.
type PanelSizes struct {
	Left   int
	Middle int
	Right  int
}

func (p PanelSizes) get(panel Panel) int {
	switch panel {
	case PanelLeft:
		return p.Left
	case PanelMiddle:
		return p.Middle
	default:
		return p.Right
	}
}

func (p *PanelSizes) set(panel Panel, v int) {
	switch panel {
	case PanelLeft:
		p.Left = v
	case PanelMiddle:
		p.Middle = v
	default:
		p.Right = v
	}
}

// Resize sets panel to size, clamped to [MinPanelSize, MaxPanelSize]. The
// other two panels share the remainder in proportion to their current sizes,
// each keeping at least MinPanelSize.
func (p PanelSizes) Resize(panel Panel, size int) PanelSizes {
	size = min(max(size, MinPanelSize), MaxPanelSize)
	others := otherPanels(panel)
	a, b := p.get(others[0]), p.get(others[1])
	rem := 100 - size

	var na int
	if a+b <= 0 {
		na = rem / 2
	} else {
		na = (2*a*rem + (a + b)) / (2 * (a + b))
	}
	na = min(max(na, MinPanelSize), rem-MinPanelSize)

	p.set(panel, size)
	p.set(others[0], na)
	p.set(others[1], rem-na)
	return p
}

func otherPanels(panel Panel) [2]Panel {
	switch panel {
	case PanelLeft:
		return [2]Panel{PanelMiddle, PanelRight}
	case PanelMiddle:
		return [2]Panel{PanelLeft, PanelRight}
	default:
		return [2]Panel{PanelLeft, PanelMiddle}
	}
}

func validPanel(p Panel) bool {
	return p == PanelLeft || p == PanelMiddle || p == PanelRight
}

// Collapsed holds one flag per panel.
type Collapsed struct {
	Left   bool
	Middle bool
	Right  bool
}

func (c Collapsed) toggle(p Panel) Collapsed {
	switch p {
	case PanelLeft:
		c.Left = !c.Left
	case PanelMiddle:
		c.Middle = !c.Middle
	case PanelRight:
		c.Right = !c.Right
	}
	return c
}

// Highlight marks an extracted field in the document preview.
type Highlight struct {
	ID    string
	Field string
}

// LayoutState is ephemeral and never persisted.
type LayoutState struct {
	Panels         PanelSizes
	Collapsed      Collapsed
	Highlights     []Highlight
	SelectedFields []string
	SidebarOpen    bool
}

func DefaultLayout() LayoutState {
	return LayoutState{
		Panels:      PanelSizes{Left: 35, Middle: 30, Right: 35},
		SidebarOpen: true,
	}
}

func (s LayoutState) clone() LayoutState {
	s.Highlights = slices.Clone(s.Highlights)
	s.SelectedFields = slices.Clone(s.SelectedFields)
	return s
}

type LayoutStore struct {
	c *container[LayoutState]
}

func NewLayoutStore(log zerolog.Logger) *LayoutStore {
	return &LayoutStore{c: newContainer("layout", DefaultLayout(), log)}
}

func (s *LayoutStore) State() LayoutState { return s.c.snapshot() }

func (s *LayoutStore) Subscribe(fn func(LayoutState)) (cancel func()) { return s.c.subscribe(fn) }

func (s *LayoutStore) SetPanelSize(panel Panel, size int) error {
	if !validPanel(panel) {
		return fmt.Errorf("%w: %q", ErrInvalidPanel, panel)
	}
	s.c.apply("set_panel_size", PhaseLocal, func(st LayoutState) LayoutState {
		st.Panels = st.Panels.Resize(panel, size)
		return st
	})
	return nil
}

func (s *LayoutStore) TogglePanel(panel Panel) error {
	if !validPanel(panel) {
		return fmt.Errorf("%w: %q", ErrInvalidPanel, panel)
	}
	s.c.apply("toggle_panel", PhaseLocal, func(st LayoutState) LayoutState {
		st.Collapsed = st.Collapsed.toggle(panel)
		return st
	})
	return nil
}

func (s *LayoutStore) SetSelectedFields(fields []string) {
	s.c.apply("select_fields", PhaseLocal, func(st LayoutState) LayoutState {
		st.SelectedFields = slices.Clone(fields)
		return st
	})
}

// AddHighlight inserts h unless a highlight with the same id is present.
func (s *LayoutStore) AddHighlight(h Highlight) {
	s.c.apply("add_highlight", PhaseLocal, func(st LayoutState) LayoutState {
		if slices.ContainsFunc(st.Highlights, func(x Highlight) bool { return x.ID == h.ID }) {
			return st
		}
		st.Highlights = append(slices.Clip(st.Highlights), h)
		return st
	})
}

func (s *LayoutStore) RemoveHighlight(id string) {
	s.c.apply("remove_highlight", PhaseLocal, func(st LayoutState) LayoutState {
		st.Highlights = slices.DeleteFunc(slices.Clone(st.Highlights), func(x Highlight) bool { return x.ID == id })
		return st
	})
}

func (s *LayoutStore) ClearHighlights() {
	s.c.apply("clear_highlights", PhaseLocal, func(st LayoutState) LayoutState {
		st.Highlights = nil
		return st
	})
}

func (s *LayoutStore) ToggleSidebar() {
	s.c.apply("toggle_sidebar", PhaseLocal, func(st LayoutState) LayoutState {
		st.SidebarOpen = !st.SidebarOpen
		return st
	})
}

func (s *LayoutStore) Reset() {
	s.c.apply("reset", PhaseLocal, func(LayoutState) LayoutState { return DefaultLayout() })
}
