package store

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ThemeStoreName is the persistence name of the theme store.
const ThemeStoreName = "theme"

type ThemeMode string

const (
	ThemeLight ThemeMode = "light"
	ThemeDark  ThemeMode = "dark"
)

// ParseThemeMode validates s.
func ParseThemeMode(s string) (ThemeMode, error) {
	switch m := ThemeMode(s); m {
	case ThemeLight, ThemeDark:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTheme, s)
	}
}

type ThemeState struct {
	Mode ThemeMode `json:"mode"`
}

func (s ThemeState) clone() ThemeState { return s }

// Toggle flips between light and dark.
func (s ThemeState) Toggle() ThemeState {
	if s.Mode == ThemeDark {
		s.Mode = ThemeLight
	} else {
		s.Mode = ThemeDark
	}
	return s
}

// ThemeStore holds the persisted presentation preference.
type ThemeStore struct {
	c *container[ThemeState]
}

func NewThemeStore(log zerolog.Logger) *ThemeStore {
	return &ThemeStore{c: newContainer(ThemeStoreName, ThemeState{Mode: ThemeLight}, log)}
}

func (s *ThemeStore) State() ThemeState { return s.c.snapshot() }

func (s *ThemeStore) Mode() ThemeMode { return s.State().Mode }

func (s *ThemeStore) Subscribe(fn func(ThemeState)) (cancel func()) { return s.c.subscribe(fn) }

// Set replaces the mode. Unknown modes leave the store unchanged.
func (s *ThemeStore) Set(mode ThemeMode) error {
	if _, err := ParseThemeMode(string(mode)); err != nil {
		return err
	}
	s.c.apply("set", PhaseLocal, func(st ThemeState) ThemeState {
		st.Mode = mode
		return st
	})
	return nil
}

// Toggle flips the mode and returns the new value.
func (s *ThemeStore) Toggle() ThemeMode {
	var mode ThemeMode
	s.c.apply("toggle", PhaseLocal, func(st ThemeState) ThemeState {
		st = st.Toggle()
		mode = st.Mode
		return st
	})
	return mode
}

func (s *ThemeStore) PersistName() string { return ThemeStoreName }

func (s *ThemeStore) Snapshot() (json.RawMessage, error) { return json.Marshal(s.State()) }

func (s *ThemeStore) Restore(raw json.RawMessage) error {
	var st ThemeState
	if err := json.Unmarshal(raw, &st); err != nil {
		return errors.Wrap(err, "decode theme")
	}
	mode, err := ParseThemeMode(string(st.Mode))
	if err != nil {
		return err
	}
	s.c.apply("restore", PhaseLocal, func(ThemeState) ThemeState { return ThemeState{Mode: mode} })
	return nil
}

func (s *ThemeStore) OnChange(fn func()) (cancel func()) {
	return s.c.subscribe(func(ThemeState) { fn() })
}
