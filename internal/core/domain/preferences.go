package domain

import "errors"

// Theme selects the visual theme projected onto the environment.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

var ErrInvalidTheme = errors.New("invalid theme")

// Valid reports whether t is one of the three known themes.
func (t Theme) Valid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}

// Preferences is the fully-persisted presentation state. No cross-field
// invariants; each field is independently mutable.
type Preferences struct {
	Theme       Theme  `json:"theme"`
	SidebarOpen bool   `json:"sidebar_open"`
	Locale      string `json:"locale"`
}

// DefaultPreferences is the first-run state.
func DefaultPreferences(locale string) Preferences {
	if locale == "" {
		locale = "en"
	}
	return Preferences{Theme: ThemeSystem, SidebarOpen: true, Locale: locale}
}
