package service

import (
	"github.com/rs/zerolog"

	"github.com/lt-jshipley/appcore/internal/core/domain"
	"github.com/lt-jshipley/appcore/internal/core/ports"
	"github.com/lt-jshipley/appcore/internal/core/store"
)

const preferencesKey = "preferences"

// PreferenceStore owns presentation preferences, fully persisted and
// independent of the session. State() is a plain synchronous call so a
// bootstrap path can apply the persisted theme before first paint.
type PreferenceStore struct {
	store *store.Store[domain.Preferences]
	log   zerolog.Logger
}

// NewPreferenceStore hydrates persisted preferences, falling back to
// defaults on first run, and wires write-through persistence for every
// subsequent mutation.
func NewPreferenceStore(kv ports.KV, defaultLocale string, log zerolog.Logger) *PreferenceStore {
	initial := domain.DefaultPreferences(defaultLocale)
	store.Hydrate(kv, preferencesKey, &initial, log)

	s := store.New(initial)
	store.Persist(s, kv, preferencesKey, func(p domain.Preferences) domain.Preferences {
		return p
	}, log)

	return &PreferenceStore{store: s, log: log}
}

// State returns a snapshot of the current preferences.
func (p *PreferenceStore) State() domain.Preferences {
	return p.store.GetState()
}

// Subscribe registers fn for notification after every mutation.
func (p *PreferenceStore) Subscribe(fn func(domain.Preferences)) func() {
	return p.store.Subscribe(fn)
}

// SetTheme switches the theme. Unknown themes are rejected.
func (p *PreferenceStore) SetTheme(t domain.Theme) error {
	if !t.Valid() {
		return domain.ErrInvalidTheme
	}
	p.store.SetState(func(cur domain.Preferences) domain.Preferences {
		cur.Theme = t
		return cur
	})
	return nil
}

// SetLocale switches the active translation language.
func (p *PreferenceStore) SetLocale(locale string) {
	p.store.SetState(func(cur domain.Preferences) domain.Preferences {
		cur.Locale = locale
		return cur
	})
}

// SetSidebarOpen sets the sidebar visibility flag.
func (p *PreferenceStore) SetSidebarOpen(open bool) {
	p.store.SetState(func(cur domain.Preferences) domain.Preferences {
		cur.SidebarOpen = open
		return cur
	})
}

// ToggleSidebar flips the sidebar visibility flag.
func (p *PreferenceStore) ToggleSidebar() {
	p.store.SetState(func(cur domain.Preferences) domain.Preferences {
		cur.SidebarOpen = !cur.SidebarOpen
		return cur
	})
}
