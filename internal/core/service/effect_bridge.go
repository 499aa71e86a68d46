package service

import "github.com/lt-jshipley/appcore/internal/core/domain"

// ThemeApplier projects the selected theme onto the environment (a terminal
// palette, a webview class flag). Implementations that attach external
// listeners (e.g. a system dark-mode watcher) should also implement Close;
// the bridge's teardown calls it.
type ThemeApplier interface {
	ApplyTheme(t domain.Theme)
}

// LocaleApplier activates a translation language in the presentation layer.
type LocaleApplier interface {
	ApplyLocale(locale string)
}

// BindTheme applies the current theme immediately, then re-applies on every
// change to the theme field. Other preference mutations do not re-trigger
// the applier. The returned teardown detaches the subscription and closes
// the applier when it holds external listeners.
func BindTheme(prefs *PreferenceStore, a ThemeApplier) (teardown func()) {
	last := prefs.State().Theme
	a.ApplyTheme(last)

	unsub := prefs.Subscribe(func(p domain.Preferences) {
		if p.Theme == last {
			return
		}
		last = p.Theme
		a.ApplyTheme(p.Theme)
	})

	return func() {
		unsub()
		closeApplier(a)
	}
}

// BindLocale is the locale twin of BindTheme.
func BindLocale(prefs *PreferenceStore, a LocaleApplier) (teardown func()) {
	last := prefs.State().Locale
	a.ApplyLocale(last)

	unsub := prefs.Subscribe(func(p domain.Preferences) {
		if p.Locale == last {
			return
		}
		last = p.Locale
		a.ApplyLocale(p.Locale)
	})

	return func() {
		unsub()
		closeApplier(a)
	}
}

func closeApplier(a any) {
	if c, ok := a.(interface{ Close() }); ok {
		c.Close()
	}
}
