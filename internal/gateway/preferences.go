package gateway

import "fyne.io/fyne/v2"

// PreferencesBackend stores blobs in the Fyne application preferences,
// the same place the desktop shell keeps its settings.
type PreferencesBackend struct {
	prefs fyne.Preferences
}

// NewPreferencesBackend wraps an application's preferences.
func NewPreferencesBackend(prefs fyne.Preferences) *PreferencesBackend {
	return &PreferencesBackend{prefs: prefs}
}

// Read returns the blob stored under scope. An empty string is never a valid
// snapshot, so it is treated as absent.
func (p *PreferencesBackend) Read(scope string) ([]byte, bool, error) {
	v := p.prefs.String(scope)
	if v == "" {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

// Write stores data under scope.
func (p *PreferencesBackend) Write(scope string, data []byte) error {
	p.prefs.SetString(scope, string(data))
	return nil
}
