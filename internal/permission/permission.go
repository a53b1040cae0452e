// Package permission caches platform permission decisions so each one is asked
// for once and only asked again after an explicit reset by the user.
package permission

import (
	"fmt"
	"sync"

	"github.com/julianstephens/prayanswer/internal/storage"
)

type Status string

const (
	NotDetermined Status = "not_determined"
	Granted       Status = "granted"
	Denied        Status = "denied"
)

// Prompt asks the platform or the user for a permission.
type Prompt func() (bool, error)

// AlwaysGrant is a Prompt for substrates that need no consent.
func AlwaysGrant() (bool, error) { return true, nil }

// Gate holds one cached permission decision under a settings key.
type Gate struct {
	mu     sync.Mutex
	prefs  storage.SettingsStore
	key    string
	prompt Prompt
}

func NewGate(prefs storage.SettingsStore, key string, prompt Prompt) *Gate {
	if prompt == nil {
		prompt = AlwaysGrant
	}
	return &Gate{prefs: prefs, key: key, prompt: prompt}
}

func (g *Gate) Status() (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status()
}

func (g *Gate) status() (Status, error) {
	v, ok, err := g.prefs.GetSetting(g.key)
	if err != nil {
		return NotDetermined, fmt.Errorf("reading %s: %w", g.key, err)
	}
	if !ok {
		return NotDetermined, nil
	}
	switch Status(v) {
	case Granted, Denied:
		return Status(v), nil
	}
	return NotDetermined, nil
}

// Request returns the cached decision, prompting only when none was made yet.
func (g *Gate) Request() (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	status, err := g.status()
	if err != nil {
		return false, err
	}
	if status != NotDetermined {
		return status == Granted, nil
	}

	granted, err := g.prompt()
	if err != nil {
		return false, err
	}
	decision := Denied
	if granted {
		decision = Granted
	}
	if err := g.prefs.SetSetting(g.key, string(decision)); err != nil {
		return granted, fmt.Errorf("saving %s: %w", g.key, err)
	}
	return granted, nil
}

// Reset forgets the cached decision so the next Request prompts again.
func (g *Gate) Reset() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prefs.SetSetting(g.key, string(NotDetermined))
}
