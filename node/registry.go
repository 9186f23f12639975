package node

import (
	"fmt"
	"slices"
	"sync"

	"github.com/stormnet/storm-go/storm"
)

// AppPolicy limits what a node accepts for one application. Zero limits
// fall back to the protocol maxima.
type AppPolicy struct {
	MaxBodyLen     int
	MaxAttachments int

	// CheckBody, if set, validates topic and message bodies.
	CheckBody func(body []byte) error
}

// Check applies the policy to a topic or message.
func (p AppPolicy) Check(rec storm.Record, body []byte) error {
	if p.MaxBodyLen > 0 && len(body) > p.MaxBodyLen {
		return fmt.Errorf("%w: body of %d bytes exceeds %d", ErrPolicy, len(body), p.MaxBodyLen)
	}
	if n := len(rec.Attachments()); p.MaxAttachments > 0 && n > p.MaxAttachments {
		return fmt.Errorf("%w: %d attachments exceed %d", ErrPolicy, n, p.MaxAttachments)
	}
	if p.CheckBody != nil {
		if err := p.CheckBody(body); err != nil {
			return fmt.Errorf("%w: %w", ErrPolicy, err)
		}
	}
	return nil
}

// AppRegistry holds the applications a node serves and their policies.
// It is safe for concurrent use.
type AppRegistry struct {
	mu   sync.RWMutex
	apps map[storm.App]AppPolicy
}

// NewAppRegistry creates a registry serving apps with the default policy.
func NewAppRegistry(apps ...storm.App) *AppRegistry {
	r := &AppRegistry{apps: make(map[storm.App]AppPolicy, len(apps))}
	for _, app := range apps {
		r.apps[app] = AppPolicy{}
	}
	return r
}

// Register activates app with policy, replacing any previous policy.
func (r *AppRegistry) Register(app storm.App, policy AppPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apps[app] = policy
}

// Remove deactivates app.
func (r *AppRegistry) Remove(app storm.App) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.apps, app)
}

// Policy returns the policy for app and whether app is active.
func (r *AppRegistry) Policy(app storm.App) (AppPolicy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.apps[app]
	return p, ok
}

// Active returns the active applications in ascending code order.
func (r *AppRegistry) Active() []storm.App {
	r.mu.RLock()
	defer r.mu.RUnlock()
	apps := make([]storm.App, 0, len(r.apps))
	for app := range r.apps {
		apps = append(apps, app)
	}
	slices.Sort(apps)
	return apps
}

// Check validates rec against the policy of app.
func (r *AppRegistry) Check(app storm.App, rec storm.Record, body []byte) error {
	p, ok := r.Policy(app)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInactiveApp, app)
	}
	return p.Check(rec, body)
}
