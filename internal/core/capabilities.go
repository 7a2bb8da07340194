package core

import (
	"context"
	"time"
)

// Capabilities reports which optional collaborators are usable. It is
// computed once at startup and passed to whoever needs it.
type Capabilities struct {
	Speech bool `json:"speech"`
	Store  bool `json:"store"`
}

type pinger interface {
	Ping(ctx context.Context) error
}

type configuredChecker interface {
	Configured() bool
}

// DetectCapabilities checks speech credentials and store connectivity.
func DetectCapabilities(ctx context.Context, speech configuredChecker, db pinger) Capabilities {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return Capabilities{
		Speech: speech != nil && speech.Configured(),
		Store:  db != nil && db.Ping(ctx) == nil,
	}
}
