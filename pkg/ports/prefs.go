package ports

import (
	"context"

	"github.com/aretw0/detailtree/pkg/domain"
)

// PrefsStore persists per-view preferences.
type PrefsStore interface {
	// Load returns domain.ErrPrefsNotFound if nothing was saved for the view.
	Load(ctx context.Context, view string) (domain.Prefs, error)
	Save(ctx context.Context, view string, prefs domain.Prefs) error
	Delete(ctx context.Context, view string) error
}
