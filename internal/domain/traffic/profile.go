package traffic

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Profile is a persisted visitor identity: the serialized storage state
// of a finished session, keyed by a generated id. Profiles are written
// whole on save; concurrent sessions never share one.
type Profile struct {
	ID           string
	StorageState []byte
}

// ProfileStore persists visitor profiles between runs
type ProfileStore interface {
	// List returns the ids of every stored profile
	List(ctx context.Context) ([]string, error)
	Load(ctx context.Context, id string) (*Profile, error)
	Save(ctx context.Context, profile *Profile) error
}

// NewProfileID generates a fresh visitor id
func NewProfileID(r *rand.Rand) string {
	return fmt.Sprintf("user_%d_%d", time.Now().Unix(), 1000+r.Intn(9000))
}
