package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quietpage/reflectd/ports"
)

// resolveUserByEmail maps a billing customer's email to a local user ID. When
// the profile store has no row yet (a webhook can race signup), the auth
// provider's user directory is the fallback; a hit repairs the profile store
// so later lookups stay local. ErrNotFound means neither source knows the
// email.
func resolveUserByEmail(
	ctx context.Context,
	profiles ports.ProfileStore,
	directory ports.Directory,
	email string,
	now time.Time,
	logger zerolog.Logger,
) (string, error) {
	profile, err := profiles.GetByEmail(ctx, email)
	if err == nil {
		return profile.ID, nil
	}
	if !errors.Is(err, ports.ErrNotFound) {
		return "", fmt.Errorf("profile lookup: %w", err)
	}

	userID, err := directory.UserIDByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return "", ports.ErrNotFound
		}
		return "", fmt.Errorf("directory lookup: %w", err)
	}

	// Backfill the missing profile row. Failure here is not fatal, the user
	// is already resolved; the next lookup just takes the slow path again.
	if err := profiles.Upsert(ctx, ports.Profile{ID: userID, Email: email, CreatedAt: now}); err != nil {
		logger.Warn().Err(err).
			Str("user_id", userID).
			Msg("failed to backfill profile from directory")
	}
	return userID, nil
}
