package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sportsfinder/sports-finder/cache"
	"github.com/sportsfinder/sports-finder/models"
	"github.com/sportsfinder/sports-finder/storage"
)

// withTx runs fn inside a transaction, rolling back on error or panic.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func validationError(err error) error {
	return fmt.Errorf("%w: %v", ErrValidationFailed, err)
}

// cacheLookup reads a cached value into dst; a cache failure only logs.
func cacheLookup(ctx context.Context, c cache.Cache, logger *slog.Logger, key string, dst interface{}) bool {
	if c == nil {
		return false
	}
	hit, err := c.GetJSON(ctx, key, dst)
	if err != nil {
		logger.WarnContext(ctx, "cache lookup failed", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return hit
}

func cacheStore(ctx context.Context, c cache.Cache, logger *slog.Logger, key string, value interface{}) {
	if c == nil {
		return
	}
	if err := c.SetJSON(ctx, key, value); err != nil {
		logger.WarnContext(ctx, "cache store failed", slog.String("key", key), slog.Any("error", err))
	}
}

// invalidate is the single place mutations drop cache keys from. A failed
// delete only logs: the TTL bounds the staleness window.
func invalidate(ctx context.Context, c cache.Cache, logger *slog.Logger, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	if err := c.Delete(ctx, keys...); err != nil {
		logger.WarnContext(ctx, "cache invalidation failed",
			slog.String("keys", strings.Join(keys, ",")), slog.Any("error", err))
	}
}

func populateUserDetails(user *models.User, uploader storage.FileUploader) {
	if user == nil {
		return
	}
	user.PasswordHash = ""
	if user.AvatarKey != nil && *user.AvatarKey != "" && uploader != nil {
		if url := uploader.GetPublicURL(*user.AvatarKey); url != "" {
			user.AvatarURL = &url
		}
	}
}

func populateTeamDetails(team *models.Team, uploader storage.FileUploader) {
	if team == nil {
		return
	}
	if team.LogoKey != nil && *team.LogoKey != "" && uploader != nil {
		if url := uploader.GetPublicURL(*team.LogoKey); url != "" {
			team.LogoURL = &url
		}
	}
}

// GetExtensionFromContentType maps an image content type to a file extension
// for upload keys.
func GetExtensionFromContentType(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	default:
		return "", fmt.Errorf("unsupported image content type: %q", contentType)
	}
}

// validateSportBuckets checks at least one sport is selected, every listed
// sport is a known one, and no sport appears in more than one proficiency
// bucket.
func validateSportBuckets(advanced, intermediate, beginner []string) error {
	if len(advanced)+len(intermediate)+len(beginner) == 0 {
		return fmt.Errorf("at least one sport must be selected")
	}
	seen := map[string]string{}
	buckets := map[string][]string{
		"advanced":     advanced,
		"intermediate": intermediate,
		"beginner":     beginner,
	}
	for bucket, sports := range buckets {
		for _, sport := range sports {
			if !models.ValidSport(sport) {
				return fmt.Errorf("%s is not a recognized sport", sport)
			}
			if other, dup := seen[sport]; dup {
				return fmt.Errorf("%s cannot be listed under both %s and %s", sport, other, bucket)
			}
			seen[sport] = bucket
		}
	}
	return nil
}
