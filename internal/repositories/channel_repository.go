package repositories

import (
	"context"

	"github.com/vidtube/backend/internal/models"
)

// ChannelRepository computes the derived, read-only views over the
// subscription graph and watch history.
type ChannelRepository interface {
	// ChannelProfile resolves a channel by its normalized username and
	// annotates it with subscriber counts and the viewer-relative
	// subscription flag. viewerID may be empty, in which case IsSubscribed
	// is always false.
	ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error)
	// WatchHistory returns the viewer's watched videos in insertion order,
	// each annotated with a minimal owner projection. Dangling video
	// references are omitted; an unknown viewer is ErrNotFound.
	WatchHistory(ctx context.Context, userID string) ([]models.WatchHistoryEntry, error)
}
