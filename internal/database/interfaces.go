package database

import (
	"reposter-bot/internal/database/models"
)

// PostLogger defines the interface for logging republished posts.
type PostLogger interface {
	// LogPublishedPost logs information about a post published to the target channel.
	LogPublishedPost(log models.PostLog) error
}
