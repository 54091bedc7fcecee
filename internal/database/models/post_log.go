package models

import "time"

// PostLog stores information about a post republished to the target channel.
type PostLog struct {
	SourceChannelID int64     `bson:"source_channel_id"`
	SourceChannel   string    `bson:"source_channel,omitempty"`
	SourceMessageID int       `bson:"source_message_id"`
	Target          string    `bson:"target"`
	Fingerprint     string    `bson:"fingerprint"`
	ModelName       string    `bson:"model_name"` // "no_text" and "failed" are reserved values
	TokensUsed      int       `bson:"tokens_used"`
	MediaGroup      bool      `bson:"media_group,omitempty"`
	OriginalDate    time.Time `bson:"original_date"`
	PublishedAt     time.Time `bson:"published_at"`
}
