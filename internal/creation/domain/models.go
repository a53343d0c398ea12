package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	KindImage = "image"
	KindVideo = "video"
)

// Owner is the uploader's identity snapshotted at creation time. It is not
// a live reference; later profile changes do not rewrite history.
type Owner struct {
	ID        string `gorm:"index" json:"id"`
	Name      string `json:"name,omitempty"`
	Email     string `gorm:"index" json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Creation is a generated image or video artifact and its metadata.
type Creation struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Kind        string       `gorm:"not null;index" json:"type"`
	ArtifactURL string       `gorm:"not null" json:"generatedImage"`
	SourceURL   string       `json:"originalImage,omitempty"`
	// ParentImageID links a derived video back to the image creation it was
	// generated from.
	ParentImageID *snowflake.ID `gorm:"index" json:"sourceImageId,omitempty"`
	// VideoChain is an ordered list of clip URLs played consecutively for
	// extended videos.
	VideoChain datatypes.JSON `json:"videoChain,omitempty"`
	Prompt     string         `json:"prompt"`
	Model      string         `gorm:"not null;index" json:"model"`
	VoteScore  int64          `gorm:"not null;index" json:"voteScore"`
	Owner      Owner          `gorm:"embedded;embeddedPrefix:owner_" json:"uploadedBy"`
	CreatedAt  time.Time      `gorm:"not null;index" json:"createdAt"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updatedAt"`
}
