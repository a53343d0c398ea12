package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"

	creationdomain "github.com/mirage-studio/mirage/internal/creation/domain"
	"github.com/mirage-studio/mirage/internal/vote/domain"
	"github.com/mirage-studio/mirage/internal/vote/repository"
)

func setupVotes(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&creationdomain.Creation{}, &domain.Vote{}))

	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
	return svc, db, node
}

func seedCreation(t *testing.T, db *gorm.DB, node *snowflake.Node) snowflake.ID {
	t.Helper()

	creation := creationdomain.Creation{
		ID:          node.Generate(),
		Kind:        creationdomain.KindImage,
		ArtifactURL: "https://cdn.example.com/images/a.jpg",
		Model:       "aurora",
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	assert.NoError(t, db.Create(&creation).Error)
	return creation.ID
}

func TestCastTransitions(t *testing.T) {
	svc, db, node := setupVotes(t)
	ctx := context.Background()
	creationID := seedCreation(t, db, node).String()

	// none -> up
	result, err := svc.Cast(ctx, "user-1", creationID, domain.DirectionUp)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), result.VoteScore)
	assert.Equal(t, domain.DirectionUp, result.UserVote)

	// up -> down flips in place for a -2 swing
	result, err = svc.Cast(ctx, "user-1", creationID, domain.DirectionDown)
	assert.NoError(t, err)
	assert.Equal(t, int64(-1), result.VoteScore)
	assert.Equal(t, domain.DirectionDown, result.UserVote)

	// down -> down toggles off
	result, err = svc.Cast(ctx, "user-1", creationID, domain.DirectionDown)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), result.VoteScore)
	assert.Equal(t, domain.DirectionNone, result.UserVote)

	// none -> down
	result, err = svc.Cast(ctx, "user-1", creationID, domain.DirectionDown)
	assert.NoError(t, err)
	assert.Equal(t, int64(-1), result.VoteScore)

	// down -> up
	result, err = svc.Cast(ctx, "user-1", creationID, domain.DirectionUp)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), result.VoteScore)
	assert.Equal(t, domain.DirectionUp, result.UserVote)
}

func TestCastToggleIdempotence(t *testing.T) {
	svc, db, node := setupVotes(t)
	ctx := context.Background()
	creationID := seedCreation(t, db, node).String()

	result, err := svc.Cast(ctx, "user-1", creationID, domain.DirectionUp)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), result.VoteScore)

	result, err = svc.Cast(ctx, "user-1", creationID, domain.DirectionUp)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), result.VoteScore)
	assert.Equal(t, domain.DirectionNone, result.UserVote)

	var count int64
	assert.NoError(t, db.Model(&domain.Vote{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestCastVotersAreIndependent(t *testing.T) {
	svc, db, node := setupVotes(t)
	ctx := context.Background()
	creationID := seedCreation(t, db, node).String()

	_, err := svc.Cast(ctx, "user-1", creationID, domain.DirectionUp)
	assert.NoError(t, err)
	result, err := svc.Cast(ctx, "user-2", creationID, domain.DirectionUp)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), result.VoteScore)

	result, err = svc.Cast(ctx, "user-2", creationID, domain.DirectionDown)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), result.VoteScore)
	assert.Equal(t, domain.DirectionDown, result.UserVote)
}

func TestCastValidation(t *testing.T) {
	svc, db, node := setupVotes(t)
	ctx := context.Background()

	_, err := svc.Cast(ctx, "user-1", "not-a-number", domain.DirectionUp)
	assert.ErrorIs(t, err, domain.ErrInvalidCreation)

	creationID := seedCreation(t, db, node).String()
	_, err = svc.Cast(ctx, "user-1", creationID, "sideways")
	assert.ErrorIs(t, err, domain.ErrInvalidDirection)

	_, err = svc.Cast(ctx, "user-1", node.Generate().String(), domain.DirectionUp)
	assert.ErrorIs(t, err, domain.ErrCreationNotFound)
}
