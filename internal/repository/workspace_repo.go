package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studyai-backend/internal/models"
)

// releaseLockScript deletes the lock only while it still holds the caller's token.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// WorkspaceRepo keeps workspaces in Redis; they expire after ttl of inactivity.
type WorkspaceRepo struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewWorkspaceRepo(redisClient *redis.Client, ttl time.Duration) *WorkspaceRepo {
	return &WorkspaceRepo{redis: redisClient, ttl: ttl}
}

func workspaceKey(userID string) string {
	return fmt.Sprintf("workspace:%s", userID)
}

func generationLockKey(userID string) string {
	return fmt.Sprintf("generation_lock:%s", userID)
}

// Get returns ErrNotFound when the user has no live workspace.
func (r *WorkspaceRepo) Get(ctx context.Context, userID string) (*models.Workspace, error) {
	data, err := r.redis.Get(ctx, workspaceKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	ws := &models.Workspace{}
	if err := json.Unmarshal(data, ws); err != nil {
		return nil, fmt.Errorf("decode workspace: %w", err)
	}
	return ws, nil
}

func (r *WorkspaceRepo) Save(ctx context.Context, ws *models.Workspace) error {
	ws.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(ws)
	if err != nil {
		return err
	}
	return r.redis.Set(ctx, workspaceKey(ws.UserID), data, r.ttl).Err()
}

func (r *WorkspaceRepo) Delete(ctx context.Context, userID string) error {
	return r.redis.Del(ctx, workspaceKey(userID)).Err()
}

// AcquireGenerationLock takes the user's generation lock for ttl and returns
// the holder token, or "" when a generation is already running.
func (r *WorkspaceRepo) AcquireGenerationLock(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := r.redis.SetNX(ctx, generationLockKey(userID), token, ttl).Result()
	if err != nil || !ok {
		return "", err
	}
	return token, nil
}

// ReleaseGenerationLock is a no-op when the lock expired and someone else holds it now.
func (r *WorkspaceRepo) ReleaseGenerationLock(ctx context.Context, userID, token string) error {
	return releaseLockScript.Run(ctx, r.redis, []string{generationLockKey(userID)}, token).Err()
}
