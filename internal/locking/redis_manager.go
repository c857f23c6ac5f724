package locking

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"collab-notes-be/internal/access"
	"collab-notes-be/internal/dto"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lock values are "<holder uuid>|<acquired unixnano>"; the uuid string is
// a fixed 36 characters, which the scripts rely on for the holder check.
const holderLen = 36

// releaseScript deletes the lock only when the caller still holds it.
var releaseScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if v and string.sub(v, 1, 36) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return -1
`)

// refreshScript extends the TTL only when the caller still holds it.
var refreshScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if v and string.sub(v, 1, 36) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return -1
`)

// RedisManager keeps locks in redis with a native TTL, for deployments
// running more than one server instance. Expiry needs no sweeper here;
// redis drops the key when the TTL lapses.
type RedisManager struct {
	rdb     *redis.Client
	timeout time.Duration
}

func NewRedisManager(rdb *redis.Client, timeout time.Duration) *RedisManager {
	return &RedisManager{
		rdb:     rdb,
		timeout: timeout,
	}
}

func lockKey(noteId uuid.UUID) string {
	return "note_lock:" + noteId.String()
}

func encodeLock(holderId uuid.UUID, acquiredAt time.Time) string {
	return holderId.String() + "|" + strconv.FormatInt(acquiredAt.UnixNano(), 10)
}

func decodeLock(noteId uuid.UUID, value string) (*Lock, error) {
	parts := strings.SplitN(value, "|", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed lock value %q", value)
	}
	holderId, err := uuid.Parse(parts[0])
	if err != nil {
		return nil, fmt.Errorf("malformed lock holder: %w", err)
	}
	nanos, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed lock timestamp: %w", err)
	}
	return &Lock{NoteId: noteId, HolderId: holderId, AcquiredAt: time.Unix(0, nanos)}, nil
}

func (m *RedisManager) TryAcquire(ctx context.Context, noteId uuid.UUID, userId uuid.UUID, tier access.Tier) (*Lock, error) {
	if !tier.CanWrite() {
		return nil, ErrTierForbidden
	}

	key := lockKey(noteId)

	// Two passes at most: the holder can expire between SETNX and GET,
	// in which case one more SETNX settles it either way.
	for attempt := 0; attempt < 2; attempt++ {
		now := time.Now()
		ok, err := m.rdb.SetNX(ctx, key, encodeLock(userId, now), m.timeout).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return &Lock{NoteId: noteId, HolderId: userId, AcquiredAt: now}, nil
		}

		// Someone holds it; if it is the caller, renew and keep AcquiredAt.
		value, err := m.rdb.Get(ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		existing, err := decodeLock(noteId, value)
		if err != nil {
			return nil, err
		}
		if existing.HolderId != userId {
			return nil, &dto.LockConflictError{NoteId: noteId, HolderId: existing.HolderId}
		}
		if err := m.Refresh(ctx, noteId, userId); err != nil {
			return nil, err
		}
		return existing, nil
	}
	return nil, fmt.Errorf("lock on %s kept expiring mid-acquire", noteId)
}

func (m *RedisManager) Refresh(ctx context.Context, noteId uuid.UUID, userId uuid.UUID) error {
	res, err := refreshScript.Run(ctx, m.rdb,
		[]string{lockKey(noteId)},
		userId.String(), m.timeout.Milliseconds(),
	).Int()
	if err != nil {
		return err
	}
	if res < 0 {
		return ErrNotHolder
	}
	return nil
}

func (m *RedisManager) Release(ctx context.Context, noteId uuid.UUID, userId uuid.UUID) error {
	res, err := releaseScript.Run(ctx, m.rdb,
		[]string{lockKey(noteId)},
		userId.String(),
	).Int()
	if err != nil {
		return err
	}
	if res < 0 {
		return ErrNotHolder
	}
	return nil
}

func (m *RedisManager) Get(ctx context.Context, noteId uuid.UUID) (*Lock, bool) {
	value, err := m.rdb.Get(ctx, lockKey(noteId)).Result()
	if err != nil {
		return nil, false
	}
	lock, err := decodeLock(noteId, value)
	if err != nil {
		return nil, false
	}
	return lock, true
}
