package authgate

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const challengeRecordVersion1 = 1

// challengeRecord marks a password-verified login that still owes a
// second factor. It lives in Redis for a short TTL; possession of the
// challenge ID is the only link back to the user.
type challengeRecord struct {
	UserID    string
	ExpiresAt int64
	Attempts  uint16
}

type challengeStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func newChallengeStore(client redis.UniversalClient, now func() time.Time) *challengeStore {
	return &challengeStore{redis: client, prefix: "agc", now: now}
}

func (s *challengeStore) key(id string) string {
	return s.prefix + ":" + id
}

func (s *challengeStore) Save(ctx context.Context, id string, rec *challengeRecord, ttl time.Duration) error {
	encoded, err := encodeChallenge(rec)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(id), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return nil
}

func (s *challengeStore) Get(ctx context.Context, id string) (*challengeRecord, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}

	rec, err := decodeChallenge(data)
	if err != nil {
		return nil, err
	}
	if s.now().Unix() > rec.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(id)).Result()
		return nil, ErrChallengeExpired
	}
	return rec, nil
}

// Delete removes the challenge and reports whether this caller removed
// it. Exactly one of two racing verifiers sees true; the loser treats
// the challenge as replayed.
func (s *challengeStore) Delete(ctx context.Context, id string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return n > 0, nil
}

// RecordFailure bumps the attempt counter under optimistic locking,
// preserving the remaining TTL. When the counter reaches maxAttempts the
// challenge is deleted and exceeded is true.
func (s *challengeStore) RecordFailure(ctx context.Context, id string, maxAttempts int) (exceeded bool, err error) {
	const maxRetries = 4
	key := s.key(id)

	for range maxRetries {
		var hit bool
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			rec, err := decodeChallenge(data)
			if err != nil {
				return err
			}

			ttl := time.Unix(rec.ExpiresAt, 0).Sub(s.now())
			if ttl <= 0 {
				if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				}); err != nil {
					return err
				}
				return ErrChallengeExpired
			}

			rec.Attempts++
			if int(rec.Attempts) >= maxAttempts {
				hit = true
				_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				return err
			}

			updated, err := encodeChallenge(rec)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return false, ErrChallengeNotFound
			}
			if errors.Is(err, ErrChallengeExpired) {
				return false, err
			}
			return false, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
		}
		return hit, nil
	}

	return false, ErrChallengeNotFound
}

func encodeChallenge(rec *challengeRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(challengeRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, rec.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, rec.ExpiresAt); err != nil {
		return nil, err
	}

	if len(rec.UserID) > 65535 {
		return nil, errors.New("challenge user id length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(rec.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(rec.UserID)

	return buf.Bytes(), nil
}

func decodeChallenge(data []byte) (*challengeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != challengeRecordVersion1 {
		return nil, errors.New("invalid challenge record version")
	}

	rec := &challengeRecord{}
	if err := binary.Read(reader, binary.BigEndian, &rec.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &rec.ExpiresAt); err != nil {
		return nil, err
	}

	var userLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userLen); err != nil {
		return nil, err
	}
	user := make([]byte, userLen)
	if _, err := io.ReadFull(reader, user); err != nil {
		return nil, err
	}
	rec.UserID = string(user)

	return rec, nil
}
