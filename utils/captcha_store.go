package utils

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/mojocn/base64Captcha"
	"github.com/redis/go-redis/v9"
)

const captchaKeyPrefix = "t2t:captcha:"

// registrationCaptchaStore keeps captcha answers in Redis so any instance can
// check the answer to a captcha another instance issued. Answers written while
// Redis is unreachable land in the local store and are still honoured.
type registrationCaptchaStore struct {
	client func() *redis.Client
	ttl    time.Duration
	local  base64Captcha.Store
}

func newRegistrationCaptchaStore(client func() *redis.Client, ttl time.Duration) *registrationCaptchaStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &registrationCaptchaStore{
		client: client,
		ttl:    ttl,
		local:  base64Captcha.NewMemoryStore(base64Captcha.GCLimitNumber, ttl),
	}
}

func (s *registrationCaptchaStore) Set(id, value string) error {
	rc := s.client()
	if rc == nil {
		return s.local.Set(id, value)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Set(ctx, captchaKeyPrefix+id, value, s.ttl).Err(); err != nil {
		Sugar.Warnw("captcha answer kept in memory", "error", err)
		return s.local.Set(id, value)
	}
	return nil
}

func (s *registrationCaptchaStore) Get(id string, clear bool) string {
	rc := s.client()
	if rc == nil {
		return s.local.Get(id, clear)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var (
		v   string
		err error
	)
	if clear {
		v, err = rc.GetDel(ctx, captchaKeyPrefix+id).Result()
	} else {
		v, err = rc.Get(ctx, captchaKeyPrefix+id).Result()
	}
	if err == nil {
		return v
	}
	if !errors.Is(err, redis.Nil) {
		Sugar.Debugf("captcha lookup: %v", err)
	}
	return s.local.Get(id, clear)
}

// Verify compares in constant time. A blank stored answer never matches.
func (s *registrationCaptchaStore) Verify(id, answer string, clear bool) bool {
	v := s.Get(id, clear)
	if v == "" || answer == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(v), []byte(answer)) == 1
}
