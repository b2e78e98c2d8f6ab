package utils

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ttt-platform/trash2treasure/config"
)

// Registration abuse guards. They all fail open when Redis is unavailable.

func regKey(parts ...string) string {
	return "t2t:reg:" + strings.Join(parts, ":")
}

func regCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 500*time.Millisecond)
}

// RegistrationCooldownTry enforces a short cooldown between attempts per IP.
func RegistrationCooldownTry(ip string) bool {
	sec := config.Get().RegisterAttemptCooldownSec
	cli := GetRedis()
	if sec <= 0 || cli == nil {
		return true
	}
	ctx, cancel := regCtx()
	defer cancel()
	ok, err := cli.SetNX(ctx, regKey("cooldown", ip), "1", time.Duration(sec)*time.Second).Result()
	if err != nil {
		return true
	}
	return ok
}

// RegistrationDailyLimitCheck allows up to N successful registrations per day per IP.
func RegistrationDailyLimitCheck(ip string) bool {
	limit := config.Get().RegisterMaxPerIPPerDay
	cli := GetRedis()
	if limit <= 0 || cli == nil {
		return true
	}
	ctx, cancel := regCtx()
	defer cancel()
	n, err := cli.Get(ctx, regKey("succday", ip, time.Now().Format("20060102"))).Int()
	if err == redis.Nil {
		n = 0
	} else if err != nil {
		return true
	}
	return n < limit
}

// RegistrationDailyIncrement increments the success counter for today.
func RegistrationDailyIncrement(ip string) {
	cli := GetRedis()
	if cli == nil {
		return
	}
	ctx, cancel := regCtx()
	defer cancel()
	key := regKey("succday", ip, time.Now().Format("20060102"))
	if err := cli.Incr(ctx, key).Err(); err == nil {
		_ = cli.Expire(ctx, key, 24*time.Hour).Err()
	}
}

// RegistrationFailRecord counts a failed attempt in the current hour and bans
// the IP once the configured threshold is reached.
func RegistrationFailRecord(ip string) {
	cli := GetRedis()
	if cli == nil {
		return
	}
	ctx, cancel := regCtx()
	defer cancel()
	key := regKey("failhour", ip, time.Now().Format("2006010215"))
	n, err := cli.Incr(ctx, key).Result()
	if err != nil {
		return
	}
	_ = cli.Expire(ctx, key, time.Hour).Err()

	cfg := config.Get()
	if int(n) >= cfg.RegisterFailedMaxPerIPPerHour && cfg.RegisterFailedMaxPerIPPerHour > 0 {
		minutes := cfg.RegisterTempBanMinutes
		if minutes <= 0 {
			minutes = 60
		}
		_ = cli.Set(ctx, regKey("ban", ip), "1", time.Duration(minutes)*time.Minute).Err()
		Sugar.Warnf("registration temporarily banned ip=%s failures=%d", ip, n)
	}
}

// RegistrationIsBanned checks temporary ban status for IP.
func RegistrationIsBanned(ip string) bool {
	cli := GetRedis()
	if cli == nil {
		return false
	}
	ctx, cancel := regCtx()
	defer cancel()
	exists, err := cli.Exists(ctx, regKey("ban", ip)).Result()
	if err != nil {
		return false
	}
	return exists > 0
}
