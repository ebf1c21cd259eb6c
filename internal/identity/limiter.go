package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptLimiter conta falhas de login por e-mail no Redis.
type AttemptLimiter struct {
	redis  redis.Cmdable
	max    int
	window time.Duration
}

// NewAttemptLimiter cria o limitador; max <= 0 desativa o bloqueio.
func NewAttemptLimiter(client redis.Cmdable, max int, window time.Duration) *AttemptLimiter {
	return &AttemptLimiter{redis: client, max: max, window: window}
}

func attemptKey(email string) string {
	return fmt.Sprintf("login:falhas:%s", email)
}

// Blocked informa se o e-mail excedeu o limite de falhas na janela atual.
func (l *AttemptLimiter) Blocked(ctx context.Context, email string) (bool, error) {
	if l == nil || l.max <= 0 {
		return false, nil
	}
	raw, err := l.redis.Get(ctx, attemptKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return false, nil
	}
	return count >= l.max, nil
}

// Fail registra uma falha; a janela começa na primeira falha.
func (l *AttemptLimiter) Fail(ctx context.Context, email string) error {
	if l == nil || l.max <= 0 {
		return nil
	}
	key := attemptKey(email)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if count == 1 {
		return l.redis.Expire(ctx, key, l.window).Err()
	}
	return nil
}

// Reset limpa o contador após login bem-sucedido ou troca de senha.
func (l *AttemptLimiter) Reset(ctx context.Context, email string) error {
	if l == nil || l.max <= 0 {
		return nil
	}
	return l.redis.Del(ctx, attemptKey(email)).Err()
}
