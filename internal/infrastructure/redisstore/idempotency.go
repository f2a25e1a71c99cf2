package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tu-usuario/pos-ledger/internal/application/ledger"
)

var _ ledger.IdempotencyGuard = (*IdempotencyGuard)(nil)

const (
	idempotencyKeyPrefix = "posledger:req:"
	idempotencyKeyTTL    = 24 * time.Hour
)

// IdempotencyGuard reserva claves de request con SETNX para rechazar
// reintentos duplicados de ventas y devoluciones.
type IdempotencyGuard struct {
	client *redis.Client
}

// NewIdempotencyGuard construye el guard sobre un cliente Redis.
func NewIdempotencyGuard(client *redis.Client) *IdempotencyGuard {
	return &IdempotencyGuard{client: client}
}

// Acquire intenta reservar la clave; false si ya estaba tomada.
func (g *IdempotencyGuard) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, fmt.Errorf("setnx idempotency: %w", err)
	}
	return ok, nil
}
