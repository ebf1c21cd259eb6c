package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// KeyPrefix agrupa as fotos das demandas no bucket.
const KeyPrefix = "demandas/"

// TimestampKey nomeia a foto enviada na criação de uma demanda.
func TimestampKey(now time.Time) string {
	return fmt.Sprintf("%s%d.jpg", KeyPrefix, now.UnixMilli())
}

// UniqueKey nomeia a foto substituída durante a edição de uma demanda.
func UniqueKey() string {
	return KeyPrefix + uuid.NewString() + ".jpg"
}
