package util

import (
	"time"

	"github.com/google/uuid"
)

// NewID gera um UUID v4 para registros e objetos.
func NewID() string {
	return uuid.NewString()
}

// Now devolve o horário atual em UTC.
func Now() time.Time {
	return time.Now().UTC()
}
