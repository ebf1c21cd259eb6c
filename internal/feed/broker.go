package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Operações publicadas no feed.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

const channelPrefix = "feed:"

// Event sinaliza que um registro da coleção mudou; assinantes consultam de novo.
type Event struct {
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	Op         string    `json:"op"`
	At         time.Time `json:"at"`
}

// Publisher publica eventos de mudança.
type Publisher interface {
	Publish(ctx context.Context, collection string, ev Event) error
}

// Source entrega eventos de uma coleção até o fechamento.
type Source interface {
	Listen(ctx context.Context, collection string) (<-chan Event, func() error, error)
}

type pubSubClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// Broker distribui eventos via Redis pub/sub entre instâncias da API.
type Broker struct {
	client pubSubClient
}

// NewBroker cria o broker sobre um cliente Redis.
func NewBroker(client *redis.Client) *Broker {
	return &Broker{client: client}
}

func channel(collection string) string {
	return channelPrefix + collection
}

// Publish envia o evento; falhas são devolvidas mas não desfazem a escrita que o originou.
func (b *Broker) Publish(ctx context.Context, collection string, ev Event) error {
	if b == nil || b.client == nil {
		return nil
	}
	ev.Collection = collection
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channel(collection), payload).Err()
}

// Listen assina o canal da coleção. A assinatura já está confirmada no
// retorno, então nenhum evento posterior à chamada se perde.
func (b *Broker) Listen(ctx context.Context, collection string) (<-chan Event, func() error, error) {
	ps := b.client.Subscribe(ctx, channel(collection))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("evento de feed inválido")
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, ps.Close, nil
}
