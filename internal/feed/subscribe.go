package feed

import (
	"context"
	"sync"
)

// Unsubscribe encerra a assinatura e aguarda a goroutine terminar.
// Não deve ser chamada de dentro dos callbacks.
type Unsubscribe func()

// Subscribe entrega o resultado completo da consulta logo após assinar e de
// novo a cada evento da coleção. Eventos acumulados enquanto a consulta roda
// são agrupados em uma única releitura.
func Subscribe[T any](ctx context.Context, src Source, collection string, query func(context.Context) ([]T, error), onSnapshot func([]T), onError func(error)) (Unsubscribe, error) {
	ctx, cancel := context.WithCancel(ctx)
	events, closeFn, err := src.Listen(ctx, collection)
	if err != nil {
		cancel()
		return nil, err
	}

	deliver := func() {
		items, err := query(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onSnapshot(items)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		deliver()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				drain(events)
				deliver()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			_ = closeFn()
			<-done
		})
	}, nil
}

func drain(events <-chan Event) {
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
