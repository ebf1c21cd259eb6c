package importer

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// FirestoreSource lê as coleções legadas pelo Admin SDK.
type FirestoreSource struct {
	client *firestore.Client
}

// NewFirestoreSource abre o cliente Firestore com a conta de serviço informada.
func NewFirestoreSource(ctx context.Context, credentialsPath string) (*FirestoreSource, error) {
	if credentialsPath == "" {
		return nil, errors.New("FIREBASE_CREDENTIALS_PATH obrigatório")
	}
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore: %w", err)
	}
	return &FirestoreSource{client: client}, nil
}

// Each percorre todos os documentos da coleção.
func (s *FirestoreSource) Each(ctx context.Context, collection string, fn func(Document) error) error {
	iter := s.client.Collection(collection).Documents(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(Document{ID: snap.Ref.ID, Data: snap.Data()}); err != nil {
			return fmt.Errorf("documento %s: %w", snap.Ref.ID, err)
		}
	}
}

// Close libera o cliente.
func (s *FirestoreSource) Close() error {
	return s.client.Close()
}
