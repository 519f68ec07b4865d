// Package db holds the Firestore-backed repositories for incidents, rescue
// centers and users.
package db

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"google.golang.org/api/option"
)

var (
	ErrNotFound          = errors.New("db: document not found")
	ErrInvalidTransition = errors.New("db: status cannot move backwards")
)

// Backend is an initialized Firebase app and its Firestore client.
type Backend struct {
	App       *firebase.App
	Firestore *firestore.Client
}

// Init decodes base64 service-account credentials and opens Firestore. An
// empty projectID lets the SDK read it from the credentials.
func Init(ctx context.Context, encodedCreds, projectID string) (*Backend, error) {
	creds, err := base64.StdEncoding.DecodeString(encodedCreds)
	if err != nil {
		return nil, fmt.Errorf("decode firebase credentials: %w", err)
	}

	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, conf, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, fmt.Errorf("initialize firebase: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("get firestore client: %w", err)
	}
	return &Backend{App: app, Firestore: client}, nil
}

// Messaging returns the FCM client for the same app.
func (b *Backend) Messaging(ctx context.Context) (*messaging.Client, error) {
	return b.App.Messaging(ctx)
}

func (b *Backend) Close() error {
	if b == nil || b.Firestore == nil {
		return nil
	}
	return b.Firestore.Close()
}
