package config

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// NewFirebaseApp initializes the Admin SDK from the service-account JSON held
// in the configuration; the credentials never touch the filesystem.
func NewFirebaseApp(ctx context.Context, cfg FirebaseConfig) (*firebase.App, error) {
	if cfg.CredentialsJSON == "" {
		return nil, errors.New("FIREBASE_CREDENTIALS_JSON must be set")
	}
	fbConfig := &firebase.Config{
		ProjectID:     cfg.ProjectID,
		StorageBucket: cfg.StorageBucket,
	}
	app, err := firebase.NewApp(ctx, fbConfig, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	if err != nil {
		return nil, errors.Wrap(err, "initialize firebase app")
	}
	return app, nil
}
