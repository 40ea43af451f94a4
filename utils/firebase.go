package utils

import (
	"context"
	"fmt"
	"os"
	"sync"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/sharath018/health-management-backend/config"
)

var (
	firebaseOnce   sync.Once
	firebaseClient *messaging.Client
	firebaseErr    error
)

// InitFirebase builds the FCM client once. The error is sticky; callers
// may treat it as "push disabled" and carry on with a nil client.
func InitFirebase(ctx context.Context, cfg *config.Config) (*messaging.Client, error) {
	firebaseOnce.Do(func() {
		credentials := cfg.FCMCredentialsPath
		if credentials == "" {
			credentials = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
		}
		if credentials == "" {
			firebaseErr = fmt.Errorf("FCM_CREDENTIALS_PATH not set")
			return
		}
		if _, err := os.Stat(credentials); err != nil {
			firebaseErr = fmt.Errorf("firebase credentials %s: %w", credentials, err)
			return
		}
		if cfg.FCMProjectID == "" {
			firebaseErr = fmt.Errorf("FCM_PROJECT_ID is required for FCM")
			return
		}

		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FCMProjectID}, option.WithCredentialsFile(credentials))
		if err != nil {
			firebaseErr = fmt.Errorf("firebase app: %w", err)
			return
		}
		client, err := app.Messaging(ctx)
		if err != nil {
			firebaseErr = fmt.Errorf("firebase messaging: %w", err)
			return
		}
		firebaseClient = client
		log.Info().Str("project", cfg.FCMProjectID).Msg("FCM client initialized")
	})
	return firebaseClient, firebaseErr
}
