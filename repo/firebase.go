package repo

import (
	"context"
	"fmt"
	"time"

	"RSVPBot/model"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

const DefaultSubmissionsPath = "rsvps"

// FirebaseConnector struct to hold Firebase client and database reference
type FirebaseConnector struct {
	app    *firebase.App
	client *db.Client
	path   string
}

// Submission is the node written for every record
type Submission struct {
	model.FormState
	SubmittedAt time.Time `json:"submittedAt"`
}

// NewFirebaseConnector creates a new Firebase connector
func NewFirebaseConnector(ctx context.Context, serviceAccountKeyPath string, databaseURL string, path string) (*FirebaseConnector, error) {
	// Load the service account key file
	opt := option.WithCredentialsFile(serviceAccountKeyPath)

	config := &firebase.Config{
		DatabaseURL: databaseURL,
	}
	app, err := firebase.NewApp(ctx, config, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting database client: %w", err)
	}

	if path == "" {
		path = DefaultSubmissionsPath
	}
	return &FirebaseConnector{
		app:    app,
		client: client,
		path:   path,
	}, nil
}

// Submit writes the record under its session id, so a retried submission replaces the
// earlier write instead of adding a second one.
func (fc *FirebaseConnector) Submit(ctx context.Context, sessionID uuid.UUID, state model.FormState) (model.SubmissionAck, error) {
	ref := fc.client.NewRef(fc.path).Child(sessionID.String())
	err := ref.Set(ctx, Submission{FormState: state, SubmittedAt: time.Now().UTC()})
	if err != nil {
		return model.SubmissionAck{}, fmt.Errorf("%w: error writing submission: %w", model.ErrSinkUnavailable, err)
	}
	return model.SubmissionAck{Result: model.AckSuccess}, nil
}
