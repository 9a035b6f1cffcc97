package config

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// SnapshotStaleEvent is published whenever a report snapshot turns stale so the
// UI banner service can refresh without polling.
type SnapshotStaleEvent struct {
	SchoolId      string    `json:"school_id"`
	ReportKind    string    `json:"report_kind"`
	Period        string    `json:"period"`
	Reason        string    `json:"reason"`
	Cascade       bool      `json:"cascade"`
	StaleSince    time.Time `json:"stale_since"`
	CorrelationId string    `json:"correlation_id"`
}

var (
	pubsubClient   *pubsub.Client
	staleTopic     *pubsub.Topic
	pubsubClientMu sync.Mutex
)

func getPubSubProjectID() string {
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	return ""
}

// PubSubEnabled reports whether stale notifications have somewhere to go.
func PubSubEnabled() bool {
	return getPubSubProjectID() != "" && os.Getenv("SNAPSHOT_STALE_TOPIC") != ""
}

// getStaleTopic returns the shared topic handle. Messages carry the school as
// ordering key so one school's events arrive in publish order.
func getStaleTopic(ctx context.Context) (*pubsub.Topic, error) {
	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	if staleTopic != nil {
		return staleTopic, nil
	}

	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	var (
		c   *pubsub.Client
		err error
	)
	if credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON"); credJSON != "" {
		c, err = pubsub.NewClient(ctx, projectID, option.WithCredentialsJSON([]byte(credJSON)))
	} else {
		// Application Default Credentials (Cloud Run service account or GOOGLE_APPLICATION_CREDENTIALS).
		c, err = pubsub.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, err
	}
	pubsubClient = c
	staleTopic = c.Topic(os.Getenv("SNAPSHOT_STALE_TOPIC"))
	staleTopic.EnableMessageOrdering = true
	logg.WithFields(logrus.Fields{"field": "pubsub", "project_id": projectID}).Info("pubsub client ready")
	return staleTopic, nil
}

// PublishSnapshotStale publishes the event and returns the server-assigned message ID.
// It is a no-op when Pub/Sub is not configured.
func PublishSnapshotStale(ctx context.Context, evt SnapshotStaleEvent) (string, error) {
	if !PubSubEnabled() {
		return "", nil
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	t, err := getStaleTopic(ctx)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return "", err
	}
	result := t.Publish(ctx, &pubsub.Message{
		Data:        data,
		OrderingKey: evt.SchoolId,
		Attributes: map[string]string{
			"school_id":   evt.SchoolId,
			"report_kind": evt.ReportKind,
			"period":      evt.Period,
		},
	})
	id, err := result.Get(ctx)
	if err != nil {
		// a failed ordered publish pauses the key until resumed
		t.ResumePublish(evt.SchoolId)
	}
	return id, err
}

func ClosePubSub() {
	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	if staleTopic != nil {
		staleTopic.Stop()
		staleTopic = nil
	}
	if pubsubClient != nil {
		_ = pubsubClient.Close()
		pubsubClient = nil
	}
}
