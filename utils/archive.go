package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// getGoogleClient initializes a Google Cloud Storage client.
// Prefers ADC (Cloud Run service account / GOOGLE_APPLICATION_CREDENTIALS);
// set GCS_CREDENTIALS_JSON to provide explicit JSON locally.
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		client, err := storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// ArchiveDeadLetterPayload writes a dead-lettered event payload to the archive
// bucket so operators can inspect poison messages after the DB row is trimmed.
// No-op when DLQ_ARCHIVE_BUCKET is not configured.
func ArchiveDeadLetterPayload(ctx context.Context, deadLetterKey string, payload []byte) (string, error) {
	bucketName := strings.TrimSpace(os.Getenv("DLQ_ARCHIVE_BUCKET"))
	if bucketName == "" {
		return "", nil
	}
	if deadLetterKey == "" {
		return "", errors.New("dead letter key is required")
	}

	client, err := getGoogleClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	objectName := fmt.Sprintf("dead-letters/%s/%s.json", time.Now().UTC().Format("2006-01-02"), deadLetterKey)
	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", bucketName, objectName), nil
}
