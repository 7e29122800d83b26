package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/minio/minio-go/v7"

	appexport "github.com/DailyForkCast/osint-foresight-sub003/internal/application/export"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/logging"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
	restypes "github.com/DailyForkCast/osint-foresight-sub003/pkg/types/resolution"
)

var ErrPackNotFound = errors.New(errors.ErrCodeNotFound, "provenance pack not found")

const packContentType = "application/json"

// PackArchive stores provenance packs as JSON objects, one per entity per
// generation run, keyed by generation date so reruns never overwrite
// earlier packs.
type PackArchive struct {
	client *Client
	logger logging.Logger
}

var _ appexport.PackArchive = (*PackArchive)(nil)

// NewPackArchive wires a pack archive over the storage client.
func NewPackArchive(client *Client, logger logging.Logger) *PackArchive {
	return &PackArchive{client: client, logger: logger}
}

// packKey builds the object key for one pack. The date prefix keeps runs
// separable; the entity ID keeps keys stable within a run.
func packKey(pack *restypes.ProvenancePack) string {
	ts := pack.GeneratedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return fmt.Sprintf("packs/%s/%s.json", ts.UTC().Format("2006-01-02"), pack.EntityID)
}

// StorePack uploads one pack and returns its storage location as
// bucket/key.
func (a *PackArchive) StorePack(ctx context.Context, pack *restypes.ProvenancePack) (string, error) {
	if pack == nil {
		return "", errors.InvalidParam("pack must not be nil")
	}
	if pack.EntityID == "" {
		return "", errors.InvalidParam("pack entity id must not be empty")
	}

	data, err := json.Marshal(pack)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal provenance pack")
	}

	key := packKey(pack)
	_, err = a.client.API().PutObject(ctx, a.client.Bucket(), key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType: packContentType,
			UserMetadata: map[string]string{
				"entity-id":    string(pack.EntityID),
				"source-count": fmt.Sprintf("%d", pack.SourceCount),
			},
		})
	if err != nil {
		return "", errors.Wrap(err, errors.CodeStorageError, "failed to store provenance pack")
	}

	location := a.client.Bucket() + "/" + key
	a.logger.Debug("provenance pack archived",
		logging.String("entity_id", string(pack.EntityID)),
		logging.String("location", location))
	return location, nil
}

// Pack fetches one archived pack by object key.
func (a *PackArchive) Pack(ctx context.Context, key string) (*restypes.ProvenancePack, error) {
	obj, err := a.client.API().GetObject(ctx, a.client.Bucket(), key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageError, "failed to fetch provenance pack")
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrPackNotFound
		}
		return nil, errors.Wrap(err, errors.CodeStorageError, "failed to read provenance pack")
	}

	var pack restypes.ProvenancePack
	if err := json.Unmarshal(data, &pack); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal provenance pack")
	}
	return &pack, nil
}

// ListPacks returns the object keys archived under a generation date,
// sorted. A zero date lists every pack.
func (a *PackArchive) ListPacks(ctx context.Context, date time.Time) ([]string, error) {
	prefix := "packs/"
	if !date.IsZero() {
		prefix += date.UTC().Format("2006-01-02") + "/"
	}

	var keys []string
	for obj := range a.client.API().ListObjects(ctx, a.client.Bucket(), minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.CodeStorageError, "failed to list provenance packs")
		}
		keys = append(keys, obj.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

// DeletePack removes one archived pack. Test and retention tooling only.
func (a *PackArchive) DeletePack(ctx context.Context, key string) error {
	if err := a.client.API().RemoveObject(ctx, a.client.Bucket(), key, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.CodeStorageError, "failed to delete provenance pack")
	}
	return nil
}

// PackURL returns a time-limited download link for one archived pack.
func (a *PackArchive) PackURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if _, err := a.client.API().StatObject(ctx, a.client.Bucket(), key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", ErrPackNotFound
		}
		return "", errors.Wrap(err, errors.CodeStorageError, "failed to stat provenance pack")
	}
	return a.client.PresignedGetURL(ctx, key, expiry)
}
