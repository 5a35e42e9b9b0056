package audiostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSBackend keeps blobs in a JetStream object store bucket, so several
// server instances can share one audio namespace.
type NATSBackend struct {
	bucket string
	store  nats.ObjectStore
}

// NewNATSBackend creates the bucket, or binds to it when it already exists.
func NewNATSBackend(js nats.JetStreamContext, bucket string) (*NATSBackend, error) {
	store, err := js.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "Ephemeral pronunciation audio.",
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("create object store bucket %q: %w", bucket, err)
		}
		store, err = js.ObjectStore(bucket)
		if err != nil {
			return nil, fmt.Errorf("bind object store bucket %q: %w", bucket, err)
		}
	}
	return &NATSBackend{bucket: bucket, store: store}, nil
}

func (n *NATSBackend) Kind() string { return "nats" }

func (n *NATSBackend) Put(_ context.Context, key string, data []byte) error {
	if !ValidKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if _, err := n.store.PutBytes(key, data); err != nil {
		return fmt.Errorf("put %s to bucket %s: %w", key, n.bucket, err)
	}
	return nil
}

func (n *NATSBackend) Get(_ context.Context, key string) ([]byte, error) {
	if !ValidKey(key) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	data, err := n.store.GetBytes(key)
	if errors.Is(err, nats.ErrObjectNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s from bucket %s: %w", key, n.bucket, err)
	}
	return data, nil
}

func (n *NATSBackend) Delete(_ context.Context, key string) error {
	if !ValidKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	err := n.store.Delete(key)
	if err != nil && !errors.Is(err, nats.ErrObjectNotFound) {
		return fmt.Errorf("delete %s from bucket %s: %w", key, n.bucket, err)
	}
	return nil
}

func (n *NATSBackend) List(_ context.Context) ([]Object, error) {
	infos, err := n.store.List()
	if errors.Is(err, nats.ErrNoObjectsFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list bucket %s: %w", n.bucket, err)
	}
	out := make([]Object, 0, len(infos))
	for _, info := range infos {
		if info.Deleted || !ValidKey(info.Name) {
			continue
		}
		out = append(out, Object{Key: info.Name, ModTime: info.ModTime})
	}
	return out, nil
}
