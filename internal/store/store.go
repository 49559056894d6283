package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"vocadrill/internal/config"
)

// Store is the persistence contract the repositories program against.
// LocalStore and SyncedStore both satisfy it, so everything above the
// store is backend-agnostic; Open picks the implementation at startup
// with a capability probe.
type Store interface {
	Read(ctx context.Context, key string) (value []byte, ok bool, err error)
	Write(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Notices() *Notices
	Close() error
}

// LocalStore operates on the durable local tier only
type LocalStore struct {
	local   Tier
	notices *Notices
}

// NewLocalStore wraps a local tier without any remote sync
func NewLocalStore(local Tier, notices *Notices) *LocalStore {
	return &LocalStore{local: local, notices: notices}
}

func (s *LocalStore) Read(ctx context.Context, key string) ([]byte, bool, error) {
	return s.local.Read(ctx, key)
}

func (s *LocalStore) Write(ctx context.Context, key string, value []byte) error {
	return s.local.Write(ctx, key, value)
}

func (s *LocalStore) Remove(ctx context.Context, key string) error {
	return s.local.Remove(ctx, key)
}

func (s *LocalStore) Notices() *Notices {
	return s.notices
}

func (s *LocalStore) Close() error {
	return s.local.Close()
}

// SyncedStore mirrors the local tier onto a remote tier, best-effort.
// The local copy is written first and stays authoritative for this
// device; remote failures are logged and degrade the operation, never
// fail it.
type SyncedStore struct {
	local      Tier
	remote     Tier
	notices    *Notices
	timeout    time.Duration
	maxPayload int
}

func (s *SyncedStore) Read(ctx context.Context, key string) ([]byte, bool, error) {
	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	value, ok, err := s.remote.Read(rctx, key)
	if err == nil && ok {
		return value, true, nil
	}
	if err != nil {
		log.Printf("Sync read failed for %q, falling back to local: %v", key, err)
	}
	return s.local.Read(ctx, key)
}

func (s *SyncedStore) Write(ctx context.Context, key string, value []byte) error {
	if err := s.local.Write(ctx, key, value); err != nil {
		return err
	}

	if s.maxPayload > 0 && len(value) > s.maxPayload {
		log.Printf("Skipping sync for %q: payload %d bytes exceeds limit %d", key, len(value), s.maxPayload)
		s.notices.Post(NoticeInfo, fmt.Sprintf("Too large to sync (%d KB); kept locally", len(value)/1024))
		return nil
	}

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.remote.Write(rctx, key, value); err != nil {
		log.Printf("Sync write failed for %q (local copy kept): %v", key, err)
	}
	return nil
}

func (s *SyncedStore) Remove(ctx context.Context, key string) error {
	if err := s.local.Remove(ctx, key); err != nil {
		return err
	}

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.remote.Remove(rctx, key); err != nil {
		log.Printf("Sync remove failed for %q: %v", key, err)
	}
	return nil
}

func (s *SyncedStore) Notices() *Notices {
	return s.notices
}

func (s *SyncedStore) Close() error {
	lerr := s.local.Close()
	if err := s.remote.Close(); err != nil && lerr == nil {
		lerr = err
	}
	return lerr
}

// probe verifies the remote tier is actually writable, not merely
// reachable, with a canary write-then-remove
func probe(ctx context.Context, remote Tier) error {
	key := "__probe__" + uuid.New().String()
	if err := remote.Write(ctx, key, []byte("1")); err != nil {
		return err
	}
	return remote.Remove(ctx, key)
}

// noticeForProbeFailure words the one-time degradation notice
func noticeForProbeFailure(err error) string {
	var remErr *RemoteError
	if errors.As(err, &remErr) {
		switch remErr.Kind {
		case KindWriteQuota:
			return "Sync write quota exceeded; working locally this session"
		case KindStorageQuota:
			return "Sync storage is full; working locally this session"
		case KindPermission:
			return "Sync access denied; working locally this session"
		}
	}
	return "Sync unavailable; working locally this session"
}

// reconcile brings the two tiers in line at startup: remote values are
// pulled down over local unconditionally (the remote tier is source of
// truth once data exists there), and keys present only locally are
// seeded up exactly once
func (s *SyncedStore) reconcile(ctx context.Context, keys []string) error {
	for _, key := range keys {
		rctx, cancel := context.WithTimeout(ctx, s.timeout)
		value, ok, err := s.remote.Read(rctx, key)
		cancel()
		if err != nil {
			return err
		}

		if ok {
			if err := s.local.Write(ctx, key, value); err != nil {
				return fmt.Errorf("failed to pull %q into local tier: %w", key, err)
			}
			continue
		}

		local, ok, err := s.local.Read(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		rctx, cancel = context.WithTimeout(ctx, s.timeout)
		err = s.remote.Write(rctx, key, local)
		cancel()
		if err != nil {
			log.Printf("Failed to seed %q to sync tier: %v", key, err)
		}
	}
	return nil
}

// Open builds the store for this session. The local tier always opens;
// the remote tier is attached only when configured and when the canary
// probe proves it writable. Probe failures are classified and posted
// as a single auto-dismissing notice, after which the session runs
// local-only. keys lists the collections to reconcile at startup.
func Open(ctx context.Context, cfg *config.Config, keys ...string) (Store, error) {
	local, err := OpenSQLiteTier(cfg.LocalDBPath)
	if err != nil {
		return nil, err
	}
	notices := NewNotices(cfg.NoticeTTL)

	remote, err := openRemoteTier(cfg)
	if err != nil {
		log.Printf("Sync tier unavailable: %v", err)
		notices.Post(NoticeWarning, noticeForProbeFailure(err))
		return NewLocalStore(local, notices), nil
	}
	if remote == nil {
		return NewLocalStore(local, notices), nil
	}

	pctx, cancel := context.WithTimeout(ctx, cfg.SyncTimeout)
	err = probe(pctx, remote)
	cancel()
	if err != nil {
		log.Printf("Sync probe failed: %v", err)
		notices.Post(NoticeWarning, noticeForProbeFailure(err))
		remote.Close()
		return NewLocalStore(local, notices), nil
	}

	synced := &SyncedStore{
		local:      local,
		remote:     remote,
		notices:    notices,
		timeout:    cfg.SyncTimeout,
		maxPayload: cfg.SyncMaxPayload,
	}
	if err := synced.reconcile(ctx, keys); err != nil {
		log.Printf("Sync reconcile failed: %v", err)
		notices.Post(NoticeWarning, noticeForProbeFailure(err))
		remote.Close()
		return NewLocalStore(local, notices), nil
	}

	log.Printf("Sync enabled via %s tier", remote.Name())
	return synced, nil
}

// openRemoteTier picks the sync backend from config; nil means the
// install runs without sync at all
func openRemoteTier(cfg *config.Config) (Tier, error) {
	switch cfg.SyncBackend {
	case "", "none":
		return nil, nil
	case "postgres", "postgresql", "mysql":
		return OpenSQLTier(cfg.SyncBackend, cfg.SyncURL)
	case "http":
		return NewHTTPTier(cfg.SyncURL, cfg.SyncSecret, cfg.SyncTimeout), nil
	}
	return nil, fmt.Errorf("unsupported sync backend: %s", cfg.SyncBackend)
}
