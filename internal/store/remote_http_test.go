package store

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "sync-secret"

// kvServer is a minimal sync endpoint that verifies bearer tokens.
func kvServer(t *testing.T) (*httptest.Server, map[string][]byte) {
	t.Helper()
	data := make(map[string][]byte)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		token, err := jwt.Parse(raw, func(tok *jwt.Token) (interface{}, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(testSecret), nil
		})
		if err != nil || !token.Valid {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		key := strings.TrimPrefix(r.URL.Path, "/kv/")
		switch r.Method {
		case http.MethodGet:
			value, ok := data[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write(value)
		case http.MethodPut:
			var buf bytes.Buffer
			buf.ReadFrom(r.Body)
			data[key] = buf.Bytes()
			w.WriteHeader(http.StatusNoContent)
		case http.MethodDelete:
			delete(data, key)
			w.WriteHeader(http.StatusNoContent)
		}
	})

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, data
}

func TestHTTPTierRoundTrip(t *testing.T) {
	server, data := kvServer(t)
	tier := NewHTTPTier(server.URL, testSecret, time.Second)
	ctx := context.Background()

	if err := tier.Write(ctx, "items", []byte(`{"version":1}`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if string(data["items"]) != `{"version":1}` {
		t.Errorf("server stored %q, want the written payload", data["items"])
	}

	value, found, err := tier.Read(ctx, "items")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !found || string(value) != `{"version":1}` {
		t.Errorf("Read() = %q, %v, want payload and found", value, found)
	}

	if err := tier.Remove(ctx, "items"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, found, _ := tier.Read(ctx, "items"); found {
		t.Error("Read() after Remove found = true, want false")
	}
}

func TestHTTPTierMissingKeyIsAbsentNotError(t *testing.T) {
	server, _ := kvServer(t)
	tier := NewHTTPTier(server.URL, testSecret, time.Second)

	value, found, err := tier.Read(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Read() error = %v, want nil for a missing key", err)
	}
	if found || value != nil {
		t.Errorf("Read() = %q, %v, want absent", value, found)
	}
}

func TestHTTPTierRejectedTokenIsPermissionFailure(t *testing.T) {
	server, _ := kvServer(t)
	tier := NewHTTPTier(server.URL, "wrong-secret", time.Second)

	err := tier.Write(context.Background(), "items", []byte("x"))
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("Write() error = %v, want RemoteError", err)
	}
	if remote.Kind != KindPermission {
		t.Errorf("Kind = %v, want KindPermission", remote.Kind)
	}
}

func TestHTTPTierQuotaRefusal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)
	tier := NewHTTPTier(server.URL, testSecret, time.Second)

	err := tier.Write(context.Background(), "items", []byte("x"))
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("Write() error = %v, want RemoteError", err)
	}
	if remote.Kind != KindWriteQuota {
		t.Errorf("Kind = %v, want KindWriteQuota", remote.Kind)
	}
}
