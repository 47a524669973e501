package secrets

import (
	"context"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type stubSecretClient struct {
	accessFn func(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error)
	calls    int
}

func (s *stubSecretClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	s.calls++
	if s.accessFn != nil {
		return s.accessFn(ctx, req)
	}
	return nil, status.Error(codes.NotFound, "missing")
}

func (s *stubSecretClient) Close() error { return nil }

func secretResponse(value string) *secretmanagerpb.AccessSecretVersionResponse {
	return &secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}
}

func TestResolveFetchesAndCaches(t *testing.T) {
	client := &stubSecretClient{
		accessFn: func(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			if req.Name != "projects/higgsflow/secrets/image-token/versions/latest" {
				t.Fatalf("unexpected resource name %q", req.Name)
			}
			return secretResponse("token-value"), nil
		},
	}

	fetcher, err := NewFetcher(context.Background(),
		WithSecretManagerClient(client),
		WithDefaultProject("higgsflow"),
		WithFallbackFile(""),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 2; i++ {
		value, err := fetcher.Resolve(context.Background(), "secret://image-token")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if value != "token-value" {
			t.Fatalf("expected token-value, got %q", value)
		}
	}
	if client.calls != 1 {
		t.Fatalf("expected a single remote fetch, got %d", client.calls)
	}
}

func TestResolveVersionedReference(t *testing.T) {
	client := &stubSecretClient{
		accessFn: func(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			if req.Name != "projects/p/secrets/tok/versions/7" {
				t.Fatalf("unexpected resource name %q", req.Name)
			}
			return secretResponse("v7"), nil
		},
	}
	fetcher, err := NewFetcher(context.Background(), WithSecretManagerClient(client), WithFallbackFile(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	value, err := fetcher.Resolve(context.Background(), "secret://p/tok@7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "v7" {
		t.Fatalf("expected v7, got %q", value)
	}
}

func TestResolveMissingSecretFails(t *testing.T) {
	fetcher, err := NewFetcher(context.Background(),
		WithSecretManagerClient(&stubSecretClient{}),
		WithDefaultProject("p"),
		WithFallbackFile(""),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := fetcher.Resolve(context.Background(), "secret://absent"); err == nil {
		t.Fatal("expected error for missing secret")
	}
}

func TestParseReference(t *testing.T) {
	cases := []struct {
		ref     string
		project string
		secret  string
		version string
		wantErr bool
	}{
		{ref: "secret://image-token", secret: "image-token", version: "latest"},
		{ref: "secret://proj/name@3", project: "proj", secret: "name", version: "3"},
		{ref: "sm://projects/p/secrets/s", project: "p", secret: "s", version: "latest"},
		{ref: "secret://projects/p/badform", wantErr: true},
		{ref: "  ", wantErr: true},
	}

	for _, tc := range cases {
		parsed, err := parseReference(tc.ref)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", tc.ref)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tc.ref, err)
		}
		if parsed.Project != tc.project || parsed.Secret != tc.secret || parsed.Version != tc.version {
			t.Fatalf("unexpected parse for %q: %+v", tc.ref, parsed)
		}
	}
}
