package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/kevin07696/slot-billing/internal/domain/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingManager struct {
	calls int32
	err   error
}

func (c *countingManager) GetSecret(_ context.Context, path string) (*ports.Secret, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.err != nil {
		return nil, c.err
	}
	return &ports.Secret{Value: "value-of-" + path}, nil
}

func TestEnvManager(t *testing.T) {
	t.Setenv("BILLING_TEST_SECRET", "sk_test_abc")
	sm := NewEnvManager()

	secret, err := sm.GetSecret(context.Background(), "BILLING_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "sk_test_abc", secret.Value)

	_, err = sm.GetSecret(context.Background(), "BILLING_TEST_SECRET_MISSING")
	assert.Error(t, err)
}

func TestFileManager(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "stripe"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stripe", "secret_key"), []byte("sk_file\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "webhook.json"), []byte(`{"value":"whsec_json","version":"4"}`), 0o600))

	sm := NewFileManager(root, zap.NewNop())

	plain, err := sm.GetSecret(context.Background(), "stripe/secret_key")
	require.NoError(t, err)
	assert.Equal(t, "sk_file", plain.Value)

	doc, err := sm.GetSecret(context.Background(), "webhook.json")
	require.NoError(t, err)
	assert.Equal(t, "whsec_json", doc.Value)
	assert.Equal(t, "4", doc.Version)

	_, err = sm.GetSecret(context.Background(), "../../etc/passwd")
	assert.Error(t, err, "paths cannot escape the root")
}

func TestWithCache(t *testing.T) {
	inner := &countingManager{}
	sm := WithCache(inner, time.Minute).(*cachingManager)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sm.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		secret, err := sm.GetSecret(context.Background(), "JWT_SECRET")
		require.NoError(t, err)
		assert.Equal(t, "value-of-JWT_SECRET", secret.Value)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))

	now = now.Add(2 * time.Minute)
	_, err := sm.GetSecret(context.Background(), "JWT_SECRET")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&inner.calls), "expired entries are refetched")
}

func TestWithCache_DoesNotCacheErrors(t *testing.T) {
	inner := &countingManager{err: errors.New("throttled")}
	sm := WithCache(inner, time.Minute)

	_, err := sm.GetSecret(context.Background(), "x")
	assert.Error(t, err)
	_, err = sm.GetSecret(context.Background(), "x")
	assert.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&inner.calls))

	assert.Same(t, inner, WithCache(inner, 0))
}

func TestVaultManager_KVv2(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "s.test-token", r.Header.Get("X-Vault-Token"))
		switch r.URL.Path {
		case "/v1/secret/data/billing/stripe":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{
					"data":     map[string]interface{}{"value": "sk_vault", "owner": "billing"},
					"metadata": map[string]interface{}{"version": 3, "created_time": "2026-01-01T00:00:00Z"},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
		}
	}))
	defer srv.Close()

	sm, err := NewVaultManager(context.Background(), VaultConfig{Address: srv.URL, Token: "s.test-token"}, zap.NewNop())
	require.NoError(t, err)

	secret, err := sm.GetSecret(context.Background(), "billing/stripe")
	require.NoError(t, err)
	assert.Equal(t, "sk_vault", secret.Value)
	assert.Equal(t, "3", secret.Version)
	assert.Equal(t, "2026-01-01T00:00:00Z", secret.CreatedAt)
	assert.Equal(t, "billing", secret.Metadata["owner"])

	_, err = sm.GetSecret(context.Background(), "billing/missing")
	assert.Error(t, err)
}

func TestVaultManager_RequiresCredentials(t *testing.T) {
	_, err := NewVaultManager(context.Background(), VaultConfig{Address: "http://127.0.0.1:8200"}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewVaultManager(context.Background(), VaultConfig{Address: "http://127.0.0.1:8200", AuthMethod: "approle"}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewVaultManager(context.Background(), VaultConfig{Address: "http://127.0.0.1:8200", AuthMethod: "ldap"}, zap.NewNop())
	assert.Error(t, err)
}

func TestAWSManager(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secretsmanager.GetSecretValue", r.Header.Get("X-Amz-Target"))
		var in struct {
			SecretId string
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))

		w.Header().Set("Content-Type", "application/x-amz-json-1.1")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ARN":          "arn:aws:secretsmanager:us-east-1:123456789012:secret:" + in.SecretId,
			"Name":         in.SecretId,
			"SecretString": "sk_aws",
			"VersionId":    "v-1",
		})
	}))
	defer srv.Close()

	sm, err := NewAWSManager(context.Background(), AWSConfig{
		Region:   "us-east-1",
		Endpoint: srv.URL,
		loadOptions: []func(*config.LoadOptions) error{
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKID", "SECRET", "")),
		},
	}, zap.NewNop())
	require.NoError(t, err)

	secret, err := sm.GetSecret(context.Background(), "billing/stripe")
	require.NoError(t, err)
	assert.Equal(t, "sk_aws", secret.Value)
	assert.Equal(t, "v-1", secret.Version)
	assert.Equal(t, "billing/stripe", secret.Metadata["name"])
}

func TestGCPSecretName(t *testing.T) {
	assert.Equal(t, "projects/p1/secrets/stripe-key/versions/latest", gcpSecretName("p1", "stripe-key"))
	assert.Equal(t, "projects/p2/secrets/x/versions/3", gcpSecretName("p1", "projects/p2/secrets/x/versions/3"))
}

func TestNew(t *testing.T) {
	sm, closer, err := New(context.Background(), Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &envManager{}, sm)
	assert.NoError(t, closer())

	sm, _, err = New(context.Background(), Config{Provider: ProviderFile, FileRoot: t.TempDir(), CacheTTL: time.Minute}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &cachingManager{}, sm)

	_, closer, err = New(context.Background(), Config{Provider: "consul"}, zap.NewNop())
	assert.Error(t, err)
	assert.NotNil(t, closer)
}

func TestResolve(t *testing.T) {
	t.Setenv("BILLING_STRIPE_KEY", "sk_1")
	t.Setenv("BILLING_JWT", "jwt_1")

	values, err := Resolve(context.Background(), NewEnvManager(), map[string]string{
		"stripe": "BILLING_STRIPE_KEY",
		"jwt":    "BILLING_JWT",
		"unused": "",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"stripe": "sk_1", "jwt": "jwt_1"}, values)

	_, err = Resolve(context.Background(), NewEnvManager(), map[string]string{"x": "BILLING_NOT_SET"})
	assert.Error(t, err)
}
