package apikeys

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCredential(t *testing.T) {
	cases := []struct {
		name   string
		header map[string]string
		query  string
		want   string
	}{
		{
			name:   "authorization bearer header",
			header: map[string]string{"Authorization": "Bearer sk_abc"},
			want:   "sk_abc",
		},
		{
			name:   "x-api-key header",
			header: map[string]string{"X-Api-Key": "sk_def"},
			want:   "sk_def",
		},
		{
			name:  "key query parameter",
			query: "?key=sk_ghi",
			want:  "sk_ghi",
		},
		{
			name: "bearer header wins over the rest",
			header: map[string]string{
				"Authorization": "Bearer sk_first",
				"X-Api-Key":     "sk_second",
			},
			query: "?key=sk_third",
			want:  "sk_first",
		},
		{
			name:   "x-api-key wins over query",
			header: map[string]string{"X-Api-Key": "sk_second"},
			query:  "?key=sk_third",
			want:   "sk_second",
		},
		{
			name:   "non-bearer authorization is ignored",
			header: map[string]string{"Authorization": "Basic dXNlcg=="},
			want:   "",
		},
		{
			name: "no credential",
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/github-summarizer"+tc.query, nil)
			for k, v := range tc.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, ExtractCredential(req))
		})
	}
}

func TestGateAdmit(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()

	t.Run("admits and meters exactly once", func(t *testing.T) {
		store := newMemStore()
		svc := NewService(store, nil)
		gate := NewGate(svc)

		key, err := svc.Create(ctx, owner, CreateRequest{Name: "ci"})
		require.NoError(t, err)

		u, err := gate.Admit(ctx, key.Key)
		require.NoError(t, err)
		assert.Equal(t, int64(1), u.UsageCount)
		assert.Equal(t, 1, store.incrementCalls)
	})

	t.Run("validation rejections short-circuit the meter", func(t *testing.T) {
		store := newMemStore()
		svc := NewService(store, nil)
		gate := NewGate(svc)

		key, err := svc.Create(ctx, owner, CreateRequest{Name: "ci"})
		require.NoError(t, err)
		_, err = svc.SetActive(ctx, key.ID, owner, false)
		require.NoError(t, err)

		cases := []struct {
			name  string
			token string
			want  error
		}{
			{"missing", "", ErrMissingCredential},
			{"invalid", "sk_nope", ErrInvalidCredential},
			{"revoked", key.Key, ErrRevokedCredential},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := gate.Admit(ctx, tc.token)
				assert.ErrorIs(t, err, tc.want)
			})
		}
		assert.Zero(t, store.incrementCalls, "rejected requests must not consume quota")
	})
}
