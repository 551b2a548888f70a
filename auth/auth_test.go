package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "Pengawas-Ujian-2024!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("wrong", hash)
	req.NoError(err)
	req.False(match)

	_, err = ComparePassword(password, "$bcrypt$whatever")
	req.Error(err)
}

func TestValidateOperator(t *testing.T) {
	tests := []struct {
		name    string
		req     OperatorRequest
		wantErr bool
	}{
		{"Valid request", OperatorRequest{"pengawas", "ComplexPass123!"}, false},
		{"Username with symbols", OperatorRequest{"peng@was", "ComplexPass123!"}, true},
		{"Password too short", OperatorRequest{"pengawas", "Short1!"}, true},
		{"Missing digit", OperatorRequest{"pengawas", "NoDigitPass!!"}, true},
		{"Missing special char", OperatorRequest{"pengawas", "NoSpecialChar123"}, true},
		{"Password too long", OperatorRequest{"pengawas", strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			err := ValidateOperator(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestTokens_GenerateAndValidate(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens("test-secret", time.Hour)

	token, err := tokens.Generate("op-1", "pengawas", []string{"operator"})
	req.NoError(err)

	claims, err := tokens.Validate(token)
	req.NoError(err)
	req.Equal("op-1", claims.OperatorID)
	req.True(claims.HasRole("operator"))

	// A token signed with another secret is refused
	_, err = NewTokens("other-secret", time.Hour).Validate(token)
	req.Error(err)

	// An expired token is refused
	expired, err := NewTokens("test-secret", -time.Minute).Generate("op-1", "pengawas", nil)
	req.NoError(err)
	_, err = tokens.Validate(expired)
	req.Error(err)
}

func TestRequireRole(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)
	protected := RequireRole(tokens, "operator", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Context().Value(OperatorIDKey).(string)))
	}))

	operatorToken, _ := tokens.Generate("op-1", "pengawas", []string{"operator"})
	viewerToken, _ := tokens.Generate("op-2", "viewer", []string{"viewer"})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer invalid-token-string", http.StatusUnauthorized},
		{"wrong role", "Bearer " + viewerToken, http.StatusForbidden},
		{"operator", "Bearer " + operatorToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			r := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			protected.ServeHTTP(w, r)

			req.Equal(tt.status, w.Code)
			if tt.status == http.StatusOK {
				req.Equal("op-1", w.Body.String())
			}
		})
	}
}
