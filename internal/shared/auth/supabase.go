// Package auth valida tokens JWT emitidos pelo Supabase Auth.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleServiceRole = "service_role"
	RoleAdmin       = "admin"
)

// User representa o usuário autenticado extraído das claims do token
type User struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	BusinessID string `json:"business_id,omitempty"` // app_metadata.business_id (gestor de empresa)
}

type contextKey string

const userContextKey contextKey = "supabase_user"

// Middleware valida o header Authorization: Bearer <jwt> com o segredo HS256 do projeto.
// Segredo vazio desliga a validação (apenas local): a requisição segue como service_role.
type Middleware struct {
	secret []byte
}

func NewMiddleware(secret string) *Middleware { return &Middleware{secret: []byte(secret)} }

// Enabled indica se a validação de token está ativa
func (m *Middleware) Enabled() bool { return len(m.secret) > 0 }

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() {
			u := &User{ID: "local", Role: RoleServiceRole}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
			return
		}

		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		user, err := m.Parse(parts[1])
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// Parse verifica assinatura/expiração e monta o User
func (m *Middleware) Parse(token string) (*User, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt parse: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("jwt invalid")
	}

	u := &User{
		ID:    stringClaim(claims, "sub"),
		Email: stringClaim(claims, "email"),
		Role:  stringClaim(claims, "role"),
	}
	if meta, ok := claims["app_metadata"].(map[string]interface{}); ok {
		if v, ok := meta["business_id"].(string); ok {
			u.BusinessID = v
		}
		// papel da aplicação tem precedência sobre o "authenticated" do Supabase
		if v, ok := meta["role"].(string); ok && v != "" {
			u.Role = v
		}
	}
	// a chave service_role do Supabase não tem sub
	if u.ID == "" && u.Role != RoleServiceRole {
		return nil, fmt.Errorf("jwt without sub")
	}
	return u, nil
}

func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

func UserFrom(ctx context.Context) *User {
	u, _ := ctx.Value(userContextKey).(*User)
	return u
}

// IsPrivileged indica papéis que podem agir por qualquer assinante
func (u *User) IsPrivileged() bool {
	return u != nil && (u.Role == RoleServiceRole || u.Role == RoleAdmin)
}

// CanActFor verifica se o usuário do contexto pode operar pelo assinante informado
func CanActFor(ctx context.Context, kind, subscriberID string) bool {
	u := UserFrom(ctx)
	if u == nil {
		return false
	}
	if u.IsPrivileged() {
		return true
	}
	switch kind {
	case "user":
		return u.ID == subscriberID
	case "business":
		return u.BusinessID != "" && u.BusinessID == subscriberID
	}
	return false
}

// QueryToken aceita o JWT em ?access_token= quando não há header Authorization.
// Usado no upgrade WebSocket, onde o navegador não envia headers customizados.
func QueryToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			if tok := r.URL.Query().Get("access_token"); tok != "" {
				r = r.Clone(r.Context())
				r.Header.Set("Authorization", "Bearer "+tok)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePrivileged bloqueia rotas internas/administrativas
func RequirePrivileged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !UserFrom(r.Context()).IsPrivileged() {
			writeError(w, http.StatusForbidden, "insufficient permissions")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func stringClaim(c jwt.MapClaims, key string) string {
	v, _ := c[key].(string)
	return v
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
