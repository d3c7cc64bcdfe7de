// Copyright 2026 Noesis Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Context keys set by the auth middleware.
const (
	ctxSubject     = "subject"
	ctxTokenTenant = "token_tenant"
	ctxIsAdmin     = "is_admin"
)

// SignToken issues an HS256 bearer token. A token bound to a tenant
// may only call that tenant's endpoints; an empty tenantID with the
// admin scope grants everything.
func SignToken(secret []byte, subject, tenantID string, ttl time.Duration, scopes ...string) (string, error) {
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(ttl).Unix(),
	}
	if tenantID != "" {
		claims["tenant"] = tenantID
	}
	if len(scopes) > 0 {
		claims["scopes"] = scopes
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func authMiddleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tok := bearerToken(c)
			if tok == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
			}

			parsed, err := jwt.Parse(tok,
				func(t *jwt.Token) (interface{}, error) { return secret, nil },
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !parsed.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			claims, ok := parsed.Claims.(jwt.MapClaims)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if sub, ok := claims["sub"].(string); ok {
				c.Set(ctxSubject, sub)
			}
			if tenantID, ok := claims["tenant"].(string); ok {
				c.Set(ctxTokenTenant, tenantID)
			}
			c.Set(ctxIsAdmin, hasScope(claims, "admin"))
			return next(c)
		}
	}
}

// requireTenantAccess lets a request through when its token is bound
// to the tenant in the URL, or carries the admin scope.
func requireTenantAccess(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if admin, _ := c.Get(ctxIsAdmin).(bool); admin {
			return next(c)
		}
		tokenTenant, _ := c.Get(ctxTokenTenant).(string)
		if tokenTenant != "" && tokenTenant == c.Param("tenant") {
			return next(c)
		}
		return echo.NewHTTPError(http.StatusForbidden, "token is not valid for this tenant")
	}
}

func requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if admin, _ := c.Get(ctxIsAdmin).(bool); admin {
			return next(c)
		}
		return echo.NewHTTPError(http.StatusForbidden, "admin scope required")
	}
}

func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func hasScope(claims jwt.MapClaims, target string) bool {
	raw, ok := claims["scopes"]
	if !ok {
		return false
	}
	list, ok := raw.([]interface{})
	if !ok {
		return false
	}
	for _, item := range list {
		if s, ok := item.(string); ok && s == target {
			return true
		}
	}
	return false
}
