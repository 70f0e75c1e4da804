package raft

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func membershipRouter(t *testing.T, db *gorm.DB, secret string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	node, err := NewNode(&Config{NodeID: "test", Bootstrap: true, ClusterSecret: secret}, db)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	t.Cleanup(func() { _ = node.Shutdown() })
	router := gin.New()
	node.RegisterRoutes(router.Group("/raft"))
	return router
}

func postMembership(router *gin.Engine, path, secret string) int {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w.Code
}

func TestMembershipRequiresClusterSecret(t *testing.T) {
	router := membershipRouter(t, newTestDB(t), "s3cret")

	for _, path := range []string{"/raft/join", "/raft/leave"} {
		if code := postMembership(router, path, ""); code != http.StatusUnauthorized {
			t.Errorf("%s without secret: %d", path, code)
		}
		if code := postMembership(router, path, "guess"); code != http.StatusUnauthorized {
			t.Errorf("%s with wrong secret: %d", path, code)
		}
		// the request reaches the handler, which rejects the empty body
		if code := postMembership(router, path, "s3cret"); code != http.StatusBadRequest {
			t.Errorf("%s with secret: %d", path, code)
		}
	}
}

func TestMembershipDisabledWithoutSecret(t *testing.T) {
	router := membershipRouter(t, newTestDB(t), "")

	if code := postMembership(router, "/raft/join", ""); code != http.StatusForbidden {
		t.Fatalf("join on a node without a secret: %d", code)
	}
}

func TestJoinClusterStopsOnRejectedSecret(t *testing.T) {
	srv := httptest.NewServer(membershipRouter(t, newTestDB(t), "s3cret"))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := JoinCluster(ctx, srv.URL, "wrong", "node2", "127.0.0.1:7001")
	if !errors.Is(err, errForbidden) {
		t.Fatalf("expected rejected secret, got %v", err)
	}
}
