package raft

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// SecretHeader carries the cluster secret on membership requests.
const SecretHeader = "X-Cluster-Secret"

type joinRequest struct {
	NodeID   string `json:"node_id" binding:"required"`
	NodeAddr string `json:"node_addr" binding:"required"`
}

type leaveRequest struct {
	NodeID string `json:"node_id" binding:"required"`
}

// JoinCluster asks the node serving HTTP at joinAddr to add this node as a
// voter. It retries until ctx ends, since the target may still be electing.
// A rejected secret is not retried.
func JoinCluster(ctx context.Context, joinAddr, secret, nodeID, raftAddr string) error {
	body, err := json.Marshal(joinRequest{NodeID: nodeID, NodeAddr: raftAddr})
	if err != nil {
		return err
	}
	url := joinAddr
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	url = strings.TrimSuffix(url, "/") + "/raft/join"

	client := &http.Client{Timeout: 5 * time.Second}
	backoff := 200 * time.Millisecond
	for {
		err = postJSON(ctx, client, url, secret, body)
		if err == nil {
			log.WithFields(log.Fields{"join_addr": joinAddr, "node_id": nodeID}).Info("joined cluster")
			return nil
		}
		if errors.Is(err, errForbidden) {
			return fmt.Errorf("join cluster: %w", err)
		}
		log.WithError(err).WithField("join_addr", joinAddr).Warn("join attempt failed")

		select {
		case <-ctx.Done():
			return fmt.Errorf("join cluster: %w", err)
		case <-time.After(backoff):
		}
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}
}

var errForbidden = errors.New("cluster secret rejected")

func postJSON(ctx context.Context, client *http.Client, url, secret string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SecretHeader, secret)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errForbidden
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("received non-success response: %d %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// RegisterRoutes mounts the membership endpoints used by joining and
// leaving nodes. Callers must present the cluster secret.
func (n *Node) RegisterRoutes(rg *gin.RouterGroup) {
	rg.Use(n.requireSecret)
	rg.POST("/join", n.handleJoin)
	rg.POST("/leave", n.handleLeave)
}

func (n *Node) requireSecret(c *gin.Context) {
	want := n.config.ClusterSecret
	if want == "" {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "cluster membership changes are disabled"})
		return
	}
	got := c.GetHeader(SecretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		log.WithField("remote", c.ClientIP()).Warn("membership request with a bad cluster secret")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid cluster secret"})
		return
	}
	c.Next()
}

func (n *Node) handleJoin(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Failed to decode request: %v", err)})
		return
	}
	if err := n.Join(req.NodeID, req.NodeAddr); err != nil {
		n.membershipError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (n *Node) handleLeave(c *gin.Context) {
	var req leaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Failed to decode request: %v", err)})
		return
	}
	if err := n.Remove(req.NodeID); err != nil {
		n.membershipError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (n *Node) membershipError(c *gin.Context, err error) {
	if errors.Is(err, ErrNotLeader) {
		c.JSON(http.StatusConflict, gin.H{
			"error":  "not the leader",
			"leader": n.LeaderAddress(),
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
