// Package backup pushes entity snapshots to a remote HTTP backing
// store. Sync is best-effort: a failed push is logged and retried on
// the next tick, never escalated.
package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"fedchat/store"
	"fedchat/types"
)

// Snapshot is the full-state document POSTed to the backing store.
type Snapshot struct {
	ServerID string           `json:"server_id"`
	TakenAt  int64            `json:"taken_at"`
	Peers    []*types.Peer    `json:"peers"`
	Users    []*types.User    `json:"users"`
	Channels []*types.Channel `json:"channels"`
	Messages []*types.Message `json:"messages"`
}

// Most recent page a snapshot carries per channel.
const snapshotMessageLimit = 1000

type Client struct {
	url      string
	serverID string
	http     *http.Client
}

func NewClient(url, serverID string) *Client {
	return &Client{
		url:      url,
		serverID: serverID,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Push serializes the store's current contents and POSTs them as JSON.
func (c *Client) Push(st store.Store) error {
	snap := Snapshot{
		ServerID: c.serverID,
		TakenAt:  time.Now().UnixMilli(),
		Peers:    st.Peers(),
		Channels: st.Channels(),
		Users:    st.Users(),
	}
	cutoff := time.Now().UnixMilli() + 1
	for _, ch := range snap.Channels {
		snap.Messages = append(snap.Messages, st.FindMessages(ch.ID, cutoff, snapshotMessageLimit)...)
	}

	jsonData, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	req, err := http.NewRequest("POST", c.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("backing store answered %s", resp.Status)
	}
	return nil
}
