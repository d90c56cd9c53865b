// Package sqlstore is the durable Store. It speaks sqlite by default
// and postgres through the pgx stdlib driver; the schema is created on
// open.
package sqlstore

import (
	"database/sql"
	"fmt"
	"log"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"fedchat/store"
	"fedchat/types"
)

type SQLStore struct {
	db         *sql.DB
	driverName string
}

func New(driverName, dataSourceName string) (*SQLStore, error) {
	if driverName == "sqlite3" && !strings.Contains(dataSourceName, "_foreign_keys") {
		dataSourceName += "?_foreign_keys=1"
	}
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLStore{db: db, driverName: driverName}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS peers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		port INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		admin BOOLEAN NOT NULL DEFAULT FALSE,
		owning_peer_id TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS channels (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		admin_only BOOLEAN NOT NULL DEFAULT FALSE,
		is_private BOOLEAN NOT NULL DEFAULT FALSE,
		created_at BIGINT NOT NULL,
		owning_peer_id TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		timestamp BIGINT NOT NULL,
		user_id TEXT NOT NULL,
		channel_id TEXT NOT NULL REFERENCES channels(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_messages_channel_time
		ON messages (channel_id, timestamp);
	`
	_, err := s.db.Exec(query)
	return err
}

// rebind swaps ? placeholders for $1..$n when talking to postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driverName == "pgx" {
		n := strings.Count(query, "?")
		for i := 1; i <= n; i++ {
			query = strings.Replace(query, "?", fmt.Sprintf("$%d", i), 1)
		}
	}
	return query
}

func (s *SQLStore) PutPeer(p *types.Peer) error {
	query := s.rebind(`
		INSERT INTO peers (id, name, address, port) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name,
			address = excluded.address, port = excluded.port`)
	_, err := s.db.Exec(query, p.ID, p.Name, p.Address, p.Port)
	return err
}

func (s *SQLStore) GetPeer(id string) *types.Peer {
	var p types.Peer
	query := s.rebind(`SELECT id, name, address, port FROM peers WHERE id = ?`)
	err := s.db.QueryRow(query, id).Scan(&p.ID, &p.Name, &p.Address, &p.Port)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Println("sqlstore: get peer:", err)
		}
		return nil
	}
	return &p
}

func (s *SQLStore) Peers() []*types.Peer {
	rows, err := s.db.Query(`SELECT id, name, address, port FROM peers ORDER BY id`)
	if err != nil {
		log.Println("sqlstore: list peers:", err)
		return nil
	}
	defer rows.Close()

	var out []*types.Peer
	for rows.Next() {
		var p types.Peer
		if err := rows.Scan(&p.ID, &p.Name, &p.Address, &p.Port); err != nil {
			continue
		}
		out = append(out, &p)
	}
	return out
}

func (s *SQLStore) RemovePeer(id string) bool {
	return s.removeByID("peers", id)
}

func (s *SQLStore) PutUser(u *types.User) error {
	query := s.rebind(`
		INSERT INTO users (id, username, admin, owning_peer_id) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET username = excluded.username,
			admin = excluded.admin`)
	_, err := s.db.Exec(query, u.ID, u.Username, u.Admin, u.OwningPeerID)
	return err
}

func (s *SQLStore) GetUser(id string) *types.User {
	return s.scanUser(s.rebind(`SELECT id, username, admin, owning_peer_id FROM users WHERE id = ?`), id)
}

func (s *SQLStore) FindUserByUsername(username string) *types.User {
	return s.scanUser(s.rebind(`SELECT id, username, admin, owning_peer_id FROM users WHERE username = ?`), username)
}

func (s *SQLStore) scanUser(query string, arg interface{}) *types.User {
	var u types.User
	err := s.db.QueryRow(query, arg).Scan(&u.ID, &u.Username, &u.Admin, &u.OwningPeerID)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Println("sqlstore: get user:", err)
		}
		return nil
	}
	return &u
}

func (s *SQLStore) Users() []*types.User {
	rows, err := s.db.Query(`SELECT id, username, admin, owning_peer_id FROM users ORDER BY id`)
	if err != nil {
		log.Println("sqlstore: list users:", err)
		return nil
	}
	defer rows.Close()

	var out []*types.User
	for rows.Next() {
		var u types.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Admin, &u.OwningPeerID); err != nil {
			continue
		}
		out = append(out, &u)
	}
	return out
}

func (s *SQLStore) RemoveUser(id string) bool {
	return s.removeByID("users", id)
}

func (s *SQLStore) PutChannel(c *types.Channel) error {
	query := s.rebind(`
		INSERT INTO channels (id, name, admin_only, is_private, created_at, owning_peer_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name`)
	_, err := s.db.Exec(query, c.ID, c.Name, c.AdminOnly, c.IsPrivate, c.CreatedAt, c.OwningPeerID)
	return err
}

func (s *SQLStore) GetChannel(id string) *types.Channel {
	return s.scanChannel(s.rebind(`
		SELECT id, name, admin_only, is_private, created_at, owning_peer_id
		FROM channels WHERE id = ?`), id)
}

func (s *SQLStore) FindChannelByName(name string) *types.Channel {
	return s.scanChannel(s.rebind(`
		SELECT id, name, admin_only, is_private, created_at, owning_peer_id
		FROM channels WHERE name = ?`), name)
}

func (s *SQLStore) scanChannel(query string, arg interface{}) *types.Channel {
	var c types.Channel
	err := s.db.QueryRow(query, arg).
		Scan(&c.ID, &c.Name, &c.AdminOnly, &c.IsPrivate, &c.CreatedAt, &c.OwningPeerID)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Println("sqlstore: get channel:", err)
		}
		return nil
	}
	return &c
}

func (s *SQLStore) Channels() []*types.Channel {
	rows, err := s.db.Query(`
		SELECT id, name, admin_only, is_private, created_at, owning_peer_id
		FROM channels ORDER BY created_at`)
	if err != nil {
		log.Println("sqlstore: list channels:", err)
		return nil
	}
	defer rows.Close()

	var out []*types.Channel
	for rows.Next() {
		var c types.Channel
		if err := rows.Scan(&c.ID, &c.Name, &c.AdminOnly, &c.IsPrivate, &c.CreatedAt, &c.OwningPeerID); err != nil {
			continue
		}
		out = append(out, &c)
	}
	return out
}

func (s *SQLStore) RemoveChannel(id string) bool {
	// Cascade handles sqlite (foreign keys pragma is forced on) and
	// postgres alike, but older databases created without the constraint
	// still need the explicit sweep.
	query := s.rebind(`DELETE FROM messages WHERE channel_id = ?`)
	if _, err := s.db.Exec(query, id); err != nil {
		log.Println("sqlstore: remove channel messages:", err)
	}
	return s.removeByID("channels", id)
}

func (s *SQLStore) PutMessage(m *types.Message) error {
	query := s.rebind(`
		INSERT INTO messages (id, content, timestamp, user_id, channel_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`)
	_, err := s.db.Exec(query, m.ID, m.Content, m.Timestamp, m.UserID, m.ChannelID)
	return err
}

func (s *SQLStore) GetMessage(id string) *types.Message {
	var m types.Message
	query := s.rebind(`SELECT id, content, timestamp, user_id, channel_id FROM messages WHERE id = ?`)
	err := s.db.QueryRow(query, id).Scan(&m.ID, &m.Content, &m.Timestamp, &m.UserID, &m.ChannelID)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Println("sqlstore: get message:", err)
		}
		return nil
	}
	return &m
}

func (s *SQLStore) FindMessages(channelID string, before int64, limit int) []*types.Message {
	if limit <= 0 {
		limit = store.DefaultMessageLimit
	}
	// Newest page below the cutoff, handed back in ascending order.
	query := s.rebind(`
		SELECT id, content, timestamp, user_id, channel_id FROM messages
		WHERE channel_id = ? AND timestamp < ?
		ORDER BY timestamp DESC LIMIT ?`)
	rows, err := s.db.Query(query, channelID, before, limit)
	if err != nil {
		log.Println("sqlstore: find messages:", err)
		return nil
	}
	defer rows.Close()

	var page []*types.Message
	for rows.Next() {
		var m types.Message
		if err := rows.Scan(&m.ID, &m.Content, &m.Timestamp, &m.UserID, &m.ChannelID); err != nil {
			continue
		}
		page = append(page, &m)
	}
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page
}

func (s *SQLStore) RemoveMessage(id string) bool {
	return s.removeByID("messages", id)
}

func (s *SQLStore) removeByID(table, id string) bool {
	query := s.rebind(`DELETE FROM ` + table + ` WHERE id = ?`)
	res, err := s.db.Exec(query, id)
	if err != nil {
		log.Printf("sqlstore: delete from %s: %v", table, err)
		return false
	}
	rows, _ := res.RowsAffected()
	return rows > 0
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
