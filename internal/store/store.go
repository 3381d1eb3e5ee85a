package store

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/sjank/fbgrab/internal/types"
)

// Store handles all database operations
type Store struct {
	db *sql.DB
}

// New creates a new Store with SQLite backend
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		id INTEGER PRIMARY KEY,
		author_id INTEGER NOT NULL,
		is_group_post BOOLEAN,
		ref TEXT,
		extracted_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS comments (
		id INTEGER NOT NULL,
		post_id INTEGER NOT NULL REFERENCES posts(id),
		author_id INTEGER,
		author_name TEXT,
		text TEXT,
		rich_text TEXT,
		mentions TEXT,
		link_title TEXT,
		link_url TEXT,
		media_url TEXT,
		parent_id INTEGER,
		is_reply BOOLEAN,
		PRIMARY KEY (post_id, id)
	);

	CREATE TABLE IF NOT EXISTS reactions (
		post_id INTEGER NOT NULL REFERENCES posts(id),
		actor_id INTEGER NOT NULL,
		actor_name TEXT,
		kind TEXT,
		PRIMARY KEY (post_id, actor_id)
	);

	CREATE TABLE IF NOT EXISTS shares (
		post_id INTEGER NOT NULL REFERENCES posts(id),
		actor_id INTEGER NOT NULL,
		actor_name TEXT,
		PRIMARY KEY (post_id, actor_id)
	);

	CREATE INDEX IF NOT EXISTS idx_comments_parent ON comments(post_id, parent_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveResult upserts one full extraction result in a single transaction.
// Re-extracting the same post replaces its engagement rows.
func (s *Store) SaveResult(r *Result) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO posts (id, author_id, is_group_post, ref, extracted_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			extracted_at = excluded.extracted_at,
			ref = excluded.ref
	`, r.Post.PostID, r.Post.AuthorID, r.Post.IsGroupPost, r.Ref, r.ExtractedAt)
	if err != nil {
		return err
	}

	for _, c := range r.Comments {
		mentionsJSON, _ := json.Marshal(c.Mentions)
		_, err = tx.Exec(`
			INSERT INTO comments (id, post_id, author_id, author_name, text,
				rich_text, mentions, link_title, link_url, media_url, parent_id, is_reply)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(post_id, id) DO UPDATE SET
				parent_id = excluded.parent_id,
				is_reply = excluded.is_reply
		`, c.ID, r.Post.PostID, c.AuthorID, c.AuthorName, c.Text,
			c.RichText, string(mentionsJSON), c.LinkTitle, c.LinkURL, c.MediaURL,
			c.ParentID, c.IsReply)
		if err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`DELETE FROM reactions WHERE post_id = ?`, r.Post.PostID); err != nil {
		return err
	}
	for _, re := range r.Reactions {
		_, err = tx.Exec(`
			INSERT INTO reactions (post_id, actor_id, actor_name, kind)
			VALUES (?, ?, ?, ?)
		`, r.Post.PostID, re.ActorID, re.ActorName, string(re.Kind))
		if err != nil {
			return err
		}
	}

	for _, sh := range r.Shares {
		_, err = tx.Exec(`
			INSERT INTO shares (post_id, actor_id, actor_name)
			VALUES (?, ?, ?)
			ON CONFLICT(post_id, actor_id) DO NOTHING
		`, r.Post.PostID, sh.ActorID, sh.ActorName)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetComments returns the stored comments for a post in insertion order.
func (s *Store) GetComments(postID int64) ([]*types.Comment, error) {
	rows, err := s.db.Query(`
		SELECT id, author_id, author_name, text, rich_text, mentions,
			link_title, link_url, media_url, parent_id, is_reply
		FROM comments
		WHERE post_id = ?
		ORDER BY rowid
	`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []*types.Comment
	for rows.Next() {
		var c types.Comment
		var mentionsJSON string

		err := rows.Scan(
			&c.ID, &c.AuthorID, &c.AuthorName, &c.Text, &c.RichText, &mentionsJSON,
			&c.LinkTitle, &c.LinkURL, &c.MediaURL, &c.ParentID, &c.IsReply,
		)
		if err != nil {
			return nil, err
		}

		json.Unmarshal([]byte(mentionsJSON), &c.Mentions)
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}

// GetReactions returns the stored reactions for a post.
func (s *Store) GetReactions(postID int64) ([]types.Reaction, error) {
	rows, err := s.db.Query(`
		SELECT actor_id, actor_name, kind FROM reactions WHERE post_id = ?
	`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reactions []types.Reaction
	for rows.Next() {
		var r types.Reaction
		var kind string
		if err := rows.Scan(&r.ActorID, &r.ActorName, &kind); err != nil {
			return nil, err
		}
		r.Kind = types.ReactionKind(kind)
		reactions = append(reactions, r)
	}
	return reactions, rows.Err()
}

// GetShares returns the stored shares for a post.
func (s *Store) GetShares(postID int64) ([]types.Share, error) {
	rows, err := s.db.Query(`
		SELECT actor_id, actor_name FROM shares WHERE post_id = ?
	`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shares []types.Share
	for rows.Next() {
		var sh types.Share
		if err := rows.Scan(&sh.ActorID, &sh.ActorName); err != nil {
			return nil, err
		}
		shares = append(shares, sh)
	}
	return shares, rows.Err()
}

// PostExists checks if a post has been extracted before
func (s *Store) PostExists(id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM posts WHERE id = ?)`, id).Scan(&exists)
	return exists, err
}
