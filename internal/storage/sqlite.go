package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/seroka/quill/internal/models"
)

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS posts (
	id           TEXT PRIMARY KEY,
	position     INTEGER NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	content      TEXT NOT NULL DEFAULT '',
	image        TEXT NOT NULL DEFAULT '',
	tags         TEXT NOT NULL DEFAULT '[]',
	is_published INTEGER NOT NULL DEFAULT 1,
	views        INTEGER NOT NULL DEFAULT 0,
	publish_date DATETIME NOT NULL,
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS admin (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	username   TEXT NOT NULL,
	password   TEXT NOT NULL,
	last_login DATETIME
);
`

// SQLite is a database-backed Provider. It keeps the same snapshot contract
// as the file backend: SavePosts rewrites the whole collection in a single
// transaction, with an explicit position column preserving storage order.
type SQLite struct {
	conn *sql.DB
}

// NewSQLite opens (or creates) the database at dsn and applies the schema.
func NewSQLite(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping sqlite: %w", err)
	}
	if _, err := conn.Exec(sqliteSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

func (s *SQLite) LoadPosts() ([]models.Post, error) {
	rows, err := s.conn.Query(`
		SELECT id, title, description, content, image, tags,
		       is_published, views, publish_date, created_at, updated_at
		FROM posts ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("storage: load posts: %w", err)
	}
	defer rows.Close()

	out := []models.Post{}
	for rows.Next() {
		var p models.Post
		var tagsJSON string
		var published int
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Content, &p.Image,
			&tagsJSON, &published, &p.Views, &p.PublishDate, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan post: %w", err)
		}
		p.IsPublished = published != 0
		if err := json.Unmarshal([]byte(tagsJSON), &p.Tags); err != nil {
			p.Tags = []string{}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLite) SavePosts(posts []models.Post) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM posts`); err != nil {
		return fmt.Errorf("storage: clear posts: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO posts (id, position, title, description, content, image, tags,
		                   is_published, views, publish_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range posts {
		tagsJSON, _ := json.Marshal(p.Tags)
		published := 0
		if p.IsPublished {
			published = 1
		}
		if _, err := stmt.Exec(p.ID, i, p.Title, p.Description, p.Content, p.Image,
			string(tagsJSON), published, p.Views, p.PublishDate, p.CreatedAt, p.UpdatedAt); err != nil {
			return fmt.Errorf("storage: insert post %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) LoadAdmin(def models.Admin) (models.Admin, error) {
	var admin models.Admin
	var lastLogin sql.NullTime
	err := s.conn.QueryRow(`SELECT username, password, last_login FROM admin WHERE id = 1`).
		Scan(&admin.Username, &admin.Password, &lastLogin)
	if err == nil {
		if lastLogin.Valid {
			t := lastLogin.Time
			admin.LastLogin = &t
		}
		return admin, nil
	}
	if err != sql.ErrNoRows {
		return models.Admin{}, fmt.Errorf("storage: load admin: %w", err)
	}
	if saveErr := s.SaveAdmin(def); saveErr != nil {
		return models.Admin{}, fmt.Errorf("storage: bootstrap admin: %w", saveErr)
	}
	return def, nil
}

func (s *SQLite) SaveAdmin(admin models.Admin) error {
	var lastLogin any
	if admin.LastLogin != nil {
		lastLogin = *admin.LastLogin
	}
	_, err := s.conn.Exec(`
		INSERT INTO admin (id, username, password, last_login) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username   = excluded.username,
			password   = excluded.password,
			last_login = excluded.last_login`,
		admin.Username, admin.Password, lastLogin)
	if err != nil {
		return fmt.Errorf("storage: save admin: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.conn.Close()
}
