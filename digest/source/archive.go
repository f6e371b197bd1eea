package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/theimaginaryfoundation/thread-digest/digest"
)

// Archive is a local SQLite store of fetched threads.
type Archive struct {
	db  *sql.DB
	now func() time.Time
}

// OpenArchive opens or creates the archive at path.
func OpenArchive(path string) (*Archive, error) {
	if path == "" {
		return nil, errors.New("OpenArchive: path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("OpenArchive: mkdir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("OpenArchive: %w", err)
	}
	// One writer; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	a := &Archive{db: db, now: time.Now}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("OpenArchive: migrate: %w", err)
	}
	return a, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS threads (
		no INTEGER PRIMARY KEY,
		com TEXT NOT NULL DEFAULT '',
		imported_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS posts (
		thread_no INTEGER NOT NULL REFERENCES threads(no),
		no INTEGER NOT NULL,
		position INTEGER NOT NULL,
		com TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		country_name TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (thread_no, no)
	);

	CREATE INDEX IF NOT EXISTS idx_posts_thread_position ON posts(thread_no, position);
	`
	_, err := a.db.Exec(schema)
	return err
}

// SaveThreads upserts threads and their posts in one transaction and returns the number of posts written.
func (a *Archive) SaveThreads(ctx context.Context, threads []digest.Thread) (int, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("SaveThreads: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	threadStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO threads (no, com, imported_at) VALUES (?, ?, ?)
		ON CONFLICT(no) DO UPDATE SET
			com = excluded.com,
			imported_at = excluded.imported_at
	`)
	if err != nil {
		return 0, fmt.Errorf("SaveThreads: prepare threads: %w", err)
	}
	defer threadStmt.Close()

	postStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO posts (thread_no, no, position, com, country, country_name)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(thread_no, no) DO UPDATE SET
			position = excluded.position,
			com = excluded.com,
			country = excluded.country,
			country_name = excluded.country_name
	`)
	if err != nil {
		return 0, fmt.Errorf("SaveThreads: prepare posts: %w", err)
	}
	defer postStmt.Close()

	importedAt := a.now().UnixMilli()
	posts := 0
	for _, t := range threads {
		if _, err := threadStmt.ExecContext(ctx, t.No, t.Com, importedAt); err != nil {
			return 0, fmt.Errorf("SaveThreads: thread %d: %w", t.No, err)
		}
		for i, p := range t.Posts {
			if _, err := postStmt.ExecContext(ctx, t.No, p.No, i, p.Com, p.Country, p.CountryName); err != nil {
				return 0, fmt.Errorf("SaveThreads: thread %d post %d: %w", t.No, p.No, err)
			}
			posts++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("SaveThreads: commit: %w", err)
	}
	return posts, nil
}

// Threads returns archived threads ordered by thread number, posts in their original order.
// limit <= 0 returns all threads.
func (a *Archive) Threads(ctx context.Context, limit int) ([]digest.Thread, error) {
	query := `SELECT no, com FROM threads ORDER BY no`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Threads: %w", err)
	}
	threads := []digest.Thread{}
	for rows.Next() {
		var t digest.Thread
		if err := rows.Scan(&t.No, &t.Com); err != nil {
			rows.Close()
			return nil, fmt.Errorf("Threads: scan: %w", err)
		}
		t.Posts = []digest.Post{}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("Threads: %w", err)
	}
	rows.Close()

	for i := range threads {
		posts, err := a.posts(ctx, threads[i].No)
		if err != nil {
			return nil, err
		}
		threads[i].Posts = posts
	}
	return threads, nil
}

func (a *Archive) posts(ctx context.Context, threadNo int64) ([]digest.Post, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT no, com, country, country_name FROM posts
		WHERE thread_no = ?
		ORDER BY position, no
	`, threadNo)
	if err != nil {
		return nil, fmt.Errorf("posts for thread %d: %w", threadNo, err)
	}
	defer rows.Close()

	posts := []digest.Post{}
	for rows.Next() {
		var p digest.Post
		if err := rows.Scan(&p.No, &p.Com, &p.Country, &p.CountryName); err != nil {
			return nil, fmt.Errorf("posts for thread %d: scan: %w", threadNo, err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// Counts returns the number of archived threads and posts.
func (a *Archive) Counts(ctx context.Context) (threads, posts int, err error) {
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM threads`).Scan(&threads); err != nil {
		return 0, 0, fmt.Errorf("Counts: threads: %w", err)
	}
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&posts); err != nil {
		return 0, 0, fmt.Errorf("Counts: posts: %w", err)
	}
	return threads, posts, nil
}
