package sprites

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
)

// The SQL schema for the sprite database
//
//go:embed schema.sql
var schemaSQL string

// DB is the SQLite-backed SpriteStore. The conn-level functions below (SaveSprite,
// GetSpriteByKey, ...) are also exported for callers that want to batch several
// writes in one savepoint.
type DB struct {
	*sqlitex.Pool
}

var _ SpriteStore = (*DB)(nil)

func setUpDb(conn *sqlite.Conn) error {
	return sqlitex.ExecScript(conn, schemaSQL)
}

func NewDB(uri string, poolSize int) (*DB, error) {
	dbpool, err := sqlitex.Open(uri, 0, poolSize)
	if err != nil {
		return nil, err
	}
	conn := dbpool.Get(context.TODO())
	if conn == nil {
		dbpool.Close()
		return nil, errors.New("couldn't get a connection")
	}
	err = setUpDb(conn)
	dbpool.Put(conn)
	if err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("couldn't set up db: %s", err)
	}
	return &DB{dbpool}, nil
}

func (db *DB) getConn(ctx context.Context) (*sqlite.Conn, error) {
	conn := db.Get(ctx)
	if conn == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("couldn't get a connection")
	}
	return conn, nil
}

func (db *DB) Save(ctx context.Context, rec *SpriteRecord, contents []byte) error {
	conn, err := db.getConn(ctx)
	if err != nil {
		return err
	}
	defer db.Put(conn)
	_, err = SaveSprite(conn, rec, contents)
	return err
}

func (db *DB) Open(ctx context.Context, key string) (*SpriteRecord, io.ReadCloser, error) {
	conn, err := db.getConn(ctx)
	if err != nil {
		return nil, nil, err
	}
	rec, err := GetSpriteByKey(conn, key)
	if err != nil {
		db.Put(conn)
		return nil, nil, err
	}
	if rec == nil {
		db.Put(conn)
		return nil, nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	blob, err := OpenSpriteContents(conn, rec.SpriteID)
	if err != nil {
		db.Put(conn)
		return nil, nil, err
	}
	// The connection has to stay checked out until the blob is closed
	return rec, &spriteBlob{Blob: blob, release: func() { db.Put(conn) }}, nil
}

type spriteBlob struct {
	*sqlite.Blob
	release func()
}

func (b *spriteBlob) Close() error {
	err := b.Blob.Close()
	b.release()
	return err
}

// SaveSprite inserts the sprite, or replaces the one already stored under the same
// key. Returns the sprite ID.
func SaveSprite(conn *sqlite.Conn, rec *SpriteRecord, contents []byte) (int64, error) {
	if err := validateKey(rec.Key); err != nil {
		return 0, err
	}
	colorSeedsJSON, err := json.Marshal(rec.ColorSeeds)
	if err != nil {
		return 0, err
	}
	query := `
		insert into sprite (
			sprite_key, content_type, created_at, n_iters, extinction, survival, size,
			sprite_seed, color_seeds, contents
		)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		on conflict (sprite_key) do update set
			content_type = excluded.content_type,
			created_at = excluded.created_at,
			n_iters = excluded.n_iters,
			extinction = excluded.extinction,
			survival = excluded.survival,
			size = excluded.size,
			sprite_seed = excluded.sprite_seed,
			color_seeds = excluded.color_seeds,
			contents = excluded.contents`
	err = sqlitex.Exec(
		conn, query, nil,
		rec.Key, rec.ContentType, rec.CreatedAt.UTC().Unix(), rec.Iterations, rec.Extinction,
		rec.Survival, rec.Size, rec.SpriteSeed, string(colorSeedsJSON), contents,
	)
	if err != nil {
		return 0, err
	}
	// LastInsertRowID isn't updated when the upsert takes the update path
	var spriteID int64
	collect := func(stmt *sqlite.Stmt) error {
		spriteID = stmt.ColumnInt64(0)
		return nil
	}
	err = sqlitex.Exec(conn, "select sprite_id from sprite where sprite_key = ?", collect, rec.Key)
	rec.SpriteID = spriteID
	return spriteID, err
}

// Returns nil (and no error) if there is no sprite with this key.
func GetSpriteByKey(conn *sqlite.Conn, key string) (*SpriteRecord, error) {
	var rec *SpriteRecord
	query := `
		select
			sprite_id, sprite_key, content_type, created_at, n_iters, extinction, survival,
			size, sprite_seed, color_seeds
		from sprite
		where sprite_key = ?
		limit 1`
	collect := func(stmt *sqlite.Stmt) error {
		rec = &SpriteRecord{
			SpriteID:    stmt.ColumnInt64(0),
			Key:         stmt.ColumnText(1),
			ContentType: stmt.ColumnText(2),
			CreatedAt:   time.Unix(stmt.ColumnInt64(3), 0).UTC(),
			Iterations:  stmt.ColumnInt(4),
			Extinction:  stmt.ColumnFloat(5),
			Survival:    stmt.ColumnFloat(6),
			Size:        stmt.ColumnInt(7),
			SpriteSeed:  stmt.ColumnInt64(8),
		}
		return json.Unmarshal([]byte(stmt.ColumnText(9)), &rec.ColorSeeds)
	}
	err := sqlitex.Exec(conn, query, collect, key)
	return rec, err
}

func OpenSpriteContents(conn *sqlite.Conn, spriteID int64) (*sqlite.Blob, error) {
	return conn.OpenBlob("main", "sprite", "contents", spriteID, false)
}

// Most recently generated first. A negative limit means no limit.
func GetRecentSprites(conn *sqlite.Conn, limit int) ([]SpriteRecord, error) {
	var sprites []SpriteRecord
	query := `
		select sprite_id, sprite_key, content_type, created_at, size
		from sprite
		order by created_at desc, sprite_id desc
		limit ?`
	collect := func(stmt *sqlite.Stmt) error {
		sprites = append(sprites, SpriteRecord{
			SpriteID:    stmt.ColumnInt64(0),
			Key:         stmt.ColumnText(1),
			ContentType: stmt.ColumnText(2),
			CreatedAt:   time.Unix(stmt.ColumnInt64(3), 0).UTC(),
			Size:        stmt.ColumnInt(4),
		})
		return nil
	}
	err := sqlitex.Exec(conn, query, collect, limit)
	return sprites, err
}
