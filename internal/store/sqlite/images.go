package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/roach88/shelf/internal/record"
	"github.com/roach88/shelf/internal/store"
)

const selectImages = `SELECT id, title, data, type FROM images`

// InsertImage stores a new image and returns its auto-increment id.
func (s *Store) InsertImage(ctx context.Context, img record.ImageData) (int64, error) {
	id, err := s.insert(ctx, img.Image())
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Insert implements store.Store. A zero ID auto-increments; a non-zero ID
// overwrites any existing row with that id.
func (s *Store) Insert(ctx context.Context, img record.Image) (string, error) {
	id, err := s.insert(ctx, img)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *Store) insert(ctx context.Context, img record.Image) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.ready("insert"); err != nil {
		return 0, err
	}
	if s.opts.Validator != nil {
		if err := s.opts.Validator.Validate(img); err != nil {
			return 0, store.Invalid("insert", img.Key(), err)
		}
	}

	// data is NOT NULL; a nil slice would bind as NULL
	data := img.Data
	if data == nil {
		data = []byte{}
	}

	if img.ID == 0 {
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO images (title, data, type)
			VALUES (?, ?, ?)
		`, img.Title, data, img.Type)
		if err != nil {
			return 0, translate("insert", "", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return 0, translate("insert", "", err)
		}
		return id, nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO images (id, title, data, type)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			data = excluded.data,
			type = excluded.type
	`, img.ID, img.Title, data, img.Type)
	if err != nil {
		return 0, translate("insert", img.Key(), err)
	}
	return img.ID, nil
}

// Get implements store.Store. An id that is not a decimal integer is absent.
func (s *Store) Get(ctx context.Context, id string) (record.Image, bool, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return record.Image{}, false, nil
	}
	return s.GetImage(ctx, n)
}

// GetImage returns the image with the given id.
// A missing row is reported as (zero, false, nil).
func (s *Store) GetImage(ctx context.Context, id int64) (record.Image, bool, error) {
	if err := ctx.Err(); err != nil {
		return record.Image{}, false, err
	}
	if err := s.ready("get"); err != nil {
		return record.Image{}, false, err
	}

	var img record.Image
	err := s.db.GetContext(ctx, &img, selectImages+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Image{}, false, nil
	}
	if err != nil {
		return record.Image{}, false, translate("get", strconv.FormatInt(id, 10), err)
	}
	return img, true, nil
}

// GetAll implements store.Store.
func (s *Store) GetAll(ctx context.Context) ([]record.Image, error) {
	return s.Images(ctx)
}

// Images returns every image whose row scans cleanly, in id order.
// Rows that fail to scan are skipped with a warning unless Strict is set.
//
// Returns an empty slice (not nil) if the table is empty.
func (s *Store) Images(ctx context.Context) ([]record.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready("get_all"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryxContext(ctx, selectImages+` ORDER BY id ASC`)
	if err != nil {
		return nil, translate("get_all", "", err)
	}
	defer rows.Close()

	images := []record.Image{}
	for rows.Next() {
		var img record.Image
		if err := rows.StructScan(&img); err != nil {
			if s.opts.Strict {
				return nil, store.Serialization("get_all", img.Key(), err)
			}
			s.opts.Log().Warn("skipping unreadable image row", "error", err)
			continue
		}
		images = append(images, img)
	}

	if err := rows.Err(); err != nil {
		return nil, translate("get_all", "", err)
	}

	return images, nil
}

// Count returns the number of rows in the images table.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.ready("count"); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM images`); err != nil {
		return 0, translate("count", "", err)
	}
	return n, nil
}

// Delete implements store.Store. Returns store.ErrNotFound if no row matched.
func (s *Store) Delete(ctx context.Context, id string) error {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return store.NotFound("delete", id)
	}

	affected, err := s.DeleteImage(ctx, n)
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.NotFound("delete", id)
	}
	return nil
}

// DeleteImage removes the image with the given id and returns the number of
// rows deleted, 0 when it did not exist.
func (s *Store) DeleteImage(ctx context.Context, id int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.ready("delete"); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id)
	if err != nil {
		return 0, translate("delete", strconv.FormatInt(id, 10), err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, translate("delete", strconv.FormatInt(id, 10), err)
	}
	return affected, nil
}
