// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Solifugus/storysplicer/pkg/world"
)

// The narrator owns prose generation; the simulator only carries the
// schema and minimal accessors for series, books, and chapters.

// ListSeries returns all series in a world.
func (s *Store) ListSeries(ctx context.Context, worldID int64) ([]world.Series, error) {
	rows, err := s.query(ctx, s.db,
		`SELECT id, world_id, name, description FROM series WHERE world_id = ? ORDER BY id ASC`, worldID)
	if err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}
	defer rows.Close()

	var result []world.Series
	for rows.Next() {
		var sr world.Series
		var desc sql.NullString
		if err := rows.Scan(&sr.ID, &sr.WorldID, &sr.Name, &desc); err != nil {
			return nil, fmt.Errorf("failed to scan series: %w", err)
		}
		sr.Description = desc.String
		result = append(result, sr)
	}
	return result, rows.Err()
}

// CreateSeries inserts a series and returns its id.
func (s *Store) CreateSeries(ctx context.Context, sr *world.Series) (int64, error) {
	if sr.Name == "" {
		return 0, world.Validationf("series name is required")
	}
	id, err := s.insertID(ctx, s.db,
		`INSERT INTO series (world_id, name, description) VALUES (?, ?, ?)`,
		sr.WorldID, sr.Name, sr.Description)
	if err != nil {
		return 0, fmt.Errorf("failed to create series: %w", err)
	}
	return id, nil
}

// ListBooks returns a series' books in order.
func (s *Store) ListBooks(ctx context.Context, seriesID int64) ([]world.Book, error) {
	rows, err := s.query(ctx, s.db,
		`SELECT id, series_id, number, title, status FROM books
		 WHERE series_id = ? ORDER BY number ASC, id ASC`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	defer rows.Close()

	var books []world.Book
	for rows.Next() {
		var b world.Book
		if err := rows.Scan(&b.ID, &b.SeriesID, &b.Number, &b.Title, &b.Status); err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// CreateBook inserts a book and returns its id.
func (s *Store) CreateBook(ctx context.Context, b *world.Book) (int64, error) {
	if b.Title == "" {
		return 0, world.Validationf("book title is required")
	}
	if b.Status == "" {
		b.Status = world.BookStatusDraft
	}
	if b.Number == 0 {
		b.Number = 1
	}
	id, err := s.insertID(ctx, s.db,
		`INSERT INTO books (series_id, number, title, status) VALUES (?, ?, ?, ?)`,
		b.SeriesID, b.Number, b.Title, b.Status)
	if err != nil {
		return 0, fmt.Errorf("failed to create book: %w", err)
	}
	return id, nil
}

// ListChapters returns a book's chapters in order.
func (s *Store) ListChapters(ctx context.Context, bookID int64) ([]world.Chapter, error) {
	rows, err := s.query(ctx, s.db,
		`SELECT id, book_id, number, title, content, raw_events, status FROM chapters
		 WHERE book_id = ? ORDER BY number ASC, id ASC`, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	defer rows.Close()

	var chapters []world.Chapter
	for rows.Next() {
		var c world.Chapter
		var title, content, rawEvents sql.NullString
		if err := rows.Scan(&c.ID, &c.BookID, &c.Number, &title, &content, &rawEvents, &c.Status); err != nil {
			return nil, fmt.Errorf("failed to scan chapter: %w", err)
		}
		c.Title = title.String
		c.Content = content.String
		if err := unmarshalJSON(rawEvents, &c.RawEvents); err != nil {
			return nil, err
		}
		chapters = append(chapters, c)
	}
	return chapters, rows.Err()
}

// CreateChapter inserts a chapter and returns its id.
func (s *Store) CreateChapter(ctx context.Context, c *world.Chapter) (int64, error) {
	if c.Status == "" {
		c.Status = world.ChapterStatusCollecting
	}
	if c.Number == 0 {
		c.Number = 1
	}
	rawEvents, err := marshalJSON(c.RawEvents)
	if err != nil {
		return 0, err
	}
	id, err := s.insertID(ctx, s.db,
		`INSERT INTO chapters (book_id, number, title, content, raw_events, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.BookID, c.Number, c.Title, c.Content, rawEvents, c.Status)
	if err != nil {
		return 0, fmt.Errorf("failed to create chapter: %w", err)
	}
	return id, nil
}
