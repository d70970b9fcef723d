package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/monmiam/internal/database"
	"github.com/safar/monmiam/internal/models"
)

const articleColumns = `id, name, description, price, category_id, image_url, available, featured, created_at, updated_at, version`

// wire field name -> column
var articleToggles = map[string]string{
	"disponible": "available",
	"vedette":    "featured",
}

func scanArticle(row interface{ Scan(...any) error }, a *models.Article) error {
	var categoryID sql.NullInt64
	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Description,
		&a.Price,
		&categoryID,
		&a.ImageURL,
		&a.Available,
		&a.Featured,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.Version,
	)
	if err != nil {
		return err
	}
	if categoryID.Valid {
		a.CategoryID = &categoryID.Int64
	}
	return nil
}

func CreateArticle(ctx context.Context, db *sql.DB, in models.ArticleInput) (*models.Article, error) {
	article := &models.Article{}

	query := `
		INSERT INTO articles (name, description, price, category_id, image_url, available, featured, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW(), 1)
		RETURNING ` + articleColumns

	err := scanArticle(db.QueryRowContext(ctx, query,
		in.Name, in.Description, in.Price, in.CategoryID, in.ImageURL, in.Available, in.Featured), article)
	if err != nil {
		return nil, fmt.Errorf("create article: %w", err)
	}

	return article, nil
}

func GetArticle(ctx context.Context, db *sql.DB, id int64) (*models.Article, error) {
	article := &models.Article{}

	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = $1`

	if err := scanArticle(db.QueryRowContext(ctx, query, id), article); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrArticleNotFound
		}
		return nil, fmt.Errorf("get article: %w", err)
	}

	return article, nil
}

// ListArticles returns the whole menu, or only what can currently be ordered.
func ListArticles(ctx context.Context, db *sql.DB, onlyAvailable bool) ([]models.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles`
	if onlyAvailable {
		query += ` WHERE available`
	}
	query += ` ORDER BY featured DESC, name, id`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	articles := []models.Article{}
	for rows.Next() {
		var article models.Article
		if err := scanArticle(rows, &article); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return articles, nil
}

// UpdateArticle replaces the editable fields. When in.Version is set the
// write only applies to that version and fails with ErrVersionConflict
// otherwise.
func UpdateArticle(ctx context.Context, db *sql.DB, id int64, in models.ArticleInput) (*models.Article, error) {
	article := &models.Article{}

	query := `
		UPDATE articles
		SET name = $1, description = $2, price = $3, category_id = $4, image_url = $5,
		    available = $6, featured = $7, updated_at = NOW(), version = version + 1
		WHERE id = $8 AND ($9::int IS NULL OR version = $9)
		RETURNING ` + articleColumns

	err := scanArticle(db.QueryRowContext(ctx, query,
		in.Name, in.Description, in.Price, in.CategoryID, in.ImageURL, in.Available, in.Featured, id, in.Version), article)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, missingOrStale(ctx, db, "articles", id, database.ErrArticleNotFound)
		}
		return nil, fmt.Errorf("update article: %w", err)
	}

	return article, nil
}

func DeleteArticle(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrArticleNotFound
	}

	return nil
}

func ToggleArticle(ctx context.Context, db *sql.DB, id int64, field string) (*models.Article, error) {
	column, ok := articleToggles[field]
	if !ok {
		return nil, fmt.Errorf("%w: %s", database.ErrUnknownToggle, field)
	}

	article := &models.Article{}

	query := fmt.Sprintf(`
		UPDATE articles
		SET %[1]s = NOT %[1]s, updated_at = NOW(), version = version + 1
		WHERE id = $1
		RETURNING `+articleColumns, column)

	if err := scanArticle(db.QueryRowContext(ctx, query, id), article); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrArticleNotFound
		}
		return nil, fmt.Errorf("toggle article %s: %w", field, err)
	}

	return article, nil
}

// lockArticleNoWait fails fast when another transaction holds the row; the
// pq error stays in the chain so WithRetry can retry it.
func lockArticleNoWait(ctx context.Context, tx *sql.Tx, id int64) (*models.Article, error) {
	article := &models.Article{}

	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = $1 FOR UPDATE NOWAIT`

	if err := scanArticle(tx.QueryRowContext(ctx, query, id), article); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "55P03" {
			return nil, fmt.Errorf("%w: article %d: %w", database.ErrLockTimeout, id, err)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", database.ErrArticleNotFound, id)
		}
		return nil, fmt.Errorf("lock article (nowait): %w", err)
	}

	if !article.Available {
		return nil, fmt.Errorf("%w: %s", database.ErrArticleUnavailable, article.Name)
	}

	return article, nil
}

// missingOrStale tells a missing row apart from a version mismatch after a
// conditional update touched nothing.
func missingOrStale(ctx context.Context, db *sql.DB, table string, id int64, notFound error) error {
	var exists bool
	err := db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)", table), id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check %s exists: %w", table, err)
	}
	if !exists {
		return notFound
	}
	return database.ErrVersionConflict
}
