// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aiueoka/smartlocket/internal/models"
)

// updatableColumns is the whitelist for partial merge updates. Anything
// outside this set is rejected before it reaches SQL.
var updatableColumns = map[string]struct{}{
	"status":            {},
	"photo_count":       {},
	"order_id":          {},
	"customer_name":     {},
	"customer_email":    {},
	"passcode_hash":     {},
	"reset_code":        {},
	"reset_code_expiry": {},
	"gallery_title":     {},
	"letter_content":    {},
	"images":            {},
	"spotify_track":     {},
	"theme_settings":    {},
	"activated_at":      {},
}

// CreateToken inserts a new token record.
func (r *Repository) CreateToken(ctx context.Context, token *models.Token) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tokens (token_id, status, premium, photo_limit, photo_count, images, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		token.TokenID, token.Status, token.Premium, token.PhotoLimit,
		token.PhotoCount, token.Images, token.CreatedAt, token.UpdatedAt)
	return err
}

// GetToken retrieves a token by its ID.
func (r *Repository) GetToken(ctx context.Context, tokenID string) (*models.Token, error) {
	var token models.Token
	err := r.db.GetContext(ctx, &token, `SELECT * FROM tokens WHERE token_id = ?`, tokenID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// TokenExists checks if a token with the given ID exists.
func (r *Repository) TokenExists(ctx context.Context, tokenID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM tokens WHERE token_id = ?)`, tokenID)
	return exists, err
}

// UpdateToken merges the given fields into an existing record and stamps
// updated_at. Returns ErrNotFound if no record matched.
func (r *Repository) UpdateToken(ctx context.Context, tokenID string, fields map[string]any) error {
	set, args, err := buildSet(fields)
	if err != nil {
		return err
	}
	args = append(args, tokenID)

	res, err := r.db.ExecContext(ctx,
		`UPDATE tokens SET `+set+` WHERE token_id = ?`, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTokenWhereStatus merges fields only if the record's current status
// is one of allowed. This conditional update is the single serialization
// primitive for claims, lifecycle transitions and reset confirmation; it
// reports false when the condition did not hold (a concurrent writer won).
func (r *Repository) UpdateTokenWhereStatus(ctx context.Context, tokenID string, allowed []string, fields map[string]any) (bool, error) {
	if len(allowed) == 0 {
		return false, fmt.Errorf("no allowed statuses given")
	}
	set, args, err := buildSet(fields)
	if err != nil {
		return false, err
	}
	args = append(args, tokenID)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(allowed)), ", ")
	for _, s := range allowed {
		args = append(args, s)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE tokens SET `+set+` WHERE token_id = ? AND status IN (`+placeholders+`)`, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListUnusedOldest returns up to limit unused tokens, oldest first. The
// allocator walks this list attempting conditional claims.
func (r *Repository) ListUnusedOldest(ctx context.Context, limit int) ([]models.Token, error) {
	var tokens []models.Token
	err := r.db.SelectContext(ctx, &tokens,
		`SELECT * FROM tokens WHERE status = ? ORDER BY created_at ASC, token_id ASC LIMIT ?`,
		models.StatusUnused, limit)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// TokenFilter narrows inventory scans.
type TokenFilter struct {
	Status  *string
	Premium *bool
}

// ScanTokens returns a page of tokens ordered by creation time ascending,
// plus the total number of matching rows for pagination.
func (r *Repository) ScanTokens(ctx context.Context, filter TokenFilter, page, limit int) ([]models.Token, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	where, args := buildFilter(filter)

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM tokens`+where, args...); err != nil {
		return nil, 0, err
	}

	var tokens []models.Token
	query := `SELECT * FROM tokens` + where + ` ORDER BY created_at ASC, token_id ASC LIMIT ? OFFSET ?`
	args = append(args, limit, (page-1)*limit)
	if err := r.db.SelectContext(ctx, &tokens, query, args...); err != nil {
		return nil, 0, err
	}
	return tokens, total, nil
}

// StatusCounts holds the dashboard aggregation.
type StatusCounts struct {
	Total     int64 `json:"total"`
	Unused    int64 `json:"unused"`
	Claimed   int64 `json:"claimed"`
	Written   int64 `json:"written"`
	Shipped   int64 `json:"shipped"`
	Activated int64 `json:"activated"`
	Premium   int64 `json:"premium"`
}

// CountTokensByStatus returns per-status counts plus total and premium.
func (r *Repository) CountTokensByStatus(ctx context.Context) (*StatusCounts, error) {
	rows := []struct {
		Status string `db:"status"`
		N      int64  `db:"n"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS n FROM tokens GROUP BY status`); err != nil {
		return nil, err
	}

	counts := &StatusCounts{}
	for _, row := range rows {
		counts.Total += row.N
		switch row.Status {
		case models.StatusUnused:
			counts.Unused = row.N
		case models.StatusClaimed:
			counts.Claimed = row.N
		case models.StatusWritten:
			counts.Written = row.N
		case models.StatusShipped:
			counts.Shipped = row.N
		case models.StatusActivated:
			counts.Activated = row.N
		}
	}

	if err := r.db.GetContext(ctx, &counts.Premium, `SELECT COUNT(*) FROM tokens WHERE premium = 1`); err != nil {
		return nil, err
	}
	return counts, nil
}

// SetResetCode stores a fresh reset code with its expiry, overwriting any
// previously issued code for the token.
func (r *Repository) SetResetCode(ctx context.Context, tokenID, code string, expiry time.Time) error {
	return r.UpdateToken(ctx, tokenID, map[string]any{
		"reset_code":        code,
		"reset_code_expiry": expiry,
	})
}

// ConfirmPasscodeReset installs the new passcode hash and clears the reset
// fields in a single conditional statement. The update applies only when
// the stored code matches and has not expired; partial application is not
// possible. Reports whether the condition held.
func (r *Repository) ConfirmPasscodeReset(ctx context.Context, tokenID, code, passcodeHash string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tokens
		 SET passcode_hash = ?, reset_code = NULL, reset_code_expiry = NULL, updated_at = ?
		 WHERE token_id = ? AND reset_code = ? AND reset_code_expiry > ?`,
		passcodeHash, now.UTC(), tokenID, code, now.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// buildSet renders a SET clause from a field map, stamping updated_at.
// Keys are sorted so statements are deterministic.
func buildSet(fields map[string]any) (string, []any, error) {
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("no fields to update")
	}

	keys := make([]string, 0, len(fields)+1)
	for k := range fields {
		if _, ok := updatableColumns[k]; !ok {
			return "", nil, fmt.Errorf("column %q is not updatable", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	args := make([]any, 0, len(keys)+1)
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(" = ?, ")
		args = append(args, fields[k])
	}
	sb.WriteString("updated_at = ?")
	args = append(args, time.Now().UTC())

	return sb.String(), args, nil
}

func buildFilter(filter TokenFilter) (string, []any) {
	var clauses []string
	var args []any
	if filter.Status != nil {
		clauses = append(clauses, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.Premium != nil {
		clauses = append(clauses, "premium = ?")
		args = append(args, *filter.Premium)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
