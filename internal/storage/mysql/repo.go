package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"travel_desk/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func valInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

// Repo stores catalog entities as JSON documents with a few projected
// columns for listing and ops queries. It stands in for the remote
// catalog API when CATALOG_BACKEND=mysql.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// projection pulls the indexed columns out of a payload.
type projection struct {
	title    *string
	currency *string
	price    *int64
	image    *string
}

func project(p domain.Payload) projection {
	var out projection
	for _, k := range []string{"title", "name"} {
		if s, ok := p[k].(string); ok && s != "" {
			out.title = &s
			break
		}
	}
	if s, ok := p["currency"].(string); ok && s != "" {
		s = strings.ToUpper(s)
		out.currency = &s
	}
	for _, k := range []string{"price", "pricePerNight"} {
		if n, ok := asInt64(p[k]); ok {
			out.price = &n
			break
		}
	}
	if s, ok := p["imageUrl"].(string); ok && s != "" {
		out.image = &s
	}
	return out
}

func asInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	}
	return 0, false
}

func (r *Repo) Create(ctx context.Context, t domain.EntityType, p domain.Payload) (string, error) {
	body, err := encode(p)
	if err != nil {
		return "", err
	}
	pr := project(p)
	res, err := r.db.ExecContext(ctx, insertEntitySQL,
		string(t),
		valStr(pr.title),
		valStr(pr.currency),
		valInt64(pr.price),
		valStr(pr.image),
		body,
	)
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", t, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

func (r *Repo) Update(ctx context.Context, t domain.EntityType, id string, p domain.Payload) (string, error) {
	n, err := parseID(id)
	if err != nil {
		return "", err
	}
	body, err := encode(p)
	if err != nil {
		return "", err
	}
	pr := project(p)
	res, err := r.db.ExecContext(ctx, updateEntitySQL,
		valStr(pr.title),
		valStr(pr.currency),
		valInt64(pr.price),
		valStr(pr.image),
		body,
		n, string(t),
	)
	if err != nil {
		return "", fmt.Errorf("update %s %s: %w", t, id, err)
	}
	// MySQL reports 0 affected rows for a no-op update; tell that apart from a miss.
	if aff, _ := res.RowsAffected(); aff == 0 {
		var one int
		err := r.db.QueryRowContext(ctx, existsEntitySQL, n, string(t)).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%s %s: %w", t, id, domain.ErrNotFound)
		}
		if err != nil {
			return "", err
		}
	}
	return id, nil
}

func (r *Repo) Get(ctx context.Context, t domain.EntityType, id string) (domain.Payload, error) {
	n, err := parseID(id)
	if err != nil {
		return nil, err
	}
	var (
		raw       []byte
		createdAt time.Time
		updatedAt time.Time
	)
	err = r.db.QueryRowContext(ctx, getEntitySQL, n, string(t)).Scan(&raw, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", t, id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var p domain.Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", t, id, err)
	}
	if p == nil {
		p = domain.Payload{}
	}
	p["id"] = id
	p["createdAt"] = createdAt.UTC().Format(time.RFC3339)
	p["updatedAt"] = updatedAt.UTC().Format(time.RFC3339)
	return p, nil
}

func encode(p domain.Payload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(b), nil
}

// ids are numeric here; anything else cannot exist.
func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("id %q: %w", id, domain.ErrNotFound)
	}
	return n, nil
}
