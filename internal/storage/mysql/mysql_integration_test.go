//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"travel_desk/internal/domain"
	mysqlrepo "travel_desk/internal/storage/mysql"
)

func migrationsDir(t *testing.T) string {
	t.Helper()
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	// default: repo layout
	return filepath.Join("..", "..", "..", "migrations")
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir(t)

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("dockertest: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker not reachable: %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=travel",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/travel?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		resource.GetPort("3306/tcp"))

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)
	return db
}

func TestRepo_MySQL_CreateGetUpdate(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	id, err := repo.Create(ctx, domain.EntityTour, domain.Payload{
		"title":       "Cappadocia Balloons",
		"currency":    "usd",
		"price":       int64(270000),
		"imageUrl":    "/uploads/main.jpg",
		"galleryUrls": []string{"/uploads/g1.jpg"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" {
		t.Fatal("Create returned empty id")
	}

	got, err := repo.Get(ctx, domain.EntityTour, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got["id"] != id || got["title"] != "Cappadocia Balloons" {
		t.Fatalf("unexpected payload: %#v", got)
	}
	if _, ok := got["createdAt"]; !ok {
		t.Fatal("createdAt missing")
	}

	var cur string
	var price int64
	if err := db.QueryRow(`SELECT currency, price_minor FROM catalog_entities WHERE id = ?`, id).Scan(&cur, &price); err != nil {
		t.Fatalf("projection: %v", err)
	}
	if cur != "USD" || price != 270000 {
		t.Fatalf("projection = %s %d", cur, price)
	}

	upd := domain.Payload{"title": "Cappadocia Sunrise", "currency": "USD", "price": int64(290000)}
	if _, err := repo.Update(ctx, domain.EntityTour, id, upd); err != nil {
		t.Fatalf("Update: %v", err)
	}
	// same body twice: MySQL reports zero affected rows, still not a miss
	if _, err := repo.Update(ctx, domain.EntityTour, id, upd); err != nil {
		t.Fatalf("no-op Update: %v", err)
	}
	got, _ = repo.Get(ctx, domain.EntityTour, id)
	if got["title"] != "Cappadocia Sunrise" {
		t.Fatalf("title after update = %v", got["title"])
	}

	// type is part of the identity
	if _, err := repo.Get(ctx, domain.EntityHotel, id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get other type err = %v", err)
	}
	if _, err := repo.Update(ctx, domain.EntityTour, "999999", upd); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Update missing err = %v", err)
	}
	if _, err := repo.Get(ctx, domain.EntityTour, "abc"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get bad id err = %v", err)
	}
}
