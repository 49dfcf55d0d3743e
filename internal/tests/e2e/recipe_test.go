//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/recipe-app/apiserver/config"
	"github.com/recipe-app/apiserver/internal/db"
	"github.com/recipe-app/apiserver/internal/logging"
	"github.com/recipe-app/apiserver/internal/server"
)

const (
	serverPort = 18080
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	setTestEnv()

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/readyz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown(context.Background())
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown(context.Background())
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestRecipeLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	email := fmt.Sprintf("cook_%d@example.com", time.Now().UnixNano())
	password := "testpass123!"

	if err := registerUser(baseURL, email, password); err != nil {
		t.Fatalf("register user: %v", err)
	}
	token, err := obtainToken(baseURL, email, password)
	if err != nil {
		t.Fatalf("obtain token: %v", err)
	}

	var tag idResponse
	if err := call(http.MethodPost, baseURL+"/api/recipe/tags", token, map[string]string{"name": "Dinner"}, http.StatusCreated, &tag); err != nil {
		t.Fatalf("create tag: %v", err)
	}

	var created recipeResponse
	err = call(http.MethodPost, baseURL+"/api/recipe/recipes", token, map[string]any{
		"title":        "Thai prawn curry",
		"time_minutes": 30,
		"price":        "7.50",
		"tags":         []int{tag.ID},
	}, http.StatusCreated, &created)
	if err != nil {
		t.Fatalf("create recipe: %v", err)
	}
	if created.ID == 0 || len(created.Tags) != 1 {
		t.Fatalf("unexpected created recipe: %+v", created)
	}

	recipeURL := fmt.Sprintf("%s/api/recipe/recipes/%d", baseURL, created.ID)

	var filtered []idResponse
	if err := call(http.MethodGet, fmt.Sprintf("%s/api/recipe/recipes?tags=%d", baseURL, tag.ID), token, nil, http.StatusOK, &filtered); err != nil {
		t.Fatalf("filter recipes: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != created.ID {
		t.Fatalf("unexpected filter result: %+v", filtered)
	}

	var replaced recipeResponse
	err = call(http.MethodPut, recipeURL, token, map[string]any{
		"title":        "Spaghetti carbonara",
		"time_minutes": 25,
		"price":        "5.00",
	}, http.StatusOK, &replaced)
	if err != nil {
		t.Fatalf("replace recipe: %v", err)
	}
	if replaced.Title != "Spaghetti carbonara" || len(replaced.Tags) != 0 {
		t.Fatalf("unexpected replaced recipe: %+v", replaced)
	}

	imageURL, err := uploadImage(recipeURL+"/upload-image", token)
	if err != nil {
		t.Fatalf("upload image: %v", err)
	}
	if err := expectStatus(http.MethodGet, baseURL+imageURL, "", http.StatusOK); err != nil {
		t.Fatalf("fetch image: %v", err)
	}

	if err := expectStatus(http.MethodDelete, recipeURL, token, http.StatusNoContent); err != nil {
		t.Fatalf("delete recipe: %v", err)
	}
	if err := expectStatus(http.MethodGet, recipeURL, token, http.StatusNotFound); err != nil {
		t.Fatalf("expected deleted recipe to be missing: %v", err)
	}
	if err := expectStatus(http.MethodGet, baseURL+imageURL, "", http.StatusNotFound); err != nil {
		t.Fatalf("expected image removed with recipe: %v", err)
	}
}

type idResponse struct {
	ID int `json:"id"`
}

type recipeResponse struct {
	ID    int          `json:"id"`
	Title string       `json:"title"`
	Tags  []idResponse `json:"tags"`
}

func registerUser(baseURL, email, password string) error {
	return call(http.MethodPost, baseURL+"/api/user/create", "", map[string]string{
		"email":    email,
		"password": password,
		"name":     "Test Cook",
	}, http.StatusCreated, nil)
}

func obtainToken(baseURL, email, password string) (string, error) {
	var parsed struct {
		Token string `json:"token"`
	}
	err := call(http.MethodPost, baseURL+"/api/user/token", "", map[string]string{
		"email":    email,
		"password": password,
	}, http.StatusOK, &parsed)
	if err != nil {
		return "", err
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("missing token in response")
	}
	return parsed.Token, nil
}

func call(method, url, token string, payload any, wantStatus int, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s status %d: %s", method, url, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func expectStatus(method, url, token string, want int) error {
	return call(method, url, token, nil, want, nil)
}

func uploadImage(url, token string) (string, error) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	img.Set(3, 3, color.RGBA{B: 255, A: 255})
	var pngData bytes.Buffer
	if err := png.Encode(&pngData, img); err != nil {
		return "", err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "photo.png")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(pngData.Bytes()); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, url, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("upload status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if parsed.Image == "" {
		return "", fmt.Errorf("missing image url in response")
	}
	return parsed.Image, nil
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	conn, err := sql.Open("postgres", db.PostgresURL(cfg.Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")

	migrator, err := migrate.New(migrationsURL, db.PostgresURL(cfg.Database))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func setTestEnv() {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "recipe")
	_ = os.Setenv("DB_PASSWORD", "recipe")
	_ = os.Setenv("DB_NAME", "recipe")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("MINIO_ACCESS_KEY", "minioadmin")
	_ = os.Setenv("MINIO_SECRET_KEY", "minioadmin")
	_ = os.Setenv("MINIO_BUCKET", "recipe-media")
	_ = os.Setenv("MQ_BACKEND", "")
	_ = os.Setenv("RATE_LIMIT_ENABLED", "false")
	_ = os.Setenv("LOG_LEVEL", "warn")
}

func startServer(ctx context.Context) (*server.Server, error) {
	cfg := config.LoadConfig()
	srv, err := server.New(ctx, cfg, logging.New(cfg.Log))
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
