package main

import (
	"context"
	"flag"
	"log"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"pomflow/backend/internal/config"
	"pomflow/backend/internal/logging"
	"pomflow/backend/internal/repository"
	"pomflow/backend/internal/services"
)

// demoProjects are uploaded to a fresh backend so every pipeline stage has
// something to act on.
var demoProjects = []struct {
	Name        string
	Description string
	FileName    string
	Source      string
}{
	{
		Name:        "Login Demo",
		Description: "Single page with a login form.",
		FileName:    "index.html",
		Source: `<!DOCTYPE html>
<html>
<body>
  <form id="login">
    <input id="email" name="email" type="email" placeholder="Email" />
    <input id="password" name="password" type="password" placeholder="Password" />
    <button id="submit" type="submit">Log in</button>
  </form>
</body>
</html>`,
	},
	{
		Name:        "Search Demo",
		Description: "Search box with a results list.",
		FileName:    "search.html",
		Source: `<!DOCTYPE html>
<html>
<body>
  <input id="query" name="q" type="search" />
  <button id="go">Search</button>
  <ul id="results"></ul>
</body>
</html>`,
	},
}

func main() {
	ctx := context.Background()
	logger := logging.NewLogger()

	configFile := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load config
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 1. Prepare the snapshot table when a database is configured
	if cfg.HasDatabase() {
		pool, err := pgxpool.New(ctx, cfg.DatabaseDSN())
		if err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		defer pool.Close()
		if err := repository.NewPostgresSnapshotStore(pool).EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to create snapshot schema: %v", err)
		}
		logger.Info("Snapshot schema ready", "db", cfg.DB.Name)
	}

	backend := services.NewHTTPBackendClient(cfg.Backend.URL, cfg.Backend.Timeout)

	// 2. Check for existing projects to prevent duplicates
	existing, err := backend.ListProjects(ctx)
	if err != nil {
		log.Fatalf("Failed to list existing projects: %v", err)
	}
	existingMap := make(map[string]bool)
	for _, p := range existing {
		existingMap[p.Name] = true
	}

	// 3. Upload demo projects
	for _, demo := range demoProjects {
		if existingMap[demo.Name] {
			logger.Info("Skipping existing project", "name", demo.Name)
			continue
		}
		project, err := backend.CreateProject(ctx, demo.Name, demo.Description, []services.UploadFile{
			{Name: demo.FileName, Content: strings.NewReader(demo.Source)},
		})
		if err != nil {
			log.Fatalf("Failed to create project %s: %v", demo.Name, err)
		}
		logger.Info("Created project", "name", project.Name, "id", project.ID)
	}

	logger.Info("Seeding complete")
}
