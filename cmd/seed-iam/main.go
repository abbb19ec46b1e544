// Package main upserts the IAM permission and role catalog into the database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"email-marketing-backend/internal/config"
	"email-marketing-backend/internal/database"
	"email-marketing-backend/internal/iam"
	"email-marketing-backend/internal/logger"
	"email-marketing-backend/internal/repository"
	"email-marketing-backend/internal/service"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	var catalogPath string
	flag.StringVar(&catalogPath, "catalog", "", "path to a catalog YAML file (default: built-in catalog)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, catalogPath); err != nil {
		logrus.WithError(err).Error("IAM seed failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, catalogPath string) error {
	catalog, err := loadCatalog(catalogPath)
	if err != nil {
		return err
	}
	policy, err := iam.ParseUnknownRolePolicy(cfg.UnknownRolePolicy)
	if err != nil {
		return err
	}

	db, err := database.Initialize(cfg.DatabaseURL, nil)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() { _ = database.Close(db) }()

	iamService := service.NewIAMService(repository.NewRoleRepository(db), repository.NewUserRepository(db), catalog, policy)
	result, err := iamService.Seed(ctx)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"permissions": result.Permissions,
		"roles":       result.Roles,
	}).Info("IAM catalog seeded")
	return nil
}

func loadCatalog(path string) (*iam.Catalog, error) {
	if path == "" {
		return iam.DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return iam.ParseCatalog(data)
}
