package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"email-marketing-backend/internal/config"
	"email-marketing-backend/internal/database"
	"email-marketing-backend/internal/database/models"

	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Simple structures that directly match DB schema
type OrganizationData struct {
	Name string `yaml:"name"`
	Slug string `yaml:"slug,omitempty"`
}

type ContactData struct {
	OrganizationSlug string `yaml:"organization_slug"`
	Email            string `yaml:"email"`
	FirstName        string `yaml:"first_name,omitempty"`
	LastName         string `yaml:"last_name,omitempty"`
}

type TemplateData struct {
	OrganizationSlug string                 `yaml:"organization_slug"`
	Name             string                 `yaml:"name"`
	Subject          string                 `yaml:"subject,omitempty"`
	HTML             string                 `yaml:"html"`
	CSS              string                 `yaml:"css,omitempty"`
	ProjectData      map[string]interface{} `yaml:"project_data,omitempty"`
}

// DataFile is the layout of every YAML file under the data directory
type DataFile struct {
	Organizations []OrganizationData `yaml:"organizations"`
	Contacts      []ContactData      `yaml:"contacts"`
	Templates     []TemplateData     `yaml:"templates"`
}

func main() {
	log.Println("Loading demo workspace data from YAML files...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database with retry (for dockerized Postgres startup)
	db, err := connectWithRetry(cfg.DatabaseURL, 60, time.Second)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := loadDataFromYAMLFiles(db, "scripts/data"); err != nil {
		log.Fatalf("Failed to load data from YAML files: %v", err)
	}

	log.Println("Demo data loaded successfully")
}

// connectWithRetry attempts to initialize the DB with retries to wait for Postgres readiness.
func connectWithRetry(dsn string, maxAttempts int, delay time.Duration) (*gorm.DB, error) {
	opts := &database.Options{
		LogLevel: logger.Silent,
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		db, err := database.Initialize(dsn, opts)
		if err == nil {
			return db, nil
		}
		// Only log every 10 attempts to reduce noise
		if attempt%10 == 0 || attempt == maxAttempts {
			log.Printf("Database not ready (%d/%d): %v", attempt, maxAttempts, err)
		}
		time.Sleep(delay)
	}
	return nil, fmt.Errorf("database not ready after %d attempts", maxAttempts)
}

// loadCounts reports how many rows each kind produced; existing rows are left untouched
type loadCounts struct {
	Organizations int
	Contacts      int
	Templates     int
}

func loadDataFromYAMLFiles(db *gorm.DB, dataDir string) error {
	_, err := loadData(db, dataDir)
	return err
}

func loadData(db *gorm.DB, dataDir string) (*loadCounts, error) {
	data, err := readDataFiles(dataDir)
	if err != nil {
		return nil, err
	}
	counts := &loadCounts{}

	// Create organizations first
	orgMap := make(map[string]*models.Organization)
	for _, orgData := range data.Organizations {
		org, created, err := createOrganization(db, orgData)
		if err != nil {
			return nil, fmt.Errorf("failed to create organization %s: %w", orgData.Name, err)
		}
		orgMap[org.Slug] = org
		if created {
			counts.Organizations++
		}
	}
	log.Printf("Organizations: %d created, %d total", counts.Organizations, len(data.Organizations))

	for _, contactData := range data.Contacts {
		created, err := createContact(db, contactData, orgMap)
		if err != nil {
			return nil, fmt.Errorf("failed to create contact %s: %w", contactData.Email, err)
		}
		if created {
			counts.Contacts++
		}
	}
	log.Printf("Contacts: %d created, %d total", counts.Contacts, len(data.Contacts))

	for _, templateData := range data.Templates {
		created, err := createTemplate(db, templateData, orgMap)
		if err != nil {
			return nil, fmt.Errorf("failed to create template %s: %w", templateData.Name, err)
		}
		if created {
			counts.Templates++
		}
	}
	log.Printf("Templates: %d created, %d total", counts.Templates, len(data.Templates))

	return counts, nil
}

func readDataFiles(dataDir string) (*DataFile, error) {
	all := &DataFile{}

	err := filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !(strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")) {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var file DataFile
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		all.Organizations = append(all.Organizations, file.Organizations...)
		all.Contacts = append(all.Contacts, file.Contacts...)
		all.Templates = append(all.Templates, file.Templates...)
		return nil
	})

	return all, err
}

func createOrganization(db *gorm.DB, orgData OrganizationData) (*models.Organization, bool, error) {
	orgSlug := slug.Make(orgData.Slug)
	if orgSlug == "" {
		orgSlug = slug.Make(orgData.Name)
	}

	var org models.Organization
	err := db.Where("slug = ?", orgSlug).First(&org).Error
	if err == nil {
		return &org, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to query organization: %w", err)
	}

	org = models.Organization{Name: strings.TrimSpace(orgData.Name), Slug: orgSlug}
	if err := db.Create(&org).Error; err != nil {
		return nil, false, fmt.Errorf("failed to create organization: %w", err)
	}
	return &org, true, nil
}

func createContact(db *gorm.DB, contactData ContactData, orgMap map[string]*models.Organization) (bool, error) {
	org := orgMap[contactData.OrganizationSlug]
	if org == nil {
		return false, fmt.Errorf("organization %q not found", contactData.OrganizationSlug)
	}
	email := strings.ToLower(strings.TrimSpace(contactData.Email))

	var count int64
	if err := db.Model(&models.Contact{}).Where("organization_id = ? AND email = ?", org.ID, email).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	contact := models.Contact{
		OrganizationID: org.ID,
		Email:          email,
		FirstName:      contactData.FirstName,
		LastName:       contactData.LastName,
	}
	return true, db.Create(&contact).Error
}

func createTemplate(db *gorm.DB, templateData TemplateData, orgMap map[string]*models.Organization) (bool, error) {
	org := orgMap[templateData.OrganizationSlug]
	if org == nil {
		return false, fmt.Errorf("organization %q not found", templateData.OrganizationSlug)
	}

	var count int64
	if err := db.Model(&models.EmailTemplate{}).Where("organization_id = ? AND name = ?", org.ID, templateData.Name).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	tmpl := models.EmailTemplate{
		OrganizationID: org.ID,
		Name:           templateData.Name,
		Subject:        templateData.Subject,
		HTML:           templateData.HTML,
		CSS:            templateData.CSS,
	}
	if templateData.ProjectData != nil {
		projectJSON, err := json.Marshal(templateData.ProjectData)
		if err != nil {
			return false, fmt.Errorf("encode project_data: %w", err)
		}
		tmpl.ProjectData = datatypes.JSON(projectJSON)
	}
	return true, db.Create(&tmpl).Error
}
