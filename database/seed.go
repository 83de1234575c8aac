package database

import (
	"fmt"
	"log"
	"os"

	"github.com/tahirov/eduadmin-api/model"
	"github.com/tahirov/eduadmin-api/utils/auth"
	"gorm.io/gorm"
)

// RunSeeds runs all seeders against the given database
func RunSeeds(db *gorm.DB) error {
	return NewSeeder(db).SeedAll()
}

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll() error {
	log.Println("🌱 Starting database seeding...")

	// Run seeds in order (respecting foreign key constraints)
	if err := s.SeedInstitutions(); err != nil {
		return fmt.Errorf("failed to seed institutions: %w", err)
	}

	if err := s.SeedSuperAdmin(); err != nil {
		return fmt.Errorf("failed to seed superadmin: %w", err)
	}

	if err := s.SeedLevelAdmins(); err != nil {
		return fmt.Errorf("failed to seed level admins: %w", err)
	}

	log.Println("✅ Database seeding completed successfully!")
	return nil
}

// SeedInstitutions creates a sample ministry/region/sector/school tree
func (s *Seeder) SeedInstitutions() error {
	// Check if institutions already exist
	var count int64
	if err := s.db.Model(&model.Institution{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Institutions already exist, skipping...")
		return nil
	}

	ministry := model.Institution{
		Name:      "Ministry of Education",
		ShortName: "MoE",
		Type:      "ministry",
		Level:     model.LevelMinistry,
		IsActive:  true,
	}
	if err := s.db.Create(&ministry).Error; err != nil {
		return err
	}

	regions := []string{"Northern Region", "Central Region", "Southern Region"}
	for _, regionName := range regions {
		region := model.Institution{
			Name:     regionName,
			Type:     "region",
			ParentID: &ministry.ID,
			Level:    model.LevelRegion,
			IsActive: true,
		}
		if err := s.db.Create(&region).Error; err != nil {
			return err
		}

		for si := 1; si <= 2; si++ {
			sector := model.Institution{
				Name:     fmt.Sprintf("%s Sector %d", regionName, si),
				Type:     "sector",
				ParentID: &region.ID,
				Level:    model.LevelSector,
				IsActive: true,
			}
			if err := s.db.Create(&sector).Error; err != nil {
				return err
			}

			for wi := 1; wi <= 3; wi++ {
				school := model.Institution{
					Name:     fmt.Sprintf("%s School %d", sector.Name, wi),
					Type:     "school",
					ParentID: &sector.ID,
					Level:    model.LevelSchool,
					IsActive: true,
				}
				if err := s.db.Create(&school).Error; err != nil {
					return err
				}
			}
		}
	}

	log.Println("✅ Created sample institution tree")
	return nil
}

// SeedSuperAdmin creates the default superadmin user
func (s *Seeder) SeedSuperAdmin() error {
	// Check if a superadmin already exists
	var count int64
	if err := s.db.Model(&model.User{}).Where("role = ?", model.RoleSuperAdmin).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Superadmin already exists, skipping...")
		return nil
	}

	// Get superadmin credentials from environment variables
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		log.Println("⚠️  ADMIN_EMAIL and ADMIN_PASSWORD environment variables not set, skipping superadmin creation")
		return nil
	}

	// Hash password
	passwordHash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &model.User{
		Email:        adminEmail,
		PasswordHash: passwordHash,
		Name:         "System Administrator",
		Role:         model.RoleSuperAdmin,
		TokenVersion: 0,
	}

	if err := s.db.Create(admin).Error; err != nil {
		return err
	}

	log.Printf("✅ Created superadmin user: %s\n", admin.Email)
	return nil
}

// SeedLevelAdmins creates one admin account at each tree level so a
// fresh environment can exercise the whole approval chain
func (s *Seeder) SeedLevelAdmins() error {
	var count int64
	if err := s.db.Model(&model.User{}).Where("role <> ?", model.RoleSuperAdmin).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Level admins already exist, skipping...")
		return nil
	}

	defaultPassword := os.Getenv("SEED_ADMIN_PASSWORD")
	if defaultPassword == "" {
		log.Println("⚠️  SEED_ADMIN_PASSWORD not set, skipping level admin creation")
		return nil
	}

	passwordHash, err := auth.HashPassword(defaultPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	roleByLevel := map[int]string{
		model.LevelRegion: model.RoleRegionAdmin,
		model.LevelSector: model.RoleSektorAdmin,
		model.LevelSchool: model.RoleSchoolAdmin,
	}

	for level, role := range roleByLevel {
		var institutions []model.Institution
		if err := s.db.Where("level = ?", level).Find(&institutions).Error; err != nil {
			return err
		}

		for i := range institutions {
			institution := institutions[i]
			user := model.User{
				Email:         fmt.Sprintf("%s.%d@example.edu", role, institution.ID),
				PasswordHash:  passwordHash,
				Name:          fmt.Sprintf("%s (%s)", role, institution.Name),
				Role:          role,
				InstitutionID: &institution.ID,
			}
			if err := s.db.Create(&user).Error; err != nil {
				return err
			}
		}
	}

	log.Println("✅ Created level admin users")
	return nil
}
