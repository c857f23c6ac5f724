package main

import (
	"log"
	"time"

	"collab-notes-be/internal/config"
	"collab-notes-be/internal/model"
	"collab-notes-be/pkg/database"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Seeds a demo dataset: three users and a spread of notes covering
// every visibility, so a fresh environment is immediately usable.
func main() {
	cfg := config.Load()

	db, err := database.NewGormDB(cfg.Database.Driver, cfg.Database.Connection)
	if err != nil {
		log.Fatal("Error: Failed to connect to database: ", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal("Error: Failed to migrate schema: ", err)
	}

	color.Cyan("Seeding demo users...")

	alice := seedUser(db, "alice", "password123", "Alice")
	bob := seedUser(db, "bob", "password123", "Bob")
	seedUser(db, "carol", "password123", "Carol")

	color.Cyan("Seeding demo notes...")

	seedNote(db, alice, "Team meeting notes", "Agenda:\n- roadmap\n- hiring", "write")
	seedNote(db, alice, "Public announcement", "Release goes out on Friday.", "read")
	seedNote(db, alice, "Private ideas", "Not ready to share yet.", "private")
	seedNote(db, bob, "Shared draft", "Work in progress, edits welcome.", "write")
	seedNote(db, bob, "Reading list", "Books worth picking up this year.", "read")

	color.Green("Seeding completed!")
}

func seedUser(db *gorm.DB, username, password, displayName string) uuid.UUID {
	var existing model.User
	if err := db.Where("username = ?", username).First(&existing).Error; err == nil {
		color.Yellow("User %q already exists, skipping...", username)
		return existing.Id
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Error hashing password for %q: %v", username, err)
	}

	user := model.User{
		Id:           uuid.New(),
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := db.Create(&user).Error; err != nil {
		log.Fatalf("Error creating user %q: %v", username, err)
	}

	color.Green("Created user: %s (password: %s)", username, password)
	return user.Id
}

func seedNote(db *gorm.DB, ownerId uuid.UUID, title, content, visibility string) {
	var existing model.Note
	if err := db.Where("owner_id = ? AND title = ?", ownerId, title).First(&existing).Error; err == nil {
		color.Yellow("Note %q already exists, skipping...", title)
		return
	}

	now := time.Now()
	note := model.Note{
		Id:         uuid.New(),
		OwnerId:    ownerId,
		Title:      title,
		Content:    content,
		Visibility: visibility,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.Create(&note).Error; err != nil {
		log.Fatalf("Error creating note %q: %v", title, err)
	}

	color.Green("Created note: %s [%s]", title, visibility)
}
