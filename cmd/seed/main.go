package main

import (
	"context"
	"log"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"beerich/internal/config"
	"beerich/internal/db"
	"beerich/internal/model"
	"beerich/internal/repository"
)

const (
	demoEmail    = "demo@beerich.dev"
	demoPassword = "BeeRichIsStingy"
)

type seedRecord struct {
	title       string
	description string
	amount      string
}

var seedExpenses = []seedRecord{
	{"Groceries", "Weekly shop", "74.20"},
	{"Dinner for Two", "Anniversary dinner", "42.50"},
	{"Monthly Rent", "", "1250.00"},
	{"Electricity Bill", "March usage", "58.75"},
}

var seedInvoices = []seedRecord{
	{"Salary March", "Monthly salary", "3200.00"},
	{"Freelance Project", "Website for a bakery", "850.00"},
}

func main() {
	log.Println("Starting seed script...")

	cfg := config.Load()

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	if err := gormDB.AutoMigrate(&model.User{}, &model.Expense{}, &model.Invoice{}); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	ctx := context.Background()
	userRepo := repository.NewUserRepository(gormDB)
	expenseRepo := repository.NewExpenseRepository(gormDB)
	invoiceRepo := repository.NewInvoiceRepository(gormDB)

	user, err := userRepo.FindByEmail(ctx, demoEmail)
	if err == gorm.ErrRecordNotFound {
		hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("Failed to hash demo password: %v", err)
		}
		user = &model.User{
			Email:        demoEmail,
			Name:         "Demo User",
			PasswordHash: string(hash),
		}
		if err := userRepo.Create(ctx, user); err != nil {
			log.Fatalf("Failed to create demo user: %v", err)
		}
		log.Printf("Created demo user %s", demoEmail)
	} else if err != nil {
		log.Fatalf("Failed to look up demo user: %v", err)
	} else {
		log.Printf("Demo user %s already exists", demoEmail)
	}

	created := 0
	for _, rec := range seedExpenses {
		amount, err := decimal.NewFromString(rec.amount)
		if err != nil {
			log.Printf("Skipping expense %q with invalid amount: %s", rec.title, rec.amount)
			continue
		}
		expense := &model.Expense{
			UserID:       user.ID,
			Title:        rec.title,
			Description:  rec.description,
			Amount:       amount,
			CurrencyCode: "USD",
		}
		if err := expenseRepo.Create(ctx, expense); err != nil {
			log.Fatalf("Failed to seed expense %q: %v", rec.title, err)
		}
		created++
	}
	for _, rec := range seedInvoices {
		amount, err := decimal.NewFromString(rec.amount)
		if err != nil {
			log.Printf("Skipping invoice %q with invalid amount: %s", rec.title, rec.amount)
			continue
		}
		invoice := &model.Invoice{
			UserID:       user.ID,
			Title:        rec.title,
			Description:  rec.description,
			Amount:       amount,
			CurrencyCode: "USD",
		}
		if err := invoiceRepo.Create(ctx, invoice); err != nil {
			log.Fatalf("Failed to seed invoice %q: %v", rec.title, err)
		}
		created++
	}

	log.Printf("Seed complete: %d records created. Log in as %s / %s", created, demoEmail, demoPassword)
}
