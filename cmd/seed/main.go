package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/vetdesk/clinical-scheduling/internal/db"
)

const (
	clinicCount         = 5
	usersPerClinic      = 12
	ownersPerClinic     = 200
	animalsPerOwnerMax  = 3
	seedInsertBatchSize = 500
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	_ = godotenv.Load()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	seedCtx := context.Background()

	clinicIDs, err := seedClinics(seedCtx, pool, clinicCount)
	if err != nil {
		log.Fatalf("seed clinics: %v", err)
	}
	if err := seedStaff(seedCtx, pool, clinicIDs, usersPerClinic); err != nil {
		log.Fatalf("seed staff: %v", err)
	}
	if err := seedOwnersAndAnimals(seedCtx, pool, clinicIDs, ownersPerClinic); err != nil {
		log.Fatalf("seed owners and animals: %v", err)
	}

	log.Println("seed complete")
}

func seedClinics(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d clinics", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Company() + " Veterinary Clinic"

		_, err := tx.Exec(ctx, `
			INSERT INTO clinics (id, name)
			VALUES ($1, $2)
		`, id, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("clinics seeded")
	return ids, nil
}

func seedStaff(ctx context.Context, pool *pgxpool.Pool, clinicIDs []uuid.UUID, perClinic int) error {
	log.Printf("seeding %d staff per clinic", perClinic)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, clinicID := range clinicIDs {
		for i := 0; i < perClinic; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO users (id, full_name, email)
				VALUES ($1, $2, $3)
			`, id, name, email)
			if err != nil {
				return err
			}

			// roughly half vets, half assistants; a few disabled
			role := "veterinarian"
			if i%2 == 1 {
				role = "assistant"
			}
			disabled := gofakeit.Number(0, 19) == 0

			_, err = tx.Exec(ctx, `
				INSERT INTO clinic_memberships (user_id, clinic_id, role, disabled)
				VALUES ($1, $2, $3, $4)
			`, id, clinicID, role, disabled)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("staff seeded")
	return nil
}

func seedOwnersAndAnimals(ctx context.Context, pool *pgxpool.Pool, clinicIDs []uuid.UUID, perClinic int) error {
	log.Printf("seeding %d owners per clinic", perClinic)

	species := []string{"dog", "cat", "rabbit", "parrot", "guinea pig", "ferret"}

	total := len(clinicIDs) * perClinic
	seeded := 0

	for _, clinicID := range clinicIDs {
		for offset := 0; offset < perClinic; offset += seedInsertBatchSize {
			end := offset + seedInsertBatchSize
			if end > perClinic {
				end = perClinic
			}

			tx, err := pool.Begin(ctx)
			if err != nil {
				return err
			}

			for i := offset; i < end; i++ {
				ownerID := uuid.New()
				name := gofakeit.Name()
				phone := gofakeit.Phone()

				_, err := tx.Exec(ctx, `
					INSERT INTO owners (id, clinic_id, full_name, phone)
					VALUES ($1, $2, $3, $4)
				`, ownerID, clinicID, name, phone)
				if err != nil {
					_ = tx.Rollback(ctx)
					return err
				}

				for j := 0; j < gofakeit.Number(1, animalsPerOwnerMax); j++ {
					_, err := tx.Exec(ctx, `
						INSERT INTO animals (id, owner_id, name, species)
						VALUES ($1, $2, $3, $4)
					`, uuid.New(), ownerID, gofakeit.PetName(), species[gofakeit.Number(0, len(species)-1)])
					if err != nil {
						_ = tx.Rollback(ctx)
						return err
					}
				}
			}

			if err := tx.Commit(ctx); err != nil {
				return err
			}

			seeded += end - offset
			log.Printf("owners seeded: %d/%d", seeded, total)
		}
	}

	log.Println("owners and animals seeded")
	return nil
}
