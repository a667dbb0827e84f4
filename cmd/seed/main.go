package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calmclinic/therapy-booking/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

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

	therapistIDs, err := seedTherapists(context.Background(), pool, 25)
	if err != nil {
		log.Fatalf("seed therapists: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 500); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedWorkingHours(context.Background(), pool, therapistIDs); err != nil {
		log.Fatalf("seed working hours: %v", err)
	}

	log.Println("seed complete")
}

func seedTherapists(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d therapists", count)

	specialties := []string{
		"Cognitive Behavioral Therapy",
		"Family Therapy",
		"Trauma Therapy",
		"Child and Adolescent Therapy",
		"Couples Counseling",
		"Addiction Counseling",
		"Grief Counseling",
		"Anxiety and Depression",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO therapists (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("therapists seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 100

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}

// seedWorkingHours gives every therapist a weekday schedule: a morning block
// and, for most, an afternoon block. Times are minutes since midnight.
func seedWorkingHours(ctx context.Context, pool *pgxpool.Pool, therapistIDs []uuid.UUID) error {
	log.Printf("seeding working hours for %d therapists", len(therapistIDs))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	insert := func(therapistID uuid.UUID, day, startMin, endMin int) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO working_hour_blocks (id, therapist_id, day_of_week, start_minute, end_minute, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, true, now(), now())
		`, uuid.New(), therapistID, day, startMin, endMin)
		return err
	}

	for _, id := range therapistIDs {
		for day := 1; day <= 5; day++ { // Monday through Friday
			morningStart := gofakeit.Number(8, 10) * 60
			if err := insert(id, day, morningStart, morningStart+3*60); err != nil {
				return err
			}

			if gofakeit.Number(0, 3) > 0 {
				afternoonStart := gofakeit.Number(13, 15) * 60
				if err := insert(id, day, afternoonStart, afternoonStart+4*60); err != nil {
					return err
				}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("working hours seeded")
	return nil
}
