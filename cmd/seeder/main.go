package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/locvowork/employee_directory/internal/bootstrap"
	"github.com/locvowork/employee_directory/internal/database"
	"github.com/locvowork/employee_directory/internal/logger"
	"github.com/locvowork/employee_directory/internal/repository"
)

func main() {
	action := flag.String("action", "seed", "Action to perform: seed, clear")
	preset := flag.String("preset", "medium", "Data preset: small, medium, large")
	employees := flag.Int("employees", 0, "Number of employees (overrides preset)")
	projects := flag.Int("projects", 0, "Number of project experiences per employee (overrides preset)")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")

	flag.Parse()

	ctx := context.Background()

	fmt.Println("Employee Directory Seeder")
	fmt.Println(strings.Repeat("=", 50))

	app := bootstrap.NewApp()
	if err := app.InitializeCore(ctx); err != nil {
		logger.ErrorLog(ctx, "Failed to initialize application: %v", err)
		log.Fatal(err)
	}
	defer app.Close()

	if err := database.Migrate(ctx, app.DB.DB); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	seeder := database.NewDataSeeder(
		app.DB,
		repository.NewEmployeeRepository(app.DB),
		repository.NewProjectExperienceRepository(app.DB),
		*seed,
	)

	switch *action {
	case "seed":
		numEmployees, numProjects := database.GetPresetConfig(database.SeedPreset(*preset))
		if *employees > 0 {
			numEmployees = *employees
		}
		if *projects > 0 {
			numProjects = *projects
		}
		fmt.Printf("Seeding %d employees with %d project experiences each\n", numEmployees, numProjects)
		if _, err := seeder.SeedData(ctx, numEmployees, numProjects); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}

	case "clear":
		performClear(ctx, seeder)

	default:
		fmt.Printf("Unknown action: %s\n", *action)
		flag.PrintDefaults()
	}
}

func performClear(ctx context.Context, seeder *database.DataSeeder) {
	fmt.Println("This will delete all seeded employees!")
	fmt.Print("Continue? (yes/no): ")

	var response string
	fmt.Scanln(&response)

	if response != "yes" {
		fmt.Println("Cancelled.")
		return
	}
	if err := seeder.ClearData(ctx); err != nil {
		log.Fatalf("Clear failed: %v", err)
	}
}
