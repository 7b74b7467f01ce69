// migrate applies the embedded SQL migrations; run via ./scripts/migrate.sh
// or go run ./cmd/migrate. Accepts the direction as -direction or as the
// first positional argument.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/gaini88088/expert-pancake/internal/config"
	"github.com/gaini88088/expert-pancake/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "", "Migration direction: up or down")
	flag.Parse()

	dir := *direction
	if dir == "" {
		dir = flag.Arg(0)
	}
	if dir == "" {
		dir = migrate.DirectionUp
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	err = migrate.Run(cfg.DatabaseURL, dir)
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		fmt.Println("schema already up to date")
	case err != nil:
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	default:
		fmt.Println("migrations applied:", dir)
	}
}
