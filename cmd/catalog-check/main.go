package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/IgrejaConnect/Election-Backend/internal/election"
)

// CLI flags
var (
	path    = flag.String("catalog", "config/positions.yaml", "Path to the position catalog YAML")
	verbose = flag.Bool("verbose", false, "Print every role in the catalog")
)

func main() {
	flag.Parse()

	catalog, err := election.LoadCatalog(*path)
	if err != nil {
		fatalf("catalog error: %v", err)
	}

	roles := 0
	elderSeats := 0
	for _, dept := range catalog.Departments {
		if *verbose {
			fmt.Printf("%s:\n", dept.Department)
		}
		for _, role := range dept.Roles {
			roles++
			if role.ElderSeat {
				elderSeats++
			}
			if *verbose {
				marker := " "
				if role.ElderSeat {
					marker = "*"
				}
				fmt.Printf("  %s %s\n", marker, role.Name)
			}
		}
	}

	fmt.Printf("Catalog OK: %d departments, %d roles, %d elder seats\n",
		len(catalog.Departments), roles, elderSeats)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
