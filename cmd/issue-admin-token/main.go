// issue-admin-token signs an admin API token for the console endpoints.
//
// Usage:
//
//	ADMIN_JWT_SECRET=... go run ./cmd/issue-admin-token -business-id biz_123
//
// The token carries the business scope every console query is bound to.
package main

import (
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmjourneys/travel_backend/utils"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	businessId := flag.String("business-id", os.Getenv("BUSINESS_ID"), "business the token is scoped to")
	role := flag.String("role", "admin", "role claim")
	flag.Parse()

	if *businessId == "" {
		fmt.Fprintln(os.Stderr, "a business id is required (-business-id or BUSINESS_ID)")
		os.Exit(1)
	}

	token, err := utils.JwtGenerate(*businessId, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
