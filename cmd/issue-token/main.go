// Command issue-token mints a bearer token for local development and for
// service accounts that call the API directly.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/angelmondragon/miyf-books/pkg/auth"
	"github.com/angelmondragon/miyf-books/pkg/config"
)

func main() {
	_ = godotenv.Load()

	uid := flag.String("uid", "", "user id (token subject)")
	email := flag.String("email", "", "user email")
	name := flag.String("name", "", "display name")
	ttl := flag.Duration("ttl", 0, "token lifetime; defaults to MIYF_JWT_EXPIRATION_MINUTES")
	flag.Parse()

	// only the JWT block is needed, so the full store validation is skipped
	var jwtCfg config.JWTConfig
	if err := envconfig.Process(config.EnvPrefix, &jwtCfg); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *ttl > 0 {
		jwtCfg.ExpirationMinutes = int((*ttl).Minutes())
	}
	if strings.TrimSpace(*uid) == "" {
		*uid = strings.ToLower(strings.TrimSpace(*email))
	}

	token, err := auth.MintIdentityToken(jwtCfg, time.Now(), auth.IdentityPayload{
		UID:   *uid,
		Email: *email,
		Name:  *name,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "mint token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
