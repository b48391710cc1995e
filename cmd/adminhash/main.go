// Command adminhash reads an admin secret from stdin and prints the bcrypt
// hash to put in ADMIN_SECRET_HASH.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/barber-api/pkg/security"
)

func main() {
	cost := flag.Int("cost", 12, "bcrypt cost")
	flag.Parse()

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		log.Fatal().Err(err).Msg("failed to read secret from stdin")
	}

	hashed, err := security.NewBcryptHasher(*cost).Hash(strings.TrimRight(line, "\r\n"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to hash secret")
	}
	fmt.Println(hashed)
}
