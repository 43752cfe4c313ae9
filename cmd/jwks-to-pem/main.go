// Command jwks-to-pem prints the signing key of an identity provider's JWKS
// as PEM, ready to use as JWT_SECRET for ES256 or RS256 tokens.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"subscribe/internal/util"
)

func main() {
	url := flag.String("url", "http://127.0.0.1:54321/auth/v1/.well-known/jwks.json", "JWKS endpoint")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(*url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching JWKS: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Unexpected status fetching JWKS: %s\n", resp.Status)
		os.Exit(1)
	}

	var jwks util.JWKS
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing JWKS: %v\n", err)
		os.Exit(1)
	}

	key, err := jwks.SigningKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	out, err := key.PublicKeyPEM()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error converting key %s: %v\n", key.Kid, err)
		os.Exit(1)
	}
	fmt.Print(out)
}
