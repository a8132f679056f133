// massradar-demo starts the deliberately vulnerable demo web
// application (internal/demoapp) standalone, for use as a scanning
// target while exercising massradar's RPC surface. Mirrors the
// teacher's cmd/upstream_test convention of a small, separate binary
// used purely as a test fixture.
package main

import (
	"log"
	"net/http"
	"os"

	"github.com/radarhq/mass-assignment-radar/internal/demoapp"
)

func main() {
	host := os.Getenv("HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "9090"
	}
	addr := host + ":" + port

	store := demoapp.NewStore()
	log.Printf("🧪 Mass Assignment Radar demo app starting on http://%s", addr)
	log.Printf("🔌 POST http://%s/signup", addr)
	if err := http.ListenAndServe(addr, demoapp.Router(store)); err != nil {
		log.Fatalf("demo app failed: %v", err)
	}
}
