package main

import (
	"encoding/json"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/gpis-formation/satisform/internal/api"
	"github.com/gpis-formation/satisform/internal/middleware"
	"github.com/gpis-formation/satisform/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("server: load .env: %v", err)
	}

	addr := utils.SafeEnv("SATISFORM_ADDR", ":8080")

	store, closeStore, err := openStore(
		os.Getenv("SATISFORM_SQLITE_PATH"),
		os.Getenv("SATISFORM_MIGRATIONS_DIR"),
	)
	if err != nil {
		log.Fatalf("server: open store: %v", err)
	}
	defer closeStore()

	router := api.NewRouter(store)
	router.Connections().IdleAfter = utils.EnvDuration("SATISFORM_IDLE_TIMEOUT", 2*time.Minute)

	if email := os.Getenv("SATISFORM_ADMIN_EMAIL"); email != "" {
		if err := router.Auth().Bootstrap(email, os.Getenv("SATISFORM_ADMIN_PASSWORD")); err != nil {
			log.Fatalf("server: bootstrap admin: %v", err)
		}
	}

	mux := http.NewServeMux()
	router.Register(mux)

	commit := os.Getenv("SATISFORM_COMMIT")
	buildTime := os.Getenv("SATISFORM_BUILD_TIME")
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"commit":     commit,
			"build_time": buildTime,
		})
	})

	// Frontend serving strategy (priority):
	// 1) Static files if SATISFORM_STATIC_DIR is set (fullstack image)
	// 2) Dev proxy if SATISFORM_DEV_FRONTEND_URL is set (proxy / to Vite dev)
	if staticDir := os.Getenv("SATISFORM_STATIC_DIR"); staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	} else if devURL := os.Getenv("SATISFORM_DEV_FRONTEND_URL"); devURL != "" {
		if u, err := url.Parse(devURL); err == nil {
			rp := httputil.NewSingleHostReverseProxy(u)
			// No-store headers must apply to proxied responses as well.
			rp.ModifyResponse = func(res *http.Response) error {
				res.Header.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
				res.Header.Set("Pragma", "no-cache")
				res.Header.Set("Expires", "0")
				return nil
			}
			mux.Handle("/", rp)
		} else {
			log.Printf("invalid SATISFORM_DEV_FRONTEND_URL=%q: %v", devURL, err)
		}
	}

	handler := middleware.CORS(
		middleware.SecureHeaders(
			middleware.NoStore(
				middleware.LocaleMiddleware(
					middleware.WithAuth(mux)))))

	log.Printf("satisform collector listening on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
