package handler

import (
	"encoding/json"
	"net/http"

	"github.com/Vishesh-Tomer/school-erp/internal/infra"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports liveness of the two backing stores. Postgres down
// means the service cannot work at all, so it drives the status code; a
// redis outage is reported but non-fatal (the limiter policy decides what
// happens to traffic).
func HealthHandler(pool *pgxpool.Pool, rdb redis.UniversalClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{
			"status":   "healthy",
			"database": "up",
			"redis":    "up",
		}

		if err := infra.HealthCheck(r.Context(), pool); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			body["status"] = "unhealthy"
			body["database"] = "down"
		}
		if rdb != nil {
			if err := rdb.Ping(r.Context()).Err(); err != nil {
				body["redis"] = "down"
			}
		}

		json.NewEncoder(w).Encode(body)
	}
}
