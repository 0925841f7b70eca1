package dummy

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"sitetester/internal/logging"
)

type ServerConfig struct {
	Port int
}

// Endpoints lists the routes served by NewHandler.
var Endpoints = []string{"/fast", "/medium", "/slow", "/spike", "/error", "/redirect", "/loop", "/cached", "/large"}

const largeBody = 1 << 20

// NewHandler returns the mux behind the dummy target. Each route produces a
// distinct latency, status or network profile for exercising the tester.
func NewHandler() http.Handler {
	mux := http.NewServeMux()

	// 10-50ms
	mux.HandleFunc("/fast", func(w http.ResponseWriter, r *http.Request) {
		sleep(r, time.Duration(rand.Intn(40)+10)*time.Millisecond)
		w.Write([]byte("Fast response"))
	})

	// 100-300ms
	mux.HandleFunc("/medium", func(w http.ResponseWriter, r *http.Request) {
		sleep(r, time.Duration(rand.Intn(200)+100)*time.Millisecond)
		w.Write([]byte("Medium response"))
	})

	// 1-2s, useful with a short --timeout
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		sleep(r, time.Duration(rand.Intn(1000)+1000)*time.Millisecond)
		w.Write([]byte("Slow response"))
	})

	// Usually fast, 5% of requests take 2s.
	mux.HandleFunc("/spike", func(w http.ResponseWriter, r *http.Request) {
		if rand.Float32() < 0.05 {
			sleep(r, 2*time.Second)
		} else {
			sleep(r, 20*time.Millisecond)
		}
		w.Write([]byte("Spikey response"))
	})

	mux.HandleFunc("/error", func(w http.ResponseWriter, r *http.Request) {
		switch rnd := rand.Float32(); {
		case rnd < 0.2:
			http.Error(w, "500 Internal Server Error", http.StatusInternalServerError)
		case rnd < 0.4:
			http.Error(w, "429 Too Many Requests", http.StatusTooManyRequests)
		default:
			w.Write([]byte("OK"))
		}
	})

	// /redirect?n=3 hops three times before landing on /fast.
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		n, _ := strconv.Atoi(r.URL.Query().Get("n"))
		if n <= 0 {
			http.Redirect(w, r, "/fast", http.StatusFound)
			return
		}
		http.Redirect(w, r, fmt.Sprintf("/redirect?n=%d", n-1), http.StatusFound)
	})

	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})

	mux.HandleFunc("/cached", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Cache", "HIT from-cache")
		w.Write([]byte("Cached response"))
	})

	mux.HandleFunc("/large", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(largeBody))
		w.Write(bytes.Repeat([]byte("x"), largeBody))
	})

	return mux
}

// sleep waits for d or until the client goes away.
func sleep(r *http.Request, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-r.Context().Done():
	}
}

// Start serves NewHandler on cfg.Port in the background. The caller owns
// shutdown of the returned server.
func Start(cfg ServerConfig) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.Port)
	fmt.Printf("👻 Dummy Server running on http://localhost%s\n", addr)
	fmt.Printf("   Endpoints: %v\n", Endpoints)

	server := &http.Server{
		Addr:              addr,
		Handler:           NewHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("dummy server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	return server
}
