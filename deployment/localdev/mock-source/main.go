package main

import (
	"encoding/json"
	"flag"
	"log"
	"math"
	"net/http"
	"time"
)

type record struct {
	Date   string             `json:"date"`
	Values map[string]float64 `json:"values"`
}

var (
	firstDay = time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)
	lastDay  = time.Date(2021, time.May, 31, 0, 0, 0, 0, time.UTC)
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/v1/vaccinations", domainHandler(func(i int, _ time.Time) map[string]float64 {
		daily := 2000 + 150*float64(i)
		total := 0.0
		for d := 0; d <= i; d++ {
			total += 2000 + 150*float64(d)
		}
		return map[string]float64{
			"daily_vaccinations":                  daily,
			"total_vaccinations":                  total,
			"people_vaccinated":                   total * 0.7,
			"people_fully_vaccinated":             total * 0.3,
			"total_vaccinations_per_hundred":      total / 50000,
			"people_fully_vaccinated_per_hundred": total * 0.3 / 50000,
		}
	}))

	mux.HandleFunc("/api/v1/tests", domainHandler(func(i int, day time.Time) map[string]float64 {
		daily := 40000 + 8000*weekly(day) + 60*float64(i)
		positive := daily * positiveRate(i)
		return map[string]float64{
			"daily_tests":        daily,
			"total_tests":        daily * float64(i+1),
			"positive_tests":     positive,
			"positive_rate":      positiveRate(i),
			"tests_per_thousand": daily / 5000,
			"tests_per_case":     daily / math.Max(positive, 1),
		}
	}))

	mux.HandleFunc("/api/v1/case-growth", domainHandler(func(i int, day time.Time) map[string]float64 {
		cases := math.Round(40000*positiveRate(i) + 500*weekly(day))
		return map[string]float64{
			"new_daily_cases":   cases,
			"total_cases":       cases * float64(i+1),
			"active_cases":      cases * 14,
			"new_daily_deaths":  math.Round(cases * 0.012),
			"total_deaths":      math.Round(cases * 0.012 * float64(i+1)),
			"new_recoveries":    math.Round(cases * 0.95),
			"reproduction_rate": 0.8 + 0.4*math.Cos(float64(i)/20),
		}
	}))

	logger := log.New(log.Writer(), "source-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           logRequests(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

// domainHandler serves one record per day between firstDay and lastDay.
func domainHandler(values func(i int, day time.Time) map[string]float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		var records []record
		for i, day := 0, firstDay; !day.After(lastDay); i, day = i+1, day.AddDate(0, 0, 1) {
			records = append(records, record{Date: day.Format(time.DateOnly), Values: values(i, day)})
		}
		writeJSON(w, map[string]any{"records": records})
	}
}

func positiveRate(i int) float64 {
	return 0.08 + 0.05*math.Sin(float64(i)/15)
}

// weekly dips on weekends.
func weekly(day time.Time) float64 {
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return -1
	default:
		return 0.4
	}
}

func enforcePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
