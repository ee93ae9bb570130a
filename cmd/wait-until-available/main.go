package main

import (
	"flag"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"gitlab.com/dirk.krummacker/contacts-api/internal/logger"
)

// Usage example on the command line:
// > go run main.go -url=http://localhost:8080/api/contacts -timeout=2m
func main() {
	url := flag.String("url", "http://localhost:8080/api/contacts", "the URL that must answer with 200 OK")
	interval := flag.Duration("interval", 5*time.Second, "the time between two attempts")
	timeout := flag.Duration("timeout", 5*time.Minute, "give up after this time")
	flag.Parse()

	log, err := logger.New(logger.Config{Level: "info", Encoding: "console"})
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	client := &http.Client{Timeout: *interval}
	deadline := time.Now().Add(*timeout)
	for attempt := 1; ; attempt++ {
		res, err := client.Get(*url)
		if err == nil {
			res.Body.Close()
			if res.StatusCode == http.StatusOK {
				log.Info("service is available", zap.String("url", *url), zap.Int("attempts", attempt))
				return
			}
			log.Info("service not ready", zap.Int("status", res.StatusCode))
		} else {
			log.Info("service not reachable", zap.Error(err))
		}
		if time.Now().After(deadline) {
			log.Error("giving up", zap.String("url", *url), zap.Duration("waited", *timeout))
			os.Exit(1)
		}
		time.Sleep(*interval)
	}
}
