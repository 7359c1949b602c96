package utils

import (
	"log"
	"time"

	"lms/config"
	"lms/playback"

	"github.com/robfig/cron/v3"
)

// InitializeSessionSweeper sets up the periodic cleanup of idle playback sessions
func InitializeSessionSweeper(sessions *playback.Manager) {
	log.Println("[SESSION-SWEEPER] Initializing playback session sweeper...")

	c := cron.New()

	// Run every 10 minutes to close sessions with no recent events
	c.AddFunc("*/10 * * * *", func() {
		maxIdle := time.Duration(config.AppConfig.SessionIdleTimeout) * time.Minute
		closed := sessions.SweepIdle(maxIdle)
		if closed > 0 {
			log.Printf("[SESSION-SWEEPER] Closed %d idle playback sessions", closed)
		}
	})

	c.Start()
	log.Println("[SESSION-SWEEPER] Session sweeper started - runs every 10 minutes")
}
