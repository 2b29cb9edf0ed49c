package main

import (
	"bufio"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/gpis-formation/satisform/internal/kvstore"
	"github.com/gpis-formation/satisform/internal/replay"
	"github.com/gpis-formation/satisform/internal/syncq"
	"github.com/gpis-formation/satisform/internal/utils"
)

// The kiosk agent is the offline-capable side of the system: it registers a
// session, heartbeats it, accepts survey responses on stdin (one JSON object
// per line) and guarantees each one is either delivered or durably queued.
// Queued work drains on reconnect, at startup and on a periodic tick.
func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("kiosk: load .env: %v", err)
	}

	serverURL := utils.SafeEnv("SATISFORM_SERVER_URL", "http://localhost:8080")
	dataDir := utils.SafeEnv("SATISFORM_KIOSK_DATA_DIR", "kiosk-data")
	syncEvery := utils.EnvDuration("SATISFORM_SYNC_INTERVAL", time.Minute)

	store, err := kvstore.NewFileStore(dataDir)
	if err != nil {
		log.Fatalf("kiosk: open data dir: %v", err)
	}

	// All outgoing traffic rides the replay transport: GETs are cached for
	// offline use and failed API POSTs are spooled and acked locally.
	transport := replay.NewTransport(http.DefaultTransport, store)
	client := &http.Client{Transport: transport, Timeout: 20 * time.Second}
	remote := syncq.NewHTTPRemote(serverURL, client)

	queue := syncq.NewQueue(store)
	submitter := syncq.NewSubmitter(queue, remote)
	syncer := syncq.NewSynchronizer(queue, remote)
	syncer.Notify = func(synced int) { log.Printf("kiosk: synced %d pending item(s)", synced) }
	replayer := replay.NewReplayer(transport)
	replayer.Notify = func(synced int) { log.Printf("kiosk: replayed %d spooled request(s)", synced) }

	sessionID := "s" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	log.Printf("kiosk: session %s against %s", sessionID, serverURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	drain := func() {
		if synced, remaining := syncer.Drain(ctx); remaining > 0 {
			log.Printf("kiosk: drain pass: %d synced, %d still pending", synced, remaining)
		}
		replayer.Drain(ctx)
	}

	monitor := &syncq.Monitor{
		Probe:     remote.Ping,
		Heartbeat: func(ctx context.Context) error { return remote.Heartbeat(ctx, sessionID) },
	}
	monitor.OnStatusChange(func(online bool) {
		if online {
			log.Printf("kiosk: back online")
			go drain()
			return
		}
		log.Printf("kiosk: offline, submissions will queue")
	})
	submitter.Online = monitor.IsOnline
	monitor.Start(ctx)
	defer monitor.Stop()

	// Register the session; offline registration queues like everything else.
	submitter.SubmitConnection(ctx, map[string]any{
		"sessionId": sessionID,
		"userAgent": "satisform-kiosk/1.0",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})

	// Leftovers from a previous run sync as soon as we are up.
	if queue.Len() > 0 || transport.SpoolLen() > 0 {
		go drain()
	}

	go func() {
		tick := time.NewTicker(syncEvery)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				if monitor.IsOnline() {
					drain()
				}
			}
		}
	}()

	go readSubmissions(ctx, submitter)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	// Best effort; an unreachable server just means the session goes idle.
	uctx, ucancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer ucancel()
	if err := remote.UnregisterConnection(uctx, sessionID); err != nil {
		log.Printf("kiosk: unregister: %v", err)
	}
}

func readSubmissions(ctx context.Context, submitter *syncq.Submitter) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(line), &payload); err != nil {
			log.Printf("kiosk: bad response payload: %v", err)
			continue
		}
		outcome, err := submitter.SubmitResponse(ctx, payload)
		if err != nil {
			log.Printf("kiosk: response rejected: %v", err)
			continue
		}
		log.Printf("kiosk: response %s", outcome)
	}
	if err := scanner.Err(); err != nil {
		log.Printf("kiosk: read stdin: %v", err)
	}
}
