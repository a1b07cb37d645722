// watch-client is a development tool that connects to an agendad watch
// endpoint and prints every Server-Sent-Events snapshot it receives.
//
// Usage:
//
//	TOKEN=$(agendad token dev) go run . -url http://localhost:8080/events/upcoming/watch
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	url := flag.String("url", "http://localhost:8080/events/upcoming/watch", "watch endpoint to connect to")
	flag.Parse()

	token := os.Getenv("TOKEN")
	if token == "" {
		log.Fatal("TOKEN is required (issue one with: agendad token <subject>)")
	}

	req, err := http.NewRequest(http.MethodGet, *url, nil)
	if err != nil {
		log.Fatalf("bad url: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("connect failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("server returned %s", resp.Status)
	}

	log.Printf("watch-client connected to %s", *url)

	var (
		event    string
		snapshot int
	)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			snapshot++
			fmt.Printf("[%s] #%d %s: %s\n",
				time.Now().UTC().Format(time.RFC3339), snapshot, event, strings.TrimPrefix(line, "data: "))
		case strings.HasPrefix(line, ":"):
			// keepalive comment
		}
	}

	if err := scanner.Err(); err != nil {
		log.Fatalf("stream ended: %v", err)
	}
	log.Println("stream closed by server")
}
