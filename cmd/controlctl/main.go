// v2
// cmd/controlctl/main.go
// controlctl sends authenticated stop/restart commands to a running
// home-controller. It derives a fresh single-use token from the shared PIN
// and the current time, so captured requests cannot be replayed.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/maxmcoste/home-controller/internal/auth"
)

func main() {
	_ = godotenv.Load()

	host := flag.String("host", envOr("HC_HOST", "http://localhost:8000"), "base URL of the controller API")
	pin := flag.String("pin", os.Getenv("HC_CONTROL_PIN"), "shared control PIN")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] stop|restart\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	action := flag.Arg(0)
	if action != "stop" && action != "restart" {
		flag.Usage()
		os.Exit(2)
	}
	if *pin == "" {
		fmt.Fprintln(os.Stderr, "controlctl: no PIN given (use -pin or HC_CONTROL_PIN)")
		os.Exit(2)
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	payload, err := json.Marshal(map[string]string{
		"token":     auth.GenerateToken(*pin, timestamp),
		"timestamp": timestamp,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "controlctl: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: *timeout}
	url := *host + "/control/" + action
	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		fmt.Fprintf(os.Stderr, "controlctl: %s: %v\n", url, err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "controlctl: %s rejected (%d): %s\n", action, resp.StatusCode, bytes.TrimSpace(body))
		os.Exit(1)
	}
	fmt.Printf("%s accepted: %s\n", action, bytes.TrimSpace(body))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
