// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

func runHealthcheckCLI(args []string) int {
	fs := flag.NewFlagSet("healthcheck", flag.ContinueOnError)
	addr := fs.String("addr", "http://localhost:8080", "base URL of the API")
	timeout := fs.Duration("timeout", 5*time.Second, "check timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	client := http.Client{Timeout: *timeout}
	resp, err := client.Get(*addr + "/healthz")
	if err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck failed (network): %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "healthcheck failed (status): %s\n", resp.Status)
		return 1
	}
	fmt.Println("healthcheck successful")
	return 0
}
