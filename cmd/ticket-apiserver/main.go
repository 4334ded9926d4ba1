// Package main is the entry point for the ticket API server.
package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/BluePanda-io/ai-agent-apis/internal/ticket"
)

func main() {
	ticket.NewApp().Run()
}
