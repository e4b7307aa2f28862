// Command mcp exposes the reminder notification API as an MCP server.
//
// Usage:
//
//	./mcp          # Start MCP server (stdio)
//	./mcp --help   # Show help
//
// Environment:
//
//	STUDENTREMINDER_API_URL    Base URL of the notifier API (default: http://localhost:8080)
//	STUDENTREMINDER_API_TOKEN  Bearer token, if the API requires one
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/tazhate/studentreminder/internal/mcpserver"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--help", "-h":
			printHelp()
			return
		}
	}

	apiURL := os.Getenv("STUDENTREMINDER_API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}

	s := mcpserver.NewServer(apiURL, os.Getenv("STUDENTREMINDER_API_TOKEN"))

	if err := server.ServeStdio(s.MCPServer()); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println(`Student Reminder MCP server

USAGE:
    mcp          Start MCP server (communicates via stdio)
    mcp --help   Show this help

ENVIRONMENT:
    STUDENTREMINDER_API_URL    Notifier API base URL (default: http://localhost:8080)
    STUDENTREMINDER_API_TOKEN  Bearer token for the API

TOOLS:
    schedule_reminder   Schedule or replace a reminder's notification
    cancel_reminder     Cancel a reminder's notification
    get_notification    Show the notification scheduled for a reminder
    list_notifications  List all scheduled notifications`)
}
