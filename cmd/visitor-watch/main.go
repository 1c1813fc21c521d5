package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/livevisitors/backend/internal/tui/app"
	"github.com/livevisitors/backend/internal/tui/client"
)

func main() {
	rawURL := flag.String("url", "http://127.0.0.1:3000/sse", "Any URL of the visitor counter server")
	useWS := flag.Bool("ws", false, "Follow the /ws mirror instead of /sse")
	logPath := flag.String("log", "", "Write debug logs to this file")
	flag.Parse()

	if *logPath != "" {
		f, err := tea.LogToFile(*logPath, "visitor-watch")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
	} else {
		// The alt screen owns the terminal; stray log lines would tear it.
		log.SetOutput(io.Discard)
	}

	ep, err := client.ResolveEndpoints(*rawURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	var sub client.Subscriber
	target := ep.SSE
	if *useWS {
		sub = client.NewWSClient(ep.WS)
		target = ep.WS
	} else {
		sub = client.NewSSEClient(ep.SSE)
	}

	m := app.New(sub, client.NewHTTPClient(ep.Base), target)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
