// Command renderpuml renders a PlantUML file via a PlantUML server.
//
// Usage:
//
//	renderpuml [-server URL] docs/architecture.puml docs/architecture.png
//
// The diagram text travels inside the request URL, so don't point this at
// the public server for confidential diagrams.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/retailio/elt/pkg/plantuml"
)

func main() {
	server := flag.String("server", plantuml.DefaultServer, "PlantUML server base URL")
	timeout := flag.Duration("timeout", 60*time.Second, "Request timeout")
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: renderpuml [-server URL] <input.puml> <output.png>")
		os.Exit(2)
	}
	inPath, outPath := flag.Arg(0), flag.Arg(1)

	text, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	c := plantuml.NewClient(*server)
	u, err := c.URL(string(text))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println("Requesting:", u)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	png, err := c.Render(ctx, string(text))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := os.WriteFile(outPath, png, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println("Saved:", outPath)
}
