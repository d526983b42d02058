// Package main provides a CLI that sends home commands to a running home
// server the way a game host would. Useful for smoke-testing a deployment.
//
//	homectl -player Steve -world overworld -x 10 -y 64 -z 5 sethome base
//	homectl -save
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/cory-johannsen/simplehome/internal/bridge"
	"github.com/cory-johannsen/simplehome/internal/config"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file (for the server address)")
	addr := flag.String("addr", "", "server address; overrides the config")
	player := flag.String("player", "", "player issuing the command")
	world := flag.String("world", "overworld", "world the player stands in")
	x := flag.Float64("x", 0, "player x coordinate")
	y := flag.Float64("y", 64, "player y coordinate")
	z := flag.Float64("z", 0, "player z coordinate")
	save := flag.Bool("save", false, "request a checkpoint instead of running a command")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	flag.Parse()

	line := strings.Join(flag.Args(), " ")
	if !*save && (*player == "" || line == "") {
		flag.Usage()
		os.Exit(1)
	}

	target := *addr
	if target == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
		target = cfg.Server.Addr()
	}

	client, conn, err := bridge.Dial(target)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *save {
		id, err := client.Save(ctx)
		if err != nil {
			log.Fatalf("save: %v", err)
		}
		fmt.Fprintf(os.Stdout, "saved (request=%s) [%s]\n", id, time.Since(start))
		return
	}

	resp, err := client.Execute(ctx, bridge.ExecuteRequest{
		Player: *player,
		World:  *world,
		X:      *x,
		Y:      *y,
		Z:      *z,
		Line:   line,
	})
	if err != nil {
		log.Fatalf("%s: %v", line, err)
	}

	fmt.Fprintf(os.Stdout, "%s\n", resp.Message)
	if t := resp.Teleport; t != nil {
		fmt.Fprintf(os.Stdout, "teleport %s -> %s (%.2f, %.2f, %.2f)\n", t.Name, t.World, t.X, t.Y, t.Z)
	}
	fmt.Fprintf(os.Stdout, "[%s request=%s %s]\n", resp.Kind, resp.RequestID, time.Since(start))
}
