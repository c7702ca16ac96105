// A headless peer: connects to the relay, shares the configured spray, and
// replicates entities. The rendering layer consumes the world and the asset
// directory; nothing here draws.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/automoto/spraytag-mp/config"
	"github.com/automoto/spraytag-mp/network"
	"github.com/automoto/spraytag-mp/session"
	"github.com/automoto/spraytag-mp/sprays"
)

const clientVersion = "0.3.0"

func main() {
	relayAddr := flag.String("relay", "", "Relay address (host:port, overrides saved setting)")
	playerName := flag.String("name", "", "Player name (overrides saved setting)")
	sprayPath := flag.String("spray", "", "Spray image to share (overrides saved setting)")
	sprayDir := flag.String("spraydir", "", "List available spray images in this directory and exit")
	flag.Parse()

	if *sprayDir != "" {
		files, err := sprays.ListFiles(*sprayDir)
		if err != nil {
			log.Fatalf("[peer] %v", err)
		}
		for _, f := range files {
			log.Printf("[peer] spray: %s", f)
		}
		return
	}

	settings := loadSettings(*relayAddr, *playerName, *sprayPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := network.NewClient()
	if err := client.Connect(ctx, settings.RelayAddr, clientVersion, settings.PlayerName); err != nil {
		log.Fatalf("[peer] connect: %v", err)
	}
	defer client.Disconnect()

	var welcomeID uint64
	select {
	case welcome := <-client.Welcomes():
		welcomeID = welcome.NetworkID
	case <-time.After(10 * time.Second):
		log.Fatal("[peer] no welcome from relay within 10s")
	}

	peer := session.NewPeer(ctx, client.NetworkID(), client)
	defer peer.Close()
	log.Printf("[peer] session joined as %d", welcomeID)

	if settings.SprayPath != "" {
		data, format, err := sprays.Load(settings.SprayPath)
		switch {
		case errors.Is(err, sprays.ErrTooLarge):
			// Capacity errors abort the share, not the session.
			log.Printf("[peer] %v", err)
		case err != nil:
			log.Printf("[peer] spray unavailable: %v", err)
		default:
			if err := peer.SetLocalSpray(format, data); err != nil {
				log.Printf("[peer] spray share failed: %v", err)
			}
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("[peer] shutting down...")
		cancel()
	}()

	if err := session.Run(ctx, peer, client); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("[peer] session error: %v", err)
	}
}

// loadSettings merges saved settings with command-line overrides and writes
// the result back so the next run remembers them.
func loadSettings(relayAddr, playerName, sprayPath string) config.SavedSettings {
	store, err := config.Open()
	if err != nil {
		log.Printf("[peer] settings storage unavailable: %v", err)
		settings := config.Defaults()
		applyOverrides(&settings, relayAddr, playerName, sprayPath)
		return settings
	}

	settings, err := store.Load()
	if err != nil {
		log.Printf("[peer] %v, using defaults", err)
	}
	applyOverrides(&settings, relayAddr, playerName, sprayPath)

	if err := store.Save(settings); err != nil {
		log.Printf("[peer] %v", err)
	}
	return settings
}

func applyOverrides(s *config.SavedSettings, relayAddr, playerName, sprayPath string) {
	if relayAddr != "" {
		s.RelayAddr = relayAddr
	}
	if playerName != "" {
		s.PlayerName = playerName
	}
	if sprayPath != "" {
		s.SprayPath = sprayPath
	}
}
