// Package main is the mixer-fixer CLI: point a microphone (and a camera
// frame) at a misbehaving audio mixer and talk to a live agent that
// watches, listens, talks back, and posts repair instructions.
//
// Usage:
//
//	go run ./cmd/mixer-fixer -frame mixer.jpg
//
// Environment variables:
//
//	GEMINI_API_KEY or GOOGLE_API_KEY - required unless -ws is given
//
// A .env file next to the binary is loaded automatically.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/MostafaRabia/mixer-fixer/internal/dotenv"
	"github.com/MostafaRabia/mixer-fixer/pkg/core"
	"github.com/MostafaRabia/mixer-fixer/pkg/core/live"
	"github.com/MostafaRabia/mixer-fixer/pkg/device"
	"github.com/MostafaRabia/mixer-fixer/pkg/transport/genailive"
	"github.com/MostafaRabia/mixer-fixer/pkg/transport/ws"
)

const systemPrompt = `You are a sound engineer helping the user repair the audio mixer they are pointing their camera and microphone at. Watch the frames, listen to the audio, and talk the user through the fix step by step. Whenever you want the user to perform a concrete step, call displayInstruction with a short action tag and a message in the user's language. Keep spoken replies brief and conversational.`

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load")
	model := flag.String("model", genailive.DefaultModel, "Gemini Live model")
	wsURL := flag.String("ws", "", "connect to a ws:// endpoint instead of the Gemini Live API")
	framePath := flag.String("frame", "", "image file served as the camera frame")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if err := dotenv.Load(*envFile); err != nil {
		log.Fatalf("Failed to load env file: %v", err)
	}

	cfg := live.DefaultSessionConfig()

	var video live.VideoSource
	if *framePath != "" {
		cam, err := device.NewStillCamera(*framePath)
		if err != nil {
			log.Fatalf("Failed to load camera frame: %v", err)
		}
		video = cam
	}

	dialer, err := buildDialer(*wsURL, *model)
	if err != nil {
		log.Fatal(err)
	}

	line, err := device.NewOtoLine(cfg.OutputAudio)
	if err != nil {
		log.Fatalf("Failed to open speaker: %v", err)
	}

	session := live.NewSession(cfg, device.NewAV(cfg.InputAudio, cfg.BlockSize, video), dialer, line)
	if *debug {
		session.EnableDebug()
	}

	fmt.Println("mixer-fixer: live mixer repair assistant")
	fmt.Println("Speak naturally; press Ctrl+C to hang up.")
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nHanging up...")
		_ = session.Stop()
	}()

	if err := session.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}

	for event := range session.Events() {
		switch e := event.(type) {
		case *live.StateChangedEvent:
			fmt.Printf("[session] %s\n", e.To)
		case *live.AgentSpeakingEvent:
			if e.Speaking {
				fmt.Println("[agent] speaking...")
			}
		case *live.InterruptedEvent:
			fmt.Println("[agent] (interrupted)")
		case *live.InstructionEvent:
			if e.Instruction == nil {
				fmt.Println("[instruction] (expired)")
			} else {
				fmt.Printf("[instruction] %s: %s\n", e.Instruction.Action, e.Instruction.Message)
			}
		case *live.ErrorEvent:
			if e.Err.IsFatal() {
				fmt.Printf("[error] %s\n", e.Err)
			} else if *debug {
				fmt.Printf("[warn] %s\n", e.Err)
			}
		case *live.SessionClosedEvent:
			fmt.Printf("[session] closed: %s\n", e.Reason)
		}
	}

	if session.State() == live.StateError {
		os.Exit(1)
	}
}

// buildDialer picks the transport: the Gemini Live API by default, or a
// plain WebSocket endpoint when -ws is given.
func buildDialer(wsURL, model string) (live.Dialer, error) {
	if wsURL != "" {
		token, _ := dotenv.APIKey()
		return ws.NewDialer(ws.Config{URL: wsURL, Token: token}), nil
	}

	key, ok := dotenv.APIKey()
	if !ok {
		return nil, core.NewCredentialMissingError("set GEMINI_API_KEY or GOOGLE_API_KEY")
	}
	return genailive.NewDialer(genailive.Config{
		APIKey:            key,
		Model:             model,
		SystemInstruction: systemPrompt,
	}), nil
}
