package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"bookchat/internal/app"
)

func main() {
	// Local .env is optional; environment variables win over flag defaults.
	_ = godotenv.Load()

	flagSet := flag.NewFlagSet("bookchat", flag.ExitOnError)
	serverURL := flagSet.String("server-url", envOrDefault("BOOKCHAT_SERVER", "wss://chat.bookonline.example/socket"), "chat server websocket URL")
	apiURL := flagSet.String("api-url", envOrDefault("BOOKCHAT_API", ""), "REST base URL (derived from server-url when empty)")
	token := flagSet.String("token", envOrDefault("BOOKCHAT_TOKEN", ""), "auth token")
	userID := flagSet.String("user-id", envOrDefault("BOOKCHAT_USER_ID", ""), "authenticated user id")
	debugAddr := flagSet.String("debug-addr", envOrDefault("BOOKCHAT_DEBUG_ADDR", ""), "optional listen address for the /metrics debug endpoint")
	quiet := flagSet.Bool("quiet", false, "suppress informational logs")
	_ = flagSet.Parse(os.Args[1:])

	if *quiet {
		slog.SetLogLoggerLevel(slog.LevelWarn)
	}

	cfg := app.ClientConfig{
		ServerURL:  *serverURL,
		APIBaseURL: *apiURL,
		Token:      *token,
		UserID:     *userID,
		DebugAddr:  *debugAddr,
	}

	if err := app.RunClient(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "bookchat: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
