// Package main runs the development mock backend for Homeboard.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/hearthlabs/homeboard/internal/mockapi"
	"github.com/hearthlabs/homeboard/pkg/logger"
)

func main() {
	addr := flag.String("addr", ":8000", "Listen address")
	uploadDir := flag.String("uploads", "", "Directory for avatar/background uploads")
	jwtSecret := flag.String("jwt-secret", "", "HS256 signing secret (random when empty)")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	// Environment variable overrides
	if v := os.Getenv("MOCKSERVER_ADDR"); v != "" {
		*addr = v
	}
	if v := os.Getenv("MOCKSERVER_UPLOAD_DIR"); v != "" {
		*uploadDir = v
	}
	if v := os.Getenv("MOCKSERVER_JWT_SECRET"); v != "" {
		*jwtSecret = v
	}

	server, err := mockapi.New(mockapi.Config{
		JWTSecret: *jwtSecret,
		UploadDir: *uploadDir,
		Log:       logger.New("mockapi", *logLevel),
	})
	if err != nil {
		log.Fatalf("Failed to create mock server: %v", err)
	}
	if err := server.Run(*addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
