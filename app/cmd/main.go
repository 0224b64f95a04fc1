package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"geodoc/app/server"
	"geodoc/logger"

	"github.com/joho/godotenv"
)

func init() {
	mustLoadEnvVariables()
}

func main() {
	zapLogger := logger.New(os.Getenv("LOG_FILE"), os.Getenv("APP_ENV") == "production")
	defer zapLogger.Sync()

	s := server.NewServer(os.Getenv("SERVER_ADDR"), zapLogger)

	go s.Run()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	<-sigch
	log.Println("Received shutdown signal, shutting down server...")
	s.Stop()
}

func mustLoadEnvVariables() {
	err := godotenv.Load()
	if err != nil {
		log.Fatal("Error loading .env file")
	}
}
