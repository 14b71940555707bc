package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"codegen/config"
	"codegen/logger"
)

// setupLogger logs to a file next to the executable. Caller must defer
// Close.
func setupLogger(logLevel string) *logger.Logger {
	execPath, err := os.Executable()
	if err != nil {
		log.Fatalf("error getting executable path: %v", err)
	}
	logPath := filepath.Join(filepath.Dir(execPath), "codegen.log")

	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}

	l := logger.Init(f, logger.ParseLevel(logLevel))
	log.SetOutput(l)
	return l
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	l := setupLogger(cfg.LogLevel)
	defer l.Close()

	daemon, err := NewDaemon(cfg)
	if err != nil {
		logger.Fatal("error creating daemon: %v", err)
	}
	if err := daemon.Run(); err != nil {
		logger.Fatal("daemon exited with error: %v", err)
	}
}
