package main

import (
	"errors"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/ivlev/screenzoom/internal/system"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	// Увеличиваем лимиты системы (для macOS/Linux)
	system.InitResourceLimits()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("[!] Не удалось прочитать .env: %v", err)
	}

	app := newCLIApp()
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}
}
