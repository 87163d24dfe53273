package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"memberbot/internal/service"
)

// tokenConfig lee solo lo necesario; no exige la configuracion completa del bot.
type tokenConfig struct {
	Secret string        `env:"SCANNER_JWT_SECRET,required"`
	TTL    time.Duration `env:"SCANNER_TOKEN_TTL" envDefault:"720h"`
}

func main() {
	scannerID := flag.String("scanner", "", "identificador del dispositivo de escaneo")
	ttl := flag.Duration("ttl", 0, "vigencia del token (por defecto SCANNER_TOKEN_TTL)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	var cfg tokenConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("config: %v", err)
	}
	if *ttl > 0 {
		cfg.TTL = *ttl
	}
	if *scannerID == "" {
		log.Fatal("missing -scanner")
	}

	tok, err := service.NewJWTService(cfg.Secret, cfg.TTL).IssueScannerToken(*scannerID)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tok); err != nil {
		log.Fatalf("write token: %v", err)
	}
}
