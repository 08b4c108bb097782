package main

import (
	"log"
	"net/http"

	"citegap/internal/api"
	"citegap/internal/config"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	h := api.NewServer(cfg)
	log.Printf("citegap api listening on %s llm_providers=%q embed_providers=%q classifier=%s", cfg.APIAddr, cfg.LLMProviders, cfg.EmbedProviders, cfg.ClassifierBaseURL)
	if err := http.ListenAndServe(cfg.APIAddr, h.Routes()); err != nil {
		log.Fatal(err)
	}
}
