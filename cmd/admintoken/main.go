package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/qs3c/ainexus_server/config"
	"github.com/qs3c/ainexus_server/internal/model"
	"github.com/qs3c/ainexus_server/internal/pkg/jwt"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to config file")
	subject    = flag.String("subject", "", "Admin name, or wallet address with -role wallet (required)")
	role       = flag.String("role", jwt.RoleAdmin, "Token role: admin or wallet")
	hours      = flag.Int("hours", 0, "Token lifetime in hours, defaults to jwt.expire_hours")
)

func main() {
	flag.Parse()

	sub := *subject
	switch *role {
	case jwt.RoleAdmin:
	case jwt.RoleWallet:
		// 与推送通道使用同一钱包格式
		sub = model.NormalizeWallet(sub)
	default:
		log.Fatalf("Unknown role %q", *role)
	}
	if sub == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.JWT.Secret == "" {
		log.Fatal("jwt.secret is not configured")
	}

	expire := cfg.JWT.ExpireHours
	if *hours > 0 {
		expire = *hours
	}

	token, err := jwt.GenerateToken(sub, *role, cfg.JWT.Secret, expire)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	fmt.Println(token)
}
