package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"linkpulse.local/internal/app/shortlink/account"
	"linkpulse.local/internal/app/shortlink/repo"
	"linkpulse.local/internal/platform/config"
	"linkpulse.local/internal/platform/db"
)

// 第一个管理员只能用这个工具设置；之后可以走 /api/v1/admin/users/:username/role
func main() {
	if len(os.Args) != 3 {
		log.Fatal("usage: go run ./cmd/tools/setrole <username> <user|premium|admin>")
	}
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.New(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	accounts := account.NewService(repo.NewUsersRepo(pool))
	if err := accounts.SetRole(ctx, os.Args[1], os.Args[2]); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%s is now %s\n", os.Args[1], os.Args[2])
}
