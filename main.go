package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"typeboard/leaderboard-api/app"
	"typeboard/leaderboard-api/config"
	"typeboard/leaderboard-api/internal/model"
	"typeboard/leaderboard-api/pkg/middleware"

	"github.com/gin-gonic/gin"
	v "github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	gin.SetMode(gin.ReleaseMode)

	err := config.Setup()
	if err != nil {
		if errors.Is(err, config.ErrNoJWTSecret) {
			fmt.Println(err)
			os.Exit(1)
		}
		panic(err)
	}

	if err := app.MakeLogger(v.GetString("app.log_level")); err != nil {
		panic(err)
	}
	defer zap.L().Sync()

	if *config.MintSession != "" {
		mintSession(*config.MintSession)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router, cleanup, err := app.NewRouter(ctx)
	if err != nil {
		zap.L().Fatal("Failed to build router", zap.Error(err))
	}
	defer cleanup()

	addr := fmt.Sprintf(":%d", v.GetInt("host.port"))
	zap.L().Info("Server starting", zap.String("addr", addr))

	if err := app.Serve(ctx, router, addr, 15*time.Second); err != nil {
		zap.L().Error("Server stopped", zap.Error(err))
		return
	}

	zap.L().Info("Server stopped")
}

// mintSession prints a signed session cookie value. Used for local testing
// without going through Discord.
func mintSession(arg string) {
	discordID, name, _ := strings.Cut(arg, ":")
	if discordID == "" {
		zap.L().Fatal("Expected --mint-session discord_id:name")
	}

	token, err := middleware.IssueSession([]byte(v.GetString("jwt.secret")), model.Identity{
		DiscordID: discordID,
		Name:      name,
	}, v.GetDuration("jwt.session_ttl"))
	if err != nil {
		zap.L().Fatal("Failed to mint session", zap.Error(err))
	}

	fmt.Println(token)
}
