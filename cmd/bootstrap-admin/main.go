// Command bootstrap-admin promotes an existing user to the admin role.
// The order API never grants roles itself; this is the one way in.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/auth"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/domain"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/repository"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/repository/mongostore"
	"github.com/Bassamalsaqqa/delivery-app-backend/pkg/logger"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	email := flag.String("email", "", "e-mail of the user to promote")
	demote := flag.Bool("demote", false, "revoke the admin role instead of granting it")
	tokenTTL := flag.Duration("issue-token", 0, "also print a bearer token valid for this long (requires JWT_SECRET)")
	flag.Parse()

	log, err := logger.New(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if strings.TrimSpace(*email) == "" {
		flag.Usage()
		os.Exit(2)
	}

	role := domain.RoleAdmin
	if *demote {
		role = domain.RoleUser
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := mongostore.ConnectMongoDB(ctx, getEnv("MONGO_URI", "mongodb://localhost:27017"), getEnv("MONGO_DATABASE", "delivery"))
	if err != nil {
		log.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer func() { _ = db.Client().Disconnect(context.Background()) }()

	users := mongostore.NewUserRepository(db)
	user, err := users.GetUserByEmail(ctx, *email)
	if errors.Is(err, repository.ErrUserNotFound) {
		log.Fatal("no user with this e-mail", zap.String("email", *email))
	}
	if err != nil {
		log.Fatal("failed to load user", zap.Error(err))
	}

	if user.Role == role {
		log.Info("role already set, nothing to do", zap.String("user_id", user.ID), zap.String("role", string(role)))
	} else {
		if err := users.SetRole(ctx, user.ID, role); err != nil {
			log.Fatal("failed to set role", zap.String("user_id", user.ID), zap.Error(err))
		}
		log.Info("role updated",
			zap.String("user_id", user.ID),
			zap.String("from", string(user.Role)),
			zap.String("to", string(role)),
		)
	}

	if *tokenTTL > 0 {
		token, err := auth.IssueToken(os.Getenv("JWT_SECRET"), user.ID, role, *tokenTTL)
		if err != nil {
			log.Fatal("failed to issue token", zap.Error(err))
		}
		fmt.Println(token)
	}
}
