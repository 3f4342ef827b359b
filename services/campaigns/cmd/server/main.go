package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/communitycare/carefund/internal/receipts"
	"github.com/communitycare/carefund/services/campaigns/config"
	"github.com/communitycare/carefund/services/campaigns/internal/auth"
	"github.com/communitycare/carefund/services/campaigns/internal/campaign"
	"github.com/communitycare/carefund/services/campaigns/internal/database"
	"github.com/communitycare/carefund/services/campaigns/internal/payment"
	"github.com/communitycare/carefund/services/campaigns/internal/ratelimit"
	"github.com/communitycare/carefund/services/campaigns/internal/server"
	"github.com/communitycare/carefund/services/campaigns/internal/storage"
	"github.com/communitycare/carefund/services/campaigns/internal/story"
	"github.com/communitycare/carefund/services/campaigns/internal/token"
	"github.com/communitycare/carefund/services/campaigns/internal/web/handlers"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// store is what both database backends provide.
type store interface {
	campaign.Store
	payment.Store
	Close() error
}

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("carefund-server %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", buildDate)
		os.Exit(0)
	}

	cfg := config.Load()
	ctx := context.Background()

	if cfg.JWT.SigningKey == "" {
		if cfg.IsProduction() {
			log.Fatal("JWT_SIGNING_KEY is required in production")
		}
		key, err := token.GenerateSigningKey()
		if err != nil {
			log.Fatalf("Failed to generate signing key: %v", err)
		}
		log.Println("WARNING: JWT_SIGNING_KEY is empty, using a random key (admin sessions end on restart)")
		cfg.JWT.SigningKey = key
	}

	var fbApp *firebase.App
	var fbOpts []option.ClientOption
	if cfg.Firebase.CredentialsPath != "" {
		fbOpts = append(fbOpts, option.WithCredentialsFile(cfg.Firebase.CredentialsPath))
	}
	if cfg.Firebase.ProjectID != "" {
		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.Firebase.ProjectID}, fbOpts...)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}
		fbApp = app
	}

	db, err := openStore(ctx, cfg, fbOpts)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	files, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize file storage: %v", err)
	}

	srv := server.New(cfg.Server.AllowedOrigins...)
	srv.OnStop(func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	})

	var donationLimiter, submitLimiter ratelimit.Limiter
	if cfg.Redis.URL != "" {
		rdb, err := ratelimit.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		srv.OnStop(func() { rdb.Close() })
		donationLimiter = ratelimit.NewRedis(rdb, "donations", cfg.RateLimit.DonationsPerHour, time.Hour)
		submitLimiter = ratelimit.NewRedis(rdb, "submissions", cfg.RateLimit.SubmissionsPerHour, time.Hour)
		log.Println("Rate limiting via Redis")
	} else {
		donationLimiter = ratelimit.NewMemory(cfg.RateLimit.DonationsPerHour, time.Hour)
		submitLimiter = ratelimit.NewMemory(cfg.RateLimit.SubmissionsPerHour, time.Hour)
	}

	var pub receipts.Publisher = receipts.LogPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		pub = receipts.NewKafkaPublisher(cfg.Kafka.Brokers)
		log.Printf("Publishing donation receipts to Kafka %v", cfg.Kafka.Brokers)
	}
	srv.OnStop(func() { pub.Close() })

	campaigns := campaign.NewService(db, files, pub, campaign.Options{
		PageSize:        cfg.Listing.PageSize,
		MerchantUPI:     cfg.UPI.MerchantID,
		MerchantName:    cfg.UPI.MerchantName,
		DonationLimiter: donationLimiter,
	})

	stories := story.New(cfg.Story.Provider, story.OpenAIOptions{
		APIKey:     cfg.Story.OpenAIKey,
		Model:      cfg.Story.OpenAIModel,
		BaseURL:    cfg.Story.OpenAIURL,
		Timeout:    time.Duration(cfg.Story.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Story.MaxRetries,
	})

	var gateway payment.Gateway
	if cfg.Razorpay.KeyID != "" && cfg.Razorpay.KeySecret != "" {
		gateway = payment.NewRazorpay(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, cfg.Razorpay.BaseURL)
	} else {
		log.Println("Razorpay keys not set, card payments disabled")
	}
	payments := payment.NewService(gateway, db)

	var verifier token.IDTokenVerifier
	if fbApp != nil {
		client, err := fbApp.Auth(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase Auth: %v", err)
		}
		verifier = client
	}
	authService, err := auth.New(token.New(cfg.JWT.SigningKey, cfg.JWT.Issuer, verifier), auth.Options{
		Username:     cfg.Admin.Username,
		PasswordHash: cfg.Admin.PasswordHash,
		Password:     cfg.Admin.Password,
		Emails:       cfg.Admin.Emails,
		TokenTTL:     time.Duration(cfg.Admin.TokenTTLHrs) * time.Hour,
	})
	if err != nil {
		log.Fatalf("Failed to initialize auth: %v", err)
	}
	if !authService.PasswordEnabled() && !authService.FirebaseEnabled() {
		log.Println("WARNING: no admin login configured (set ADMIN_PASSWORD_HASH or ADMIN_EMAILS)")
	}

	h := handlers.New(cfg, campaigns, payments, stories, authService)
	opts := handlers.RouteOptions{SubmitLimiter: submitLimiter}
	if local, ok := files.(*storage.Local); ok {
		opts.UploadDir = local.Dir()
	}
	h.Routes(srv.Router, opts)

	log.Printf("CareFund server (env: %s, store: %s, files: %s)", cfg.Server.Env, cfg.DB.Backend, cfg.Storage.Backend)
	if err := srv.ListenAndServe(fmt.Sprintf(":%s", cfg.Server.Port)); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config, opts []option.ClientOption) (store, error) {
	switch cfg.DB.Backend {
	case "firestore":
		if cfg.Firebase.ProjectID == "" {
			return nil, fmt.Errorf("FIREBASE_PROJECT_ID is required for the firestore backend")
		}
		return database.NewFirestore(ctx, cfg.Firebase.ProjectID, cfg.Firebase.FirestoreDatabase, opts...)
	case "sqlite", "":
		return database.New(cfg.DB.Path)
	}
	return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.DB.Backend)
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "s3":
		if cfg.Storage.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required for the s3 backend")
		}
		return storage.NewS3(ctx, cfg.Storage.S3Bucket, cfg.Storage.AWSRegion)
	case "local", "":
		return storage.NewLocal(cfg.Storage.UploadDir, "/uploads")
	}
	return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.Storage.Backend)
}
