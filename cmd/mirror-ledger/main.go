package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/dvloznov/sales-ledger/internal/config"
	"github.com/dvloznov/sales-ledger/internal/ledger"
	"github.com/dvloznov/sales-ledger/internal/logger"
	"github.com/dvloznov/sales-ledger/internal/mirror"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	var (
		bucket string
		object string
		pull   bool
		out    string
	)

	flag.StringVar(&bucket, "bucket", cfg.MirrorBucket, "GCS bucket holding the mirror (required)")
	flag.StringVar(&object, "object", cfg.MirrorObject, "GCS object name of the mirror")
	flag.BoolVar(&pull, "pull", false, "Download the mirrored snapshot instead of pushing")
	flag.StringVar(&out, "out", "", "With -pull, write the snapshot here instead of stdout")
	flag.Parse()

	if bucket == "" {
		log.Fatal().Msg("Usage: mirror-ledger -bucket BUCKET_NAME [-object NAME] [-pull [-out FILE]]")
	}

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	uploader := mirror.NewUploader(bucket, object)

	if pull {
		data, err := uploader.Fetch(ctx)
		if err != nil {
			log.Fatal().Err(err).Str("url", uploader.URL()).Msg("Fetch failed")
		}
		if out == "" {
			os.Stdout.Write(data)
			return
		}
		if err := os.WriteFile(out, data, 0644); err != nil {
			log.Fatal().Err(err).Str("out", out).Msg("Failed to write snapshot")
		}
		fmt.Printf("Fetched %s to %s (%d bytes)\n", uploader.URL(), out, len(data))
		return
	}

	// Push goes through the store so the mirror always holds the same
	// canonical export the server would produce.
	store, err := ledger.Open(cfg.LedgerPath, log)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.LedgerPath).Msg("Failed to open ledger store")
	}

	var buf bytes.Buffer
	if err := store.ExportJSON(&buf); err != nil {
		log.Fatal().Err(err).Msg("Failed to export ledger")
	}

	url, err := uploader.Upload(ctx, buf.Bytes())
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	if err := store.SetRemoteURL(url); err != nil {
		log.Fatal().Err(err).Msg("Failed to record mirror location")
	}

	fmt.Printf("Mirrored %s to %s (%d bytes)\n", cfg.LedgerPath, url, buf.Len())
}
