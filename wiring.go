package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/uploadrelay/uploadrelay/internal/batch"
	"github.com/uploadrelay/uploadrelay/internal/folders"
	"github.com/uploadrelay/uploadrelay/internal/graph"
	"github.com/uploadrelay/uploadrelay/internal/notify"
	"github.com/uploadrelay/uploadrelay/internal/pipeline"
	"github.com/uploadrelay/uploadrelay/internal/recipient"
)

// openStore builds the configured project store backend.
func openStore(logger *slog.Logger) (recipient.Store, error) {
	switch cfg.Store.Backend {
	case "csv":
		return recipient.NewCSVStore(cfg.Store.Path, logger)
	case "sqlite":
		return recipient.NewSQLiteStore(cfg.Store.Path, logger)
	case "xlsx":
		return recipient.NewXLSXStore(cfg.Store.Path, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// openAdminStore is openStore restricted to backends that support writes.
// The xlsx backend is read-only; projects are managed in the workbook itself.
func openAdminStore(logger *slog.Logger) (recipient.AdminStore, error) {
	store, err := openStore(logger)
	if err != nil {
		return nil, err
	}

	admin, ok := store.(recipient.AdminStore)
	if !ok {
		store.Close()
		return nil, fmt.Errorf("store backend %q is read-only; use csv or sqlite to manage projects", cfg.Store.Backend)
	}

	return admin, nil
}

// newGraphClient builds an authenticated Graph client from the config.
func newGraphClient(ctx context.Context, logger *slog.Logger) (*graph.Client, error) {
	for _, f := range []struct {
		name, value string
	}{
		{"graph.tenant_id", cfg.Graph.TenantID},
		{"graph.client_id", cfg.Graph.ClientID},
		{"graph.client_secret", cfg.Graph.ClientSecret},
		{"graph.drive_id", cfg.Graph.DriveID},
	} {
		if f.value == "" {
			return nil, fmt.Errorf("%s is not configured", f.name)
		}
	}

	cred := graph.Credential{
		ClientID:     cfg.Graph.ClientID,
		ClientSecret: cfg.Graph.ClientSecret,
		TenantID:     cfg.Graph.TenantID,
		AuthorityURL: cfg.Graph.AuthorityURL,
	}

	client := httpClient()
	token := graph.NewAppTokenSource(ctx, cred, client, logger)

	return graph.NewClient(cfg.Graph.BaseURL, client, token, logger), nil
}

// newResolver builds the folder resolver on top of an authenticated client.
func newResolver(client *graph.Client, logger *slog.Logger) *folders.Resolver {
	return folders.NewResolver(client, cfg.Uploads.CacheTTL(), time.Now, logger)
}

// newPipeline assembles the full send pipeline from the config.
func newPipeline(ctx context.Context, store recipient.Store, logger *slog.Logger,
	skipUpload, skipEmail bool,
) (*pipeline.Pipeline, error) {
	var (
		resolver pipeline.FolderResolver
		uploader pipeline.Uploader
	)

	if !skipUpload {
		client, err := newGraphClient(ctx, logger)
		if err != nil {
			return nil, err
		}

		resolver = newResolver(client, logger)
		uploader = batch.NewUploader(client, cfg.Uploads.Workers, logger)
	}

	var mailer pipeline.Mailer

	if !skipEmail {
		m, err := notify.NewMailer(notify.MailerConfig{
			Host:            cfg.SMTP.Host,
			Port:            cfg.SMTP.Port,
			Username:        cfg.SMTP.Username,
			Password:        cfg.SMTP.Password,
			Sender:          cfg.SMTP.Sender,
			SenderName:      cfg.SMTP.SenderName,
			MaxMessageBytes: cfg.SMTP.MaxMessageBytes(),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("configuring mailer: %w", err)
		}

		mailer = m
	}

	var poster pipeline.Poster
	if cfg.Slack.WebhookURL != "" {
		poster = notify.NewSlackPoster(cfg.Slack.WebhookURL, httpClient(), logger)
	}

	opts := pipeline.Options{
		DriveID:       cfg.Graph.DriveID,
		CustomerRoot:  cfg.Graph.CustomerRoot,
		MaxImageBytes: int(cfg.Uploads.MaxImageBytes()),
		SkipUpload:    skipUpload,
		SkipEmail:     skipEmail,
	}

	return pipeline.New(store, resolver, uploader, mailer, poster, opts, logger), nil
}
