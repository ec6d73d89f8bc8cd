// MIT License
//
// Copyright (c) 2021 The gcs-uploader Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package main

import (
	"fmt"
	"os"

	"github.com/gcs-uploader/gcs-uploader/internal/config"
	"github.com/gcs-uploader/gcs-uploader/internal/gcs"
	"github.com/gcs-uploader/gcs-uploader/internal/httpclient"
	"github.com/gcs-uploader/gcs-uploader/internal/logging"
	"github.com/gcs-uploader/gcs-uploader/internal/metrics"
	"github.com/gcs-uploader/gcs-uploader/internal/project"
	"github.com/gcs-uploader/gcs-uploader/internal/server"
	"github.com/gcs-uploader/gcs-uploader/internal/serviceaccount"
	"github.com/gcs-uploader/gcs-uploader/internal/slack"
	"github.com/gcs-uploader/gcs-uploader/internal/tokens"
	cachetokens "github.com/gcs-uploader/gcs-uploader/internal/tokens/cache"
	createtokens "github.com/gcs-uploader/gcs-uploader/internal/tokens/create"

	"github.com/spf13/cobra"
)

const (
	defaultServerPort = 8080

	configFileEnvVar = "UPLOADER_CONFIG_FILE"
)

func newServerCommand() *cobra.Command {
	var configFile string
	var preloadTokens bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the upload gateway HTTP server",
		Long: "Start the upload gateway HTTP server for authenticating clients, streaming their " +
			"payloads into Google Cloud Storage and mirroring the download links into Slack",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			l := logging.FromContext(ctx)
			defer func() {
				if runtimeErr := err; err != nil {
					err = nil
					l.WithError(runtimeErr).Fatal("runtime error")
				}
			}()

			if configFile == "" {
				configFile = os.Getenv(configFileEnvVar)
			}
			if configFile == "" {
				return fmt.Errorf("no config file specified, use --config or %s", configFileEnvVar)
			}
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}

			httpClient := httpclient.New()
			metricsRegistry := metrics.NewRegistry()
			bytesUploaded := metrics.NewTotalBytesUploaded()
			metricsRegistry.MustRegister(bytesUploaded)
			bytesUploadedSize := metrics.NewBytesUploadedSize()
			metricsRegistry.MustRegister(bytesUploadedSize)

			projects := make([]*project.Project, 0, len(cfg.Projects))
			tokenCaches := make([]*cachetokens.Provider, 0, len(cfg.Projects))
			for _, proj := range cfg.Projects {
				account, err := serviceaccount.Load(proj.GoogleStorageTarget.CredentialsFile)
				if err != nil {
					return fmt.Errorf("error loading google service account: %w", err)
				}
				tokenCache := cachetokens.NewProvider(ctx, cachetokens.ProviderOptions{
					Source: createtokens.NewProvider(createtokens.ProviderOptions{
						HTTPClient: httpClient,
						Account:    account,
						Scope:      tokens.ScopeStorageReadWrite,
					}),
				})
				tokenCaches = append(tokenCaches, tokenCache)
				if preloadTokens {
					go func() {
						if _, err := tokenCache.Token(ctx); err != nil {
							l.WithError(err).Warn("error preloading google access token")
						}
					}()
				}

				uploader := gcs.NewUploader(gcs.UploaderOptions{
					HTTPClient:        httpClient,
					Tokens:            tokenCache,
					Bucket:            proj.GoogleStorageTarget.BucketName,
					BytesUploaded:     bytesUploaded,
					BytesUploadedSize: bytesUploadedSize,
				})

				var notifier project.Notifier
				if slackConf := proj.SlackLinkDub; slackConf != nil {
					notifier = slack.NewNotifier(slack.NotifierOptions{
						API:               slack.NewClient(slackConf.Token, httpClient),
						Targets:           slackConf.Targets,
						QRCode:            slackConf.QRCode,
						DefaultTextBefore: slackConf.DefaultTextBefore,
					})
				}

				projects = append(projects, project.New(project.ProjectOptions{
					APIToken: proj.APIToken,
					Uploader: uploader,
					Notifier: notifier,
				}))
			}
			registry, err := project.NewRegistry(projects...)
			if err != nil {
				return fmt.Errorf("error building project registry: %w", err)
			}

			port := cfg.Settings.Port
			if port == 0 {
				port = defaultServerPort
			}
			s := server.New(ctx, server.ServerOptions{
				ServerAddr:      fmt.Sprintf(":%d", port),
				Projects:        registry,
				MetricsRegistry: metricsRegistry,
			})

			ctx, cancel := waitForShutdown(ctx)
			defer cancel()
			if err := s.Shutdown(ctx); err != nil {
				return fmt.Errorf("error in graceful shutdown: %w", err)
			}
			for _, tokenCache := range tokenCaches {
				tokenCache.Close()
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "",
		"Path to the gateway config file. Defaults to the "+configFileEnvVar+" environment variable")
	cmd.Flags().BoolVar(&preloadTokens, "preload-tokens", false,
		"Fetch a Google access token for every project at startup instead of on the first upload")

	return cmd
}
