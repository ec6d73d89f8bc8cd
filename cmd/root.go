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
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gcs-uploader/gcs-uploader/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownGracePeriod = 20 * time.Second

func main() {
	var stringLogLevel string
	logLevels := make([]string, len(logrus.AllLevels))
	for i, level := range logrus.AllLevels {
		logLevels[i] = level.String()
	}
	acceptedLogLevels := strings.Join(logLevels, ", ")

	rootCmd := &cobra.Command{
		Use:   os.Args[0],
		Short: os.Args[0] + " is a multi-tenant gateway for uploading files to Google Cloud Storage",
		Long: os.Args[0] + " is a multi-tenant gateway for uploading files to Google Cloud Storage " +
			"and mirroring the download links into Slack channels",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logLevel, err := logrus.ParseLevel(stringLogLevel)
			if err != nil {
				return fmt.Errorf("not a valid log level. the accepted values are: %s", acceptedLogLevels)
			}

			l := logging.NewLogger(logLevel)
			cmd.SetContext(logging.IntoContext(cmd.Context(), l))
			return nil
		},
	}

	rootCmd.AddCommand(newServerCommand())
	rootCmd.AddCommand(newTestListObjectsCommand())

	rootCmd.PersistentFlags().StringVar(&stringLogLevel, "log-level", logrus.InfoLevel.String(),
		"Log level. Accepted values: "+acceptedLogLevels)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// waitForShutdown waits for the given context to be done or for SIGINT or SIGTERM.
// The returned context and cancel function are the ones to be used for shutting
// down resources.
func waitForShutdown(ctx context.Context) (context.Context, context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-ctx.Done():
		logging.FromContext(ctx).WithField("context_err", ctx.Err()).Info("command context done")
		ctx = context.Background()
	case sig := <-sigCh:
		signal.Stop(sigCh)
		logging.FromContext(ctx).WithField("signal", sig.String()).Info("signal received")
	}
	return context.WithTimeout(ctx, shutdownGracePeriod)
}
