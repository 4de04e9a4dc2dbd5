// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/antgroup/lineage/internal/cache"
	"github.com/antgroup/lineage/internal/catalog"
	"github.com/antgroup/lineage/internal/cluster"
	"github.com/antgroup/lineage/internal/config"
	"github.com/antgroup/lineage/internal/crypto"
	"github.com/antgroup/lineage/internal/crypto/kms"
	"github.com/antgroup/lineage/internal/crypto/kvstore"
	"github.com/antgroup/lineage/internal/hub"
	"github.com/antgroup/lineage/internal/transport/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start a lineaged replica: raft node, command log, and HTTP command API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringP("config", "c", "", "location of the server config file")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := configureLogging(cmd)
	configPath, _ := cmd.Flags().GetString("config")
	expandEnv, _ := cmd.Flags().GetBool("expand-env")

	sc, err := config.Load(configPath, expandEnv)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyLogConfig(sc.Log)

	cat, err := catalog.NewDB(sc.Database.MakeConfig())
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer cat.Close()

	c, err := cache.New(sc.Cache.NumCounters, sc.Cache.MaxCost, sc.Cache.BufferItems)
	if err != nil {
		return fmt.Errorf("build cache: %w", err)
	}

	h := hub.New(sc.Node.DataDir, cat, c, log)
	h.SetMaxPushPayloadBytes(sc.Push.MaxPayloadBytes)

	if sc.Encryption != nil {
		sub, err := buildCryptoSubstrate(cmd.Context(), sc.Encryption)
		if err != nil {
			return fmt.Errorf("build encryption substrate: %w", err)
		}
		h.SetCrypto(sub)
	}

	if sc.Storage.S3 != nil {
		client, err := buildS3Client(cmd.Context(), sc.Storage.S3)
		if err != nil {
			return fmt.Errorf("build s3 client: %w", err)
		}
		h.SetS3(client, sc.Storage.S3.Bucket)
	}

	nodeCfg := cluster.Config{NodeID: sc.Node.ID, BindAddr: sc.Node.BindAddr, DataDir: sc.Node.DataDir}
	node, err := cluster.Start(nodeCfg, h, sc.Node.Bootstrap)
	if err != nil {
		return fmt.Errorf("start raft node: %w", err)
	}

	if sc.Node.Bootstrap && len(sc.Replication.Peers) > 0 {
		joinPeers(node, sc.Replication.Peers, log)
	}

	srv := httpapi.NewServer(sc.HTTP, h, node, log)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	log.Infof("lineaged listening on %s (node %s)", sc.HTTP.Listen, sc.Node.ID)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	select {
	case sig := <-quit:
		log.Infof("received signal %v, shutting down", sig)
	case err := <-errCh:
		log.Errorf("http server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("http server shutdown: %v", err)
	}
	node.Shutdown()
	log.Infof("lineaged exited")
	return nil
}

// joinPeers adds every statically configured peer as a raft voter.
// Only the bootstrap replica does this: it is guaranteed to become the
// cluster's first leader, and AddVoter is a leader-only operation.
func joinPeers(node *cluster.Node, peers []config.Peer, log *logrus.Entry) {
	deadline := time.Now().Add(10 * time.Second)
	for !node.IsLeader() && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	for _, p := range peers {
		if err := node.AddVoter(p.ID, p.Addr); err != nil {
			log.Errorf("add voter %s (%s): %v", p.ID, p.Addr, err)
		}
	}
}

func buildCryptoSubstrate(ctx context.Context, enc *config.Encryption) (*crypto.Substrate, error) {
	kv, err := kvstore.Open(enc.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open kvstore: %w", err)
	}
	kek, err := kms.New(ctx, enc.Region)
	if err != nil {
		return nil, fmt.Errorf("build kms client: %w", err)
	}
	return crypto.New(kv, kek, enc.KEKID), nil
}

func buildS3Client(ctx context.Context, s3cfg *config.S3) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if s3cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(s3cfg.Region))
	}
	if s3cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s3cfg.AccessKeyID, s3cfg.AccessKeySecret, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if s3cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3cfg.Endpoint)
		}
	}), nil
}
