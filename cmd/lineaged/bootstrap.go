// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/antgroup/lineage/internal/cache"
	"github.com/antgroup/lineage/internal/catalog"
	"github.com/antgroup/lineage/internal/cluster"
	"github.com/antgroup/lineage/internal/config"
	"github.com/antgroup/lineage/internal/hub"
)

// bootstrapCmd stands up a brand-new, single-node cluster and
// optionally seeds it with one project and repository, the one-shot
// counterpart to cuemby-warren's "cluster init" (there, the first
// manager forms quorum and prints join tokens; here, the first replica
// forms quorum and, if asked, creates the deployment's first project).
var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "initialize a new single-node cluster from its config file",
	RunE:  runBootstrap,
}

func init() {
	bootstrapCmd.Flags().StringP("config", "c", "", "location of the server config file")
	_ = bootstrapCmd.MarkFlagRequired("config")
	bootstrapCmd.Flags().String("project", "", "name of an initial project to create")
	bootstrapCmd.Flags().String("repository", "", "name of an initial repository to create under --project")
	bootstrapCmd.Flags().String("author", "bootstrap", "author name recorded on the initial create commands")
	bootstrapCmd.Flags().String("author-email", "bootstrap@localhost", "author email recorded on the initial create commands")
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	log := configureLogging(cmd)
	configPath, _ := cmd.Flags().GetString("config")
	expandEnv, _ := cmd.Flags().GetBool("expand-env")

	sc, err := config.Load(configPath, expandEnv)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

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

	nodeCfg := cluster.Config{NodeID: sc.Node.ID, BindAddr: sc.Node.BindAddr, DataDir: sc.Node.DataDir}
	node, err := cluster.Start(nodeCfg, h, true)
	if err != nil {
		return fmt.Errorf("start raft node: %w", err)
	}
	defer node.Shutdown()

	deadline := time.Now().Add(10 * time.Second)
	for !node.IsLeader() && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if !node.IsLeader() {
		return fmt.Errorf("node did not become leader within 10s")
	}
	log.Infof("cluster bootstrapped, node %s is leader", sc.Node.ID)

	project, _ := cmd.Flags().GetString("project")
	if project == "" {
		return nil
	}
	authorName, _ := cmd.Flags().GetString("author")
	authorEmail, _ := cmd.Flags().GetString("author-email")

	createProjectCmd, err := cluster.NewCommand(cluster.OpCreateProject, cluster.CreateProjectPayload{
		Name: project, AuthorName: authorName, AuthorEmail: authorEmail,
	})
	if err != nil {
		return err
	}
	if _, err := node.Apply(createProjectCmd, 10*time.Second); err != nil {
		return fmt.Errorf("create project %s: %w", project, err)
	}
	log.Infof("created project %s", project)

	repository, _ := cmd.Flags().GetString("repository")
	if repository == "" {
		return nil
	}
	createRepoCmd, err := cluster.NewCommand(cluster.OpCreateRepository, cluster.CreateRepositoryPayload{
		Project: project, Name: repository, AuthorName: authorName, AuthorEmail: authorEmail,
	})
	if err != nil {
		return err
	}
	if _, err := node.Apply(createRepoCmd, 10*time.Second); err != nil {
		return fmt.Errorf("create repository %s/%s: %w", project, repository, err)
	}
	log.Infof("created repository %s/%s", project, repository)
	return nil
}
