package main

import (
	"fmt"

	"github.com/jimyag/jvsan/internal/jvsan/entity"
	"github.com/spf13/cobra"
)

var (
	layout     string
	redundancy int
	vlan       int
	address    string
)

var plan = &cobra.Command{
	Use:   "plan <host>/<pool>...",
	Short: "Show the topologies available on the storage resources",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		resp, err := newClient().ComputeTopologies(cmd.Context(), &entity.ComputeTopologiesRequest{StorageResourceIDs: args})
		if err != nil {
			return fmt.Errorf("failed to compute topologies: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), resp)
		}
		return printTopologies(cmd.OutOrStdout(), resp)
	},
}

var create = &cobra.Command{
	Use:   "create <host>/<pool>...",
	Short: "Deploy a storage cluster on the storage resources",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		resp, err := newClient().CreateCluster(cmd.Context(), &entity.CreateClusterRequest{
			StorageResourceIDs: args,
			Layout:             entity.Layout(layout),
			Redundancy:         redundancy,
			VLAN:               vlan,
		})
		if err != nil {
			return fmt.Errorf("failed to create cluster: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), resp)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cluster %s created by deployment %s\n", resp.Cluster.Backend, resp.DeploymentID)
		return printClusters(cmd.OutOrStdout(), []entity.ClusterConfig{*resp.Cluster})
	},
}

var list = &cobra.Command{
	Use:   "list [backend...]",
	Short: "List the deployed storage clusters",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		resp, err := newClient().DescribeClusters(cmd.Context(), &entity.DescribeClustersRequest{Backends: args})
		if err != nil {
			return fmt.Errorf("failed to list clusters: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), resp)
		}
		return printClusters(cmd.OutOrStdout(), resp.Clusters)
	},
}

var inspect = &cobra.Command{
	Use:   "inspect <backend>",
	Short: "Show the volume of a storage cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		info, err := newClient().DescribeVolume(cmd.Context(), &entity.DescribeVolumeRequest{Backend: args[0]})
		if err != nil {
			return fmt.Errorf("failed to describe volume: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), info)
		}
		return printVolume(cmd.OutOrStdout(), info)
	},
}

var peers = &cobra.Command{
	Use:   "peers <backend>",
	Short: "List the trusted storage pool of a storage cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		resp, err := newClient().ListPeers(cmd.Context(), &entity.ListPeersRequest{Backend: args[0], Address: address})
		if err != nil {
			return fmt.Errorf("failed to list peers: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), resp)
		}
		return printPeers(cmd.OutOrStdout(), resp.Peers)
	},
}

var deployment = &cobra.Command{
	Use:   "deployment <deployment-id>",
	Short: "Show the steps of a deployment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		resp, err := newClient().DescribeDeployment(cmd.Context(), &entity.DescribeDeploymentRequest{DeploymentID: args[0]})
		if err != nil {
			return fmt.Errorf("failed to describe deployment: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), resp)
		}
		return printDeployment(cmd.OutOrStdout(), resp)
	},
}

func init() {
	create.Flags().StringVar(&layout, "layout", string(entity.LayoutDisperse), "Volume layout, disperse or replica")
	create.Flags().IntVar(&redundancy, "redundancy", 1, "Redundancy of the volume")
	create.Flags().IntVar(&vlan, "vlan", 0, "VLAN of the storage network, 0 uses the server default")

	peers.Flags().StringVar(&address, "address", "", "Node to query, defaults to the first reachable node")
}
