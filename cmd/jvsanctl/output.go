package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jimyag/jvsan/internal/jvsan/entity"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printTopologies(w io.Writer, resp *entity.ComputeTopologiesResponse) error {
	if len(resp.Options) == 0 {
		_, err := fmt.Fprintln(w, "No topology is available for this number of storage resources")
		return err
	}

	_, _ = fmt.Fprintf(w, "Brick size: %s\n\n", humanize.IBytes(resp.BrickSize))
	t := newTable(w)
	_, _ = fmt.Fprintln(t, "LAYOUT\tREDUNDANCY\tCAPACITY\tAVAILABLE")
	for _, option := range resp.Options {
		_, _ = fmt.Fprintf(t, "%s\t%d\t%dx\t%s\n",
			option.Layout, option.Redundancy, option.CapacityMultiplier, humanize.IBytes(option.AvailableSpace))
	}
	return t.Flush()
}

func printClusters(w io.Writer, clusters []entity.ClusterConfig) error {
	if len(clusters) == 0 {
		_, err := fmt.Fprintln(w, "No clusters found")
		return err
	}

	t := newTable(w)
	_, _ = fmt.Fprintln(t, "BACKEND\tLAYOUT\tREDUNDANCY\tNODES\tNETWORK\tAGE")
	for _, c := range clusters {
		_, _ = fmt.Fprintf(t, "%s\t%s\t%d\t%d\t%s\t%s\n",
			c.Backend, c.Topology.Layout, c.Topology.Redundancy, len(c.Nodes), c.Network, humanize.Time(c.CreatedAt))
	}
	return t.Flush()
}

func printVolume(w io.Writer, info *entity.VolumeInfo) error {
	keys := make([]string, 0, len(info.Fields))
	for k := range info.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(w, "%s: %s\n", k, info.Fields[k])
	}

	_, _ = fmt.Fprintln(w)
	t := newTable(w)
	_, _ = fmt.Fprintln(t, "BRICK\tVM\tMAC")
	for _, brick := range info.Bricks {
		vm := "-"
		if brick.VM != nil {
			vm = brick.VM.Name
		}
		_, _ = fmt.Fprintf(t, "%s\t%s\t%s\n", brick.Config, vm, orDash(brick.MAC))
	}
	if err := t.Flush(); err != nil {
		return err
	}

	_, _ = fmt.Fprintln(w)
	return printPeers(w, info.Peers)
}

func printPeers(w io.Writer, peers []entity.Peer) error {
	t := newTable(w)
	_, _ = fmt.Fprintln(t, "HOSTNAME\tSTATE\tUUID\tMAC")
	for _, p := range peers {
		_, _ = fmt.Fprintf(t, "%s\t%s\t%s\t%s\n", p.Hostname, p.State, p.UUID, orDash(p.MAC))
	}
	return t.Flush()
}

func printDeployment(w io.Writer, d *entity.Deployment) error {
	_, _ = fmt.Fprintf(w, "Deployment %s of %s: %s\n", d.ID, d.Backend, d.State)
	if d.Error != "" {
		_, _ = fmt.Fprintf(w, "Error: %s\n", d.Error)
	}
	if len(d.VMs) > 0 {
		_, _ = fmt.Fprintf(w, "VMs: %s\n", strings.Join(d.VMs, ", "))
	}
	if len(d.Addresses) > 0 {
		_, _ = fmt.Fprintf(w, "Addresses: %s\n", strings.Join(d.Addresses, ", "))
	}

	_, _ = fmt.Fprintln(w)
	t := newTable(w)
	_, _ = fmt.Fprintln(t, "STEP\tSTATE\tDURATION\tERROR")
	for _, step := range d.Steps {
		duration := "-"
		if step.FinishedAt != nil {
			duration = step.FinishedAt.Sub(step.StartedAt).Round(time.Millisecond).String()
		}
		_, _ = fmt.Fprintf(t, "%s\t%s\t%s\t%s\n", step.Name, step.State, duration, orDash(step.Error))
	}
	return t.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
