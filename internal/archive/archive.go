// Package archive orchestrates the migration of a Backups.backupdb
// tree: host discovery, snapshot ordering, per-snapshot replication and
// the trailing Latest symlink.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/mwaldron/snapshift/internal/ownership"
	"github.com/mwaldron/snapshift/internal/platform"
	"github.com/mwaldron/snapshift/internal/replicate"
	"github.com/mwaldron/snapshift/internal/stats"
	"github.com/mwaldron/snapshift/internal/ui"
)

const (
	// BackupDBName is the well-known archive directory under the volume
	// root.
	BackupDBName = "Backups.backupdb"

	// LatestName is the per-host symlink pointing at the newest
	// snapshot.
	LatestName = "Latest"

	// inProgressSuffix marks a snapshot still being written by the
	// backup software. Those are never migrated.
	inProgressSuffix = ".inProgress"
)

// macDotfileRE matches the hidden per-volume marker files the backup
// software keeps next to the snapshots (a dot followed by a MAC
// address without separators).
var macDotfileRE = regexp.MustCompile(`^\.[0-9a-f]{12}$`)

// Config describes one migration run.
type Config struct {
	SrcRoot  string   // volume containing Backups.backupdb
	DstRoot  string   // volume to migrate into
	Hosts    []string // limit migration to these hosts; empty means all
	DryRun   bool
	DirLinks bool

	Report  *ui.Reporter
	Owner   ownership.Applier
	Stats   *stats.Collector
	IOURing *platform.IOURingCopier
}

// Run migrates every selected host's snapshots from the source volume
// to the destination volume. Snapshots already present on the
// destination are skipped but still serve as the reference for the
// ones that follow.
func Run(ctx context.Context, cfg Config) error {
	srcDB := filepath.Join(cfg.SrcRoot, BackupDBName)
	info, err := os.Lstat(srcDB)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("no %s directory under %s", BackupDBName, cfg.SrcRoot)
	}
	dstDB := filepath.Join(cfg.DstRoot, BackupDBName)

	ops := replicate.NewOps(replicate.OpsConfig{
		DryRun:  cfg.DryRun,
		Report:  cfg.Report,
		Owner:   cfg.Owner,
		Stats:   cfg.Stats,
		IOURing: cfg.IOURing,
	})

	hosts, err := listHosts(srcDB, cfg.Hosts)
	if err != nil {
		return err
	}
	slog.Debug("discovered hosts", "count", len(hosts), "hosts", hosts)

	for _, host := range hosts {
		if err := migrateHost(ctx, cfg, ops, srcDB, dstDB, host); err != nil {
			return fmt.Errorf("host %s: %w", host, err)
		}
	}
	return copyVolumeMarkers(cfg, ops)
}

// listHosts returns the host directories under the archive, limited to
// the requested subset when one is given. Requesting a host that does
// not exist is an error.
func listHosts(srcDB string, want []string) ([]string, error) {
	entries, err := os.ReadDir(srcDB)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", srcDB, err)
	}

	all := make(map[string]bool)
	var hosts []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		all[e.Name()] = true
		hosts = append(hosts, e.Name())
	}
	sort.Strings(hosts)

	if len(want) == 0 {
		return hosts, nil
	}
	selected := make([]string, 0, len(want))
	for _, h := range want {
		if !all[h] {
			return nil, fmt.Errorf("host %s not found in %s", h, srcDB)
		}
		selected = append(selected, h)
	}
	sort.Strings(selected)
	return selected, nil
}

// listSnapshots returns the completed snapshot names under a host
// directory in lexicographic order, which for the timestamp naming
// scheme is chronological order. The Latest symlink and in-progress
// snapshots are excluded.
func listSnapshots(hostDir string) ([]string, error) {
	entries, err := os.ReadDir(hostDir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", hostDir, err)
	}

	var snaps []string
	for _, e := range entries {
		name := e.Name()
		if name == LatestName || strings.HasSuffix(name, inProgressSuffix) {
			continue
		}
		if !e.IsDir() {
			continue
		}
		snaps = append(snaps, name)
	}
	sort.Strings(snaps)
	return snaps, nil
}

func migrateHost(ctx context.Context, cfg Config, ops *replicate.Ops, srcDB, dstDB, host string) error {
	hostSrc := filepath.Join(srcDB, host)
	hostDst := filepath.Join(dstDB, host)

	snaps, err := listSnapshots(hostSrc)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		slog.Warn("host has no completed snapshots", "host", host)
		return nil
	}

	hostEntry, err := replicate.Lstat(hostSrc)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(hostDst); errors.Is(err, fs.ErrNotExist) {
		if err := ops.MakeDirAll(hostEntry, hostDst); err != nil {
			return err
		}
	}

	// prevSrc/prevDst track the newest snapshot already materialized on
	// the destination; a skipped snapshot still becomes the reference
	// for the one after it.
	var prevSrc, prevDst string
	for _, snap := range snaps {
		if err := ctx.Err(); err != nil {
			return err
		}

		snapSrc := filepath.Join(hostSrc, snap)
		snapDst := filepath.Join(hostDst, snap)

		if _, err := os.Lstat(snapDst); err == nil {
			cfg.Report.Noticef("%s already exists, skipping...", snap)
			cfg.Stats.AddSnapshotsSkipped(1)
			prevSrc, prevDst = snapSrc, snapDst
			continue
		}

		if prevSrc == "" {
			cfg.Report.Noticef("Copying backup %s -- this will probably take a while...", snap)
		} else {
			cfg.Report.Noticef("Copying backup %s...", snap)
		}

		snapEntry, err := replicate.Lstat(snapSrc)
		if err != nil {
			return err
		}
		if err := ops.MakeDirAll(snapEntry, snapDst); err != nil {
			return err
		}

		rcfg := replicate.Config{
			SrcRoot:     snapSrc,
			DstRoot:     snapDst,
			RefRoot:     prevSrc,
			PrevDstRoot: prevDst,
			DirLinks:    cfg.DirLinks,
			Ops:         ops,
		}
		if prevSrc == "" {
			err = replicate.NewInitial(rcfg).Run(ctx)
		} else {
			err = replicate.NewIncremental(rcfg).Run(ctx)
		}
		if err != nil {
			return fmt.Errorf("snapshot %s: %w", snap, err)
		}

		cfg.Stats.AddSnapshotsCopied(1)
		prevSrc, prevDst = snapSrc, snapDst
	}

	return updateLatest(cfg, hostDst, snaps[len(snaps)-1])
}

// updateLatest points the host's Latest symlink at the newest migrated
// snapshot, replacing a stale one if present.
func updateLatest(cfg Config, hostDst, newest string) error {
	link := filepath.Join(hostDst, LatestName)
	cfg.Report.Symlink(newest, link)
	if cfg.DryRun {
		return nil
	}

	if _, err := os.Lstat(link); err == nil {
		if err := os.Remove(link); err != nil {
			return fmt.Errorf("remove %s: %w", link, err)
		}
	}
	if err := os.Symlink(newest, link); err != nil {
		return fmt.Errorf("symlink %s -> %s: %w", link, newest, err)
	}
	return nil
}

// copyVolumeMarkers copies the hidden MAC-address marker files sitting
// at the volume root next to Backups.backupdb. Restore tooling uses
// them to pair the archive with its machine.
func copyVolumeMarkers(cfg Config, ops *replicate.Ops) error {
	entries, err := os.ReadDir(cfg.SrcRoot)
	if err != nil {
		return fmt.Errorf("read %s: %w", cfg.SrcRoot, err)
	}

	for _, e := range entries {
		if !e.Type().IsRegular() || !macDotfileRE.MatchString(e.Name()) {
			continue
		}
		dst := filepath.Join(cfg.DstRoot, e.Name())
		if _, err := os.Lstat(dst); err == nil {
			continue
		}
		src, err := replicate.Lstat(filepath.Join(cfg.SrcRoot, e.Name()))
		if err != nil {
			return err
		}
		if err := ops.CopyFile(src, dst); err != nil {
			return err
		}
	}
	return nil
}
