package migrate

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aybabtme/iocontrol"
	"github.com/cheggaaa/pb"
	humanize "github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v4/disk"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/threecommaio/sdwmigrate/pkg/qrexec"
)

// Transfer defaults
const (
	// DefaultMarginKB keeps 500MB free in dom0
	DefaultMarginKB int64 = 512000
	DefaultAppDataPath    = "/home/user/.securedrop_client"
)

// an existing archive is never overwritten
const osCreateExclusive = os.O_WRONLY | os.O_CREATE | os.O_EXCL

// Capacity reports free space usable by an unprivileged writer
type Capacity interface {
	AvailableKB(ctx context.Context, path string) (int64, error)
}

// DiskCapacity queries the filesystem hosting path
type DiskCapacity struct{}

func (DiskCapacity) AvailableKB(ctx context.Context, path string) (int64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	return int64(usage.Free / 1024), nil
}

// TransferOutcome is the result of one capacity-gated transfer
type TransferOutcome struct {
	Performed   bool
	Reason      string
	RemoteKB    int64
	AvailableKB int64
	ArchivePath string
	Bytes       int64
}

// CapacityGatedTransfer archives a remote directory into local staging
// when there is room for it
type CapacityGatedTransfer struct {
	Bridge   qrexec.Bridge
	Capacity Capacity
	Fs       afero.Fs
	// Progress receives a progress bar when set
	Progress io.Writer
}

// CanStage reports whether remoteKB fits in availableKB while leaving more
// than marginKB free. Compression is deliberately not accounted for.
func CanStage(availableKB, remoteKB, marginKB int64) bool {
	return availableKB-remoteKB > marginKB
}

// Transfer measures remotePath in domain and, if it fits, streams a
// tar+gzip archive of it into stagingDir
func (t *CapacityGatedTransfer) Transfer(ctx context.Context, domain, remotePath, stagingDir string, marginKB int64) TransferOutcome {
	var outcome TransferOutcome

	remoteKB, err := t.remoteSize(ctx, domain, remotePath)
	if err != nil {
		log.Errorf("failed to measure %s on %s: %v", remotePath, domain, err)
		outcome.Reason = "transfer not completed: " + err.Error()
		return outcome
	}
	outcome.RemoteKB = remoteKB
	log.Infof("%s of uncompressed data on %s", humanize.IBytes(uint64(remoteKB)*1024), domain)

	// free space is queried on stagingDir itself, so it must exist first
	if err := t.Fs.MkdirAll(stagingDir, 0700); err != nil {
		log.Errorf("failed to create %s: %v", stagingDir, err)
		outcome.Reason = "transfer not completed: " + errors.Wrap(err, "create staging directory").Error()
		return outcome
	}

	availableKB, err := t.Capacity.AvailableKB(ctx, stagingDir)
	if err != nil {
		err = &MeasurementError{What: "local capacity", Err: err}
		log.Errorf("failed to measure free space at %s: %v", stagingDir, err)
		outcome.Reason = "transfer not completed: " + err.Error()
		return outcome
	}
	outcome.AvailableKB = availableKB

	if !CanStage(availableKB, remoteKB, marginKB) {
		outcome.Reason = fmt.Sprintf(
			"%s on %s is too large to transfer; back it up manually using the Qubes GUI backup tool and a strong backup passphrase",
			remotePath, domain)
		log.Warn(outcome.Reason)
		return outcome
	}

	path, written, err := t.archive(ctx, domain, remotePath, stagingDir, remoteKB)
	if err != nil {
		log.Errorf("failed to archive %s from %s: %v", remotePath, domain, err)
		outcome.Reason = "transfer not completed: " + err.Error()
		return outcome
	}

	outcome.Performed = true
	outcome.ArchivePath = path
	outcome.Bytes = written
	outcome.Reason = fmt.Sprintf("archived %s to %s", humanize.IBytes(uint64(written)), path)
	log.Info(outcome.Reason)
	return outcome
}

// remoteSize runs du inside domain; the first field is kilobytes
func (t *CapacityGatedTransfer) remoteSize(ctx context.Context, domain, remotePath string) (int64, error) {
	out, err := t.Bridge.Run(ctx, domain, "du -s --block-size=1k "+qrexec.Quote(remotePath), nil)
	if err != nil {
		return 0, &MeasurementError{What: "remote size", Err: err}
	}
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return 0, &MeasurementError{What: "remote size", Err: errors.New("empty du output")}
	}
	kb, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, &MeasurementError{What: "remote size", Err: errors.Wrapf(err, "parse %q", fields[0])}
	}
	return kb, nil
}

// ArchiveName returns the local file name used for remotePath
func ArchiveName(remotePath string) string {
	return strings.TrimPrefix(filepath.Base(filepath.Clean(remotePath)), ".") + ".tar.gz"
}

func (t *CapacityGatedTransfer) archive(ctx context.Context, domain, remotePath, stagingDir string, remoteKB int64) (string, int64, error) {
	path := filepath.Join(stagingDir, ArchiveName(remotePath))

	f, err := t.Fs.OpenFile(path, osCreateExclusive, 0600)
	if err != nil {
		return "", 0, errors.Wrapf(err, "create %s", path)
	}

	measured := iocontrol.NewMeasuredWriter(f)
	var sink io.Writer = measured

	var bar *pb.ProgressBar
	if t.Progress != nil {
		bar = pb.New64(remoteKB * 1024).SetUnits(pb.U_BYTES)
		bar.Output = t.Progress
		bar.ShowSpeed = true
		bar.Start()
		sink = io.MultiWriter(measured, progressWriter{bar})
	}

	parent, base := filepath.Dir(filepath.Clean(remotePath)), filepath.Base(filepath.Clean(remotePath))
	command := fmt.Sprintf("tar -cz -C %s %s", qrexec.Quote(parent), qrexec.Quote(base))
	_, runErr := t.Bridge.Run(ctx, domain, command, sink)

	if bar != nil {
		bar.Finish()
	}
	closeErr := f.Close()

	if runErr == nil {
		runErr = closeErr
	}
	if runErr != nil {
		if err := t.Fs.Remove(path); err != nil {
			log.Warnf("failed to remove partial archive %s: %v", path, err)
		}
		return "", 0, runErr
	}

	log.Debugf("archive written at %s/s", humanize.IBytes(measured.BytesPerSec()))
	return path, int64(measured.Total()), nil
}

type progressWriter struct {
	bar *pb.ProgressBar
}

func (p progressWriter) Write(b []byte) (int, error) {
	p.bar.Add64(int64(len(b)))
	return len(b), nil
}
