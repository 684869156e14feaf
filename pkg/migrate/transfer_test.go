package migrate

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanStage(t *testing.T) {
	tests := []struct {
		name                      string
		available, remote, margin int64
		want                      bool
	}{
		{"fits with room", 600000, 50000, 512000, true},
		{"eats into margin", 600000, 100000, 512000, false},
		{"exactly at margin", 612000, 100000, 512000, false},
		{"remote larger than disk", 1000, 5000, 0, false},
		{"empty remote", 600000, 0, 512000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanStage(tt.available, tt.remote, tt.margin); got != tt.want {
				t.Errorf("CanStage(%d, %d, %d) = %v, want %v", tt.available, tt.remote, tt.margin, got, tt.want)
			}
		})
	}
}

func TestArchiveName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/home/user/.securedrop_client", "securedrop_client.tar.gz"},
		{"/home/user/.securedrop_client/", "securedrop_client.tar.gz"},
		{"/var/lib/data", "data.tar.gz"},
	}
	for _, tt := range tests {
		if got := ArchiveName(tt.in); got != tt.want {
			t.Errorf("ArchiveName(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCapacityGatedTransfer_Transfer(t *testing.T) {
	const staging = "/migration/sd-app"
	archive := filepath.Join(staging, "securedrop_client.tar.gz")

	tests := []struct {
		name          string
		replies       map[string]reply
		capacity      fixedCapacity
		wantPerformed bool
		wantReason    string
		wantArchive   bool
	}{
		{
			name: "fits",
			replies: map[string]reply{
				"du -s":   {out: "50000\t/home/user/.securedrop_client\n"},
				"tar -cz": {out: "gzipped-bytes"},
			},
			capacity:      fixedCapacity{kb: 600000},
			wantPerformed: true,
			wantReason:    "archived",
			wantArchive:   true,
		},
		{
			name: "too large",
			replies: map[string]reply{
				"du -s":   {out: "100000\t/home/user/.securedrop_client\n"},
				"tar -cz": {out: "gzipped-bytes"},
			},
			capacity:   fixedCapacity{kb: 600000},
			wantReason: "too large to transfer",
		},
		{
			name:       "remote size fails",
			replies:    map[string]reply{"du -s": {err: errors.New("no such file")}},
			capacity:   fixedCapacity{kb: 600000},
			wantReason: "transfer not completed",
		},
		{
			name:       "remote size garbage",
			replies:    map[string]reply{"du -s": {out: "du: cannot access"}},
			capacity:   fixedCapacity{kb: 600000},
			wantReason: "transfer not completed",
		},
		{
			name:       "local capacity fails",
			replies:    map[string]reply{"du -s": {out: "10\t/x\n"}},
			capacity:   fixedCapacity{err: errors.New("statfs")},
			wantReason: "local capacity",
		},
		{
			name: "archive stream fails",
			replies: map[string]reply{
				"du -s":   {out: "50000\t/home/user/.securedrop_client\n"},
				"tar -cz": {out: "partial", err: errors.New("tar died")},
			},
			capacity:   fixedCapacity{kb: 600000},
			wantReason: "transfer not completed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			transfer := &CapacityGatedTransfer{
				Bridge:   &fakeBridge{replies: tt.replies},
				Capacity: tt.capacity,
				Fs:       fs,
			}

			got := transfer.Transfer(context.Background(), TargetApp, DefaultAppDataPath, staging, DefaultMarginKB)

			assert.Equal(t, tt.wantPerformed, got.Performed)
			assert.Contains(t, got.Reason, tt.wantReason)
			exists, _ := afero.Exists(fs, archive)
			assert.Equal(t, tt.wantArchive, exists)
			if tt.wantArchive {
				data, err := afero.ReadFile(fs, archive)
				require.NoError(t, err)
				assert.Equal(t, "gzipped-bytes", string(data))
				assert.Equal(t, int64(len(data)), got.Bytes)
				assert.Equal(t, archive, got.ArchivePath)
			}
		})
	}
}

func TestCapacityGatedTransfer_Commands(t *testing.T) {
	bridge := &fakeBridge{replies: map[string]reply{
		"du -s":   {out: "1\t/x\n"},
		"tar -cz": {out: "z"},
	}}
	var progress bytes.Buffer
	transfer := &CapacityGatedTransfer{
		Bridge:   bridge,
		Capacity: fixedCapacity{kb: 1 << 30},
		Fs:       afero.NewMemMapFs(),
		Progress: &progress,
	}

	got := transfer.Transfer(context.Background(), TargetApp, DefaultAppDataPath, "/stage", 0)
	require.True(t, got.Performed)
	assert.Equal(t, []string{
		"sd-app: du -s --block-size=1k '/home/user/.securedrop_client'",
		"sd-app: tar -cz -C '/home/user' '.securedrop_client'",
	}, bridge.calls)
}

func TestCapacityGatedTransfer_ExistingArchive(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/stage/securedrop_client.tar.gz", []byte("old"), 0600))

	transfer := &CapacityGatedTransfer{
		Bridge: &fakeBridge{replies: map[string]reply{
			"du -s":   {out: "1\t/x\n"},
			"tar -cz": {out: "new"},
		}},
		Capacity: fixedCapacity{kb: 1 << 30},
		Fs:       fs,
	}

	got := transfer.Transfer(context.Background(), TargetApp, DefaultAppDataPath, "/stage", 0)
	assert.False(t, got.Performed)
	data, _ := afero.ReadFile(fs, "/stage/securedrop_client.tar.gz")
	assert.Equal(t, "old", string(data))
}

func TestDiskCapacity_AvailableKB(t *testing.T) {
	dir := t.TempDir()

	kb, err := DiskCapacity{}.AvailableKB(context.Background(), dir)
	require.NoError(t, err)
	assert.Greater(t, kb, int64(0))

	_, err = DiskCapacity{}.AvailableKB(context.Background(), filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestCapacityGatedTransfer_CreatesStagingBeforeMeasuring(t *testing.T) {
	staging := filepath.Join(t.TempDir(), "migration", TargetApp)
	transfer := &CapacityGatedTransfer{
		Bridge: &fakeBridge{replies: map[string]reply{
			"du -s":   {out: "1\t/home/user/.securedrop_client\n"},
			"tar -cz": {out: "gzipped-bytes"},
		}},
		Capacity: DiskCapacity{},
		Fs:       afero.NewOsFs(),
	}

	got := transfer.Transfer(context.Background(), TargetApp, DefaultAppDataPath, staging, 0)

	require.True(t, got.Performed, got.Reason)
	assert.Equal(t, filepath.Join(staging, "securedrop_client.tar.gz"), got.ArchivePath)
	assert.Greater(t, got.AvailableKB, int64(0))
}
